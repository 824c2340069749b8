// Package errors provides structured, coded errors for ssrdata.
//
// Every failure that crosses a package boundary in the render pipeline is
// reported as an SSRError carrying a registered code:
//
//   - E101-E119: request and render errors (initializer, drain, payload)
//   - E120-E129: configuration errors
//   - E130-E139: storage errors (snapshot archive)
//
// Codes survive wrapping, so handlers can branch on them:
//
//	if errors.Is(err, "E101") {
//	    // page initializer failed
//	}
//
// SSRError implements Unwrap, so the standard library errors.Is/As keep
// working against the underlying cause.
package errors
