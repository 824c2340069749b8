// Package routepath canonicalizes page request paths, so every page has a
// single URL and its pathname prop (and archive key) is stable.
package routepath

import (
	"errors"
	"strings"
)

// Result is a canonicalized request target.
type Result struct {
	// Path is the canonical escaped path.
	Path string

	// Query is the raw query string, without "?".
	Query string

	// Changed reports whether Path differs from the input path.
	Changed bool
}

// Target returns Path with the query string reattached.
func (r Result) Target() string {
	if r.Query == "" {
		return r.Path
	}
	return r.Path + "?" + r.Query
}

// Rejected paths.
var (
	ErrBackslash            = errors.New("path contains backslash")
	ErrNullByte             = errors.New("path contains null byte")
	ErrInvalidPercentEscape = errors.New("invalid percent escape sequence")
	ErrEscapesRoot          = errors.New("path escapes root via ..")
)

// Canonicalize normalizes an escaped request path, optionally followed by a
// query string which is kept as is.
//
// Multiple slashes are collapsed, "." and ".." segments are resolved and
// the trailing slash is dropped, except for the root. A path with a
// backslash, a NUL byte (literal or %00), a malformed percent escape, or a
// ".." above the root is rejected.
func Canonicalize(input string) (Result, error) {
	if input == "" {
		return Result{Path: "/", Changed: true}, nil
	}
	path, query, _ := strings.Cut(input, "?")

	if strings.Contains(path, `\`) {
		return Result{}, ErrBackslash
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return Result{}, ErrNullByte
	}
	if strings.Contains(path, "%") {
		if err := validatePercentEscapes(path); err != nil {
			return Result{}, err
		}
	}

	segments := make([]string, 0, strings.Count(path, "/")+1)
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(segments) == 0 {
				return Result{}, ErrEscapesRoot
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}

	canonical := "/" + strings.Join(segments, "/")
	return Result{Path: canonical, Query: query, Changed: canonical != path}, nil
}

// validatePercentEscapes checks every "%" is followed by two hex digits.
func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
