// Package auth reads the identity claimed by a request's token cookie.
//
// Pages never authenticate on the server: the token is forwarded to the
// GraphQL endpoint with every query. This package only decodes the JWT
// claims so logs and traces can say who a render was for.
//
//	r.Use(auth.Middleware("token", logger))
//
//	if p, ok := auth.PrincipalFrom(r.Context()); ok {
//	    logger.Info("render", p.LogAttrs()...)
//	}
package auth
