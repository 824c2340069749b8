package routepath

import (
	"log/slog"
	"net/http"

	"github.com/vango-dev/ssrdata/internal/errors"
)

// Middleware redirects GET and HEAD requests for a non-canonical path to
// the canonical one with 301, and answers malformed paths with 400. Other
// methods on a non-canonical path pass through unchanged.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := Canonicalize(r.URL.EscapedPath())
			if err != nil {
				e := errors.New("E108").Wrap(err).With("path", r.URL.EscapedPath())
				logger.Warn("rejected request path", e.LogAttrs()...)
				http.Error(w, "Bad Request (E108)", http.StatusBadRequest)
				return
			}
			if res.Changed && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
				res.Query = r.URL.RawQuery
				http.Redirect(w, r, res.Target(), http.StatusMovedPermanently)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
