package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/vango-dev/ssrdata/pkg/cookie"
)

var (
	// ErrNoToken is returned when the request carries no token cookie.
	ErrNoToken = errors.New("auth: no token")

	// ErrMalformedToken is returned when the token is not a JWT.
	ErrMalformedToken = errors.New("auth: malformed token")
)

// Principal is the identity a token claims. It is read without verifying
// the signature: the token is forwarded to the GraphQL endpoint, which is
// the authority. Use a Principal for logs and traces, never for access
// decisions.
type Principal struct {
	ID       string   `json:"id"`
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	TenantID string   `json:"tenant_id,omitempty"`

	// ExpiresAtUnixMs is 0 when the token has no exp claim.
	ExpiresAtUnixMs int64 `json:"expires_at_unix_ms"`
}

// ParseUnverified reads the claims of a JWT.
func ParseUnverified(token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrNoToken
	}
	parsed, _, err := gojwt.NewParser().ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	claims := parsed.Claims.(gojwt.MapClaims)

	var p Principal
	if sub, err := claims.GetSubject(); err == nil {
		p.ID = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAtUnixMs = exp.UnixMilli()
	}
	p.Email, _ = claims["email"].(string)
	p.Name, _ = claims["name"].(string)
	p.TenantID, _ = claims["tenant_id"].(string)
	if roles, ok := claims["roles"].([]any); ok {
		for _, r := range roles {
			if s, ok := r.(string); ok {
				p.Roles = append(p.Roles, s)
			}
		}
	}
	return p, nil
}

// Expired reports whether the token expired before now.
func (p Principal) Expired(now time.Time) bool {
	return p.ExpiresAtUnixMs != 0 && now.UnixMilli() >= p.ExpiresAtUnixMs
}

// LogAttrs returns the principal as slog key/value pairs.
func (p Principal) LogAttrs() []any {
	attrs := []any{"user_id", p.ID}
	if p.TenantID != "" {
		attrs = append(attrs, "tenant_id", p.TenantID)
	}
	return attrs
}

// FromRequest reads the principal from the named token cookie of r.
func FromRequest(r *http.Request, tokenCookie string) (Principal, error) {
	if tokenCookie == "" {
		tokenCookie = cookie.DefaultTokenName
	}
	token := cookie.ParseString(r.Header.Get("Cookie"), nil)[tokenCookie]
	return ParseUnverified(token)
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by Middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Middleware stores the claimed principal of every request in its context.
// Requests without a readable token pass through unchanged; expired tokens
// are logged and still passed through for the endpoint to reject.
func Middleware(tokenCookie string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := FromRequest(r, tokenCookie)
			if err != nil {
				if errors.Is(err, ErrMalformedToken) {
					logger.Debug("ignoring malformed token", "path", r.URL.Path, "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if p.Expired(time.Now()) {
				logger.Debug("request carries expired token", append(p.LogAttrs(), "path", r.URL.Path)...)
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
