// Package cookie reads the cookies of the current render, from the inbound
// request on the server or from an explicitly supplied cookie jar on the
// client side.
package cookie

import (
	"net/http"
	"net/url"
	"strings"
)

// DefaultTokenName is the cookie that carries the auth token.
const DefaultTokenName = "token"

// RequestCarrier is anything that may hold an inbound request.
// *ssr.Context implements it.
type RequestCarrier interface {
	Request() *http.Request
}

// Jar is the ambient cookie store used when no inbound request exists,
// the equivalent of a browser's document cookie string.
type Jar interface {
	CookieHeader() string
}

// StaticJar is a Jar holding a fixed cookie string.
type StaticJar string

// CookieHeader implements Jar.
func (j StaticJar) CookieHeader() string { return string(j) }

// RequestJar exposes the cookies a browser sent with r as a Jar. The live
// mount uses it with the WebSocket upgrade request.
func RequestJar(r *http.Request) Jar {
	return requestJar{r: r}
}

type requestJar struct{ r *http.Request }

func (j requestJar) CookieHeader() string {
	if j.r == nil {
		return ""
	}
	return j.r.Header.Get("Cookie")
}

// Options configures parsing.
type Options struct {
	// Decode decodes cookie values. Defaults to percent-decoding; a value
	// that fails to decode is kept as is.
	Decode func(string) (string, error)

	// Document is the ambient cookie store read when the carrier holds no
	// request. Nil means no ambient cookies.
	Document Jar
}

// Parse returns the cookies visible to src. If src carries a request its
// Cookie header is parsed, otherwise opts.Document is read. Parse never
// fails: missing or malformed input yields an empty map.
func Parse(src RequestCarrier, opts *Options) map[string]string {
	return ParseString(Header(src, opts), opts)
}

// Header returns the raw cookie header visible to src.
func Header(src RequestCarrier, opts *Options) string {
	if r := requestOf(src); r != nil {
		return r.Header.Get("Cookie")
	}
	if opts != nil && opts.Document != nil {
		return opts.Document.CookieHeader()
	}
	return ""
}

// requestOf tolerates typed nil carriers.
func requestOf(src RequestCarrier) (r *http.Request) {
	if src == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			r = nil
		}
	}()
	return src.Request()
}

// ParseString parses a Cookie header value: semicolon separated key=value
// pairs, keys and values trimmed, optional double quotes around the value
// removed, values decoded. The first occurrence of a key wins. Pairs without
// '=' or with an empty key are skipped.
func ParseString(raw string, opts *Options) map[string]string {
	out := make(map[string]string)
	if raw == "" {
		return out
	}

	decode := url.PathUnescape
	if opts != nil && opts.Decode != nil {
		decode = opts.Decode
	}

	for _, pair := range strings.Split(raw, ";") {
		eq := strings.IndexByte(pair, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(pair[:eq])
		if key == "" {
			continue
		}
		if _, seen := out[key]; seen {
			continue
		}

		val := strings.TrimSpace(pair[eq+1:])
		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			val = val[1 : len(val)-1]
		}
		out[key] = tryDecode(val, decode)
	}
	return out
}

func tryDecode(val string, decode func(string) (string, error)) (out string) {
	if !strings.ContainsRune(val, '%') {
		return val
	}
	defer func() {
		if recover() != nil {
			out = val
		}
	}()
	decoded, err := decode(val)
	if err != nil {
		return val
	}
	return decoded
}

// TokenProvider returns a callback reading the named cookie from src each
// time it is called. An empty name selects DefaultTokenName. The callback
// returns "" when the cookie is absent.
func TokenProvider(src RequestCarrier, opts *Options, name string) func() string {
	if name == "" {
		name = DefaultTokenName
	}
	return func() string {
		return Parse(src, opts)[name]
	}
}
