package ssr

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/google/uuid"
)

// Env selects the initialization path. It is chosen by the constructor of
// the Context and never inferred at run time.
type Env int

const (
	// EnvServer renders on the server: the tree is drained and a snapshot
	// is produced.
	EnvServer Env = iota

	// EnvClient initializes during client-side navigation: there is no
	// request and no snapshot.
	EnvClient
)

func (e Env) String() string {
	switch e {
	case EnvServer:
		return "server"
	case EnvClient:
		return "client"
	default:
		return "unknown"
	}
}

// Context is the execution context of one page initialization.
type Context struct {
	request *http.Request

	// Response tracks whether the response has been written. Nil in
	// EnvClient.
	Response *ResponseRecorder

	Pathname string
	Query    url.Values

	// ID identifies the initialization in logs and traces.
	ID string

	Env    Env
	Logger *slog.Logger
}

// NewContext creates a server context for r. Writes made through
// ctx.Response reach w.
func NewContext(w http.ResponseWriter, r *http.Request) *Context {
	ctx := &Context{
		request:  r,
		Response: NewResponseRecorder(w),
		Query:    url.Values{},
		ID:       requestID(r),
		Env:      EnvServer,
	}
	if r != nil && r.URL != nil {
		ctx.Pathname = r.URL.Path
		ctx.Query = r.URL.Query()
	}
	return ctx
}

// NewClientContext creates a context for client-side navigation to u.
func NewClientContext(u *url.URL) *Context {
	ctx := &Context{
		Query: url.Values{},
		ID:    uuid.NewString(),
		Env:   EnvClient,
	}
	if u != nil {
		ctx.Pathname = u.Path
		ctx.Query = u.Query()
	}
	return ctx
}

func requestID(r *http.Request) string {
	if r != nil {
		if id := r.Header.Get("X-Request-Id"); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

// Request returns the incoming request, or nil in EnvClient.
func (c *Context) Request() *http.Request {
	if c == nil {
		return nil
	}
	return c.request
}

// Finished reports whether the response has already been written, for
// example by a redirect issued from an initializer.
func (c *Context) Finished() bool {
	return c != nil && c.Response != nil && c.Response.Finished()
}

// Redirect replies with a redirect and finishes the response. It returns
// false when there is no response to write to.
func (c *Context) Redirect(target string, code int) bool {
	if c == nil || c.Response == nil || c.request == nil {
		return false
	}
	http.Redirect(c.Response, c.request, target, code)
	return true
}

// URL returns the route-context prop passed to the page while draining.
func (c *Context) URL() URL {
	if c == nil {
		return URL{Query: url.Values{}}
	}
	q := c.Query
	if q == nil {
		q = url.Values{}
	}
	return URL{Query: q, Pathname: c.Pathname}
}

func (c *Context) logger() *slog.Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// ResponseRecorder wraps an http.ResponseWriter and records whether the
// header has been sent.
type ResponseRecorder struct {
	http.ResponseWriter
	status   atomic.Int32
	finished atomic.Bool
}

// NewResponseRecorder wraps w. A nil w discards writes.
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w}
}

// WriteHeader implements http.ResponseWriter.
func (r *ResponseRecorder) WriteHeader(code int) {
	if r.finished.Swap(true) {
		return
	}
	r.status.Store(int32(code))
	if r.ResponseWriter != nil {
		r.ResponseWriter.WriteHeader(code)
	}
}

// Write implements http.ResponseWriter.
func (r *ResponseRecorder) Write(b []byte) (int, error) {
	if !r.finished.Load() {
		r.WriteHeader(http.StatusOK)
	}
	if r.ResponseWriter == nil {
		return len(b), nil
	}
	return r.ResponseWriter.Write(b)
}

// Header implements http.ResponseWriter.
func (r *ResponseRecorder) Header() http.Header {
	if r.ResponseWriter == nil {
		return http.Header{}
	}
	return r.ResponseWriter.Header()
}

// Finished reports whether the status line has been written.
func (r *ResponseRecorder) Finished() bool {
	return r.finished.Load()
}

// Status returns the written status code, or 0.
func (r *ResponseRecorder) Status() int {
	return int(r.status.Load())
}

// Flush implements http.Flusher.
func (r *ResponseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker.
func (r *ResponseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("ssr: response does not support hijacking")
}

// Unwrap returns the wrapped writer for http.ResponseController.
func (r *ResponseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
