package ssrdata

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/ssrdata/internal/config"
	"github.com/vango-dev/ssrdata/internal/errors"
	"github.com/vango-dev/ssrdata/pkg/archive"
	"github.com/vango-dev/ssrdata/pkg/middleware"
	"github.com/vango-dev/ssrdata/pkg/query"
	"github.com/vango-dev/ssrdata/pkg/render"
	"github.com/vango-dev/ssrdata/pkg/ssr"
	"github.com/vango-dev/ssrdata/pkg/vdom"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type postsAPI struct {
	calls atomic.Int64
	fail  error
}

func (a *postsAPI) Do(_ context.Context, req query.Request, _ string) (map[string]any, error) {
	a.calls.Add(1)
	if a.fail != nil {
		return nil, a.fail
	}
	id := req.Variables["id"]
	return map[string]any{"post": map[string]any{
		"__typename": "Post", "id": id, "title": fmt.Sprintf("Post %v", id),
	}}, nil
}

// postPage shows the post named by the id query parameter.
type postPage struct{}

func (postPage) DisplayName() string { return "Post" }

func (postPage) Render(props ssr.Props) *vdom.VNode {
	id := ssr.URLFrom(props).Query.Get("id")
	if id == "" {
		id = "1"
	}
	req := query.Request{OperationName: "post", Variables: map[string]any{"id": id}}
	return query.Use(req, func(r query.Result) *vdom.VNode {
		if r.Loading || r.Data == nil {
			return vdom.P("loading")
		}
		return vdom.H1(r.Data["post"].(map[string]any)["title"].(string))
	})
}

// guardedPage redirects anonymous visitors.
type guardedPage struct{ postPage }

func (guardedPage) InitialProps(_ context.Context, ec *ssr.Context, _ *query.Client) (ssr.Props, error) {
	if ec.Query.Get("anon") != "" {
		ec.Redirect("/login", http.StatusFound)
		return nil, nil
	}
	return ssr.Props{"title": "Guarded"}, nil
}

type brokenPage struct{ postPage }

func (brokenPage) InitialProps(context.Context, *ssr.Context, *query.Client) (ssr.Props, error) {
	return nil, stderrors.New("database unavailable")
}

type memoryArchive struct {
	mu      sync.Mutex
	entries []archive.Entry
	err     error
}

func (m *memoryArchive) Put(_ context.Context, e archive.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryArchive) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	app, err := NewApp(cfg, append([]Option{WithLogger(quietLogger)}, opts...)...)
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}
	return app
}

func get(app http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestPageRendersFromSnapshot(t *testing.T) {
	api := &postsAPI{}
	arch := &memoryArchive{}
	app := newTestApp(t, nil, WithTransport(api), WithArchive(arch))
	app.Page("/posts", postPage{})

	rec := get(app, "/posts?id=7")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<!DOCTYPE html>",
		"<h1>Post 7</h1>",
		`<script id="__SSR_DATA__" type="application/json">`,
		`"serverState":`,
		`"Post:7"`,
		`"pathname":"/posts"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if got := rec.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := api.calls.Load(); got != 1 {
		t.Errorf("api calls = %d, want 1 (render must reuse the drained data)", got)
	}

	if arch.len() != 1 {
		t.Fatalf("archived entries = %d, want 1", arch.len())
	}
	e := arch.entries[0]
	if e.Page != "WithData(Post)" || e.Path != "/posts?id=7" || e.RequestID == "" {
		t.Errorf("unexpected archive entry: %+v", e)
	}
	props, err := ssr.DecodePayload(e.Payload)
	if err != nil {
		t.Fatalf("archived payload: %v", err)
	}
	state, err := ssr.ServerStateFrom(props)
	if err != nil {
		t.Fatalf("archived serverState: %v", err)
	}
	if _, ok := state.Snapshot()["Post:7"]; !ok {
		t.Errorf("archived snapshot missing Post:7: %v", state.Snapshot())
	}
}

func TestStreamedPage(t *testing.T) {
	cfg := config.New()
	cfg.Render.Stream = true
	arch := &memoryArchive{}
	app := newTestApp(t, cfg, WithTransport(&postsAPI{}), WithArchive(arch))
	app.Page("/posts", postPage{})

	rec := get(app, "/posts?id=4")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !rec.Flushed {
		t.Error("streamed page was not flushed")
	}
	body := rec.Body.String()
	for _, want := range []string{"<h1>Post 4</h1>", `"Post:4"`, "</html>"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if arch.len() != 1 {
		t.Errorf("archived entries = %d, want 1", arch.len())
	}
}

func TestPageTitleFromProps(t *testing.T) {
	app := newTestApp(t, nil, WithTransport(&postsAPI{}))
	app.Page("/guarded", guardedPage{})

	rec := get(app, "/guarded")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<title>Guarded</title>") {
		t.Errorf("title missing from %s", rec.Body.String())
	}
}

func TestPageRedirectStopsRendering(t *testing.T) {
	api := &postsAPI{}
	arch := &memoryArchive{}
	app := newTestApp(t, nil, WithTransport(api), WithArchive(arch))
	app.Page("/guarded", guardedPage{})

	rec := get(app, "/guarded?anon=1")

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/login" {
		t.Errorf("Location = %q, want /login", got)
	}
	if strings.Contains(rec.Body.String(), "__SSR_DATA__") {
		t.Error("redirect response must not carry a page payload")
	}
	if api.calls.Load() != 0 {
		t.Errorf("api calls = %d, want 0", api.calls.Load())
	}
	if arch.len() != 0 {
		t.Errorf("archived entries = %d, want 0", arch.len())
	}
}

func TestPageErrors(t *testing.T) {
	tests := []struct {
		name     string
		page     ssr.Page
		api      *postsAPI
		wantCode string
	}{
		{"initializer", brokenPage{}, &postsAPI{}, "E101"},
		{"drain", postPage{}, &postsAPI{fail: stderrors.New("graphql: boom")}, "E102"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := middleware.NewMetrics()
			app := newTestApp(t, nil, WithTransport(tt.api), WithMetrics(metrics))
			app.Page("/p", tt.page)

			rec := get(app, "/p")

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantCode) {
				t.Errorf("body %q does not mention %s", rec.Body.String(), tt.wantCode)
			}

			out := get(app, config.DefaultMetricsPath).Body.String()
			if !strings.Contains(out, `error_type="`+tt.wantCode+`"`) {
				t.Errorf("phase error %s not counted in metrics", tt.wantCode)
			}
		})
	}
}

func TestArchiveFailureIsNotFatal(t *testing.T) {
	metrics := middleware.NewMetrics()
	arch := &memoryArchive{err: errors.New("E130")}
	app := newTestApp(t, nil, WithTransport(&postsAPI{}), WithArchive(arch), WithMetrics(metrics))
	app.Page("/posts", postPage{})

	rec := get(app, "/posts")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	out := get(app, "/metrics").Body.String()
	if !strings.Contains(out, "ssrdata_archive_errors_total 1") {
		t.Error("archive failure not counted")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := config.New()
	cfg.Metrics.Namespace = "shop"
	cfg.Metrics.Path = "/internal/metrics"
	app := newTestApp(t, cfg, WithTransport(&postsAPI{}))
	app.Page("/posts", postPage{})

	get(app, "/posts")
	rec := get(app, "/internal/metrics")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`shop_http_requests_total{route="/posts",status="2xx"} 1`,
		`shop_phase_duration_seconds_count{phase="drain"} 1`,
		"shop_snapshot_records_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	cfg := config.New()
	cfg.Metrics.Enabled = false
	app := newTestApp(t, cfg)

	if app.Metrics() != nil {
		t.Fatal("expected no metrics")
	}
	if rec := get(app, "/metrics"); rec.Code != http.StatusNotFound {
		t.Fatalf("GET /metrics status = %d, want 404", rec.Code)
	}
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	cfg := config.New()
	cfg.Server.Port = 70000

	_, err := NewApp(cfg)
	if !errors.Is(err, "E120") {
		t.Fatalf("NewApp() error = %v, want E120", err)
	}
}

func TestLiveMountRoute(t *testing.T) {
	app := newTestApp(t, nil, WithTransport(&postsAPI{}))
	app.Page("/posts", postPage{})

	srv := httptest.NewServer(app)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+config.DefaultLivePath, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg := `{"page":"/posts","payload":{"url":{"pathname":"/posts","query":{"id":["3"]}}}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply struct {
		HTML    string `json:"html"`
		Fetches int64  `json:"fetches"`
	}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.HTML != "<h1>Post 3</h1>" || reply.Fetches != 1 {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestNonCanonicalPathRedirects(t *testing.T) {
	api := &postsAPI{}
	app := newTestApp(t, nil, WithTransport(api))
	app.Page("/posts", postPage{})

	rec := get(app, "/posts/?id=7")
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/posts?id=7" {
		t.Errorf("Location = %q, want /posts?id=7", got)
	}
	if api.calls.Load() != 0 {
		t.Error("redirect must not initialize the page")
	}

	if rec := get(app, "/../posts"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestScriptsResolveThroughManifest(t *testing.T) {
	dir := t.TempDir()
	writeStaticFile(t, dir, "manifest.json", `{"app.js":"app.a1b2c3d4.js"}`)
	writeStaticFile(t, dir, "app.a1b2c3d4.js", "bundle")

	cfg := config.New()
	cfg.Static.Dir = dir
	cfg.Static.Manifest = "manifest.json"
	app := newTestApp(t, cfg,
		WithTransport(&postsAPI{}),
		WithScripts(render.ScriptTag{Src: "app.js", Module: true}),
		WithStyleSheets("app.css", "https://cdn.example.com/base.css"),
	)
	app.Page("/posts", postPage{})

	body := get(app, "/posts?id=1").Body.String()
	for _, want := range []string{
		`<script src="/static/app.a1b2c3d4.js" type="module">`,
		`href="/static/app.css"`,
		`href="https://cdn.example.com/base.css"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}

	if rec := get(app, "/static/app.a1b2c3d4.js"); rec.Code != http.StatusOK || rec.Body.String() != "bundle" {
		t.Errorf("bundle: status %d body %q", rec.Code, rec.Body.String())
	}
}

func TestNewAppRejectsMissingManifest(t *testing.T) {
	cfg := config.New()
	cfg.Static.Dir = t.TempDir()
	cfg.Static.Manifest = "manifest.json"

	_, err := NewApp(cfg, WithLogger(quietLogger))
	if !errors.Is(err, "E122") {
		t.Fatalf("NewApp() error = %v, want E122", err)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	app := newTestApp(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/missing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func writeStaticFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", name, err)
	}
}
