package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/ssrdata/pkg/cookie"
	"github.com/vango-dev/ssrdata/pkg/query"
	"github.com/vango-dev/ssrdata/pkg/ssr"
	"github.com/vango-dev/ssrdata/pkg/vdom"
)

var greetingReq = query.Request{OperationName: "greeting", Variables: map[string]any{"id": "1"}}

type api struct {
	calls  atomic.Int64
	mu     sync.Mutex
	tokens []string
}

func (a *api) Do(_ context.Context, _ query.Request, token string) (map[string]any, error) {
	a.calls.Add(1)
	a.mu.Lock()
	a.tokens = append(a.tokens, token)
	a.mu.Unlock()
	return map[string]any{"greeting": map[string]any{"__typename": "Greeting", "id": "1", "text": "hello"}}, nil
}

type greetingPage struct{}

func (greetingPage) Render(ssr.Props) *vdom.VNode {
	return query.Use(greetingReq, func(r query.Result) *vdom.VNode {
		if r.Loading || r.Data == nil {
			return vdom.P("loading")
		}
		return vdom.P(r.Data["greeting"].(map[string]any)["text"].(string))
	})
}

type recorder struct {
	mu      sync.Mutex
	errs    []error
	fetches []int64
}

func (r *recorder) RecordLiveMount(err error, fetches int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.fetches = append(r.fetches, fetches)
}

func newHandler(t *testing.T, a *api, rec *recorder) (*Handler, *ssr.WithData) {
	t.Helper()
	wd := ssr.Wrap(greetingPage{}, ssr.WithOrchestrator(&ssr.Orchestrator{
		NewClient: query.PooledFactory(a),
	}))
	cfg := Config{}
	if rec != nil {
		cfg.Recorder = rec
	}
	h := NewHandler(cfg)
	h.Register("/greeting", wd)
	return h, wd
}

func serverPayload(t *testing.T, wd *ssr.WithData) []byte {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/greeting", nil)
	props, err := wd.InitialProps(context.Background(), ssr.NewContext(httptest.NewRecorder(), r))
	require.NoError(t, err)
	payload, err := ssr.EncodePayload(props)
	require.NoError(t, err)
	return payload
}

func mountMessage(page string, payload []byte) []byte {
	return []byte(`{"page":"` + page + `","payload":` + string(payload) + `}`)
}

func TestMountFromSnapshot(t *testing.T) {
	a := &api{}
	rec := &recorder{}
	h, wd := newHandler(t, a, rec)
	payload := serverPayload(t, wd)
	before := a.calls.Load()

	reply := h.Mount(context.Background(), mountMessage("/greeting", payload), cookie.StaticJar(""))

	require.Nil(t, reply.Error)
	assert.Equal(t, "<p>hello</p>", reply.HTML)
	assert.Zero(t, reply.Fetches)
	assert.Equal(t, before, a.calls.Load())
	require.Len(t, rec.errs, 1)
	assert.NoError(t, rec.errs[0])
}

func TestMountColdFetchesWithJarToken(t *testing.T) {
	a := &api{}
	h, _ := newHandler(t, a, nil)

	reply := h.Mount(context.Background(), mountMessage("/greeting", []byte(`{}`)), cookie.StaticJar("token=t1"))

	require.Nil(t, reply.Error)
	assert.Equal(t, "<p>hello</p>", reply.HTML)
	assert.Equal(t, int64(1), reply.Fetches)
	assert.Equal(t, []string{"t1"}, a.tokens)
}

func TestMountErrors(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		code string
	}{
		{"not json", `nope`, "E105"},
		{"unknown page", `{"page":"/missing","payload":{}}`, "E107"},
		{"bad server state", `{"page":"/greeting","payload":{"serverState":42}}`, "E105"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			h, _ := newHandler(t, &api{}, rec)

			reply := h.Mount(context.Background(), []byte(tt.msg), nil)

			require.NotNil(t, reply.Error)
			assert.Equal(t, tt.code, reply.Error.Code)
			assert.Empty(t, reply.HTML)
			require.Len(t, rec.errs, 1)
			assert.Error(t, rec.errs[0])
		})
	}
}

func TestServeHTTP(t *testing.T) {
	a := &api{}
	h, wd := newHandler(t, a, nil)
	payload := serverPayload(t, wd)

	srv := httptest.NewServer(h)
	defer srv.Close()

	header := http.Header{}
	header.Set("Cookie", "token=ws-token")
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.NoError(t, err)
	defer conn.Close()

	for _, msg := range [][]byte{mountMessage("/greeting", payload), mountMessage("/greeting", []byte(`{}`))} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))
	}

	var first, second MountReply
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))

	assert.Equal(t, "<p>hello</p>", first.HTML)
	assert.Zero(t, first.Fetches)
	assert.Equal(t, "<p>hello</p>", second.HTML)
	assert.Equal(t, int64(1), second.Fetches)
	assert.Contains(t, a.tokens, "ws-token")
}

func TestCheckOrigin(t *testing.T) {
	h := NewHandler(Config{AllowedOrigins: []string{"https://app.example.com"}})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://example.com", true},
		{"https://app.example.com", true},
		{"https://evil.example.com", false},
		{"://bad", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://example.com/_ssr/live", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, h.checkOrigin(r), "origin %q", tt.origin)
	}
}
