package live

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/vango-dev/ssrdata/internal/errors"
	"github.com/vango-dev/ssrdata/pkg/cookie"
	"github.com/vango-dev/ssrdata/pkg/drain"
	"github.com/vango-dev/ssrdata/pkg/render"
	"github.com/vango-dev/ssrdata/pkg/ssr"
)

const (
	DefaultReadTimeout    = 60 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
	DefaultMaxMessageSize = 1 << 20
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// MountRequest is sent by the browser: the route it is on and the payload
// the server embedded in the page.
type MountRequest struct {
	Page    string              `json:"page"`
	Payload jsoniter.RawMessage `json:"payload"`
}

// MountReply carries the rendered markup, or the error that stopped it.
type MountReply struct {
	HTML    string      `json:"html,omitempty"`
	Fetches int64       `json:"fetches"`
	Error   *ReplyError `json:"error,omitempty"`
}

// ReplyError is the wire form of a failed mount.
type ReplyError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Recorder observes completed mounts. *middleware.Metrics implements it.
type Recorder interface {
	RecordLiveMount(err error, fetches int64)
}

// Config configures a Handler.
type Config struct {
	// AllowedOrigins are accepted in addition to the request's own host.
	AllowedOrigins []string

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64

	// Renderer configures the markup sent back.
	Renderer render.RendererConfig

	Recorder Recorder
	Logger   *slog.Logger
}

// Handler mounts wrapped pages from their payloads over a WebSocket. Each
// message is mounted independently with the upgrade request's cookies.
type Handler struct {
	config   Config
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.RWMutex
	pages map[string]*ssr.WithData
}

// NewHandler creates a Handler.
func NewHandler(config Config) *Handler {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = DefaultReadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		config: config,
		logger: logger.With("component", "live"),
		pages:  make(map[string]*ssr.WithData),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Register makes page mountable under name.
func (h *Handler) Register(name string, page *ssr.WithData) {
	h.mu.Lock()
	h.pages[name] = page
	h.mu.Unlock()
}

func (h *Handler) page(name string) (*ssr.WithData, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.pages[name]
	return p, ok
}

// ServeHTTP upgrades the connection and serves mount requests until the
// client goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(h.config.MaxMessageSize)
	jar := cookie.RequestJar(r)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				h.logger.Error("read error", "error", err)
			}
			return
		}

		reply := h.Mount(r.Context(), msg, jar)

		data, err := codec.Marshal(reply)
		if err != nil {
			h.logger.Error("reply encode failed", "error", err)
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Error("write error", "error", err)
			return
		}
	}
}

// Mount handles one raw mount request. Data missing from the payload's
// snapshot is fetched before rendering; Fetches counts those requests.
func (h *Handler) Mount(ctx context.Context, msg []byte, jar cookie.Jar) MountReply {
	var fetches int64
	html, err := h.mount(ctx, msg, jar, &fetches)
	if h.config.Recorder != nil {
		h.config.Recorder.RecordLiveMount(err, fetches)
	}
	if err != nil {
		h.logger.Warn("live mount failed", "error", err, "code", errors.Code(err))
		return MountReply{Fetches: fetches, Error: replyError(err)}
	}
	return MountReply{HTML: html, Fetches: fetches}
}

func (h *Handler) mount(ctx context.Context, msg []byte, jar cookie.Jar, fetches *int64) (string, error) {
	var req MountRequest
	if err := codec.Unmarshal(msg, &req); err != nil {
		return "", errors.New("E105").Wrap(err)
	}
	page, ok := h.page(req.Page)
	if !ok {
		return "", errors.New("E107").With("page", req.Page)
	}
	props, err := ssr.DecodePayload(req.Payload)
	if err != nil {
		return "", err
	}

	m, err := page.Mount(props, jar)
	if err != nil {
		return "", err
	}
	defer m.Close()

	root := m.Render()
	err = drain.ResolveAll(ctx, root)
	*fetches = m.Client().Stats().NetworkFetches
	if err != nil {
		return "", errors.New("E102").Wrap(err)
	}

	var buf bytes.Buffer
	if err := render.NewRenderer(h.config.Renderer).RenderToWriter(&buf, root); err != nil {
		return "", errors.New("E106").Wrap(err)
	}
	return buf.String(), nil
}

func replyError(err error) *ReplyError {
	re := &ReplyError{Code: errors.Code(err), Message: err.Error()}
	var se *errors.SSRError
	if stderrors.As(err, &se) {
		re.Message = se.Message
	}
	return re
}

// checkOrigin accepts same-origin requests, requests without an Origin
// header and the configured origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
