package ssrdata

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vango-dev/ssrdata/internal/config"
	"github.com/vango-dev/ssrdata/pkg/archive"
	"github.com/vango-dev/ssrdata/pkg/assets"
	"github.com/vango-dev/ssrdata/pkg/auth"
	"github.com/vango-dev/ssrdata/pkg/drain"
	"github.com/vango-dev/ssrdata/pkg/live"
	"github.com/vango-dev/ssrdata/pkg/middleware"
	"github.com/vango-dev/ssrdata/pkg/query"
	"github.com/vango-dev/ssrdata/pkg/render"
	"github.com/vango-dev/ssrdata/pkg/routepath"
	"github.com/vango-dev/ssrdata/pkg/ssr"
	"github.com/vango-dev/ssrdata/pkg/store"
	"github.com/vango-dev/ssrdata/pkg/vdom"
)

// App serves wrapped pages over HTTP.
//
// Create an App with NewApp and register pages on it:
//
//	cfg, _ := config.LoadFromWorkingDir()
//	app, err := ssrdata.NewApp(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app.Page("/posts/{id}", PostPage{})
//	log.Fatal(app.ListenAndServe(ctx))
//
// Every page request runs the page's initializer and drains its tree on the
// server, renders the markup from the resulting snapshot and embeds the
// payload the browser mounts from.
type App struct {
	config *config.Config
	logger *slog.Logger
	router chi.Router
	orch   *ssr.Orchestrator

	transport query.Transport
	newStore  store.Factory
	metrics   *middleware.Metrics
	tracing   *middleware.Tracing
	archive   archive.Sink
	live      *live.Handler
	static    *staticFiles

	scripts     []render.ScriptTag
	styleSheets []string

	mu    sync.RWMutex
	pages map[string]*ssr.WithData
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithTransport sets the transport of every query client, replacing the
// HTTP transport built from the GraphQL config.
func WithTransport(t query.Transport) Option {
	return func(a *App) { a.transport = t }
}

// WithStoreFactory sets how stores are built, typically to add reducers.
func WithStoreFactory(f store.Factory) Option {
	return func(a *App) { a.newStore = f }
}

// WithMetrics sets the metrics instance instead of one built from the
// config.
func WithMetrics(m *middleware.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithTracing sets the tracing instance instead of one built from the
// config.
func WithTracing(t *middleware.Tracing) Option {
	return func(a *App) { a.tracing = t }
}

// WithArchive sets the snapshot archive instead of one built from the
// config.
func WithArchive(s archive.Sink) Option {
	return func(a *App) { a.archive = s }
}

// WithScripts adds script tags to every page, usually the client bundle.
// When static serving is configured, a bare source name such as "app.js"
// resolves under the static prefix, through the asset manifest if one is
// set.
func WithScripts(scripts ...render.ScriptTag) Option {
	return func(a *App) { a.scripts = append(a.scripts, scripts...) }
}

// WithStyleSheets adds stylesheet links to every page.
func WithStyleSheets(paths ...string) Option {
	return func(a *App) { a.styleSheets = append(a.styleSheets, paths...) }
}

// NewApp validates cfg and builds the router. A nil cfg uses config.New().
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		config: cfg,
		pages:  make(map[string]*ssr.WithData),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}

	if a.transport == nil && cfg.GraphQL.Endpoint != "" {
		httpOpts := []query.HTTPOption{query.WithTimeout(cfg.GraphQLTimeout())}
		for k, v := range cfg.GraphQL.Headers {
			httpOpts = append(httpOpts, query.WithHeader(k, v))
		}
		a.transport = query.NewHTTPTransport(cfg.GraphQL.Endpoint, httpOpts...)
	}
	if a.metrics == nil && cfg.Metrics.Enabled {
		a.metrics = middleware.NewMetrics(middleware.WithNamespace(cfg.Metrics.Namespace))
	}
	if a.tracing == nil && cfg.Tracing.Enabled {
		a.tracing = middleware.NewTracing(middleware.WithTracerName(cfg.ServiceName()))
	}
	if a.archive == nil {
		a.archive = archive.FromConfig(cfg.Archive)
	}
	if cfg.Static.Dir != "" {
		a.static = newStaticFiles(cfg.Static)
		if err := a.resolveAssets(); err != nil {
			return nil, err
		}
	}

	a.orch = a.newOrchestrator()

	if cfg.Live.Enabled {
		liveCfg := live.Config{
			AllowedOrigins: cfg.Live.AllowedOrigins,
			Renderer:       render.RendererConfig{Pretty: cfg.Render.Pretty},
			Logger:         a.logger,
		}
		if a.metrics != nil {
			liveCfg.Recorder = a.metrics
		}
		a.live = live.NewHandler(liveCfg)
	}

	a.router = a.newRouter()
	return a, nil
}

// resolveAssets rewrites bare script and stylesheet sources to static URLs.
func (a *App) resolveAssets() error {
	resolver := assets.NewPassthroughResolver(a.static.prefix)
	if name := a.config.Static.Manifest; name != "" {
		m, err := assets.Load(filepath.Join(a.config.Static.Dir, name))
		if err != nil {
			return err
		}
		resolver = assets.NewResolver(m, a.static.prefix)
	}
	for i := range a.scripts {
		a.scripts[i].Src = resolver.Asset(a.scripts[i].Src)
	}
	for i := range a.styleSheets {
		a.styleSheets[i] = resolver.Asset(a.styleSheets[i])
	}
	return nil
}

func (a *App) newOrchestrator() *ssr.Orchestrator {
	var observers []ssr.Observer
	if a.metrics != nil {
		observers = append(observers, a.metrics)
	}
	if a.tracing != nil {
		observers = append(observers, a.tracing)
	}

	drainOpts := []drain.Option{
		drain.WithConcurrency(a.config.Drain.Concurrency),
		drain.WithMaxPasses(a.config.Drain.MaxPasses),
		drain.WithLogger(a.logger),
	}
	return &ssr.Orchestrator{
		NewClient: query.PooledFactory(a.transport),
		NewStore:  a.newStore,
		Drain: func(ctx context.Context, root *vdom.VNode) error {
			return drain.ResolveAll(ctx, root, drainOpts...)
		},
		TokenCookie: a.config.Auth.TokenCookie,
		Logger:      a.logger,
		Observer:    ssr.Observers(observers...),
	}
}

// newRouter installs the middleware chain and the fixed routes. Pages are
// added later by Handle.
func (a *App) newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(routepath.Middleware(a.logger))
	if a.tracing != nil {
		r.Use(a.tracing.Middleware)
	}
	if a.metrics != nil {
		r.Use(a.metrics.Middleware)
	}
	r.Use(auth.Middleware(a.config.Auth.TokenCookie, a.logger))

	if a.metrics != nil {
		r.Method(http.MethodGet, a.config.Metrics.Path, a.metrics.Handler())
	}
	if a.live != nil {
		r.Method(http.MethodGet, a.config.Live.Path, a.live)
	}
	if a.static != nil {
		r.Handle(strings.TrimSuffix(a.static.prefix, "/")+"/*", a.static)
	}
	return r
}

// Wrap wraps page with the app's orchestrator.
func (a *App) Wrap(page ssr.Page) *ssr.WithData {
	return ssr.Wrap(page, ssr.WithOrchestrator(a.orch))
}

// Page wraps page and serves it at pattern.
func (a *App) Page(pattern string, page ssr.Page) *ssr.WithData {
	wd := a.Wrap(page)
	a.Handle(pattern, wd)
	return wd
}

// Handle serves wd at pattern, a chi route pattern such as "/posts/{id}".
// The page is also mountable over the live channel under the same pattern.
func (a *App) Handle(pattern string, wd *ssr.WithData) {
	a.mu.Lock()
	a.pages[pattern] = wd
	a.mu.Unlock()

	a.router.Method(http.MethodGet, pattern, a.pageHandler(wd))
	if a.live != nil {
		a.live.Register(pattern, wd)
	}
}

// Pages returns the registered patterns and their pages.
func (a *App) Pages() map[string]*ssr.WithData {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]*ssr.WithData, len(a.pages))
	for k, v := range a.pages {
		out[k] = v
	}
	return out
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Router returns the chi router, for mounting extra routes.
func (a *App) Router() chi.Router { return a.router }

// Orchestrator returns the orchestrator shared by the app's pages.
func (a *App) Orchestrator() *ssr.Orchestrator { return a.orch }

// Metrics returns the metrics instance, or nil when metrics are off.
func (a *App) Metrics() *middleware.Metrics { return a.metrics }

// Config returns the app configuration.
func (a *App) Config() *config.Config { return a.config }

// ListenAndServe serves on the configured address until ctx is canceled,
// then shuts down gracefully.
func (a *App) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.config.Address())
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler: a,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server started", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout())
	defer cancel()
	a.logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
