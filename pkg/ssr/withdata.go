package ssr

import (
	"context"

	"github.com/vango-dev/ssrdata/pkg/cookie"
	"github.com/vango-dev/ssrdata/pkg/query"
	"github.com/vango-dev/ssrdata/pkg/store"
	"github.com/vango-dev/ssrdata/pkg/vdom"
)

// WithData wraps a page so that its data is resolved on the server and
// carried to the client in the props.
type WithData struct {
	page Page
	orch *Orchestrator
}

// Option configures a WithData.
type Option func(*WithData)

// WithOrchestrator sets the orchestrator. Wrap uses a zero Orchestrator
// otherwise.
func WithOrchestrator(o *Orchestrator) Option {
	return func(w *WithData) {
		w.orch = o
	}
}

// Wrap returns page wrapped with data hydration.
func Wrap(page Page, opts ...Option) *WithData {
	w := &WithData{page: page}
	for _, opt := range opts {
		opt(w)
	}
	if w.orch == nil {
		w.orch = &Orchestrator{}
	}
	return w
}

// Page returns the wrapped page.
func (w *WithData) Page() Page { return w.page }

// DisplayName is "WithData(<page name>)".
func (w *WithData) DisplayName() string {
	return "WithData(" + displayName(w.page) + ")"
}

// InitialProps runs the orchestrator for the wrapped page.
func (w *WithData) InitialProps(ctx context.Context, ec *Context) (Props, error) {
	return w.orch.Initialize(ctx, ec, w.page)
}

// Mount builds the client and store of a render from props, starting both
// from the snapshot in props without fetching anything. Tokens are read
// from jar. Props without a serverState mount cold.
func (w *WithData) Mount(props Props, jar cookie.Jar) (*Mounted, error) {
	state, err := ServerStateFrom(props)
	if err != nil {
		return nil, err
	}
	snap := state.Snapshot()

	opts := &cookie.Options{Document: jar}
	if w.orch.Cookies != nil {
		opts.Decode = w.orch.Cookies.Decode
	}
	tokens := cookie.TokenProvider(nil, opts, w.orch.TokenCookie)
	log := w.orch.logger(nil).With("page", displayName(w.page))

	client := w.orch.newClient(snap, tokens, log)
	st := w.orch.newStore(client, snap)

	return &Mounted{
		page:   w.page,
		props:  props.Clone(),
		client: client,
		store:  st,
	}, nil
}

// Mounted is a wrapped page bound to its client and store. It renders the
// page inside the data-provider boundary with all the props it was mounted
// with.
type Mounted struct {
	page   Page
	props  Props
	client *query.Client
	store  *store.Store
}

// Render implements vdom.Component.
func (m *Mounted) Render() *vdom.VNode {
	return query.Provider(m.client, store.Provider(m.store, m.page.Render(m.props)))
}

// Client returns the mounted query client.
func (m *Mounted) Client() *query.Client { return m.client }

// Store returns the mounted store.
func (m *Mounted) Store() *store.Store { return m.store }

// Props returns the props the page renders with.
func (m *Mounted) Props() Props { return m.props }

// Close detaches the store from the client.
func (m *Mounted) Close() { m.store.Close() }
