package ssr

import (
	"context"
	"log/slog"

	"github.com/vango-dev/ssrdata/internal/errors"
	"github.com/vango-dev/ssrdata/pkg/cookie"
	"github.com/vango-dev/ssrdata/pkg/drain"
	"github.com/vango-dev/ssrdata/pkg/query"
	"github.com/vango-dev/ssrdata/pkg/store"
	"github.com/vango-dev/ssrdata/pkg/vdom"
)

// DrainFunc resolves every fetch declared in a tree.
type DrainFunc func(ctx context.Context, root *vdom.VNode) error

// Orchestrator runs the server-side initialization of wrapped pages. The
// zero value is usable: it builds transport-less clients, default stores
// and drains with drain.ResolveAll.
//
// An Orchestrator holds no per-request state and may be shared.
type Orchestrator struct {
	// NewClient builds the query client of each initialization and mount.
	NewClient query.Factory

	// NewStore builds the store bound to that client.
	NewStore store.Factory

	// Drain resolves the page tree. Defaults to drain.ResolveAll.
	Drain DrainFunc

	// Cookies configures cookie parsing. Cookies.Document is the ambient
	// jar used by EnvClient contexts.
	Cookies *cookie.Options

	// TokenCookie names the auth token cookie. Defaults to
	// cookie.DefaultTokenName.
	TokenCookie string

	Logger   *slog.Logger
	Observer Observer
}

func (o *Orchestrator) newClient(snap query.Snapshot, tokens query.TokenProvider, logger *slog.Logger) *query.Client {
	cfg := query.Config{GetToken: tokens, Logger: logger}
	if o.NewClient != nil {
		return o.NewClient(snap, cfg)
	}
	return query.NewClient(snap, cfg)
}

func (o *Orchestrator) newStore(client *query.Client, snap query.Snapshot) *store.Store {
	if o.NewStore != nil {
		return o.NewStore(client, snap)
	}
	return store.New(client, snap)
}

func (o *Orchestrator) drain(ctx context.Context, root *vdom.VNode) error {
	if o.Drain != nil {
		return o.Drain(ctx, root)
	}
	return drain.ResolveAll(ctx, root)
}

func (o *Orchestrator) observer() Observer {
	if o.Observer != nil {
		return o.Observer
	}
	return nopObserver{}
}

func (o *Orchestrator) logger(ec *Context) *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return ec.logger()
}

// Initialize computes the initial props of page for ec:
//
//  1. a cold client is built with a token provider reading ec's cookies
//     and the page's initializer, if any, runs with it;
//  2. if the response was finished meanwhile (a redirect), empty props are
//     returned and nothing is drained;
//  3. in EnvClient the initializer's props are returned with an empty
//     ServerState;
//  4. otherwise the page is rendered inside the data-provider boundary
//     with the URL prop and drained;
//  5. the store's query data becomes the ServerState of the result.
//
// Initializer and drain failures are returned as E101 and E102 errors. An
// initializer returning the serverState key fails with E103.
func (o *Orchestrator) Initialize(ctx context.Context, ec *Context, page Page) (Props, error) {
	name := displayName(page)
	log := o.logger(ec).With("page", name, "request_id", ec.ID, "env", ec.Env.String())
	obs := o.observer()

	tokens := cookie.TokenProvider(ec, o.Cookies, o.TokenCookie)
	client := o.newClient(query.Snapshot{}, tokens, log)

	composed := Props{}
	if init, ok := page.(Initializer); ok {
		phaseCtx, end := obs.StartPhase(ctx, name, PhaseInitialProps)
		props, err := init.InitialProps(phaseCtx, ec, client)
		if err != nil {
			err = errors.New("E101").Wrap(err).With("page", name)
		}
		end(err)
		if err != nil {
			return nil, err
		}
		if _, reserved := props[ServerStateKey]; reserved {
			return nil, errors.New("E103").With("page", name)
		}
		composed = props.Clone()
	}

	if ec.Finished() {
		log.Debug("response finished during initialization, skipping drain",
			"status", ec.Response.Status())
		return Props{}, nil
	}

	if ec.Env == EnvClient {
		return composed.With(ServerStateKey, EmptyServerState()), nil
	}

	st := o.newStore(client, client.Extract())
	defer st.Close()

	tree := query.Provider(client, store.Provider(st, page.Render(composed.With(URLKey, ec.URL()))))

	drainCtx, end := obs.StartPhase(ctx, name, PhaseDrain)
	err := o.drain(drainCtx, tree)
	if err != nil {
		err = errors.New("E102").Wrap(err).With("page", name)
	}
	end(err)
	if err != nil {
		return nil, err
	}

	_, end = obs.StartPhase(ctx, name, PhaseExtract)
	state := ServerState{Query: QueryData{Data: st.GetState().Query.Data}}
	if err = state.Query.Data.Validate(); err != nil {
		err = errors.New("E104").Wrap(err).With("page", name)
	}
	end(err)
	if err != nil {
		return nil, err
	}
	obs.SnapshotExtracted(ctx, name, len(state.Query.Data))

	stats := client.Stats()
	log.Debug("page initialized",
		"records", len(state.Query.Data),
		"fetches", stats.NetworkFetches,
		"cache_hits", stats.CacheHits)

	return composed.With(ServerStateKey, state), nil
}
