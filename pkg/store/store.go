package store

import (
	"log/slog"
	"sync"

	"github.com/vango-dev/ssrdata/pkg/query"
)

// Reserved action types. The store dispatches them itself for every event
// of the bound query client; their payload is a query.Event.
const (
	ActionQueryStarted = "query/started"
	ActionQueryResult  = "query/result"
	ActionQueryFailed  = "query/failed"
)

// QueryStatus is the last known state of one request.
type QueryStatus struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// QueryState is the slice of State owned by the query client.
type QueryState struct {
	// Data mirrors the client's normalized cache. It is the only part of
	// the state that is embedded into a rendered page.
	Data query.Snapshot `json:"data"`

	// Queries tracks requests by cache key.
	Queries map[string]QueryStatus `json:"queries,omitempty"`
}

// State is the whole store state.
type State struct {
	Query QueryState     `json:"query"`
	App   map[string]any `json:"app,omitempty"`
}

// Action describes a state change.
type Action struct {
	Type    string
	Payload any
}

// Reducer computes the next application slice. It receives a private copy
// of the current slice and may modify and return it.
type Reducer func(app map[string]any, action Action) map[string]any

// Option configures a Store.
type Option func(*Store)

// WithReducer adds an application reducer. Reducers run in registration
// order for every action, reserved query actions included.
func WithReducer(r Reducer) Option {
	return func(s *Store) {
		s.reducers = append(s.reducers, r)
	}
}

// WithInitialApp seeds the application slice.
func WithInitialApp(app map[string]any) Option {
	return func(s *Store) {
		s.state.App = cloneMap(app)
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Store holds state for one render and keeps its query slice in step with
// a query client.
type Store struct {
	mu       sync.RWMutex
	state    State
	reducers []Reducer
	logger   *slog.Logger

	listenersMu sync.Mutex
	listeners   map[int]func(State)
	nextID      int

	detach func()
}

// Factory builds the store of one render.
type Factory func(client *query.Client, snapshot query.Snapshot) *Store

// NewFactory returns a Factory applying opts to every store it builds.
func NewFactory(opts ...Option) Factory {
	return func(client *query.Client, snapshot query.Snapshot) *Store {
		return New(client, snapshot, opts...)
	}
}

// New creates a store whose query data starts as a copy of snapshot and
// follows client from then on. client may be nil.
func New(client *query.Client, snapshot query.Snapshot, opts ...Option) *Store {
	s := &Store{
		state: State{
			Query: QueryState{
				Data:    snapshot.Clone(),
				Queries: make(map[string]QueryStatus),
			},
		},
		listeners: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.state.App == nil {
		s.state.App = make(map[string]any)
	}
	if client != nil {
		s.detach = client.Subscribe(s.onQueryEvent)
	}
	return s
}

func (s *Store) onQueryEvent(ev query.Event) {
	var typ string
	switch ev.Type {
	case query.QueryStarted:
		typ = ActionQueryStarted
	case query.QueryResult:
		typ = ActionQueryResult
	case query.QueryFailed:
		typ = ActionQueryFailed
	default:
		return
	}
	s.Dispatch(Action{Type: typ, Payload: ev})
}

// Dispatch applies action and notifies subscribers.
func (s *Store) Dispatch(action Action) {
	s.mu.Lock()
	reduceQuery(&s.state.Query, action)
	for _, r := range s.reducers {
		next := r(cloneMap(s.state.App), action)
		if next == nil {
			next = make(map[string]any)
		}
		s.state.App = next
	}
	snapshot := s.copyLocked()
	s.mu.Unlock()

	s.logger.Debug("store dispatch", "action", action.Type)
	s.notify(snapshot)
}

func reduceQuery(qs *QueryState, action Action) {
	ev, ok := action.Payload.(query.Event)
	if !ok {
		return
	}
	switch action.Type {
	case ActionQueryStarted:
		qs.Queries[ev.Key] = QueryStatus{Loading: true}
	case ActionQueryResult:
		qs.Data.Merge(ev.Records)
		qs.Queries[ev.Key] = QueryStatus{}
	case ActionQueryFailed:
		status := QueryStatus{}
		if ev.Err != nil {
			status.Error = ev.Err.Error()
		}
		qs.Queries[ev.Key] = status
	}
}

// GetState returns a deep copy of the current state.
func (s *Store) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *Store) copyLocked() State {
	queries := make(map[string]QueryStatus, len(s.state.Query.Queries))
	for k, v := range s.state.Query.Queries {
		queries[k] = v
	}
	return State{
		Query: QueryState{
			Data:    s.state.Query.Data.Clone(),
			Queries: queries,
		},
		App: cloneMap(s.state.App),
	}
}

// Subscribe registers fn to receive the state after every dispatch and
// returns a function that removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) notify(state State) {
	s.listenersMu.Lock()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// Close detaches the store from its query client. Safe to call twice.
func (s *Store) Close() {
	s.mu.Lock()
	detach := s.detach
	s.detach = nil
	s.mu.Unlock()
	if detach != nil {
		detach()
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return map[string]any(query.Record(m).Clone())
}
