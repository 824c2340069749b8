package query

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrNoTransport is returned by Query when a fetch is needed but the client
// was built without a transport.
var ErrNoTransport = errors.New("query: client has no transport")

// TokenProvider returns the auth token for outgoing requests, or "".
type TokenProvider func() string

// Config configures a Client.
type Config struct {
	// Transport executes cache misses.
	Transport Transport

	// GetToken is called once per network fetch.
	GetToken TokenProvider

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// EventType discriminates client events.
type EventType int

const (
	QueryStarted EventType = iota
	QueryResult
	QueryFailed
)

// Event is delivered to subscribers after the client state changed.
type Event struct {
	Type EventType
	Key  string
	// Records holds the cache entries written by a QueryResult.
	Records Snapshot
	Err     error
}

// Stats counts client activity.
type Stats struct {
	NetworkFetches int64
	CacheHits      int64
}

// Client executes requests and keeps their results in a normalized cache.
// A Client belongs to a single render (one request on the server, one mount
// on the client) and is safe for concurrent use by that render's fetches.
type Client struct {
	transport Transport
	getToken  TokenProvider
	logger    *slog.Logger

	mu       sync.Mutex
	cache    Snapshot
	failed   map[string]error
	inflight map[string]*call

	listenersMu sync.Mutex
	listeners   map[int]func(Event)
	nextID      int

	fetches atomic.Int64
	hits    atomic.Int64
}

type call struct {
	done chan struct{}
	err  error
}

// NewClient creates a client whose cache starts as a copy of snapshot.
// A nil or empty snapshot gives a cold client.
func NewClient(snapshot Snapshot, cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		transport: cfg.Transport,
		getToken:  cfg.GetToken,
		logger:    logger,
		cache:     snapshot.Clone(),
		failed:    make(map[string]error),
		inflight:  make(map[string]*call),
		listeners: make(map[int]func(Event)),
	}
}

// Factory builds a client from a snapshot and a per-render config.
type Factory func(snapshot Snapshot, cfg Config) *Client

// PooledFactory returns a Factory that shares transport between all the
// clients it builds. Each call still returns a fresh client with its own
// cache, so nothing but connections is shared between renders.
func PooledFactory(transport Transport) Factory {
	return func(snapshot Snapshot, cfg Config) *Client {
		if cfg.Transport == nil {
			cfg.Transport = transport
		}
		return NewClient(snapshot, cfg)
	}
}

// Query returns the result for req, fetching it when it is not cached.
// Concurrent calls for the same request share one fetch.
func (c *Client) Query(ctx context.Context, req Request) (Result, error) {
	key := req.Key()

	c.mu.Lock()
	if res, ok := c.readLocked(key); ok {
		c.mu.Unlock()
		c.hits.Add(1)
		return res, nil
	}
	if pending, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-pending.done:
		case <-ctx.Done():
			return Result{Loading: true}, ctx.Err()
		}
		if pending.err != nil {
			return Result{Err: pending.err}, pending.err
		}
		res, _ := c.Read(req)
		return res, nil
	}
	if c.transport == nil {
		c.mu.Unlock()
		return Result{Err: ErrNoTransport}, ErrNoTransport
	}
	cl := &call{done: make(chan struct{})}
	c.inflight[key] = cl
	c.mu.Unlock()

	c.emit(Event{Type: QueryStarted, Key: key})
	cl.err = c.fetch(ctx, key, req)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	close(cl.done)

	if cl.err != nil {
		return Result{Err: cl.err}, cl.err
	}
	res, _ := c.Read(req)
	return res, nil
}

func (c *Client) fetch(ctx context.Context, key string, req Request) error {
	token := ""
	if c.getToken != nil {
		token = c.getToken()
	}

	c.fetches.Add(1)
	data, err := c.transport.Do(ctx, req, token)
	if err != nil {
		c.mu.Lock()
		c.failed[key] = err
		c.mu.Unlock()
		c.logger.Debug("query failed", "key", key, "error", err)
		c.emit(Event{Type: QueryFailed, Key: key, Err: err})
		return err
	}

	written := make(Snapshot)
	root := normalize(data, written)
	rootRec := written[RootQuery]
	if rootRec == nil {
		rootRec = make(Record)
		written[RootQuery] = rootRec
	}
	rootRec[key] = root

	c.mu.Lock()
	c.cache.Merge(written)
	delete(c.failed, key)
	c.mu.Unlock()

	c.logger.Debug("query fetched", "key", key, "records", len(written))
	c.emit(Event{Type: QueryResult, Key: key, Records: written})
	return nil
}

// Read returns the cached result for req without fetching. The boolean is
// false when the request has no cached result; Result then reports Loading
// or the last fetch error.
func (c *Client) Read(req Request) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readLocked(req.Key())
}

func (c *Client) readLocked(key string) (Result, bool) {
	if root, ok := c.cache[RootQuery]; ok {
		if v, ok := root[key]; ok {
			data, _ := resolve(v, c.cache, make(map[string]bool)).(map[string]any)
			if data == nil {
				data = map[string]any{}
			}
			return Result{Data: data}, true
		}
	}
	if err, ok := c.failed[key]; ok {
		return Result{Err: err}, false
	}
	return Result{Loading: true}, false
}

// Extract returns a copy of the normalized cache.
func (c *Client) Extract() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Clone()
}

// Subscribe registers fn for client events and returns a function that
// removes it. Events are delivered synchronously on the goroutine that
// caused them, outside the client's locks.
func (c *Client) Subscribe(fn func(Event)) func() {
	c.listenersMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

func (c *Client) emit(ev Event) {
	c.listenersMu.Lock()
	fns := make([]func(Event), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Stats returns activity counters.
func (c *Client) Stats() Stats {
	return Stats{
		NetworkFetches: c.fetches.Load(),
		CacheHits:      c.hits.Load(),
	}
}
