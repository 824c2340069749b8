package drain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/ssrdata/pkg/vdom"
)

// DefaultMaxPasses bounds the number of fetch rounds of one drain.
const DefaultMaxPasses = 32

// ErrTooManyPasses is returned when fetched components keep revealing new
// fetches after the pass limit.
var ErrTooManyPasses = errors.New("drain: too many passes")

// Fetcher is a component that must load data before it can render.
// FetchData is called with the scope the component is rendered in.
type Fetcher interface {
	vdom.Component
	FetchData(ctx context.Context, scope *vdom.Scope) error
}

// FetchError reports the component whose fetch failed.
type FetchError struct {
	// Path is the position of the component in the tree, as child indexes
	// from the root separated by '/'.
	Path string

	// Component is the Go type of the failing component.
	Component string

	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("drain: fetch %s at %s: %v", e.Component, e.Path, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Report summarizes a drain.
type Report struct {
	Passes   int
	Fetches  int
	Duration time.Duration
}

type options struct {
	concurrency int
	maxPasses   int
	scope       *vdom.Scope
	logger      *slog.Logger
}

// Option configures a drain.
type Option func(*options)

// WithConcurrency limits the number of fetches running at once within a
// pass. n <= 0 means no limit.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithMaxPasses overrides DefaultMaxPasses.
func WithMaxPasses(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPasses = n
		}
	}
}

// WithScope sets the scope the root is walked in.
func WithScope(s *vdom.Scope) Option {
	return func(o *options) {
		o.scope = s
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// ResolveAll runs every fetch declared in the tree under root, including
// fetches that only appear once their ancestors' data has arrived.
func ResolveAll(ctx context.Context, root *vdom.VNode, opts ...Option) error {
	_, err := Run(ctx, root, opts...)
	return err
}

type pending struct {
	fetcher Fetcher
	scope   *vdom.Scope
	path    string
}

// Run is ResolveAll returning a Report.
//
// The tree is expanded until it reaches Fetchers. That frontier is fetched
// concurrently; then each fetched component is rendered with its data and
// expanded further, producing the next frontier. The drain ends when a
// frontier is empty. The first failing fetch cancels its siblings.
func Run(ctx context.Context, root *vdom.VNode, opts ...Option) (Report, error) {
	o := options{maxPasses: DefaultMaxPasses}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	start := time.Now()
	var report Report

	var frontier []pending
	collect(root, o.scope, "0", &frontier)

	for len(frontier) > 0 {
		if report.Passes == o.maxPasses {
			report.Duration = time.Since(start)
			return report, fmt.Errorf("%w (%d)", ErrTooManyPasses, o.maxPasses)
		}
		report.Passes++

		if err := fetchAll(ctx, frontier, o.concurrency); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		report.Fetches += len(frontier)
		o.logger.Debug("drain pass", "pass", report.Passes, "fetches", len(frontier))

		var next []pending
		for _, p := range frontier {
			out, scope := vdom.Expand(p.fetcher, p.scope)
			collect(out, scope, p.path+"/0", &next)
		}
		frontier = next
	}

	report.Duration = time.Since(start)
	return report, nil
}

func fetchAll(ctx context.Context, frontier []pending, limit int) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, p := range frontier {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := p.fetcher.FetchData(gctx, p.scope); err != nil {
				return &FetchError{
					Path:      p.path,
					Component: fmt.Sprintf("%T", p.fetcher),
					Err:       err,
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// collect walks node in scope and appends the Fetchers it reaches. Fetchers
// are not expanded: their output depends on data that is not loaded yet.
func collect(node *vdom.VNode, scope *vdom.Scope, path string, out *[]pending) {
	if node == nil {
		return
	}
	switch node.Kind {
	case vdom.KindComponent:
		if node.Comp == nil {
			return
		}
		if f, ok := node.Comp.(Fetcher); ok {
			*out = append(*out, pending{fetcher: f, scope: scope, path: path})
			return
		}
		rendered, childScope := vdom.Expand(node.Comp, scope)
		collect(rendered, childScope, path+"/0", out)
	case vdom.KindElement, vdom.KindFragment:
		for i, child := range node.Children {
			collect(child, scope, path+"/"+strconv.Itoa(i), out)
		}
	}
}
