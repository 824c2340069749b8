package main

import (
	"context"
	"sort"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/vango-dev/ssrdata/internal/config"
	"github.com/vango-dev/ssrdata/pkg/query"
	"github.com/vango-dev/ssrdata/pkg/ssr"
	"github.com/vango-dev/ssrdata/pkg/vdom"
)

var pretty = jsoniter.Config{SortMapKeys: true, EscapeHTML: true, IndentionStep: 2}.Froze()

// configPage renders the result of one configured query as JSON.
type configPage struct {
	cfg config.PageConfig
}

func (p configPage) DisplayName() string {
	if p.cfg.Title != "" {
		return p.cfg.Title
	}
	return p.cfg.Path
}

// InitialProps sets the document title.
func (p configPage) InitialProps(_ context.Context, _ *ssr.Context, _ *query.Client) (ssr.Props, error) {
	if p.cfg.Title == "" {
		return nil, nil
	}
	return ssr.Props{"title": p.cfg.Title}, nil
}

func (p configPage) request(u ssr.URL) query.Request {
	req := query.Request{OperationName: p.cfg.Operation, Query: p.cfg.Query}
	for _, name := range p.cfg.Variables {
		if !u.Query.Has(name) {
			continue
		}
		if req.Variables == nil {
			req.Variables = make(map[string]any)
		}
		req.Variables[name] = variableValue(u.Query.Get(name))
	}
	return req
}

func (p configPage) Render(props ssr.Props) *vdom.VNode {
	req := p.request(ssr.URLFrom(props))
	return vdom.Main(
		query.Use(req, func(r query.Result) *vdom.VNode {
			switch {
			case r.Err != nil:
				return vdom.P(vdom.Class("error"), r.Err.Error())
			case r.Loading:
				return vdom.P("loading")
			}
			b, err := pretty.Marshal(r.Data)
			if err != nil {
				return vdom.P(vdom.Class("error"), err.Error())
			}
			return vdom.Pre(string(b))
		}),
	)
}

// variableValue passes numbers and booleans typed, everything else as a
// string.
func variableValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// sortedPages orders pages by path so registration is deterministic.
func sortedPages(pages []config.PageConfig) []config.PageConfig {
	out := append([]config.PageConfig(nil), pages...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
