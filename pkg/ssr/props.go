package ssr

import (
	"net/url"

	jsoniter "github.com/json-iterator/go"

	"github.com/vango-dev/ssrdata/internal/errors"
	"github.com/vango-dev/ssrdata/pkg/query"
)

// Reserved prop keys.
const (
	// ServerStateKey holds the ServerState produced on the server.
	ServerStateKey = "serverState"

	// URLKey holds the URL prop given to the page while draining.
	URLKey = "url"
)

var payloadCodec = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// Props are the initial props of a page.
type Props map[string]any

// Clone returns a shallow copy of p. Clone of nil is empty.
func (p Props) Clone() Props {
	out := make(Props, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// With returns a copy of p with key set to value.
func (p Props) With(key string, value any) Props {
	out := p.Clone()
	out[key] = value
	return out
}

// URL is the route context of a page.
type URL struct {
	Query    url.Values `json:"query"`
	Pathname string     `json:"pathname"`
}

// QueryData wraps the snapshot inside ServerState.
type QueryData struct {
	Data query.Snapshot `json:"data"`
}

// ServerState is the part of the props that carries the snapshot from the
// server to the client.
type ServerState struct {
	Query QueryData `json:"query"`
}

// EmptyServerState returns a ServerState holding an empty snapshot.
func EmptyServerState() ServerState {
	return ServerState{Query: QueryData{Data: query.Snapshot{}}}
}

// Snapshot returns the carried snapshot, never nil.
func (s ServerState) Snapshot() query.Snapshot {
	if s.Query.Data == nil {
		return query.Snapshot{}
	}
	return s.Query.Data
}

// URLFrom reads the URL prop. Like ServerStateFrom it accepts props from
// Initialize or from DecodePayload; anything else yields the zero URL with
// an empty query.
func URLFrom(props Props) URL {
	switch v := props[URLKey].(type) {
	case URL:
		return v
	case *URL:
		if v != nil {
			return *v
		}
	case map[string]any:
		u := URL{Query: url.Values{}}
		u.Pathname, _ = v["pathname"].(string)
		if q, ok := v["query"].(map[string]any); ok {
			for k, vals := range q {
				switch vals := vals.(type) {
				case []any:
					for _, val := range vals {
						if s, ok := val.(string); ok {
							u.Query.Add(k, s)
						}
					}
				case string:
					u.Query.Add(k, vals)
				}
			}
		}
		return u
	}
	return URL{Query: url.Values{}}
}

// ServerStateFrom reads the ServerState out of props. props may come
// straight from Initialize or from DecodePayload; a missing key yields an
// empty ServerState.
func ServerStateFrom(props Props) (ServerState, error) {
	switch v := props[ServerStateKey].(type) {
	case nil:
		return EmptyServerState(), nil
	case ServerState:
		return ServerState{Query: QueryData{Data: v.Snapshot().Clone()}}, nil
	case *ServerState:
		return ServerState{Query: QueryData{Data: v.Snapshot().Clone()}}, nil
	case map[string]any:
		return serverStateFromMap(v)
	default:
		return ServerState{}, errors.New("E105").
			WithDetail("serverState must be an object").
			With("type", typeName(v))
	}
}

func serverStateFromMap(m map[string]any) (ServerState, error) {
	q, ok := m["query"]
	if !ok || q == nil {
		return EmptyServerState(), nil
	}
	qm, ok := q.(map[string]any)
	if !ok {
		return ServerState{}, errors.New("E105").WithDetail("serverState.query must be an object")
	}
	snap, err := query.DecodeSnapshot(qm["data"])
	if err != nil {
		return ServerState{}, errors.New("E105").Wrap(err)
	}
	return ServerState{Query: QueryData{Data: snap}}, nil
}

// EncodePayload encodes props as the JSON page payload.
func EncodePayload(props Props) ([]byte, error) {
	b, err := payloadCodec.Marshal(props)
	if err != nil {
		return nil, errors.New("E104").Wrap(err)
	}
	return b, nil
}

// DecodePayload decodes a page payload produced by EncodePayload.
// ServerState comes back as a generic map; use ServerStateFrom to read it.
func DecodePayload(b []byte) (Props, error) {
	var props Props
	if err := payloadCodec.Unmarshal(b, &props); err != nil {
		return nil, errors.New("E105").Wrap(err)
	}
	if props == nil {
		props = Props{}
	}
	return props, nil
}
