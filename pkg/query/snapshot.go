package query

import (
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

const (
	// RootQuery is the record holding root query results keyed by
	// Request.Key.
	RootQuery = "ROOT_QUERY"

	// RefKey marks a reference to a normalized record.
	RefKey = "__ref"

	typenameKey = "__typename"
	idKey       = "id"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is one normalized cache entry: field name to value. Values are
// JSON values (string, float64, bool, nil, []any, map[string]any) or
// references ({"__ref": "Type:id"}).
type Record map[string]any

// Snapshot is the normalized query cache keyed by cache identifier. It is
// the unit that crosses the server to client boundary.
type Snapshot map[string]Record

// Clone returns a deep copy of s. Clone of nil is an empty snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, rec := range s {
		out[id] = rec.Clone()
	}
	return out
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge copies every record field of other into s, overwriting fields that
// exist in both.
func (s Snapshot) Merge(other Snapshot) {
	for id, rec := range other {
		dst := s[id]
		if dst == nil {
			dst = make(Record, len(rec))
			s[id] = dst
		}
		for k, v := range rec {
			dst[k] = cloneValue(v)
		}
	}
}

// Validate reports whether s survives JSON encoding.
func (s Snapshot) Validate() error {
	if _, err := codec.Marshal(s); err != nil {
		return fmt.Errorf("snapshot is not JSON serializable: %w", err)
	}
	return nil
}

// DecodeSnapshot converts a decoded JSON value (typically the generic map
// produced by unmarshalling a page payload) into a Snapshot.
func DecodeSnapshot(v any) (Snapshot, error) {
	switch t := v.(type) {
	case nil:
		return Snapshot{}, nil
	case Snapshot:
		return t.Clone(), nil
	}
	data, err := codec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	var s Snapshot
	if err := codec.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s == nil {
		s = Snapshot{}
	}
	return s, nil
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, fv := range t {
			out[k] = cloneValue(fv)
		}
		return out
	case Record:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// normalize replaces every identifiable object in v by a reference and
// writes the object's fields into out.
func normalize(v any, out Snapshot) any {
	switch t := v.(type) {
	case map[string]any:
		fields := make(map[string]any, len(t))
		for k, fv := range t {
			fields[k] = normalize(fv, out)
		}
		id, ok := cacheID(t)
		if !ok {
			return fields
		}
		rec := out[id]
		if rec == nil {
			rec = make(Record, len(fields))
			out[id] = rec
		}
		for k, fv := range fields {
			rec[k] = fv
		}
		return map[string]any{RefKey: id}
	case []any:
		items := make([]any, len(t))
		for i, e := range t {
			items[i] = normalize(e, out)
		}
		return items
	default:
		return v
	}
}

// cacheID derives "Type:id" for objects carrying both __typename and id.
func cacheID(obj map[string]any) (string, bool) {
	typename, ok := obj[typenameKey].(string)
	if !ok || typename == "" {
		return "", false
	}
	var id string
	switch v := obj[idKey].(type) {
	case string:
		id = v
	case float64:
		id = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		id = strconv.Itoa(v)
	case int64:
		id = strconv.FormatInt(v, 10)
	case jsoniter.Number:
		id = v.String()
	default:
		return "", false
	}
	if id == "" {
		return "", false
	}
	return typename + ":" + id, true
}

// resolve follows references in v against cache. A reference that is
// already being resolved further up (a cycle) is returned unresolved.
func resolve(v any, cache Snapshot, path map[string]bool) any {
	switch t := v.(type) {
	case map[string]any:
		if ref, ok := refOf(t); ok {
			rec, found := cache[ref]
			if !found || path[ref] {
				return map[string]any{RefKey: ref}
			}
			path[ref] = true
			obj := make(map[string]any, len(rec))
			for k, fv := range rec {
				obj[k] = resolve(fv, cache, path)
			}
			delete(path, ref)
			return obj
		}
		obj := make(map[string]any, len(t))
		for k, fv := range t {
			obj[k] = resolve(fv, cache, path)
		}
		return obj
	case []any:
		items := make([]any, len(t))
		for i, e := range t {
			items[i] = resolve(e, cache, path)
		}
		return items
	default:
		return v
	}
}

func refOf(m map[string]any) (string, bool) {
	if len(m) != 1 {
		return "", false
	}
	ref, ok := m[RefKey].(string)
	return ref, ok
}
