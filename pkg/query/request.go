package query

import (
	"fmt"
	"hash/fnv"

	jsoniter "github.com/json-iterator/go"
)

// canonical sorts map keys so equal variables produce equal cache keys.
var canonical = jsoniter.Config{SortMapKeys: true, EscapeHTML: false}.Froze()

// Request is a single GraphQL operation.
type Request struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Key is the cache identifier of the request's root result:
// the operation name followed by its variables as canonical JSON,
// e.g. `post({"id":"7"})`. Anonymous operations are named after a hash of
// their query text. A named operation that also carries its query text gets
// that hash appended, `posts#1a2b3c4d`, so two documents sharing a name
// never share a root entry.
func (r Request) Key() string {
	name := r.OperationName
	switch {
	case name == "":
		name = "query_" + queryHash(r.Query)
	case r.Query != "":
		name += "#" + queryHash(r.Query)
	}
	if len(r.Variables) == 0 {
		return name
	}
	vars, err := canonical.Marshal(r.Variables)
	if err != nil {
		// Unencodable variables can't be sent either; keep the key stable.
		return name + "(?)"
	}
	return name + "(" + string(vars) + ")"
}

func queryHash(q string) string {
	h := fnv.New32a()
	h.Write([]byte(q))
	return fmt.Sprintf("%08x", h.Sum32())
}

// Result is what a query component renders from.
type Result struct {
	// Data is the denormalized result. Nil while loading.
	Data map[string]any

	// Loading is true when the result is not in the cache yet.
	Loading bool

	// Err is the last fetch error for this request, if any.
	Err error
}
