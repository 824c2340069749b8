package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/ssrdata/pkg/query"
	"github.com/vango-dev/ssrdata/pkg/vdom"
)

func newClient(data map[string]any, err error) *query.Client {
	return query.NewClient(nil, query.Config{
		Transport: query.TransportFunc(func(context.Context, query.Request, string) (map[string]any, error) {
			return data, err
		}),
	})
}

func TestStoreFollowsClient(t *testing.T) {
	client := newClient(map[string]any{
		"me": map[string]any{"__typename": "User", "id": "1", "name": "Ada"},
	}, nil)
	st := New(client, nil)
	defer st.Close()

	assert.Empty(t, st.GetState().Query.Data)

	_, err := client.Query(context.Background(), query.Request{OperationName: "me"})
	require.NoError(t, err)

	state := st.GetState()
	assert.Equal(t, client.Extract(), state.Query.Data)
	assert.Equal(t, QueryStatus{}, state.Query.Queries["me"])
	assert.Equal(t, "Ada", state.Query.Data["User:1"]["name"])
}

func TestStoreRecordsFailure(t *testing.T) {
	client := newClient(nil, errors.New("offline"))
	st := New(client, nil)
	defer st.Close()

	_, err := client.Query(context.Background(), query.Request{OperationName: "me"})
	require.Error(t, err)

	assert.Equal(t, QueryStatus{Error: "offline"}, st.GetState().Query.Queries["me"])
	assert.Empty(t, st.GetState().Query.Data)
}

func TestStoreSeededFromSnapshot(t *testing.T) {
	snap := query.Snapshot{"User:1": query.Record{"name": "Ada"}}
	st := New(nil, snap)
	snap["User:1"]["name"] = "Grace"

	assert.Equal(t, "Ada", st.GetState().Query.Data["User:1"]["name"])
}

func TestGetStateIsACopy(t *testing.T) {
	st := New(nil, query.Snapshot{"User:1": query.Record{"name": "Ada"}},
		WithInitialApp(map[string]any{"theme": "dark"}))

	state := st.GetState()
	state.Query.Data["User:1"]["name"] = "Grace"
	state.App["theme"] = "light"

	again := st.GetState()
	assert.Equal(t, "Ada", again.Query.Data["User:1"]["name"])
	assert.Equal(t, "dark", again.App["theme"])
}

func TestReducers(t *testing.T) {
	counter := func(app map[string]any, a Action) map[string]any {
		if a.Type == "inc" {
			n, _ := app["count"].(int)
			app["count"] = n + 1
		}
		return app
	}
	st := New(nil, nil, WithReducer(counter))

	var seen []int
	unsubscribe := st.Subscribe(func(s State) {
		seen = append(seen, s.App["count"].(int))
	})

	st.Dispatch(Action{Type: "inc"})
	st.Dispatch(Action{Type: "inc"})
	unsubscribe()
	st.Dispatch(Action{Type: "inc"})

	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, 3, st.GetState().App["count"])
}

func TestCloseDetaches(t *testing.T) {
	client := newClient(map[string]any{"ok": true}, nil)
	st := New(client, nil)
	st.Close()
	st.Close()

	_, err := client.Query(context.Background(), query.Request{OperationName: "ping"})
	require.NoError(t, err)
	assert.Empty(t, st.GetState().Query.Queries)
}

func TestProvider(t *testing.T) {
	st := New(nil, nil, WithInitialApp(map[string]any{"user": "ada"}))

	var got State
	tree := Provider(st, Select(func(s State) *vdom.VNode {
		got = s
		return vdom.Text("ok")
	}))

	out, scope := vdom.Expand(tree.Comp, nil)
	require.Same(t, st, StoreFrom(scope))
	require.Len(t, out.Children, 1)

	vdom.Expand(out.Children[0].Comp, scope)
	assert.Equal(t, "ada", got.App["user"])
}
