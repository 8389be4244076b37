package wsrpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/domquery/pkg/query"
	"github.com/odvcencio/domquery/pkg/query/js"
)

// bridgeFunc produces the frames the fake bridge writes for one
// request, in order. Frames whose id does not match the request are
// delivered as unsolicited events.
type bridgeFunc func(req *request) []*response

func newBridge(t *testing.T, fn bridgeFunc) *Executor {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			for _, resp := range fn(&req) {
				if err := conn.WriteJSON(resp); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)

	exec, err := Dial(context.Background(), Config{
		URL: "ws" + strings.TrimPrefix(srv.URL, "http"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })
	return exec
}

func reply(req *request, result *remoteObject) []*response {
	return []*response{{ID: req.ID, Result: result}}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"missing url", Config{}, "url is required"},
		{"http scheme", Config{URL: "http://bridge"}, "scheme"},
		{"negative dial timeout", Config{URL: "ws://bridge", DialTimeout: -time.Second}, "dial_timeout"},
		{"ok ws", Config{URL: "ws://bridge"}, ""},
		{"ok wss", Config{URL: "wss://bridge"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{URL: "ws://bridge"}.withDefaults()
	assert.Equal(t, "ws://bridge", cfg.URL)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 30*time.Second, cfg.OperationTimeout)
	assert.NotNil(t, cfg.Logger)

	cfg = Config{URL: "ws://bridge", OperationTimeout: time.Second}.withDefaults()
	assert.Equal(t, time.Second, cfg.OperationTimeout)
}

func TestEvaluateClassifiesNodes(t *testing.T) {
	exec := newBridge(t, func(req *request) []*response {
		if strings.Contains(req.Function, "querySelector") {
			return reply(req, &remoteObject{HandleID: "n1", Subtype: subtypeNode})
		}
		return reply(req, &remoteObject{HandleID: "v1"})
	})
	ctx := context.Background()

	h, err := exec.Evaluate(ctx, nil, `(r, s) => r.querySelector(s)`, ".foo")
	require.NoError(t, err)
	require.NotNil(t, exec.AsElement(h), "node subtype classifies as element")
	assert.Equal(t, "n1", h.HandleID())

	h, err = exec.Evaluate(ctx, nil, `(r) => r.title`)
	require.NoError(t, err)
	assert.Nil(t, exec.AsElement(h), "plain values are not elements")
}

func TestEvaluateRemoteError(t *testing.T) {
	exec := newBridge(t, func(req *request) []*response {
		return []*response{{ID: req.ID, Error: &wireError{Code: "eval_failed", Message: "boom"}}}
	})

	_, err := exec.Evaluate(context.Background(), nil, `(r) => r.explode()`)
	require.Error(t, err)
	code, ok := query.IsRemoteError(err)
	require.True(t, ok)
	assert.Equal(t, "eval_failed", code)
}

func TestSendSkipsEventFrames(t *testing.T) {
	exec := newBridge(t, func(req *request) []*response {
		return []*response{
			{ID: "event-frame"},
			{ID: req.ID, Result: &remoteObject{HandleID: "n1", Subtype: subtypeNode}},
		}
	})

	h, err := exec.Evaluate(context.Background(), nil, `(r, s) => r.querySelector(s)`, ".foo")
	require.NoError(t, err)
	assert.Equal(t, "n1", h.HandleID())
}

func TestDispose(t *testing.T) {
	var mu sync.Mutex
	var got *request
	exec := newBridge(t, func(req *request) []*response {
		mu.Lock()
		got = req
		mu.Unlock()
		return reply(req, nil)
	})

	require.NoError(t, exec.Dispose(context.Background(), &remoteHandle{id: "n7"}))
	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, got)
	assert.Equal(t, methodDispose, got.Method)
	assert.Equal(t, "n7", got.Recv)
}

func TestWaitForPredicate(t *testing.T) {
	var mu sync.Mutex
	var got *request
	exec := newBridge(t, func(req *request) []*response {
		mu.Lock()
		got = req
		mu.Unlock()
		return reply(req, &remoteObject{HandleID: "n3", Subtype: subtypeNode})
	})

	el, err := exec.WaitForPredicate(context.Background(), js.CSSQueryOne, ".ready", query.WaitOptions{
		Visible: true,
		Timeout: 2 * time.Second,
		Polling: query.PollMutation,
	})
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Equal(t, "n3", el.HandleID())

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, got)
	assert.Equal(t, methodWaitFor, got.Method)
	require.NotNil(t, got.Wait)
	assert.Equal(t, js.CSSQueryOne, got.Wait.Predicate)
	assert.Equal(t, ".ready", got.Wait.Selector)
	assert.True(t, got.Wait.Visible)
	assert.EqualValues(t, 2000, got.Wait.TimeoutMs)
	assert.Equal(t, "mutation", got.Wait.Polling)
}

func TestWaitForHiddenResolvesEmpty(t *testing.T) {
	exec := newBridge(t, func(req *request) []*response {
		return reply(req, nil)
	})

	el, err := exec.WaitForPredicate(context.Background(), js.CSSQueryOne, ".gone", query.WaitOptions{
		Hidden:  true,
		Timeout: time.Second,
	})
	require.NoError(t, err)
	assert.Nil(t, el)
}

func TestClosedExecutor(t *testing.T) {
	exec := newBridge(t, func(req *request) []*response {
		return reply(req, &remoteObject{HandleID: "n1"})
	})
	require.NoError(t, exec.Close())
	require.NoError(t, exec.Close(), "Close is idempotent")

	_, err := exec.Evaluate(context.Background(), nil, `(r) => r`)
	code, ok := query.IsRemoteError(err)
	require.True(t, ok)
	assert.Equal(t, "closed", code)
}

// iteratorBridge is a stateful fake speaking the full iterator
// protocol: one collection, two elements, then exhaustion.
type iteratorBridge struct {
	mu       sync.Mutex
	served   int
	disposed []string
}

func (b *iteratorBridge) handle(req *request) []*response {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch req.Method {
	case methodDispose:
		b.disposed = append(b.disposed, req.Recv)
		return reply(req, nil)
	case methodEvaluate:
		switch req.Function {
		case js.CSSQueryAll:
			return reply(req, &remoteObject{HandleID: "list"})
		case js.GetIterator:
			return reply(req, &remoteObject{HandleID: "iter"})
		case js.IteratorNext:
			b.served++
			if b.served <= 2 {
				return reply(req, &remoteObject{
					HandleID: []string{"n1", "n2"}[b.served-1],
					Subtype:  subtypeNode,
				})
			}
			return reply(req, &remoteObject{HandleID: "null"})
		}
	}
	return []*response{{ID: req.ID, Error: &wireError{Code: "unsupported_script"}}}
}

func TestRegistryQueryAllOverBridge(t *testing.T) {
	bridge := &iteratorBridge{}
	exec := newBridge(t, bridge.handle)
	ctx := context.Background()
	r := query.NewRegistry()

	it, err := r.QueryAll(ctx, exec, nil, ".item")
	require.NoError(t, err)
	elements, err := it.Collect(ctx)
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, "n1", elements[0].HandleID())
	assert.Equal(t, "n2", elements[1].HandleID())

	for _, el := range elements {
		require.NoError(t, exec.Dispose(ctx, el))
	}

	bridge.mu.Lock()
	defer bridge.mu.Unlock()
	assert.ElementsMatch(t, []string{"list", "iter", "null", "n1", "n2"}, bridge.disposed,
		"every intermediate handle is released exactly once")
}
