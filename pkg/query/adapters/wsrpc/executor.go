// Package wsrpc implements query.Executor and query.Waiter over a
// WebSocket bridge to a live target. Page functions travel to the
// target verbatim; handles come back as opaque ids that the target
// owns until they are disposed.
package wsrpc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/odvcencio/domquery/pkg/query"
)

type remoteHandle struct{ id string }

func (h *remoteHandle) HandleID() string { return h.id }

type remoteElement struct{ remoteHandle }

func (*remoteElement) Element() {}

// Executor is a connected query bridge. Safe for concurrent use; the
// underlying connection serializes requests.
type Executor struct {
	cfg    Config
	log    *slog.Logger
	mu     sync.Mutex
	closed bool
	client *client
}

// Dial connects to the bridge at cfg.URL.
func Dial(ctx context.Context, cfg Config) (*Executor, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("wsrpc config: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, query.WrapRemoteError("dial", fmt.Sprintf("connecting to %s", cfg.URL), err)
	}
	conn.SetReadLimit(cfg.MaxMessageSize)

	return &Executor{
		cfg:    cfg,
		log:    cfg.Logger,
		client: newClient(conn),
	}, nil
}

// Close tears the connection down. Idempotent.
func (e *Executor) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.client.close()
}

// Evaluate runs fn against recv inside the target. A nil recv
// addresses the document root.
func (e *Executor) Evaluate(ctx context.Context, recv query.Handle, fn string, args ...any) (query.Handle, error) {
	if err := e.ensureOpen(); err != nil {
		return nil, err
	}
	ctx, cancel := e.withOperationTimeout(ctx)
	defer cancel()

	req := &request{
		Method:   methodEvaluate,
		Function: fn,
		Args:     args,
	}
	if recv != nil {
		req.Recv = recv.HandleID()
	}
	resp, err := e.client.send(ctx, req)
	if err != nil {
		return nil, query.WrapRemoteError("transport", "evaluate failed", err)
	}
	if err := responseError(resp); err != nil {
		return nil, err
	}
	if resp.Result == nil || resp.Result.HandleID == "" {
		return nil, query.NewRemoteError("invalid_response", "evaluate: missing result handle")
	}
	e.log.DebugContext(ctx, "evaluate", "recv", req.Recv, "handle", resp.Result.HandleID)
	return newHandle(resp.Result), nil
}

// Dispose releases a remote reference.
func (e *Executor) Dispose(ctx context.Context, h query.Handle) error {
	if err := e.ensureOpen(); err != nil {
		return err
	}
	if h == nil {
		return nil
	}
	ctx, cancel := e.withOperationTimeout(ctx)
	defer cancel()

	resp, err := e.client.send(ctx, &request{Method: methodDispose, Recv: h.HandleID()})
	if err != nil {
		return query.WrapRemoteError("transport", "dispose failed", err)
	}
	return responseError(resp)
}

// AsElement classifies from the handle type the target reported at
// creation, with no extra round-trip.
func (e *Executor) AsElement(h query.Handle) query.ElementHandle {
	if el, ok := h.(*remoteElement); ok {
		return el
	}
	return nil
}

// WaitForPredicate asks the target to poll the predicate until it
// matches. A hidden wait resolves with no element; the target signals
// that with an empty result.
func (e *Executor) WaitForPredicate(ctx context.Context, predicate, selector string, opts query.WaitOptions) (query.ElementHandle, error) {
	if err := e.ensureOpen(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	// The wait's own timeout governs; give the transport headroom past
	// it so the target reports the timeout, not the socket.
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.cfg.OperationTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	req := &request{
		Method: methodWaitFor,
		Wait: &waitParams{
			Predicate: predicate,
			Selector:  selector,
			Visible:   opts.Visible,
			Hidden:    opts.Hidden,
			TimeoutMs: opts.Timeout.Milliseconds(),
			Polling:   string(opts.Polling),
		},
	}
	resp, err := e.client.send(ctx, req)
	if err != nil {
		return nil, query.WrapRemoteError("transport", "waitFor failed", err)
	}
	if err := responseError(resp); err != nil {
		return nil, err
	}
	if resp.Result == nil || resp.Result.HandleID == "" {
		return nil, nil
	}
	h := newHandle(resp.Result)
	if el, ok := h.(*remoteElement); ok {
		return el, nil
	}
	return nil, query.NewRemoteError("invalid_response", "waitFor: result is not an element")
}

func newHandle(obj *remoteObject) query.Handle {
	if obj.Subtype == subtypeNode {
		return &remoteElement{remoteHandle{id: obj.HandleID}}
	}
	return &remoteHandle{id: obj.HandleID}
}

func (e *Executor) ensureOpen() error {
	if e == nil || e.client == nil {
		return query.NewRemoteError("closed", "executor unavailable")
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return query.NewRemoteError("closed", "executor closed")
	}
	return nil
}

// withOperationTimeout applies the configured timeout when the caller's
// context carries no deadline of its own.
func (e *Executor) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	timeout := e.cfg.OperationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func responseError(resp *response) error {
	if resp == nil {
		return query.NewRemoteError("empty_response", "missing response")
	}
	if resp.Error == nil {
		return nil
	}
	code := resp.Error.Code
	if code == "" {
		code = "unknown"
	}
	message := resp.Error.Message
	if message == "" {
		message = "operation failed"
	}
	return query.NewRemoteError(code, message)
}
