package query

import (
	"context"
	"time"
)

// Handle is an opaque reference to a value living inside the target
// document. Whoever holds a handle last must release it through
// Executor.Dispose exactly once; using a handle after disposal is a
// programming error and is not defended against here.
type Handle interface {
	HandleID() string
}

// ElementHandle is a Handle the executor has classified as a DOM
// element. Element is a marker method; implementations classified as
// elements provide it and nothing else.
type ElementHandle interface {
	Handle

	Element()
}

// Executor runs page functions inside the target and manages the
// resulting remote references. Implementations are the only code that
// crosses the controller/target boundary; the query layer is expressed
// entirely in terms of these three operations.
type Executor interface {
	// Evaluate invokes the page function fn against recv inside the
	// target and returns a handle to the result. A nil recv evaluates
	// against the implementation's document root.
	Evaluate(ctx context.Context, recv Handle, fn string, args ...any) (Handle, error)

	// Dispose releases a remote reference. Safe to call concurrently
	// with other executor operations.
	Dispose(ctx context.Context, h Handle) error

	// AsElement reports whether h refers to a DOM element, returning
	// the element-typed view or nil.
	AsElement(h Handle) ElementHandle
}

// Polling selects the strategy a wait primitive uses to re-evaluate its
// predicate inside the target.
type Polling string

const (
	PollRAF      Polling = "raf"
	PollMutation Polling = "mutation"
)

// WaitOptions configures a WaitFor operation. The zero value waits for
// presence with the waiter's default timeout and polling strategy.
type WaitOptions struct {
	// Visible waits until the matched element is also visible.
	Visible bool
	// Hidden waits until no visible element matches; a successful wait
	// then yields no element.
	Hidden bool
	// Timeout bounds the wait; zero means the waiter's default.
	Timeout time.Duration
	// Polling overrides the waiter's re-evaluation strategy.
	Polling Polling
}

// Waiter is the execution-context primitive that polls a page predicate
// until it yields an element. Timeout and cancellation semantics belong
// entirely to the implementation; the query layer adds none of its own.
type Waiter interface {
	WaitForPredicate(ctx context.Context, predicate, selector string, opts WaitOptions) (ElementHandle, error)
}

// RawHandler is the caller-supplied capability set for a selector
// engine. Both fields are page-function sources executed inside the
// target, never in the controller. Either may be empty; an empty field
// leaves the corresponding adapted capability absent. Immutable once
// registered.
type RawHandler struct {
	// QueryOne is a page function (root, selector) => Node|null.
	QueryOne string
	// QueryAll is a page function (root, selector) => Iterable<Node>.
	QueryAll string
}

// Handler is the adapted, controller-facing capability set for one
// engine. A field is nil when the raw handler omitted the capability
// backing it; call sites must check presence before invoking.
type Handler struct {
	// QueryOne returns a handle on the first match, or (nil, nil) when
	// nothing matches. A non-element result never escapes undisposed.
	QueryOne func(ctx context.Context, exec Executor, root Handle, selector string) (ElementHandle, error)

	// QueryAll drains matches lazily, one remote round-trip per
	// element. The returned iterator must be closed unless it reports
	// exhaustion.
	QueryAll func(ctx context.Context, exec Executor, root Handle, selector string) (*ElementIterator, error)

	// QueryAllArray returns a single handle on the full result
	// collection, with no per-element marshaling. The caller owns the
	// returned handle.
	QueryAllArray func(ctx context.Context, exec Executor, root Handle, selector string) (Handle, error)

	// WaitFor blocks until QueryOne would succeed for the selector,
	// delegating polling, visibility and timeout handling to w.
	WaitFor func(ctx context.Context, w Waiter, selector string, opts WaitOptions) (ElementHandle, error)
}
