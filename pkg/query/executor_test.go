package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/odvcencio/domquery/pkg/query/js"
)

// fakeHandle is an in-memory stand-in for a remote reference.
type fakeHandle struct {
	id      string
	element bool
}

func (h *fakeHandle) HandleID() string { return h.id }

type fakeElement struct{ *fakeHandle }

func (fakeElement) Element() {}

// fakeExecutor simulates a target just far enough for the query layer:
// it speaks the iterator protocol, tracks every handle it creates, and
// counts disposals so tests can assert exactly-once release.
type fakeExecutor struct {
	nextID   int
	live     map[string]*fakeHandle
	disposed map[string]int

	// resultIsElement controls whether generic page functions produce
	// an element-classified handle.
	resultIsElement bool

	// yields is how many elements the iterator protocol serves before
	// reporting exhaustion.
	yields int
	served int

	// failNextAt fails the Nth iterator advance (1-based).
	nextCalls   int
	failNextAt  int
	failNextErr error

	failEval    map[string]error
	failDispose map[string]error

	evalLog []string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		live:        make(map[string]*fakeHandle),
		disposed:    make(map[string]int),
		failEval:    make(map[string]error),
		failDispose: make(map[string]error),
	}
}

func (f *fakeExecutor) newHandle(label string, element bool) *fakeHandle {
	f.nextID++
	h := &fakeHandle{id: fmt.Sprintf("%s-%d", label, f.nextID), element: element}
	f.live[h.id] = h
	return h
}

func (f *fakeExecutor) Evaluate(_ context.Context, _ Handle, fn string, _ ...any) (Handle, error) {
	f.evalLog = append(f.evalLog, fn)
	if err := f.failEval[fn]; err != nil {
		return nil, err
	}
	switch fn {
	case js.GetIterator:
		return f.newHandle("iterator", false), nil
	case js.IteratorNext:
		f.nextCalls++
		if f.failNextAt > 0 && f.nextCalls == f.failNextAt {
			return nil, f.failNextErr
		}
		if f.served < f.yields {
			f.served++
			return f.newHandle("element", true), nil
		}
		return f.newHandle("null", false), nil
	}
	return f.newHandle("result", f.resultIsElement), nil
}

func (f *fakeExecutor) Dispose(_ context.Context, h Handle) error {
	id := h.HandleID()
	f.disposed[id]++
	if f.disposed[id] > 1 {
		return fmt.Errorf("handle %s disposed %d times", id, f.disposed[id])
	}
	delete(f.live, id)
	return f.failDispose[id]
}

func (f *fakeExecutor) AsElement(h Handle) ElementHandle {
	fh, ok := h.(*fakeHandle)
	if !ok || !fh.element {
		return nil
	}
	return fakeElement{fh}
}

// leaked reports live handles the query layer created for itself; the
// elements it yielded belong to the test and are not leaks.
func (f *fakeExecutor) leaked() []string {
	var ids []string
	for id := range f.live {
		if strings.HasPrefix(id, "element-") || id == "root" {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func fakeRoot() Handle {
	return &fakeHandle{id: "root", element: true}
}

// fakeWaiter records the predicate handed to it and returns a canned
// result.
type fakeWaiter struct {
	predicate string
	selector  string
	opts      WaitOptions

	result ElementHandle
	err    error
}

func (w *fakeWaiter) WaitForPredicate(_ context.Context, predicate, selector string, opts WaitOptions) (ElementHandle, error) {
	w.predicate = predicate
	w.selector = selector
	w.opts = opts
	return w.result, w.err
}
