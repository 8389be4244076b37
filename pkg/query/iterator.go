package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/domquery/pkg/query/js"
)

// ElementIterator drains a target-side iterable one remote round-trip
// at a time, yielding owned element handles in the target iterator's
// own order. It is forward-only and not restartable: each QueryAll call
// builds a fresh target-side iterator and a fresh bridge around it.
//
// Ownership: every handle the bridge creates for itself (the iterable,
// the iterator, each non-element probe) is disposed on every exit path.
// Elements yielded by Next belong to the consumer, who must dispose
// them. A consumer that stops pulling before exhaustion must call
// Close. Not safe for concurrent use.
type ElementIterator struct {
	exec   Executor
	iter   Handle
	closed bool
}

func newElementIterator(ctx context.Context, exec Executor, root Handle, queryAll, selector string) (*ElementIterator, error) {
	iterable, err := exec.Evaluate(ctx, root, queryAll, selector)
	if err != nil {
		return nil, fmt.Errorf("querying all selector %q: %w", selector, err)
	}

	iter, ierr := exec.Evaluate(ctx, iterable, js.GetIterator)
	// The iterable is dead weight once the iterator exists (or the
	// attempt failed); release it before reporting anything else.
	derr := disposeOwned(ctx, exec, iterable)
	if ierr != nil {
		return nil, errors.Join(fmt.Errorf("obtaining iterator for %q: %w", selector, ierr), derr)
	}
	if derr != nil {
		cerr := disposeOwned(ctx, exec, iter)
		return nil, errors.Join(fmt.Errorf("disposing iterable for %q: %w", selector, derr), cerr)
	}

	return &ElementIterator{exec: exec, iter: iter}, nil
}

// Next performs one remote round-trip. It returns ok=false with a nil
// error once the target iterator is exhausted; the bridge is closed at
// that point and further calls keep reporting exhaustion. Ownership of
// a returned element transfers to the caller.
func (it *ElementIterator) Next(ctx context.Context) (_ ElementHandle, ok bool, _ error) {
	if it.closed {
		return nil, false, nil
	}

	result, err := it.exec.Evaluate(ctx, it.iter, js.IteratorNext)
	if err != nil {
		cerr := it.Close(ctx)
		return nil, false, errors.Join(fmt.Errorf("advancing remote iterator: %w", err), cerr)
	}

	if el := it.exec.AsElement(result); el != nil {
		metricIteratorElements.Inc()
		return el, true, nil
	}

	// Exhaustion arrives as a non-element probe.
	derr := disposeOwned(ctx, it.exec, result)
	cerr := it.Close(ctx)
	if err := errors.Join(derr, cerr); err != nil {
		return nil, false, err
	}
	return nil, false, nil
}

// Close disposes the remote iterator. Idempotent, and mandatory when a
// consumer abandons the sequence before exhaustion.
func (it *ElementIterator) Close(ctx context.Context) error {
	if it.closed {
		return nil
	}
	it.closed = true
	if err := disposeOwned(ctx, it.exec, it.iter); err != nil {
		return fmt.Errorf("disposing remote iterator: %w", err)
	}
	return nil
}

// Collect drains the iterator to exhaustion and closes it. On error the
// elements gathered so far are disposed before the error is returned,
// so nothing leaks on a partial drain.
func (it *ElementIterator) Collect(ctx context.Context) (_ []ElementHandle, rerr error) {
	var elements []ElementHandle
	defer func() {
		if rerr == nil {
			return
		}
		for _, el := range elements {
			rerr = errors.Join(rerr, it.exec.Dispose(ctx, el))
		}
	}()

	for {
		el, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return elements, nil
		}
		elements = append(elements, el)
	}
}
