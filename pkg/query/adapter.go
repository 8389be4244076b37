package query

import (
	"context"
	"fmt"

	"github.com/odvcencio/domquery/pkg/query/js"
)

// disposeOwned releases a handle the query layer created for itself,
// counting successful releases.
func disposeOwned(ctx context.Context, exec Executor, h Handle) error {
	if err := exec.Dispose(ctx, h); err != nil {
		return err
	}
	metricDisposedHandles.Inc()
	return nil
}

// Adapt derives the controller-facing Handler from a raw capability
// set. Pure adaptation: no state is captured beyond the raw sources,
// and capabilities absent from raw stay absent from the result.
func Adapt(raw RawHandler) *Handler {
	handler := &Handler{}

	if raw.QueryOne != "" {
		queryOne := raw.QueryOne
		handler.QueryOne = func(ctx context.Context, exec Executor, root Handle, selector string) (ElementHandle, error) {
			result, err := exec.Evaluate(ctx, root, queryOne, selector)
			if err != nil {
				return nil, fmt.Errorf("querying selector %q: %w", selector, err)
			}
			if el := exec.AsElement(result); el != nil {
				return el, nil
			}
			if derr := disposeOwned(ctx, exec, result); derr != nil {
				return nil, fmt.Errorf("disposing non-element result for %q: %w", selector, derr)
			}
			return nil, nil
		}
		// The waiter owns remote execution and polling, so it gets the
		// raw page function, not the adapted form.
		handler.WaitFor = func(ctx context.Context, w Waiter, selector string, opts WaitOptions) (ElementHandle, error) {
			return w.WaitForPredicate(ctx, queryOne, selector, opts)
		}
	}

	if raw.QueryAll != "" {
		queryAll := raw.QueryAll
		asArray := js.AsArray(queryAll)
		handler.QueryAll = func(ctx context.Context, exec Executor, root Handle, selector string) (*ElementIterator, error) {
			return newElementIterator(ctx, exec, root, queryAll, selector)
		}
		handler.QueryAllArray = func(ctx context.Context, exec Executor, root Handle, selector string) (Handle, error) {
			result, err := exec.Evaluate(ctx, root, asArray, selector)
			if err != nil {
				return nil, fmt.Errorf("querying all %q: %w", selector, err)
			}
			return result, nil
		}
	}

	return handler
}
