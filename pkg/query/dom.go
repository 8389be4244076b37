package query

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/odvcencio/domquery/pkg/query")

// QueryOne resolves selector against the registry and runs the engine's
// single-match operation in the document rooted at root. It returns
// (nil, nil) when nothing matches.
func (r *Registry) QueryOne(ctx context.Context, exec Executor, root Handle, selector string) (ElementHandle, error) {
	name, handler, updated, err := r.begin(ctx, "queryOne", selector)
	if err != nil {
		return nil, err
	}
	if handler.QueryOne == nil {
		return nil, r.unsupported(name, "queryOne", selector)
	}
	ctx, span := tracer.Start(ctx, "query.queryOne",
		spanAttrs(name, selector)...)
	defer span.End()

	el, err := handler.QueryOne(ctx, exec, root, updated)
	if err != nil {
		span.RecordError(err)
		metricQueryErrors.WithLabelValues(name, "queryOne").Inc()
	}
	return el, err
}

// QueryAll resolves selector and opens a lazy iterator over every
// match. The caller must close the iterator unless Next reported
// exhaustion.
func (r *Registry) QueryAll(ctx context.Context, exec Executor, root Handle, selector string) (*ElementIterator, error) {
	name, handler, updated, err := r.begin(ctx, "queryAll", selector)
	if err != nil {
		return nil, err
	}
	if handler.QueryAll == nil {
		return nil, r.unsupported(name, "queryAll", selector)
	}
	ctx, span := tracer.Start(ctx, "query.queryAll",
		spanAttrs(name, selector)...)
	defer span.End()

	it, err := handler.QueryAll(ctx, exec, root, updated)
	if err != nil {
		span.RecordError(err)
		metricQueryErrors.WithLabelValues(name, "queryAll").Inc()
	}
	return it, err
}

// QueryAllArray resolves selector and returns a single handle on the
// full result collection. The caller owns the handle.
func (r *Registry) QueryAllArray(ctx context.Context, exec Executor, root Handle, selector string) (Handle, error) {
	name, handler, updated, err := r.begin(ctx, "queryAllArray", selector)
	if err != nil {
		return nil, err
	}
	if handler.QueryAllArray == nil {
		return nil, r.unsupported(name, "queryAllArray", selector)
	}
	ctx, span := tracer.Start(ctx, "query.queryAllArray",
		spanAttrs(name, selector)...)
	defer span.End()

	h, err := handler.QueryAllArray(ctx, exec, root, updated)
	if err != nil {
		span.RecordError(err)
		metricQueryErrors.WithLabelValues(name, "queryAllArray").Inc()
	}
	return h, err
}

// WaitForSelector resolves selector and blocks until its engine's
// queryOne would succeed, delegating polling and timeout handling to w.
func (r *Registry) WaitForSelector(ctx context.Context, w Waiter, selector string, opts WaitOptions) (ElementHandle, error) {
	name, handler, updated, err := r.begin(ctx, "waitFor", selector)
	if err != nil {
		return nil, err
	}
	if handler.WaitFor == nil {
		return nil, r.unsupported(name, "waitFor", selector)
	}
	ctx, span := tracer.Start(ctx, "query.waitForSelector",
		spanAttrs(name, selector)...)
	defer span.End()

	el, err := handler.WaitFor(ctx, w, updated, opts)
	if err != nil {
		span.RecordError(err)
		metricQueryErrors.WithLabelValues(name, "waitFor").Inc()
	}
	return el, err
}

func (r *Registry) begin(_ context.Context, op, selector string) (string, *Handler, string, error) {
	name, handler, updated, err := r.resolve(selector)
	if err != nil {
		return "", nil, "", err
	}
	metricQueries.WithLabelValues(name, op).Inc()
	return name, handler, updated, nil
}

func (r *Registry) unsupported(name, op, selector string) error {
	metricQueryErrors.WithLabelValues(name, op).Inc()
	return fmt.Errorf("engine %q cannot run %s for selector %q: %w", name, op, selector, ErrNotSupported)
}

func spanAttrs(engine, selector string) []trace.SpanStartOption {
	return []trace.SpanStartOption{trace.WithAttributes(
		attribute.String("query.engine", engine),
		attribute.String("query.selector", selector),
	)}
}
