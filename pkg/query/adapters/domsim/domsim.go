// Package domsim is an in-process query target backed by a parsed HTML
// document. It implements query.Executor and query.Waiter over an
// in-memory DOM, interpreting the query layer's page functions directly
// against the tree instead of shipping them to a browser. It exists for
// tests and offline tooling that need real selector semantics without a
// live target.
package domsim

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/odvcencio/domquery/pkg/query"
	"github.com/odvcencio/domquery/pkg/query/js"
)

// DefaultWaitTimeout bounds WaitForPredicate when the caller passes a
// zero timeout.
const DefaultWaitTimeout = 30 * time.Second

// pollInterval is how often WaitForPredicate re-evaluates its
// predicate. The simulator has no frame clock, so both polling
// strategies degrade to interval polling.
const pollInterval = 10 * time.Millisecond

const rootHandleID = "root"

type objectKind int

const (
	kindNull objectKind = iota
	kindElement
	kindCollection
	kindIterator
)

// object is the target-side value a handle refers to.
type object struct {
	kind  objectKind
	node  *html.Node
	nodes []*html.Node
	pos   int
}

type handle struct{ id string }

func (h *handle) HandleID() string { return h.id }

type elementHandle struct{ handle }

func (*elementHandle) Element() {}

// Target is a single simulated document. All methods are safe for
// concurrent use; SetHTML may be called while waits are in flight,
// which is how tests exercise WaitForPredicate.
type Target struct {
	mu      sync.Mutex
	doc     *html.Node
	handles map[string]*object
	nextID  int
}

// New creates a target holding the given document. An empty string
// yields a valid empty document.
func New(htmlSrc string) (*Target, error) {
	t := &Target{handles: make(map[string]*object)}
	if err := t.SetHTML(htmlSrc); err != nil {
		return nil, err
	}
	return t, nil
}

// SetHTML replaces the document. Outstanding handles keep referring to
// the old tree; disposing them stays valid.
func (t *Target) SetHTML(htmlSrc string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err != nil {
		return fmt.Errorf("parsing document: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.doc = doc.Nodes[0]
	return nil
}

// Root returns the stable handle on the document itself. It is never
// tracked and never needs disposal.
func (t *Target) Root() query.Handle {
	return &elementHandle{handle{id: rootHandleID}}
}

// OpenHandles lists the ids of live tracked handles, for leak checks.
func (t *Target) OpenHandles() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.handles))
	for id := range t.handles {
		ids = append(ids, id)
	}
	return ids
}

func (t *Target) track(obj *object) query.Handle {
	t.nextID++
	id := fmt.Sprintf("h%d", t.nextID)
	t.handles[id] = obj
	if obj.kind == kindElement {
		return &elementHandle{handle{id: id}}
	}
	return &handle{id: id}
}

func (t *Target) resolve(recv query.Handle) (*object, error) {
	if recv == nil || recv.HandleID() == rootHandleID {
		return &object{kind: kindElement, node: t.doc}, nil
	}
	obj, ok := t.handles[recv.HandleID()]
	if !ok {
		return nil, query.NewRemoteError("unknown_handle", fmt.Sprintf("no such handle %q", recv.HandleID()))
	}
	return obj, nil
}

// asArrayScripts maps the array-collecting form of each built-in
// queryAll back to the base script it wraps, so both shapes dispatch
// the same way.
var asArrayScripts = map[string]string{
	js.AsArray(js.CSSQueryAll):    js.CSSQueryAll,
	js.AsArray(js.PierceQueryAll): js.PierceQueryAll,
	js.AsArray(js.AriaQueryAll):   js.AriaQueryAll,
}

// Evaluate interprets one of the query layer's page functions against
// the tree. Scripts it does not recognize fail with an
// "unsupported_script" remote error, the same way a real target rejects
// malformed sources.
func (t *Target) Evaluate(ctx context.Context, recv query.Handle, fn string, args ...any) (query.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	obj, err := t.resolve(recv)
	if err != nil {
		return nil, err
	}
	if base, ok := asArrayScripts[fn]; ok {
		fn = base
	}

	switch fn {
	case js.GetIterator:
		if obj.kind != kindCollection {
			return nil, query.NewRemoteError("not_iterable", "receiver is not iterable")
		}
		return t.track(&object{kind: kindIterator, nodes: obj.nodes}), nil

	case js.IteratorNext:
		if obj.kind != kindIterator {
			return nil, query.NewRemoteError("not_iterator", "receiver is not an iterator")
		}
		if obj.pos >= len(obj.nodes) {
			return t.track(&object{kind: kindNull}), nil
		}
		node := obj.nodes[obj.pos]
		obj.pos++
		return t.track(&object{kind: kindElement, node: node}), nil
	}

	if obj.node == nil {
		return nil, query.NewRemoteError("not_element", "receiver is not an element")
	}
	selector, err := selectorArg(args)
	if err != nil {
		return nil, err
	}

	switch fn {
	case js.CSSQueryOne, js.PierceQueryOne:
		return t.cssQuery(obj.node, selector, true)
	case js.CSSQueryAll, js.PierceQueryAll:
		return t.cssQuery(obj.node, selector, false)
	case js.AriaQueryOne:
		return t.ariaQuery(obj.node, selector, true)
	case js.AriaQueryAll:
		return t.ariaQuery(obj.node, selector, false)
	}
	return nil, query.NewRemoteError("unsupported_script", "script is not interpretable by this target")
}

func selectorArg(args []any) (string, error) {
	if len(args) != 1 {
		return "", query.NewRemoteError("bad_arguments", fmt.Sprintf("want 1 argument, got %d", len(args)))
	}
	s, ok := args[0].(string)
	if !ok {
		return "", query.NewRemoteError("bad_arguments", "selector argument must be a string")
	}
	return s, nil
}

// cssQuery serves both the css and pierce engines; a parsed flat tree
// has no shadow roots, so piercing degenerates to a plain subtree walk.
func (t *Target) cssQuery(root *html.Node, selector string, first bool) (query.Handle, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, query.WrapRemoteError("bad_selector", fmt.Sprintf("cannot parse %q", selector), err)
	}
	matches := matchBelow(root, sel, first)
	return t.resultHandle(matches, first), nil
}

var ariaTermRe = regexp.MustCompile(`\[\s*(name|role)\s*=\s*"([^"]*)"\s*\]`)

// ariaQuery matches [name="..."][role="..."] terms against the
// accessible-name approximation the aria engine scripts use: aria-label
// first, collapsed text content as fallback, and the role attribute.
func (t *Target) ariaQuery(root *html.Node, selector string, first bool) (query.Handle, error) {
	terms := map[string]string{}
	for _, m := range ariaTermRe.FindAllStringSubmatch(selector, -1) {
		terms[m[1]] = m[2]
	}
	match := func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		if want, ok := terms["name"]; ok && accessibleName(n) != want {
			return false
		}
		if want, ok := terms["role"]; ok && attr(n, "role") != want {
			return false
		}
		return true
	}
	matches := matchBelow(root, match, first)
	return t.resultHandle(matches, first), nil
}

func (t *Target) resultHandle(matches []*html.Node, first bool) query.Handle {
	if first {
		if len(matches) == 0 {
			return t.track(&object{kind: kindNull})
		}
		return t.track(&object{kind: kindElement, node: matches[0]})
	}
	return t.track(&object{kind: kindCollection, nodes: matches})
}

// matchBelow walks the subtree under root in document order, excluding
// root itself, mirroring querySelector scoping.
func matchBelow(root *html.Node, match func(*html.Node) bool, first bool) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && match(c) {
				found = append(found, c)
				if first {
					return true
				}
			}
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
	return found
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func accessibleName(n *html.Node) string {
	if label := attr(n, "aria-label"); label != "" {
		return label
	}
	text := goquery.NewDocumentFromNode(n).Text()
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
}

// Dispose releases a tracked handle. The root pseudo-handle is ignored;
// unknown or already-released ids fail, which is what the leak tests
// lean on.
func (t *Target) Dispose(_ context.Context, h query.Handle) error {
	if h.HandleID() == rootHandleID {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.handles[h.HandleID()]; !ok {
		return query.NewRemoteError("unknown_handle", fmt.Sprintf("no such handle %q", h.HandleID()))
	}
	delete(t.handles, h.HandleID())
	return nil
}

// AsElement reports element classification from the handle type alone,
// with no target round-trip.
func (t *Target) AsElement(h query.Handle) query.ElementHandle {
	if el, ok := h.(*elementHandle); ok {
		return el
	}
	return nil
}

// WaitForPredicate polls the predicate against the document root until
// it yields a result that satisfies opts, the timeout elapses, or ctx
// is done. With opts.Hidden the wait succeeds, yielding no element,
// once no visible element matches.
func (t *Target) WaitForPredicate(ctx context.Context, predicate, selector string, opts query.WaitOptions) (query.ElementHandle, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultWaitTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		el, done, err := t.checkPredicate(ctx, predicate, selector, opts)
		if err != nil {
			return nil, err
		}
		if done {
			return el, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for selector %q: %w", selector, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (t *Target) checkPredicate(ctx context.Context, predicate, selector string, opts query.WaitOptions) (query.ElementHandle, bool, error) {
	result, err := t.Evaluate(ctx, t.Root(), predicate, selector)
	if err != nil {
		return nil, false, err
	}
	el := t.AsElement(result)
	if el == nil {
		if derr := t.Dispose(ctx, result); derr != nil {
			return nil, false, derr
		}
		if opts.Hidden {
			return nil, true, nil
		}
		return nil, false, nil
	}

	visible := t.isVisible(el)
	satisfied := true
	if opts.Visible && !visible {
		satisfied = false
	}
	if opts.Hidden && visible {
		satisfied = false
	}
	if !satisfied || opts.Hidden {
		if derr := t.Dispose(ctx, el); derr != nil {
			return nil, false, derr
		}
		return nil, satisfied, nil
	}
	return el, true, nil
}

// isVisible approximates layout visibility: the hidden attribute and
// inline display:none / visibility:hidden count as invisible.
func (t *Target) isVisible(h query.Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj, ok := t.handles[h.HandleID()]
	if !ok || obj.node == nil {
		return false
	}
	n := obj.node
	if hasAttr(n, "hidden") {
		return false
	}
	style := strings.ReplaceAll(attr(n, "style"), " ", "")
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return false
	}
	return true
}
