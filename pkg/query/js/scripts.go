// Package js holds the page-function sources the query layer evaluates
// inside a target document. The controller never interprets them; they
// are opaque strings handed to an Executor.
package js

// GetIterator obtains the iterator of a target-side iterable object.
const GetIterator = `(iterable) => iterable[Symbol.iterator]()`

// IteratorNext advances a target-side iterator one step. Exhaustion is
// reported as null so the controller sees a non-element result instead
// of a protocol-level signal.
const IteratorNext = `(iterator) => {
  const result = iterator.next();
  return result.done ? null : result.value;
}`

// AsArray wraps a queryAll page function so that a single evaluation
// returns the whole result set as one array object, with no per-element
// round-trips.
func AsArray(queryAll string) string {
	return `(root, selector) => [...(` + queryAll + `)(root, selector)]`
}

// CSSQueryOne and CSSQueryAll back the default engine.
const (
	CSSQueryOne = `(root, selector) => root.querySelector(selector)`
	CSSQueryAll = `(root, selector) => root.querySelectorAll(selector)`
)

// PierceQueryOne walks the subtree depth-first, descending into open
// shadow roots, and returns the first element matching the selector.
const PierceQueryOne = `(root, selector) => {
  let found = null;
  const search = (node) => {
    const walker = document.createTreeWalker(node, NodeFilter.SHOW_ELEMENT);
    do {
      const current = walker.currentNode;
      if (current.shadowRoot) {
        search(current.shadowRoot);
      }
      if (current instanceof ShadowRoot) {
        continue;
      }
      if (current !== root && !found && current.matches(selector)) {
        found = current;
      }
    } while (!found && walker.nextNode());
  };
  if (root instanceof Document) {
    root = root.documentElement;
  }
  search(root);
  return found;
}`

// PierceQueryAll collects every match of the same shadow-piercing walk,
// in document order, shadow subtrees included.
const PierceQueryAll = `(root, selector) => {
  const found = [];
  const search = (node) => {
    const walker = document.createTreeWalker(node, NodeFilter.SHOW_ELEMENT);
    do {
      const current = walker.currentNode;
      if (current.shadowRoot) {
        search(current.shadowRoot);
      }
      if (current instanceof ShadowRoot) {
        continue;
      }
      if (current !== root && current.matches(selector)) {
        found.push(current);
      }
    } while (walker.nextNode());
  };
  if (root instanceof Document) {
    root = root.documentElement;
  }
  search(root);
  return found;
}`

// AriaQueryOne and AriaQueryAll match selectors of the form
// [name="..."][role="..."] against an accessible-name approximation
// (aria-label, falling back to collapsed text content) and the role
// attribute. The walk pierces open shadow roots like the pierce engine.
const (
	AriaQueryOne = `(root, selector) => {
  const terms = {};
  for (const match of selector.matchAll(/\[\s*(name|role)\s*=\s*"([^"]*)"\s*\]/g)) {
    terms[match[1]] = match[2];
  }
  const accessibleName = (el) =>
    el.getAttribute('aria-label') || (el.textContent || '').trim().replace(/\s+/g, ' ');
  const matches = (el) => {
    if ('name' in terms && accessibleName(el) !== terms.name) return false;
    if ('role' in terms && (el.getAttribute('role') || '') !== terms.role) return false;
    return true;
  };
  let found = null;
  const search = (node) => {
    const walker = document.createTreeWalker(node, NodeFilter.SHOW_ELEMENT);
    do {
      const current = walker.currentNode;
      if (current.shadowRoot) search(current.shadowRoot);
      if (current instanceof ShadowRoot) continue;
      if (current !== root && !found && matches(current)) found = current;
    } while (!found && walker.nextNode());
  };
  if (root instanceof Document) root = root.documentElement;
  search(root);
  return found;
}`

	AriaQueryAll = `(root, selector) => {
  const terms = {};
  for (const match of selector.matchAll(/\[\s*(name|role)\s*=\s*"([^"]*)"\s*\]/g)) {
    terms[match[1]] = match[2];
  }
  const accessibleName = (el) =>
    el.getAttribute('aria-label') || (el.textContent || '').trim().replace(/\s+/g, ' ');
  const matches = (el) => {
    if ('name' in terms && accessibleName(el) !== terms.name) return false;
    if ('role' in terms && (el.getAttribute('role') || '') !== terms.role) return false;
    return true;
  };
  const found = [];
  const search = (node) => {
    const walker = document.createTreeWalker(node, NodeFilter.SHOW_ELEMENT);
    do {
      const current = walker.currentNode;
      if (current.shadowRoot) search(current.shadowRoot);
      if (current instanceof ShadowRoot) continue;
      if (current !== root && matches(current)) found.push(current);
    } while (walker.nextNode());
  };
  if (root instanceof Document) root = root.documentElement;
  search(root);
  return found;
}`
)
