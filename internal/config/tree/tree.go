// Package tree defines the addressing capability the typed
// configuration implements so that live callables recorded under
// dotted paths during extraction can be spliced back into the typed
// tree after structural deserialization.
package tree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/swarmhost/swarmhost/internal/provider"
)

// Node is an addressable node of the typed configuration tree. A Node
// resolves a named (or, for lists, indexed) child, or reports that it
// has none.
type Node interface {
	Child(name string) (Node, error)
}

// FuncSlot is a Node that can accept a live callable. The structural
// deserialization pass leaves an inert placeholder in each callable
// slot; the reattachment pass locates the slot by path and attaches
// the live handle.
type FuncSlot interface {
	Node
	Attach(fn provider.Function)
}

// Descend walks the typed tree from root along a dotted path, e.g.
// "dialog.commands.start.handler".
func Descend(root Node, path string) (Node, error) {
	node := root
	for _, field := range strings.Split(path, ".") {
		next, err := node.Child(field)
		if err != nil {
			return nil, fmt.Errorf("descend %q: %w", path, err)
		}
		node = next
	}
	return node, nil
}

// MapChild resolves a key in a map of nodes.
func MapChild[T Node](m map[string]T, key string) (Node, error) {
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("%w: no key %q", ErrNoChild, key)
	}
	return v, nil
}

// SliceChild resolves an index in a list of nodes. The field name must
// parse as a decimal index.
func SliceChild[T Node](s []T, name string) (Node, error) {
	idx, err := strconv.Atoi(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not an index: %v", ErrNoChild, name, err)
	}
	if idx < 0 || idx >= len(s) {
		return nil, fmt.Errorf("%w: index %d out of range (len %d)", ErrNoChild, idx, len(s))
	}
	return s[idx], nil
}
