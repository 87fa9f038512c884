package tree

import "errors"

var (
	// ErrNoChild reports that a path segment did not resolve to a
	// child of the current node.
	ErrNoChild = errors.New("no such child")

	// ErrLeaf reports an attempt to descend past an opaque leaf.
	ErrLeaf = errors.New("node is a leaf")
)
