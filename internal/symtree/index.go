package symtree

import (
	"sync"
)

// Index is the sorted, parent-linked array of declaration nodes for one
// hierarchy snapshot. It is never mutated after construction.
type Index struct {
	version Version
	nodes   []Node

	reusePredicateMatches bool

	spellingOnce sync.Once
	spelling     []string
}

// Option configures how an Index answers queries.
type Option func(*Index)

// WithoutPredicateReuse makes predicate searches evaluate the predicate for
// every node, even when an identical name was matched immediately before.
// Use it for predicates that are not pure functions of the name.
func WithoutPredicateReuse() Option {
	return func(x *Index) {
		x.reusePredicateMatches = false
	}
}

func newIndex(version Version, nodes []Node) *Index {
	return &Index{
		version:               version,
		nodes:                 nodes,
		reusePredicateMatches: true,
	}
}

// NewEmpty returns an index with no nodes at all, not even a root. It is a
// valid state for intentionally empty hierarchies.
func NewEmpty(version Version) *Index {
	return newIndex(version, []Node{})
}

// With returns a shallow copy of x that answers queries using opts. The
// node array is shared.
func (x *Index) With(opts ...Option) *Index {
	c := newIndex(x.version, x.nodes)
	c.reusePredicateMatches = x.reusePredicateMatches
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Version returns the snapshot version the index was built from.
func (x *Index) Version() Version {
	return x.version
}

// Len returns the number of nodes, including the root.
func (x *Index) Len() int {
	return len(x.nodes)
}

// Node returns the node at position i.
func (x *Index) Node(i int) Node {
	return x.nodes[i]
}

// All returns a copy of the node array.
func (x *Index) All() []Node {
	out := make([]Node, len(x.nodes))
	copy(out, x.nodes)
	return out
}

// Root returns the position of the root node, or -1 for an empty index.
func (x *Index) Root() int {
	for i, n := range x.nodes {
		if n.IsRoot() {
			return i
		}
	}
	return -1
}

// Path returns the names from the outermost ancestor down to node i,
// excluding the root.
func (x *Index) Path(i int) []string {
	var path []string
	for n := x.nodes[i]; !n.IsRoot(); n = x.nodes[n.ParentIndex] {
		path = append(path, n.Name)
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

// IsEquivalent reports whether a and b have the same version and the same
// nodes at every position.
func IsEquivalent(a, b *Index) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.version != b.version || len(a.nodes) != len(b.nodes) {
		return false
	}
	for i := range a.nodes {
		na, nb := a.nodes[i], b.nodes[i]
		if na.Name != nb.Name || na.ParentIndex != nb.ParentIndex || na.IsRoot() != nb.IsRoot() {
			return false
		}
	}
	return true
}
