package symtree

import (
	"context"
	"slices"
)

// Build walks the hierarchy under root and returns its sorted index.
// A nil root yields a nil index and no error. The only error is the
// context's, when the build is cancelled; no partial index is returned.
func Build(ctx context.Context, version Version, root Container, opts ...Option) (*Index, error) {
	if root == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unsorted := []Node{{Name: "", ParentIndex: RootParentIndex}}
	if err := collectNodes(ctx, &unsorted, 0, []Container{root}); err != nil {
		return nil, err
	}

	x := newIndex(version, sortNodes(unsorted))
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

// collectNodes appends one node per distinct member name found across
// containers, then recurses into every member sharing that name.
func collectNodes(ctx context.Context, nodes *[]Node, parentIndex int, containers []Container) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	grouped := make(map[string][]Container)
	var names []string
	for _, c := range containers {
		for _, name := range c.MemberNames() {
			if _, seen := grouped[name]; !seen {
				grouped[name] = nil
				names = append(names, name)
			}
			for _, member := range c.MembersNamed(name) {
				if child, ok := member.(Container); ok {
					grouped[name] = append(grouped[name], child)
				}
			}
		}
	}
	slices.Sort(names)

	for _, name := range names {
		index := len(*nodes)
		*nodes = append(*nodes, Node{Name: intern(name), ParentIndex: parentIndex})
		if children := grouped[name]; len(children) > 0 {
			if err := collectNodes(ctx, nodes, index, children); err != nil {
				return err
			}
		}
	}
	return nil
}

// sortNodes orders an emission-ordered list and rewrites parent indices to
// the sorted positions. The root keeps the sentinel parent index.
func sortNodes(unsorted []Node) []Node {
	order := make([]int, len(unsorted))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(x, y int) int {
		return compareNodes(unsorted, x, y)
	})

	ranks := make([]int, len(unsorted))
	for rank, original := range order {
		ranks[original] = rank
	}

	sorted := make([]Node, len(unsorted))
	for original, n := range unsorted {
		if !n.IsRoot() {
			n.ParentIndex = ranks[n.ParentIndex]
		}
		sorted[ranks[original]] = n
	}
	return sorted
}
