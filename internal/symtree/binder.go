package symtree

import (
	"context"
	"sync"
)

// scratchPool holds the temporary slices used while resolving ancestor
// chains. Each bind call takes its own slices and returns them when done.
var scratchPool = sync.Pool{
	New: func() any {
		s := make([]Symbol, 0, 8)
		return &s
	},
}

func getScratch() *[]Symbol {
	return scratchPool.Get().(*[]Symbol)
}

func putScratch(s *[]Symbol) {
	clear(*s)
	*s = (*s)[:0]
	scratchPool.Put(s)
}

// Bind resolves the node at position i against root, returning every live
// declaration it stands for. root may be a different object than the one
// the index was built from, as long as it describes the same snapshot.
// Duplicates are possible when resolved ancestors overlap.
func (x *Index) Bind(ctx context.Context, i int, root Container) ([]Symbol, error) {
	if root == nil {
		return nil, nil
	}
	var out []Symbol
	if err := x.bindInto(ctx, i, root, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (x *Index) bindInto(ctx context.Context, i int, root Container, out *[]Symbol) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := x.nodes[i]
	if n.IsRoot() {
		return nil
	}

	parent := x.nodes[n.ParentIndex]
	if parent.IsRoot() {
		*out = append(*out, root.MembersNamed(n.Name)...)
		return nil
	}

	containers := getScratch()
	defer putScratch(containers)
	if err := x.bindInto(ctx, n.ParentIndex, root, containers); err != nil {
		return err
	}
	for _, s := range *containers {
		if c, ok := s.(Container); ok {
			*out = append(*out, c.MembersNamed(n.Name)...)
		}
	}
	return nil
}

// Find binds every node named name.
func (x *Index) Find(ctx context.Context, root Container, name string, ignoreCase bool) ([]Symbol, error) {
	return x.bindAll(ctx, root, x.FindNodes(name, ignoreCase))
}

// Search binds every node whose name pred accepts. See SearchByPredicate
// for the purity requirement on pred.
func (x *Index) Search(ctx context.Context, root Container, pred func(name string) bool) ([]Symbol, error) {
	return x.bindAll(ctx, root, x.SearchByPredicate(pred))
}

func (x *Index) bindAll(ctx context.Context, root Container, positions []int) ([]Symbol, error) {
	if root == nil {
		return nil, nil
	}
	var out []Symbol
	for _, i := range positions {
		if err := x.bindInto(ctx, i, root, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
