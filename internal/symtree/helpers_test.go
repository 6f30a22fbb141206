package symtree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeScope is a namespace- or type-like declaration used by the tests.
type fakeScope struct {
	name    string
	kind    string
	names   []string
	members map[string][]Symbol
}

func (s *fakeScope) Name() string { return s.name }

func (s *fakeScope) MemberNames() []string { return s.names }

func (s *fakeScope) MembersNamed(name string) []Symbol { return s.members[name] }

// fakeLeaf is a declaration without members, such as a method.
type fakeLeaf struct {
	name string
}

func (l *fakeLeaf) Name() string { return l.name }

func scope(name string, members ...Symbol) *fakeScope {
	return kinded("namespace", name, members...)
}

func typ(name string, members ...Symbol) *fakeScope {
	return kinded("type", name, members...)
}

func kinded(kind, name string, members ...Symbol) *fakeScope {
	s := &fakeScope{name: name, kind: kind, members: make(map[string][]Symbol)}
	for _, m := range members {
		if _, ok := s.members[m.Name()]; !ok {
			s.names = append(s.names, m.Name())
		}
		s.members[m.Name()] = append(s.members[m.Name()], m)
	}
	return s
}

func leaf(name string) *fakeLeaf {
	return &fakeLeaf{name: name}
}

// sampleRoot is root → N{A, B}, M{A}.
func sampleRoot() *fakeScope {
	return scope("",
		scope("N", typ("A", leaf("Run")), typ("B")),
		scope("M", typ("A")),
	)
}

func mustBuild(t *testing.T, root Container) *Index {
	t.Helper()
	x, err := Build(context.Background(), "v1", root)
	require.NoError(t, err)
	require.NotNil(t, x)
	return x
}

func names(x *Index, positions []int) []string {
	out := make([]string, 0, len(positions))
	for _, i := range positions {
		out = append(out, x.Node(i).Name)
	}
	return out
}

// requireInvariants checks ordering, contiguity and parent links.
func requireInvariants(t *testing.T, x *Index) {
	t.Helper()
	if x.Len() == 0 {
		return
	}
	require.True(t, x.Node(0).IsRoot(), "root must be first")
	for i := 1; i < x.Len(); i++ {
		n := x.Node(i)
		require.False(t, n.IsRoot(), "only one root")
		require.NotEqual(t, i, n.ParentIndex)
		require.GreaterOrEqual(t, n.ParentIndex, 0)
		require.Less(t, n.ParentIndex, x.Len())
		if i > 1 {
			require.LessOrEqual(t, CompareNames(x.Node(i-1).Name, n.Name), 0, "nodes %d and %d out of order", i-1, i)
		}
	}

	// Names equal ignoring case form a single run.
	seenRuns := make(map[string]int)
	for i := 1; i < x.Len(); i++ {
		key := x.Node(i).Name
		var folded []rune
		for _, r := range key {
			folded = append(folded, foldRune(r))
		}
		k := string(folded)
		if last, ok := seenRuns[k]; ok {
			require.Equal(t, i-1, last, "case-insensitive run for %q is broken", key)
		}
		seenRuns[k] = i
	}
}
