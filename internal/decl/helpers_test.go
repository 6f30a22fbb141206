package decl

import (
	"context"
	"testing"

	"github.com/mvp-joe/declindex/internal/symtree"
	"github.com/stretchr/testify/require"
)

// parseSource runs p over source and assembles the result.
func parseSource(t *testing.T, p Parser, file, source string) *Namespace {
	t.Helper()
	units, err := p.Parse(context.Background(), file, []byte(source))
	require.NoError(t, err)
	return Assemble(units)
}

// lookup follows names from c, taking the first symbol at each step.
func lookup(t *testing.T, c symtree.Container, names ...string) symtree.Symbol {
	t.Helper()
	var cur symtree.Symbol
	for i, name := range names {
		syms := c.MembersNamed(name)
		require.NotEmpty(t, syms, "no member %q under %v", name, names[:i])
		cur = syms[0]
		if i < len(names)-1 {
			next, ok := cur.(symtree.Container)
			require.True(t, ok, "%q has no members", name)
			c = next
		}
	}
	return cur
}

// kindOf returns the kind of the declaration at names.
func kindOf(t *testing.T, c symtree.Container, names ...string) Kind {
	t.Helper()
	d, ok := lookup(t, c, names...).(Declaration)
	require.True(t, ok)
	return d.Kind()
}

// memberKinds maps the immediate members of c to their kinds.
func memberKinds(c symtree.Container) map[string]Kind {
	out := make(map[string]Kind)
	for _, name := range c.MemberNames() {
		for _, sym := range c.MembersNamed(name) {
			if d, ok := sym.(Declaration); ok {
				out[name] = d.Kind()
			}
		}
	}
	return out
}
