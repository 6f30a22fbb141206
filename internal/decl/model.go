// Package decl holds the declaration hierarchy that indexes are built from:
// namespaces containing types, types containing members and nested types.
// Loaders turn source files into this hierarchy; once assembled it is
// treated as read-only.
package decl

import (
	"fmt"
	"slices"

	"github.com/mvp-joe/declindex/internal/symtree"
)

// Kind classifies a declaration.
type Kind string

const (
	KindNamespace   Kind = "namespace"
	KindClass       Kind = "class"
	KindInterface   Kind = "interface"
	KindStruct      Kind = "struct"
	KindEnum        Kind = "enum"
	KindTrait       Kind = "trait"
	KindRecord      Kind = "record"
	KindModule      Kind = "module"
	KindTypeAlias   Kind = "type"
	KindMethod      Kind = "method"
	KindConstructor Kind = "constructor"
	KindFunction    Kind = "function"
	KindField       Kind = "field"
	KindConstant    Kind = "constant"
	KindVariable    Kind = "variable"
	KindEnumValue   Kind = "enum_value"
)

// Location is where a declaration appears in source.
type Location struct {
	File string
	Line int
}

// Declaration is any named entity of the hierarchy.
type Declaration interface {
	symtree.Symbol
	Kind() Kind
}

// scope stores named members in first-seen name order.
type scope struct {
	names   []string
	members map[string][]symtree.Symbol
}

func (s *scope) add(sym symtree.Symbol) {
	if s.members == nil {
		s.members = make(map[string][]symtree.Symbol)
	}
	name := sym.Name()
	if _, ok := s.members[name]; !ok {
		s.names = append(s.names, name)
	}
	s.members[name] = append(s.members[name], sym)
}

// MemberNames returns the distinct names of the immediate members.
func (s *scope) MemberNames() []string {
	return slices.Clone(s.names)
}

// MembersNamed returns every immediate member called name.
func (s *scope) MembersNamed(name string) []symtree.Symbol {
	return s.members[name]
}

// Namespace groups types and free members. The unnamed namespace is the
// root of a hierarchy.
type Namespace struct {
	scope
	name   string
	parent *Namespace
}

// NewRoot returns an empty root namespace.
func NewRoot() *Namespace {
	return &Namespace{}
}

func (n *Namespace) Name() string { return n.name }

func (n *Namespace) Kind() Kind { return KindNamespace }

// Parent returns the enclosing namespace, nil for the root.
func (n *Namespace) Parent() *Namespace { return n.parent }

// AddNamespace returns the child namespace called name, creating it when
// missing.
func (n *Namespace) AddNamespace(name string) *Namespace {
	for _, sym := range n.MembersNamed(name) {
		if child, ok := sym.(*Namespace); ok {
			return child
		}
	}
	child := &Namespace{name: name, parent: n}
	n.add(child)
	return child
}

// Nested walks (creating as needed) the nested namespaces along path.
func (n *Namespace) Nested(path ...string) *Namespace {
	cur := n
	for _, segment := range path {
		if segment == "" {
			continue
		}
		cur = cur.AddNamespace(segment)
	}
	return cur
}

// AddType declares t in n and returns it.
func (n *Namespace) AddType(t *Type) *Type {
	n.add(t)
	return t
}

// AddMember declares a free member, such as a top-level function.
func (n *Namespace) AddMember(m *Member) *Member {
	n.add(m)
	return m
}

// TypesNamed returns the types called name declared directly in n.
func (n *Namespace) TypesNamed(name string) []*Type {
	var out []*Type
	for _, sym := range n.MembersNamed(name) {
		if t, ok := sym.(*Type); ok {
			out = append(out, t)
		}
	}
	return out
}

// Type is a class-like declaration. Partial declarations of one type are
// separate Type values that share a name.
type Type struct {
	scope
	name string
	kind Kind
	Location
}

// NewType returns an empty type declaration.
func NewType(name string, kind Kind, loc Location) *Type {
	return &Type{name: name, kind: kind, Location: loc}
}

func (t *Type) Name() string { return t.name }

func (t *Type) Kind() Kind { return t.kind }

// AddType declares a nested type.
func (t *Type) AddType(nested *Type) *Type {
	t.add(nested)
	return nested
}

// AddMember declares a member of t.
func (t *Type) AddMember(m *Member) *Member {
	t.add(m)
	return m
}

// Member is a leaf declaration: a method, field, constant or function.
type Member struct {
	name string
	kind Kind
	Location
}

// NewMember returns a member declaration.
func NewMember(name string, kind Kind, loc Location) *Member {
	return &Member{name: name, kind: kind, Location: loc}
}

func (m *Member) Name() string { return m.name }

func (m *Member) Kind() Kind { return m.kind }

// Count returns the number of declarations below root, root excluded.
func Count(root symtree.Container) int {
	total := 0
	for _, name := range root.MemberNames() {
		for _, sym := range root.MembersNamed(name) {
			total++
			if c, ok := sym.(symtree.Container); ok {
				total += Count(c)
			}
		}
	}
	return total
}

// Describe returns a short label such as "class User (user.java:7)".
func Describe(sym symtree.Symbol) string {
	var label string
	switch d := sym.(type) {
	case *Type:
		label = fmt.Sprintf("%s %s (%s:%d)", d.kind, d.name, d.File, d.Line)
	case *Member:
		label = fmt.Sprintf("%s %s (%s:%d)", d.kind, d.name, d.File, d.Line)
	case Declaration:
		label = string(d.Kind()) + " " + d.Name()
	default:
		label = sym.Name()
	}
	return label
}

var (
	_ symtree.Container = (*Namespace)(nil)
	_ symtree.Container = (*Type)(nil)
	_ Declaration       = (*Member)(nil)
)
