package decl

import (
	"context"
	"strings"
)

// FormatRevision changes whenever a loader starts producing a different
// hierarchy for the same input, so that persisted indexes are rebuilt.
const FormatRevision = 3

// Parser extracts declarations from one source file.
type Parser interface {
	// Language returns a short language name such as "java".
	Language() string
	// Extensions returns the file extensions handled, with leading dots.
	Extensions() []string
	// Parse returns the declarations of file, grouped by namespace. file is
	// the slash-separated path relative to the project root.
	Parse(ctx context.Context, file string, source []byte) ([]*Unit, error)
}

// Unit is the set of declarations one file contributes to one namespace.
type Unit struct {
	File      string
	Namespace []string
	Types     []*Type
	Members   []*Member
	Attached  []Attachment
}

// Attachment is a member declared outside the body of its type, such as a
// Go method or a Rust impl item. It is attached to the first type with the
// matching name in the unit's namespace once all files are assembled.
type Attachment struct {
	TypeName string
	Member   *Member
}

func (u *Unit) AddType(t *Type) *Type {
	u.Types = append(u.Types, t)
	return t
}

func (u *Unit) AddMember(m *Member) *Member {
	u.Members = append(u.Members, m)
	return m
}

// Attach records m as belonging to the type typeName.
func (u *Unit) Attach(typeName string, m *Member) {
	u.Attached = append(u.Attached, Attachment{TypeName: typeName, Member: m})
}

func (u *Unit) empty() bool {
	return len(u.Types) == 0 && len(u.Members) == 0 && len(u.Attached) == 0
}

// sink receives declarations; both units and types are sinks.
type sink interface {
	AddType(t *Type) *Type
	AddMember(m *Member) *Member
}

// unitSet hands out one unit per namespace for a single file.
type unitSet struct {
	file   string
	list   []*Unit
	byPath map[string]*Unit
}

func newUnitSet(file string) *unitSet {
	return &unitSet{file: file, byPath: make(map[string]*Unit)}
}

func (s *unitSet) at(path []string) *Unit {
	key := strings.Join(path, "\x00")
	if u, ok := s.byPath[key]; ok {
		return u
	}
	u := &Unit{File: s.file, Namespace: append([]string(nil), path...)}
	s.byPath[key] = u
	s.list = append(s.list, u)
	return u
}

// units returns the non-empty units in creation order.
func (s *unitSet) units() []*Unit {
	out := make([]*Unit, 0, len(s.list))
	for _, u := range s.list {
		if !u.empty() {
			out = append(out, u)
		}
	}
	return out
}

// Assemble merges units into a fresh hierarchy. Units are applied in order
// and attachments are resolved after every type has been declared.
func Assemble(units []*Unit) *Namespace {
	root := NewRoot()
	type pending struct {
		ns *Namespace
		at Attachment
	}
	var attachments []pending

	for _, u := range units {
		ns := root.Nested(u.Namespace...)
		for _, t := range u.Types {
			ns.AddType(t)
		}
		for _, m := range u.Members {
			ns.AddMember(m)
		}
		for _, a := range u.Attached {
			attachments = append(attachments, pending{ns: ns, at: a})
		}
	}

	for _, p := range attachments {
		types := p.ns.TypesNamed(p.at.TypeName)
		if len(types) == 0 {
			// The receiver is declared outside the loaded files.
			types = []*Type{p.ns.AddType(NewType(p.at.TypeName, KindTypeAlias, p.at.Member.Location))}
		}
		types[0].AddMember(p.at.Member)
	}
	return root
}
