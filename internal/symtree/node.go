// Package symtree implements the symbol declaration index: a flat, sorted
// array of declared names that answers "does a declaration named X exist"
// and "which declarations match" without walking the declaration hierarchy.
//
// An Index is built once per hierarchy snapshot (identified by a Version),
// is immutable afterwards and is safe for concurrent readers. Matches are
// turned back into live declarations by binding them against a Container.
package symtree

import "unique"

// RootParentIndex is the parent index stored on the synthetic root node.
const RootParentIndex = -1

// Node names one distinct declared entity at some level of the hierarchy.
// Entities that share a name under the same parent share a single node.
type Node struct {
	Name        string
	ParentIndex int
}

// IsRoot reports whether n is the synthetic root of the hierarchy.
func (n Node) IsRoot() bool {
	return n.ParentIndex == RootParentIndex
}

// Symbol is a declared entity as seen by the index.
type Symbol interface {
	Name() string
}

// Container is a declaration that owns named members, such as a namespace
// or a type. Symbols that implement Container are recursed into when the
// index is built and when matches are bound.
type Container interface {
	// MemberNames returns the distinct names of the immediate members.
	MemberNames() []string

	// MembersNamed returns every immediate member with the given name.
	MembersNamed(name string) []Symbol
}

// Version identifies one snapshot of a declaration hierarchy.
type Version string

// CanReuse reports whether an index persisted under the given version is
// still valid for v.
func (v Version) CanReuse(persisted Version) bool {
	return v == persisted
}

func intern(s string) string {
	return unique.Make(s).Value()
}
