package symtree

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CompareIgnoreCase orders names rune by rune after simple case folding.
// It is order-compatible with CompareNames: any run of names that are equal
// under CompareIgnoreCase is contiguous in a CompareNames-sorted slice.
func CompareIgnoreCase(a, b string) int {
	for a != "" && b != "" {
		ra, na := utf8.DecodeRuneInString(a)
		rb, nb := utf8.DecodeRuneInString(b)
		if ra != rb {
			fa, fb := foldRune(ra), foldRune(rb)
			if fa != fb {
				if fa < fb {
					return -1
				}
				return 1
			}
		}
		a, b = a[na:], b[nb:]
	}
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}

// CompareNames is the case-sensitive comparer the index is sorted by.
// Names are ordered ignoring case first and then ordinally.
func CompareNames(a, b string) int {
	if c := CompareIgnoreCase(a, b); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// foldRune maps every rune of a case-folding orbit to one representative.
func foldRune(r rune) rune {
	if r < utf8.RuneSelf {
		if 'A' <= r && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}
	return unicode.ToLower(unicode.ToUpper(r))
}

func comparerFor(ignoreCase bool) func(a, b string) int {
	if ignoreCase {
		return CompareIgnoreCase
	}
	return CompareNames
}

// compareNodes orders nodes of an unsorted list: name first, then the
// ancestor chains. The root sorts before every other node.
func compareNodes(nodes []Node, x, y int) int {
	for {
		if x == y {
			return 0
		}
		nx, ny := nodes[x], nodes[y]
		if nx.IsRoot() {
			return -1
		}
		if ny.IsRoot() {
			return 1
		}
		if c := CompareNames(nx.Name, ny.Name); c != 0 {
			return c
		}
		x, y = nx.ParentIndex, ny.ParentIndex
	}
}
