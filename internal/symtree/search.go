package symtree

// HasName reports whether any declaration is named name. With ignoreCase
// the comparison folds case; the array's case-sensitive order keeps all
// case variants of a name in one run, so the same binary search serves both.
func (x *Index) HasName(name string, ignoreCase bool) bool {
	_, ok := x.binarySearch(name, ignoreCase)
	return ok
}

// FindNodes returns the positions of the maximal run of nodes whose names
// equal name under the chosen comparer. The root is never returned.
func (x *Index) FindNodes(name string, ignoreCase bool) []int {
	hit, ok := x.binarySearch(name, ignoreCase)
	if !ok {
		return nil
	}
	compare := comparerFor(ignoreCase)

	start := hit
	for start > 0 && x.matchesAt(start-1, name, compare) {
		start--
	}
	end := hit
	for end+1 < len(x.nodes) && x.matchesAt(end+1, name, compare) {
		end++
	}

	positions := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		if !x.nodes[i].IsRoot() {
			positions = append(positions, i)
		}
	}
	return positions
}

func (x *Index) matchesAt(i int, name string, compare func(a, b string) int) bool {
	return compare(x.nodes[i].Name, name) == 0
}

// binarySearch returns the position of some node matching name.
func (x *Index) binarySearch(name string, ignoreCase bool) (int, bool) {
	compare := comparerFor(ignoreCase)
	lo, hi := 0, len(x.nodes)-1
	for lo <= hi {
		mid := int(uint(lo+hi) >> 1)
		n := x.nodes[mid]
		var c int
		if n.IsRoot() {
			c = -1
		} else {
			c = compare(n.Name, name)
		}
		switch {
		case c == 0:
			return mid, true
		case c < 0:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return 0, false
}

// HasAny reports whether pred accepts the name of any declaration.
func (x *Index) HasAny(pred func(name string) bool) bool {
	found := false
	x.scan(pred, func(int) bool {
		found = true
		return false
	})
	return found
}

// SearchByPredicate returns the positions of all nodes whose name pred
// accepts, in index order.
//
// pred must be a pure function of the name: when a node carries the same
// name as the node just accepted, pred is not called again and the node is
// assumed to match. Indexes configured WithoutPredicateReuse always call it.
func (x *Index) SearchByPredicate(pred func(name string) bool) []int {
	var positions []int
	x.scan(pred, func(i int) bool {
		positions = append(positions, i)
		return true
	})
	return positions
}

func (x *Index) scan(pred func(string) bool, yield func(int) bool) {
	var lastMatch string
	haveMatch := false
	for i, n := range x.nodes {
		if n.IsRoot() || n.Name == "" {
			continue
		}
		if x.reusePredicateMatches && haveMatch && n.Name == lastMatch {
			if !yield(i) {
				return
			}
			continue
		}
		if pred(n.Name) {
			lastMatch, haveMatch = n.Name, true
			if !yield(i) {
				return
			}
		}
	}
}
