package symtree

import (
	"strings"
	"unicode/utf8"
)

// maxEditDistance is the largest number of edits a fuzzy match may need.
func maxEditDistance(query string) int {
	n := utf8.RuneCountInString(query)
	switch {
	case n <= 3:
		return 0
	case n <= 5:
		return 1
	case n <= 8:
		return 2
	default:
		return 3
	}
}

// FindFuzzy returns the positions of nodes whose names are close to name:
// equal ignoring case, or within a small edit distance that grows with the
// length of the query. Misspellings of short names are not tolerated.
func (x *Index) FindFuzzy(name string) []int {
	if name == "" {
		return nil
	}
	limit := maxEditDistance(name)
	query := strings.ToLower(name)

	var positions []int
	for _, candidate := range x.distinctNames() {
		if CompareIgnoreCase(candidate, name) == 0 {
			positions = append(positions, x.FindNodes(candidate, false)...)
			continue
		}
		if limit == 0 {
			continue
		}
		if abs(utf8.RuneCountInString(candidate)-utf8.RuneCountInString(name)) > limit {
			continue
		}
		if boundedLevenshtein(strings.ToLower(candidate), query, limit) <= limit {
			positions = append(positions, x.FindNodes(candidate, false)...)
		}
	}
	return positions
}

// distinctNames lazily collects each distinct name once, in index order.
func (x *Index) distinctNames() []string {
	x.spellingOnce.Do(func() {
		var names []string
		for _, n := range x.nodes {
			if n.IsRoot() || n.Name == "" {
				continue
			}
			if len(names) > 0 && names[len(names)-1] == n.Name {
				continue
			}
			names = append(names, n.Name)
		}
		x.spelling = names
	})
	return x.spelling
}

// boundedLevenshtein computes the edit distance between a and b, giving up
// with limit+1 as soon as every cell of a row exceeds limit.
func boundedLevenshtein(a, b string, limit int) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, curr[j])
		}
		if rowMin > limit {
			return limit + 1
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
