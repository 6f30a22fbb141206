package symtree

import (
	"context"
	"errors"
	"fmt"
)

// SearchKind selects how a Query matches names.
type SearchKind int

const (
	// SearchExact matches names case-sensitively.
	SearchExact SearchKind = iota
	// SearchExactIgnoreCase matches names ignoring case.
	SearchExactIgnoreCase
	// SearchFuzzy matches names within a small edit distance.
	SearchFuzzy
	// SearchCustom matches names accepted by Query.Predicate.
	SearchCustom
)

// String returns the lowercase name of the kind.
func (k SearchKind) String() string {
	switch k {
	case SearchExact:
		return "exact"
	case SearchExactIgnoreCase:
		return "ignore-case"
	case SearchFuzzy:
		return "fuzzy"
	case SearchCustom:
		return "custom"
	default:
		return fmt.Sprintf("SearchKind(%d)", int(k))
	}
}

// ParseSearchKind is the inverse of SearchKind.String.
func ParseSearchKind(s string) (SearchKind, error) {
	for k := SearchExact; k <= SearchCustom; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown search kind %q", s)
}

// ErrMissingPredicate is returned for custom queries without a predicate.
var ErrMissingPredicate = errors.New("custom query requires a predicate")

// Query describes a name search.
type Query struct {
	Kind      SearchKind
	Name      string
	Predicate func(name string) bool
}

// Nodes returns the positions matching q.
func (x *Index) Nodes(q Query) ([]int, error) {
	switch q.Kind {
	case SearchExact:
		return x.FindNodes(q.Name, false), nil
	case SearchExactIgnoreCase:
		return x.FindNodes(q.Name, true), nil
	case SearchFuzzy:
		return x.FindFuzzy(q.Name), nil
	case SearchCustom:
		if q.Predicate == nil {
			return nil, ErrMissingPredicate
		}
		return x.SearchByPredicate(q.Predicate), nil
	default:
		return nil, fmt.Errorf("unsupported search kind %v", q.Kind)
	}
}

// Run executes q and binds the matches against root.
func (x *Index) Run(ctx context.Context, root Container, q Query) ([]Symbol, error) {
	positions, err := x.Nodes(q)
	if err != nil {
		return nil, err
	}
	return x.bindAll(ctx, root, positions)
}
