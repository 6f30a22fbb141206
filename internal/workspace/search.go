package workspace

import (
	"context"
	"fmt"

	"github.com/mvp-joe/declindex/internal/project"
	"github.com/mvp-joe/declindex/internal/symtree"
)

// Match is one declaration found by a search.
type Match struct {
	// Source is the project ID or library path the declaration belongs to.
	Source string
	// Path is the chain of names from the outermost namespace down to the
	// declaration.
	Path   []string
	Symbol symtree.Symbol
}

// Find returns the declarations named name in every project in scope and
// their libraries.
func (w *Workspace) Find(ctx context.Context, sess *Session, name string, ignoreCase bool) ([]Match, error) {
	kind := symtree.SearchExact
	if ignoreCase {
		kind = symtree.SearchExactIgnoreCase
	}
	return w.Search(ctx, sess, symtree.Query{Kind: kind, Name: name})
}

// Search runs q against the open projects, their dependencies and then
// their libraries. Projects are visited in ID order; a library shared by
// several projects is searched once. Hierarchies are only loaded for
// sources whose index has a match.
func (w *Workspace) Search(ctx context.Context, sess *Session, q symtree.Query) ([]Match, error) {
	entries := w.scope()

	var matches []Match
	var libraries []*project.Library
	seenLibs := make(map[string]bool)

	for _, e := range entries {
		idx, snap, _, err := w.projectIndex(ctx, sess, e)
		if err != nil {
			return nil, err
		}
		found, err := bindMatches(ctx, e.project.ID, idx, q, snap.Root)
		if err != nil {
			return nil, err
		}
		matches = append(matches, found...)
		if w.full(matches) {
			return matches[:w.maxResults], nil
		}

		w.mu.RLock()
		for _, lib := range e.libraries {
			if !seenLibs[lib.Path] {
				seenLibs[lib.Path] = true
				libraries = append(libraries, lib)
			}
		}
		w.mu.RUnlock()
	}

	for _, lib := range libraries {
		idx, _, err := w.manager.LibraryIndex(ctx, lib)
		if err != nil {
			return nil, fmt.Errorf("failed to index library %s: %w", lib.Path, err)
		}
		found, err := bindMatches(ctx, lib.Path, idx, q, lib.Root)
		if err != nil {
			return nil, err
		}
		matches = append(matches, found...)
		if w.full(matches) {
			return matches[:w.maxResults], nil
		}
	}
	return matches, nil
}

func (w *Workspace) full(matches []Match) bool {
	return w.maxResults > 0 && len(matches) >= w.maxResults
}

// bindMatches resolves the index positions matching q to declarations,
// loading the hierarchy only when there is something to bind.
func bindMatches(ctx context.Context, source string, idx *symtree.Index, q symtree.Query, load func(context.Context) (symtree.Container, error)) ([]Match, error) {
	positions, err := idx.Nodes(q)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, nil
	}
	root, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", source, err)
	}
	if root == nil {
		return nil, nil
	}

	var out []Match
	for _, i := range positions {
		symbols, err := idx.Bind(ctx, i, root)
		if err != nil {
			return nil, err
		}
		path := idx.Path(i)
		for _, sym := range symbols {
			out = append(out, Match{Source: source, Path: path, Symbol: sym})
		}
	}
	return out, nil
}
