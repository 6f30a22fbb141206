// Package workspace tracks the projects and reference libraries a user is
// working with, decides which project indexes stay in memory and runs
// name searches across everything in scope.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/dominikbraun/graph"
	"github.com/google/uuid"
	"github.com/mvp-joe/declindex/internal/cache"
	"github.com/mvp-joe/declindex/internal/git"
	"github.com/mvp-joe/declindex/internal/project"
	"github.com/mvp-joe/declindex/internal/symtree"
)

var (
	ErrUnknownProject  = errors.New("unknown project")
	ErrUnknownSession  = errors.New("unknown session")
	ErrDependencyCycle = errors.New("dependency would create a cycle")
)

// Options configures New.
type Options struct {
	// Cache configures the index manager. Its Retention is replaced by the
	// workspace.
	Cache cache.Options

	// Git resolves project keys and session branches.
	Git git.Operations

	// Project is the template for every added project; ID is always
	// derived from the project's location.
	Project project.Options

	// RetainClosed keeps indexes of closed projects in memory.
	RetainClosed bool

	// MaxResults caps the matches of one search; 0 means no cap.
	MaxResults int

	Logger *slog.Logger
}

// Workspace is the set of known projects, their dependencies and
// libraries, and the sessions searching them.
type Workspace struct {
	manager      *cache.Manager
	git          git.Operations
	projectOpts  project.Options
	retainClosed bool
	maxResults   int
	logger       *slog.Logger

	mu       sync.RWMutex
	projects map[string]*entry
	deps     graph.Graph[string, string] // dependent -> dependency
	sessions map[uuid.UUID]*Session
}

// entry is one project with the state the workspace keeps for it.
type entry struct {
	project   *project.Project
	libraries []*project.Library
	open      bool

	snapMu sync.Mutex
	snap   *project.Snapshot
}

// New creates an empty workspace.
func New(opts Options) (*Workspace, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gitOps := opts.Git
	if gitOps == nil {
		gitOps = git.NewOperations()
	}

	w := &Workspace{
		git:          gitOps,
		projectOpts:  opts.Project,
		retainClosed: opts.RetainClosed,
		maxResults:   opts.MaxResults,
		logger:       logger,
		projects:     make(map[string]*entry),
		deps:         graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles()),
		sessions:     make(map[uuid.UUID]*Session),
	}

	cacheOpts := opts.Cache
	cacheOpts.Retention = w
	if cacheOpts.Logger == nil {
		cacheOpts.Logger = logger
	}
	manager, err := cache.NewManager(cacheOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create index manager: %w", err)
	}
	w.manager = manager
	return w, nil
}

// Close releases the in-memory indexes. The persistent store belongs to
// the caller.
func (w *Workspace) Close() {
	w.manager.Close()
}

// Manager exposes the index manager, mostly for statistics.
func (w *Workspace) Manager() *cache.Manager {
	return w.manager
}

// AddProject registers the project rooted at dir and returns it. Adding the
// same directory twice returns the existing project. New projects start
// closed.
func (w *Workspace) AddProject(dir string) (*project.Project, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project dir: %w", err)
	}
	id := cache.ProjectKey(absDir, w.git)

	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.projects[id]; ok {
		return e.project, nil
	}

	opts := w.projectOpts
	opts.ID = id
	if opts.Logger == nil {
		opts.Logger = w.logger
	}
	p, err := project.Open(absDir, opts)
	if err != nil {
		return nil, err
	}
	if err := w.deps.AddVertex(id); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
		return nil, fmt.Errorf("failed to add project %s: %w", id, err)
	}
	w.projects[id] = &entry{project: p}
	w.logger.Debug("added project", "id", id, "dir", absDir)
	return p, nil
}

// Project returns the registered project with the given ID.
func (w *Workspace) Project(id string) (*project.Project, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProject, id)
	}
	return e.project, nil
}

// Projects returns every registered project sorted by ID.
func (w *Workspace) Projects() []*project.Project {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*project.Project, 0, len(w.projects))
	for _, id := range w.sortedIDsLocked() {
		out = append(out, w.projects[id].project)
	}
	return out
}

// AddDependency records that dependent uses dependency. Dependencies of
// open projects are searched and kept in memory with them.
func (w *Workspace) AddDependency(dependent, dependency string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.deps.AddEdge(dependent, dependency)
	switch {
	case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
		return nil
	case errors.Is(err, graph.ErrVertexNotFound):
		return fmt.Errorf("%w: %s -> %s", ErrUnknownProject, dependent, dependency)
	case errors.Is(err, graph.ErrEdgeCreatesCycle):
		return fmt.Errorf("%w: %s -> %s", ErrDependencyCycle, dependent, dependency)
	default:
		return fmt.Errorf("failed to add dependency: %w", err)
	}
}

// Dependencies returns the direct dependencies of id sorted by ID.
func (w *Workspace) Dependencies(id string) ([]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	adjacency, err := w.deps.AdjacencyMap()
	if err != nil {
		return nil, err
	}
	edges, ok := adjacency[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProject, id)
	}
	out := make([]string, 0, len(edges))
	for target := range edges {
		out = append(out, target)
	}
	slices.Sort(out)
	return out, nil
}

// AddLibrary attaches a reference library to a project. A library with the
// same path replaces the previous one.
func (w *Workspace) AddLibrary(projectID string, lib *project.Library) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.projects[projectID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProject, projectID)
	}
	for i, existing := range e.libraries {
		if existing.Path == lib.Path {
			e.libraries[i] = lib
			return nil
		}
	}
	e.libraries = append(e.libraries, lib)
	return nil
}

// Libraries returns the libraries attached to a project.
func (w *Workspace) Libraries(projectID string) ([]*project.Library, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProject, projectID)
	}
	return slices.Clone(e.libraries), nil
}

// OpenProject marks a project as being worked on.
func (w *Workspace) OpenProject(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.projects[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProject, id)
	}
	e.open = true
	return nil
}

// CloseProject marks a project as closed and drops the in-memory indexes
// of every project that is no longer retained.
func (w *Workspace) CloseProject(id string) error {
	w.mu.Lock()
	e, ok := w.projects[id]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownProject, id)
	}
	e.open = false
	var released []string
	for _, pid := range w.sortedIDsLocked() {
		if !w.retainedLocked(pid) {
			released = append(released, pid)
		}
	}
	w.mu.Unlock()

	for _, pid := range released {
		w.manager.DropProject(pid)
	}
	return nil
}

// ShouldRetain reports whether the index of projectID stays in memory: the
// project is open, or an open project depends on it.
func (w *Workspace) ShouldRetain(projectID string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.retainedLocked(projectID)
}

func (w *Workspace) retainedLocked(projectID string) bool {
	if w.retainClosed {
		return true
	}
	return slices.Contains(w.scopeLocked(), projectID)
}

// scopeLocked returns the open projects and everything they depend on,
// sorted by ID.
func (w *Workspace) scopeLocked() []string {
	seen := make(map[string]bool)
	for _, id := range w.sortedIDsLocked() {
		if !w.projects[id].open || seen[id] {
			continue
		}
		_ = graph.BFS(w.deps, id, func(reached string) bool {
			seen[reached] = true
			return false
		})
	}
	scope := make([]string, 0, len(seen))
	for id := range seen {
		scope = append(scope, id)
	}
	slices.Sort(scope)
	return scope
}

func (w *Workspace) sortedIDsLocked() []string {
	ids := make([]string, 0, len(w.projects))
	for id := range w.projects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// snapshot returns the current snapshot of e, reusing the previous one
// while the version is unchanged so its loaded hierarchy is kept.
func (e *entry) snapshot(ctx context.Context) (*project.Snapshot, error) {
	snap, err := e.project.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	if e.snap != nil && e.snap.Version() == snap.Version() {
		return e.snap, nil
	}
	e.snap = snap
	return snap, nil
}

// Snapshot returns the current snapshot of a project. While the project is
// unchanged, later index requests reuse this snapshot and its hierarchy.
func (w *Workspace) Snapshot(ctx context.Context, projectID string) (*project.Snapshot, error) {
	w.mu.RLock()
	e, ok := w.projects[projectID]
	w.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProject, projectID)
	}
	return e.snapshot(ctx)
}

// ProjectIndex returns the index of a project on the session's branch.
func (w *Workspace) ProjectIndex(ctx context.Context, sess *Session, projectID string) (*symtree.Index, cache.Source, error) {
	w.mu.RLock()
	e, ok := w.projects[projectID]
	w.mu.RUnlock()
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownProject, projectID)
	}
	idx, _, src, err := w.projectIndex(ctx, sess, e)
	return idx, src, err
}

func (w *Workspace) projectIndex(ctx context.Context, sess *Session, e *entry) (*symtree.Index, *project.Snapshot, cache.Source, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	idx, src, err := w.manager.ProjectIndex(ctx, sess.Branch, e.project.ID, snap)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to index %s: %w", e.project.ID, err)
	}
	return idx, snap, src, nil
}

// Refreshed reports the outcome of refreshing one project.
type Refreshed struct {
	ProjectID string
	Source    cache.Source
	Nodes     int
}

// Refresh brings the index of every project in scope up to date for the
// session's branch.
func (w *Workspace) Refresh(ctx context.Context, sess *Session) ([]Refreshed, error) {
	var out []Refreshed
	for _, e := range w.scope() {
		idx, _, src, err := w.projectIndex(ctx, sess, e)
		if err != nil {
			return out, err
		}
		out = append(out, Refreshed{ProjectID: e.project.ID, Source: src, Nodes: idx.Len()})
	}
	return out, nil
}

func (w *Workspace) scope() []*entry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ids := w.scopeLocked()
	out := make([]*entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.projects[id])
	}
	return out
}
