package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/maypok86/otter"
	"github.com/mvp-joe/declindex/internal/storage"
	"github.com/mvp-joe/declindex/internal/symtree"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxNodes bounds the in-memory project tier by total node count.
const DefaultMaxNodes = 2_000_000

// State is a step in answering one index request.
type State int

const (
	StateNoEntry State = iota
	StateRebuilding
	StateBuilt
	StatePersisting
	StateValid
)

func (s State) String() string {
	switch s {
	case StateNoEntry:
		return "no-entry"
	case StateRebuilding:
		return "rebuilding"
	case StateBuilt:
		return "built"
	case StatePersisting:
		return "persisting"
	case StateValid:
		return "valid"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Source says where a returned index came from.
type Source string

const (
	SourceMemory    Source = "memory"
	SourcePersisted Source = "persisted"
	SourceRebuilt   Source = "rebuilt"
)

// Transition is reported to Options.Observer for every state change.
type Transition struct {
	Key  string
	From State
	To   State
}

// Snapshot is one version of a project's declarations. Root is only
// called when the index has to be rebuilt.
type Snapshot interface {
	Version() symtree.Version
	Root(ctx context.Context) (symtree.Container, error)
}

// RetentionPolicy decides whether a freshly obtained project index stays in
// memory.
type RetentionPolicy interface {
	ShouldRetain(projectID string) bool
}

// RetentionFunc adapts a function to RetentionPolicy.
type RetentionFunc func(projectID string) bool

// ShouldRetain implements RetentionPolicy.
func (f RetentionFunc) ShouldRetain(projectID string) bool { return f(projectID) }

// Options configures a Manager.
type Options struct {
	// Store persists indexes. Nil keeps indexes in memory only.
	Store storage.Store
	// MaxNodes is the capacity of the in-memory project tier, in nodes.
	MaxNodes int
	// Retention defaults to retaining every project.
	Retention RetentionPolicy
	// IndexOptions apply to every index the manager hands out.
	IndexOptions []symtree.Option
	Logger       *slog.Logger
	// Observer, if set, sees every state transition. It must not block.
	Observer func(Transition)
}

// Manager hands out declaration indexes, reusing them from memory or from
// the persistent store when their version still matches. It holds no lock
// across I/O: concurrent requests for the same entry may rebuild twice, and
// whichever result is stored last wins.
type Manager struct {
	store     storage.Store
	projects  otter.Cache[string, *symtree.Index]
	retention RetentionPolicy
	indexOpts []symtree.Option
	logger    *slog.Logger
	observer  func(Transition)

	libMu     sync.Mutex
	libraries map[libraryKey]libraryEntry
	cleanups  atomic.Int64 // registered and not yet run or stopped
}

// NewManager creates a Manager.
func NewManager(opts Options) (*Manager, error) {
	maxNodes := opts.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	projects, err := otter.MustBuilder[string, *symtree.Index](maxNodes).
		Cost(func(_ string, idx *symtree.Index) uint32 {
			return uint32(max(idx.Len(), 1))
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create project cache: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     opts.Store,
		projects:  projects,
		retention: opts.Retention,
		indexOpts: opts.IndexOptions,
		logger:    logger,
		observer:  opts.Observer,
		libraries: make(map[libraryKey]libraryEntry),
	}, nil
}

// Close releases the in-memory tiers. The store is owned by the caller.
func (m *Manager) Close() {
	m.projects.Close()
	m.libMu.Lock()
	for _, entry := range m.libraries {
		entry.cleanup.Stop()
	}
	clear(m.libraries)
	m.libMu.Unlock()
}

// ProjectIndex returns the index of snap for projectID on branch.
func (m *Manager) ProjectIndex(ctx context.Context, branch, projectID string, snap Snapshot) (*symtree.Index, Source, error) {
	version := snap.Version()
	ctx, span := startSpan(ctx, "ProjectIndex",
		attribute.String("cache.project", projectID),
		attribute.String("cache.branch", branch),
	)
	defer span.End()

	key := memoryKey(branch, projectID)
	if idx, ok := m.projects.Get(key); ok && idx.Version() == version {
		m.transition(span, key, StateNoEntry, StateValid)
		recordHit(ctx, "project", tierMemory)
		return idx, SourceMemory, nil
	}

	storeKey := ProjectEntryKey(projectID, branch)
	persisted, err := m.readPersisted(ctx, storeKey)
	if err != nil {
		return nil, "", err
	}
	if persisted != nil && version.CanReuse(persisted.Version()) {
		m.transition(span, key, StateNoEntry, StateValid)
		recordHit(ctx, "project", tierPersisted)
		m.retain(key, projectID, persisted)
		return persisted, SourcePersisted, nil
	}

	idx, err := m.rebuild(ctx, span, key, "project", version, snap.Root)
	if err != nil {
		return nil, "", err
	}
	if err := m.persist(ctx, span, key, "project", storeKey, idx); err != nil {
		return nil, "", err
	}
	m.retain(key, projectID, idx)
	return idx, SourceRebuilt, nil
}

// rebuild walks the declaration hierarchy into a fresh index.
func (m *Manager) rebuild(ctx context.Context, span trace.Span, key, kind string, version symtree.Version, load func(context.Context) (symtree.Container, error)) (*symtree.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.transition(span, key, StateNoEntry, StateRebuilding)

	root, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load declarations: %w", err)
	}
	idx, err := symtree.Build(ctx, version, root, m.indexOpts...)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		// No hierarchy at all is searched as an empty index.
		idx = symtree.NewEmpty(version).With(m.indexOpts...)
	}

	recordRebuild(ctx, kind)
	m.transition(span, key, StateRebuilding, StateBuilt)
	m.logger.Debug("rebuilt index", "key", key, "nodes", idx.Len())
	return idx, nil
}

// readPersisted returns the decoded entry under storeKey, or nil when there
// is none or it cannot be used. Only cancellation is reported as an error.
func (m *Manager) readPersisted(ctx context.Context, storeKey string) (*symtree.Index, error) {
	if m.store == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := m.store.Read(ctx, storeKey)
	if cerr := ctx.Err(); cerr != nil {
		return nil, cerr
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		m.logger.Warn("failed to read persisted index", "key", storeKey, "error", err)
		return nil, nil
	}

	res := symtree.TryDecode(data)
	if !res.OK() {
		reason := "corrupt"
		if errors.Is(res.Reason, symtree.ErrFormatMismatch) {
			reason = "format"
		}
		recordDecodeFailure(ctx, reason)
		m.logger.Debug("ignoring persisted index", "key", storeKey, "reason", res.Reason)
		return nil, nil
	}
	return res.Index.With(m.indexOpts...), nil
}

// persist writes idx back best-effort. The payload is fully encoded before
// the single write.
func (m *Manager) persist(ctx context.Context, span trace.Span, key, kind, storeKey string, idx *symtree.Index) error {
	if m.store == nil {
		m.transition(span, key, StateBuilt, StateValid)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.transition(span, key, StateBuilt, StatePersisting)

	data := symtree.Encode(idx)
	if err := m.store.Write(ctx, storeKey, data); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		recordPersistFailure(ctx, kind)
		m.logger.Warn("failed to persist index", "key", storeKey, "error", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.transition(span, key, StatePersisting, StateValid)
	return nil
}

// retain keeps idx in memory when the retention policy allows it, and
// otherwise drops any stale entry for the key.
func (m *Manager) retain(key, projectID string, idx *symtree.Index) {
	if m.retention != nil && !m.retention.ShouldRetain(projectID) {
		m.projects.Delete(key)
		return
	}
	m.projects.Set(key, idx)
}

// DropProject removes every in-memory index of projectID.
func (m *Manager) DropProject(projectID string) {
	suffix := "\x00" + projectID
	m.projects.DeleteByFunc(func(key string, _ *symtree.Index) bool {
		return strings.HasSuffix(key, suffix)
	})
}

// DropBranch removes every in-memory project index of branch.
func (m *Manager) DropBranch(branch string) {
	prefix := branch + "\x00"
	m.projects.DeleteByFunc(func(key string, _ *symtree.Index) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// Stats describes the in-memory tiers.
type Stats struct {
	Projects  int
	Libraries int
}

// Stats returns the current in-memory entry counts.
func (m *Manager) Stats() Stats {
	return Stats{
		Projects:  m.projects.Size(),
		Libraries: m.LibraryCount(),
	}
}

func (m *Manager) transition(span trace.Span, key string, from, to State) {
	span.AddEvent("cache.transition", trace.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
	if m.observer != nil {
		m.observer(Transition{Key: key, From: from, To: to})
	}
}
