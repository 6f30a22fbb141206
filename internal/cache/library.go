package cache

import (
	"context"
	"runtime"
	"weak"

	"github.com/mvp-joe/declindex/internal/project"
	"github.com/mvp-joe/declindex/internal/symtree"
	"go.opentelemetry.io/otel/attribute"
)

// libraryKey identifies a library by object identity without keeping it
// alive.
type libraryKey = weak.Pointer[project.Library]

// libraryEntry is a cached library index and the cleanup that removes it
// once the library is collected.
type libraryEntry struct {
	idx     *symtree.Index
	cleanup runtime.Cleanup
}

// LibraryIndex returns the index of lib. Libraries never change, so a
// cached or persisted index is reused without a version check. The memory
// entry lives until lib is unreachable or EvictLibrary is called.
func (m *Manager) LibraryIndex(ctx context.Context, lib *project.Library) (*symtree.Index, Source, error) {
	ctx, span := startSpan(ctx, "LibraryIndex",
		attribute.String("cache.library", lib.Path),
	)
	defer span.End()

	key := weak.Make(lib)
	traceKey := LibraryEntryKey(lib.Path, lib.Checksum)

	m.libMu.Lock()
	m.pruneLibrariesLocked()
	entry, ok := m.libraries[key]
	m.libMu.Unlock()
	if ok {
		m.transition(span, traceKey, StateNoEntry, StateValid)
		recordHit(ctx, "library", tierMemory)
		return entry.idx, SourceMemory, nil
	}

	persisted, err := m.readPersisted(ctx, traceKey)
	if err != nil {
		return nil, "", err
	}
	if persisted != nil {
		m.transition(span, traceKey, StateNoEntry, StateValid)
		recordHit(ctx, "library", tierPersisted)
		m.rememberLibrary(lib, key, persisted)
		return persisted, SourcePersisted, nil
	}

	idx, err := m.rebuild(ctx, span, traceKey, "library", symtree.Version(lib.Checksum), lib.Root)
	if err != nil {
		return nil, "", err
	}
	if err := m.persist(ctx, span, traceKey, "library", traceKey, idx); err != nil {
		return nil, "", err
	}
	m.rememberLibrary(lib, key, idx)
	return idx, SourceRebuilt, nil
}

func (m *Manager) rememberLibrary(lib *project.Library, key libraryKey, idx *symtree.Index) {
	m.libMu.Lock()
	defer m.libMu.Unlock()
	if entry, ok := m.libraries[key]; ok {
		entry.idx = idx
		m.libraries[key] = entry
		return
	}
	m.cleanups.Add(1)
	m.libraries[key] = libraryEntry{idx: idx, cleanup: runtime.AddCleanup(lib, m.forgetLibrary, key)}
}

// forgetLibrary runs once lib has become unreachable.
func (m *Manager) forgetLibrary(key libraryKey) {
	m.cleanups.Add(-1)
	m.libMu.Lock()
	defer m.libMu.Unlock()
	if _, ok := m.libraries[key]; ok {
		delete(m.libraries, key)
		recordLibraryEviction(context.Background())
	}
}

// dropLibraryLocked removes an entry and cancels its pending cleanup.
func (m *Manager) dropLibraryLocked(key libraryKey) {
	m.libraries[key].cleanup.Stop()
	m.cleanups.Add(-1)
	delete(m.libraries, key)
	recordLibraryEviction(context.Background())
}

// pruneLibrariesLocked drops entries whose library has been collected but
// whose cleanup has not run yet.
func (m *Manager) pruneLibrariesLocked() {
	for key := range m.libraries {
		if key.Value() == nil {
			delete(m.libraries, key)
			recordLibraryEviction(context.Background())
		}
	}
}

// EvictLibrary drops lib's in-memory index. The persisted entry is kept.
func (m *Manager) EvictLibrary(lib *project.Library) bool {
	key := weak.Make(lib)
	m.libMu.Lock()
	defer m.libMu.Unlock()
	_, ok := m.libraries[key]
	if ok {
		m.dropLibraryLocked(key)
	}
	m.pruneLibrariesLocked()
	return ok
}

// LibraryCount returns the number of live library entries.
func (m *Manager) LibraryCount() int {
	m.libMu.Lock()
	defer m.libMu.Unlock()
	m.pruneLibrariesLocked()
	return len(m.libraries)
}
