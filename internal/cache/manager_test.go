package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/mvp-joe/declindex/internal/symtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Manager project indexes:
// - the first request rebuilds and persists, the second is served from memory
// - a new version forces a rebuild
// - a fresh manager over the same store reuses the persisted index without loading declarations
// - persisted entries with another version, a corrupt payload or a foreign format tag are rebuilt and overwritten
// - store read and write failures are not fatal; the rebuilt index is still served
// - the retention policy keeps unretained projects out of memory
// - branches are isolated in memory and in the store
// - cancellation aborts before rebuilding and never writes
// - state transitions follow NoEntry → Rebuilding → Built → Persisting → Valid
// - an absent hierarchy yields an empty index; a failed load is an error
// - concurrent requests all succeed with equivalent indexes
// - DropProject and DropBranch clear memory only

func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	m, err := NewManager(opts)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestManager_RebuildThenMemory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	m := newTestManager(t, Options{Store: store})
	snap := sampleSnapshot("v1")

	idx, src, err := m.ProjectIndex(ctx, "main", "p1", snap)
	require.NoError(t, err)
	assert.Equal(t, SourceRebuilt, src)
	assert.Equal(t, 6, idx.Len())
	assert.Len(t, idx.FindNodes("A", false), 2)
	assert.True(t, store.has(ProjectEntryKey("p1", "main")))

	again, src, err := m.ProjectIndex(ctx, "main", "p1", snap)
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, src)
	assert.Same(t, idx, again)
	assert.Equal(t, 1, snap.loadCount())
}

func TestManager_NewVersionRebuilds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newTestManager(t, Options{Store: newMemStore()})

	_, _, err := m.ProjectIndex(ctx, "main", "p1", sampleSnapshot("v1"))
	require.NoError(t, err)

	next := sampleSnapshot("v2")
	idx, src, err := m.ProjectIndex(ctx, "main", "p1", next)
	require.NoError(t, err)
	assert.Equal(t, SourceRebuilt, src)
	assert.Equal(t, symtree.Version("v2"), idx.Version())
	assert.Equal(t, 1, next.loadCount())
}

func TestManager_PersistedReuse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()

	first := newTestManager(t, Options{Store: store})
	built, _, err := first.ProjectIndex(ctx, "main", "p1", sampleSnapshot("v1"))
	require.NoError(t, err)

	second := newTestManager(t, Options{Store: store})
	snap := sampleSnapshot("v1")
	idx, src, err := second.ProjectIndex(ctx, "main", "p1", snap)
	require.NoError(t, err)
	assert.Equal(t, SourcePersisted, src)
	assert.Equal(t, 0, snap.loadCount(), "declarations are not loaded for a persisted hit")
	assert.True(t, symtree.IsEquivalent(built, idx))

	_, src, err = second.ProjectIndex(ctx, "main", "p1", snap)
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, src, "persisted hits are retained")
}

func TestManager_UnusablePersistedEntries(t *testing.T) {
	t.Parallel()

	other, err := symtree.Build(context.Background(), "v0", sampleSnapshot("v0").root)
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload []byte
	}{
		{"stale version", symtree.Encode(other)},
		{"corrupt", []byte{0x05, 'j', 'u', 'n', 'k'}},
		{"foreign format", append([]byte{byte(len("other/9"))}, "other/9"...)},
		{"empty", []byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := newMemStore()
			key := ProjectEntryKey("p1", "main")
			store.put(key, tt.payload, store.now())

			m := newTestManager(t, Options{Store: store})
			snap := sampleSnapshot("v1")
			idx, src, err := m.ProjectIndex(ctx, "main", "p1", snap)
			require.NoError(t, err)
			assert.Equal(t, SourceRebuilt, src)
			assert.Equal(t, 1, snap.loadCount())

			data, err := store.Read(ctx, key)
			require.NoError(t, err)
			stored, err := symtree.Decode(data)
			require.NoError(t, err)
			assert.True(t, symtree.IsEquivalent(idx, stored), "entry is overwritten")
		})
	}
}

func TestManager_StoreFailuresAreNotFatal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	store.failRead = errStoreDown
	store.failWrite = errStoreDown
	m := newTestManager(t, Options{Store: store})
	snap := sampleSnapshot("v1")

	idx, src, err := m.ProjectIndex(ctx, "main", "p1", snap)
	require.NoError(t, err)
	assert.Equal(t, SourceRebuilt, src)
	assert.Equal(t, 6, idx.Len())

	_, src, err = m.ProjectIndex(ctx, "main", "p1", snap)
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, src, "the rebuilt index stays in memory")
}

func TestManager_RetentionPolicy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	open := map[string]bool{"kept": true}
	m := newTestManager(t, Options{
		Store:     store,
		Retention: RetentionFunc(func(id string) bool { return open[id] }),
	})

	for _, id := range []string{"kept", "dropped"} {
		_, src, err := m.ProjectIndex(ctx, "main", id, sampleSnapshot("v1"))
		require.NoError(t, err)
		assert.Equal(t, SourceRebuilt, src, id)
	}

	_, src, err := m.ProjectIndex(ctx, "main", "kept", sampleSnapshot("v1"))
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, src)

	_, src, err = m.ProjectIndex(ctx, "main", "dropped", sampleSnapshot("v1"))
	require.NoError(t, err)
	assert.Equal(t, SourcePersisted, src)
}

func TestManager_BranchIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	m := newTestManager(t, Options{Store: store})

	mainIdx, _, err := m.ProjectIndex(ctx, "main", "p1", sampleSnapshot("v1"))
	require.NoError(t, err)
	featureIdx, src, err := m.ProjectIndex(ctx, "feature/x", "p1", sampleSnapshot("v2"))
	require.NoError(t, err)
	assert.Equal(t, SourceRebuilt, src)

	again, src, err := m.ProjectIndex(ctx, "main", "p1", sampleSnapshot("v1"))
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, src)
	assert.Same(t, mainIdx, again)
	assert.NotSame(t, mainIdx, featureIdx)

	assert.True(t, store.has(ProjectEntryKey("p1", "main")))
	assert.True(t, store.has(ProjectEntryKey("p1", "feature/x")))
}

func TestManager_Cancelled(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	m := newTestManager(t, Options{Store: store})
	snap := sampleSnapshot("v1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := m.ProjectIndex(ctx, "main", "p1", snap)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, snap.loadCount())
	_, writes := store.counts()
	assert.Zero(t, writes)
}

func TestManager_Transitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		withStore bool
		want      []Transition
	}{
		{
			name:      "with store",
			withStore: true,
			want: []Transition{
				{Key: memoryKey("main", "p1"), From: StateNoEntry, To: StateRebuilding},
				{Key: memoryKey("main", "p1"), From: StateRebuilding, To: StateBuilt},
				{Key: memoryKey("main", "p1"), From: StateBuilt, To: StatePersisting},
				{Key: memoryKey("main", "p1"), From: StatePersisting, To: StateValid},
				{Key: memoryKey("main", "p1"), From: StateNoEntry, To: StateValid},
			},
		},
		{
			name: "memory only",
			want: []Transition{
				{Key: memoryKey("main", "p1"), From: StateNoEntry, To: StateRebuilding},
				{Key: memoryKey("main", "p1"), From: StateRebuilding, To: StateBuilt},
				{Key: memoryKey("main", "p1"), From: StateBuilt, To: StateValid},
				{Key: memoryKey("main", "p1"), From: StateNoEntry, To: StateValid},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var mu sync.Mutex
			var got []Transition
			opts := Options{Observer: func(tr Transition) {
				mu.Lock()
				got = append(got, tr)
				mu.Unlock()
			}}
			if tt.withStore {
				opts.Store = newMemStore()
			}
			m := newTestManager(t, opts)

			snap := sampleSnapshot("v1")
			for range 2 {
				_, _, err := m.ProjectIndex(context.Background(), "main", "p1", snap)
				require.NoError(t, err)
			}

			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestManager_AbsentAndFailingRoots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newTestManager(t, Options{Store: newMemStore()})

	idx, _, err := m.ProjectIndex(ctx, "main", "empty", &fakeSnapshot{version: "v1"})
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
	assert.False(t, idx.HasAny(func(string) bool { return true }))

	_, _, err = m.ProjectIndex(ctx, "main", "broken", &fakeSnapshot{version: "v1", err: errStoreDown})
	assert.ErrorIs(t, err, errStoreDown)
}

func TestManager_ConcurrentRequests(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newTestManager(t, Options{Store: newMemStore()})
	snap := sampleSnapshot("v1")

	results := make([]*symtree.Index, 8)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx, _, err := m.ProjectIndex(ctx, "main", "p1", snap)
			assert.NoError(t, err)
			results[i] = idx
		}()
	}
	wg.Wait()

	for _, idx := range results[1:] {
		assert.True(t, symtree.IsEquivalent(results[0], idx))
	}
}

func TestManager_Drop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newTestManager(t, Options{Store: newMemStore()})
	for _, branch := range []string{"main", "dev"} {
		for _, id := range []string{"p1", "p2"} {
			_, _, err := m.ProjectIndex(ctx, branch, id, sampleSnapshot("v1"))
			require.NoError(t, err)
		}
	}

	source := func(branch, id string) Source {
		_, src, err := m.ProjectIndex(ctx, branch, id, sampleSnapshot("v1"))
		require.NoError(t, err)
		return src
	}

	m.DropProject("p1")
	assert.Equal(t, SourcePersisted, source("main", "p1"))
	assert.Equal(t, SourcePersisted, source("dev", "p1"))
	assert.Equal(t, SourceMemory, source("main", "p2"))

	m.DropBranch("dev")
	assert.Equal(t, SourcePersisted, source("dev", "p2"))
	assert.Equal(t, SourceMemory, source("main", "p2"))
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no-entry", StateNoEntry.String())
	assert.Equal(t, "persisting", StatePersisting.String())
	assert.Equal(t, "State(42)", State(42).String())
}
