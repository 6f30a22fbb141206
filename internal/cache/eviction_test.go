package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvp-joe/declindex/internal/git"
	"github.com/mvp-joe/declindex/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for eviction:
// - DefaultEvictionPolicy returns expected values
// - normalizeGitBranches handles markers, remotes and HEAD pointers
// - candidates exclude protected branches and the current branch
// - branches missing from git are evicted first, unless git itself failed
// - branches older than MaxAgeDays are evicted
// - oldest branches are evicted until the project fits MaxSizeMB
// - other projects' entries are untouched
// - Clear removes entries by prefix
// - a held lock makes eviction wait for the context

func TestDefaultEvictionPolicy(t *testing.T) {
	t.Parallel()

	policy := DefaultEvictionPolicy()
	assert.Equal(t, 30, policy.MaxAgeDays)
	assert.Equal(t, 500.0, policy.MaxSizeMB)
	assert.Equal(t, []string{"main", "master"}, policy.ProtectBranches)
}

func TestNormalizeGitBranches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    []string
		expected map[string]bool
	}{
		{
			name: "current branch marker",
			input: []string{
				"* main",
				"  feature-x",
			},
			expected: map[string]bool{
				"main":      true,
				"feature-x": true,
			},
		},
		{
			name: "remote branches",
			input: []string{
				"main",
				"remotes/origin/develop",
				"remotes/origin/feature-y",
			},
			expected: map[string]bool{
				"main":      true,
				"develop":   true,
				"feature-y": true,
			},
		},
		{
			name: "skip HEAD pointers",
			input: []string{
				"main",
				"remotes/origin/HEAD -> origin/main",
			},
			expected: map[string]bool{
				"main": true,
			},
		},
		{
			name: "skip non-origin remotes",
			input: []string{
				"main",
				"remotes/upstream/develop",
			},
			expected: map[string]bool{
				"main": true,
			},
		},
		{
			name:     "empty list",
			input:    []string{},
			expected: map[string]bool{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := normalizeGitBranches(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestBuildEvictionCandidates(t *testing.T) {
	t.Parallel()

	prefix := ProjectEntriesPrefix("k")
	now := time.Now()
	entries := []storage.EntryInfo{
		{Key: prefix + "main", Size: 10, UpdatedAt: now},
		{Key: prefix + "develop", Size: 5, UpdatedAt: now},
		{Key: prefix + "feature/x", Size: 3, UpdatedAt: now},
		{Key: prefix + "current", Size: 3, UpdatedAt: now},
		{Key: prefix + "gone", Size: 1, UpdatedAt: now},
	}
	gitBranches := map[string]bool{"main": true, "develop": true, "feature/x": true, "current": true}
	policy := EvictionPolicy{ProtectBranches: []string{"main", "develop"}}

	candidates := buildEvictionCandidates(entries, prefix, gitBranches, true, policy, "current")
	require.Len(t, candidates, 2)
	assert.Equal(t, "feature/x", candidates[0].name)
	assert.False(t, candidates[0].deleted)
	assert.Equal(t, "gone", candidates[1].name)
	assert.True(t, candidates[1].deleted)

	unknown := buildEvictionCandidates(entries, prefix, nil, false, policy, "current")
	for _, c := range unknown {
		assert.False(t, c.deleted, "%s must not count as deleted without git", c.name)
	}
}

func newEvictionFixture(t *testing.T) (*memStore, *git.MockGitOps, *Evictor) {
	t.Helper()
	store := newMemStore()
	mock := git.NewMockGitOps()
	mock.CurrentBranch = "main"
	mock.Branches = []string{"* main", "  feature-a", "  feature-b"}
	return store, mock, &Evictor{
		Store:    store,
		Git:      mock,
		LockPath: filepath.Join(t.TempDir(), "evict.lock"),
		Policy:   DefaultEvictionPolicy(),
	}
}

func TestEvictStaleBranches_DeletedAndOld(t *testing.T) {
	t.Parallel()

	store, _, evictor := newEvictionFixture(t)
	now := time.Now()
	store.put(ProjectEntryKey("k", "main"), []byte("m"), now.Add(-90*24*time.Hour))
	store.put(ProjectEntryKey("k", "feature-a"), []byte("a"), now.Add(-1*time.Hour))
	store.put(ProjectEntryKey("k", "feature-b"), []byte("b"), now.Add(-45*24*time.Hour))
	store.put(ProjectEntryKey("k", "removed"), []byte("r"), now)
	store.put(ProjectEntryKey("other", "removed"), []byte("o"), now)

	result, err := evictor.EvictStaleBranches(context.Background(), "k", "/repo")
	require.NoError(t, err)

	assert.Equal(t, []string{"removed", "feature-b"}, result.EvictedBranches)
	assert.True(t, store.has(ProjectEntryKey("k", "main")), "protected even when old")
	assert.True(t, store.has(ProjectEntryKey("k", "feature-a")))
	assert.False(t, store.has(ProjectEntryKey("k", "feature-b")))
	assert.True(t, store.has(ProjectEntryKey("other", "removed")), "other projects are untouched")
	assert.Greater(t, result.FreedMB, 0.0)
}

func TestEvictStaleBranches_SizeLimit(t *testing.T) {
	t.Parallel()

	store, mock, evictor := newEvictionFixture(t)
	mock.Branches = []string{"* main", "  a", "  b", "  c"}
	evictor.Policy = EvictionPolicy{MaxSizeMB: 2.5}

	mb := make([]byte, 1024*1024)
	now := time.Now()
	store.put(ProjectEntryKey("k", "a"), mb, now.Add(-3*time.Hour))
	store.put(ProjectEntryKey("k", "b"), mb, now.Add(-2*time.Hour))
	store.put(ProjectEntryKey("k", "c"), mb, now.Add(-1*time.Hour))
	store.put(ProjectEntryKey("k", "main"), mb, now)

	result, err := evictor.EvictStaleBranches(context.Background(), "k", "/repo")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, result.EvictedBranches)
	assert.InDelta(t, 2.0, result.RemainingMB, 0.001)
	assert.InDelta(t, 2.0, result.FreedMB, 0.001)
}

func TestEvictStaleBranches_GitFailureKeepsBranches(t *testing.T) {
	t.Parallel()

	store, mock, evictor := newEvictionFixture(t)
	mock.BranchesError = errStoreDown
	store.put(ProjectEntryKey("k", "feature-z"), []byte("z"), time.Now())

	result, err := evictor.EvictStaleBranches(context.Background(), "k", "/repo")
	require.NoError(t, err)
	assert.Empty(t, result.EvictedBranches)
	assert.True(t, store.has(ProjectEntryKey("k", "feature-z")))
}

func TestEvictor_Clear(t *testing.T) {
	t.Parallel()

	store, _, evictor := newEvictionFixture(t)
	now := time.Now()
	store.put(ProjectEntryKey("k", "main"), []byte("m"), now)
	store.put(ProjectEntryKey("k", "dev"), []byte("d"), now)
	store.put(LibraryEntryKey("/lib", "c"), []byte("l"), now)

	n, err := evictor.Clear(context.Background(), ProjectEntriesPrefix("k"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, store.has(LibraryEntryKey("/lib", "c")))

	n, err = evictor.Clear(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEvictor_LockHeld(t *testing.T) {
	t.Parallel()

	_, _, evictor := newEvictionFixture(t)
	ctx := context.Background()

	unlock, err := evictor.lock(ctx)
	require.NoError(t, err)
	defer unlock()

	other := &Evictor{Store: evictor.Store, Git: evictor.Git, LockPath: evictor.LockPath}
	waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = other.EvictStaleBranches(waitCtx, "k", "/repo")
	assert.Error(t, err)
}
