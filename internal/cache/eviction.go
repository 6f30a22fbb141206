package cache

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/mvp-joe/declindex/internal/git"
	"github.com/mvp-joe/declindex/internal/storage"
)

// EvictionPolicy controls which persisted branch indexes get evicted.
type EvictionPolicy struct {
	MaxAgeDays      int      // Delete branches older than this (default: 30)
	MaxSizeMB       float64  // Delete oldest until under this (default: 500)
	ProtectBranches []string // Never delete (default: ["main", "master"])
}

// DefaultEvictionPolicy returns the default eviction policy.
func DefaultEvictionPolicy() EvictionPolicy {
	return EvictionPolicy{
		MaxAgeDays:      30,
		MaxSizeMB:       500,
		ProtectBranches: []string{"main", "master"},
	}
}

// EvictionResult contains statistics about an eviction run.
type EvictionResult struct {
	EvictedBranches []string
	FreedMB         float64
	RemainingMB     float64
	Duration        time.Duration
}

// Evictor removes stale persisted project indexes. The lock file keeps
// concurrent processes from evicting the same store at once.
type Evictor struct {
	Store    storage.Store
	Git      git.Operations
	LockPath string
	Policy   EvictionPolicy
}

// EvictStaleBranches removes old or deleted branches of one project.
//
// Eviction criteria (in order):
//  1. Branches deleted in git (no longer exist)
//  2. Branches older than MaxAgeDays (not written recently)
//  3. Oldest branches while the project's total size exceeds MaxSizeMB
//
// Protected branches and the current branch are never evicted.
func (e *Evictor) EvictStaleBranches(ctx context.Context, projectKey, projectPath string) (*EvictionResult, error) {
	startTime := time.Now()

	unlock, err := e.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	prefix := ProjectEntriesPrefix(projectKey)
	entries, err := e.Store.Entries(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached branches: %w", err)
	}

	var totalMB float64
	for _, entry := range entries {
		totalMB += bytesToMB(entry.Size)
	}

	gitBranches, err := e.Git.GetBranches(projectPath)
	gitKnown := err == nil
	if err != nil {
		// Without a branch list nothing counts as deleted.
		log.Printf("Warning: Could not get git branches: %v", err)
	}

	candidates := buildEvictionCandidates(entries, prefix, normalizeGitBranches(gitBranches), gitKnown, e.Policy, e.Git.GetCurrentBranch(projectPath))

	// Deleted branches first, then oldest first.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].deleted != candidates[j].deleted {
			return candidates[i].deleted
		}
		return candidates[i].lastAccessed.Before(candidates[j].lastAccessed)
	})

	result := &EvictionResult{EvictedBranches: []string{}}
	for _, candidate := range candidates {
		shouldEvict := candidate.deleted

		if !shouldEvict && e.Policy.MaxAgeDays > 0 {
			age := time.Since(candidate.lastAccessed)
			shouldEvict = age > time.Duration(e.Policy.MaxAgeDays)*24*time.Hour
		}

		if !shouldEvict && e.Policy.MaxSizeMB > 0 {
			shouldEvict = totalMB > e.Policy.MaxSizeMB
		}

		if !shouldEvict {
			continue
		}
		if err := e.Store.Delete(ctx, candidate.key); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("Warning: Failed to evict branch %s: %v", candidate.name, err)
			continue
		}
		result.EvictedBranches = append(result.EvictedBranches, candidate.name)
		result.FreedMB += candidate.sizeMB
		totalMB -= candidate.sizeMB
	}

	result.RemainingMB = totalMB
	result.Duration = time.Since(startTime)
	return result, nil
}

// Clear deletes every persisted entry whose key starts with prefix and
// returns how many were removed.
func (e *Evictor) Clear(ctx context.Context, prefix string) (int, error) {
	unlock, err := e.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	entries, err := e.Store.Entries(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list entries: %w", err)
	}
	for i, entry := range entries {
		if err := e.Store.Delete(ctx, entry.Key); err != nil {
			return i, err
		}
	}
	return len(entries), nil
}

// lock takes the cross-process eviction lock, waiting until ctx is done.
func (e *Evictor) lock(ctx context.Context) (func(), error) {
	if e.LockPath == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(e.LockPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fileLock := flock.New(e.LockPath)
	locked, err := fileLock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire eviction lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("eviction lock %s is held by another process", e.LockPath)
	}
	return func() {
		if err := fileLock.Unlock(); err != nil {
			log.Printf("Warning: failed to release eviction lock: %v", err)
		}
	}, nil
}

// evictionCandidate represents a branch that might be evicted.
type evictionCandidate struct {
	key          string
	name         string
	lastAccessed time.Time
	sizeMB       float64
	deleted      bool // True if branch no longer exists in git
}

// buildEvictionCandidates identifies branches that could be evicted.
// Excludes protected branches and the current branch.
func buildEvictionCandidates(
	entries []storage.EntryInfo,
	prefix string,
	gitBranches map[string]bool,
	gitKnown bool,
	policy EvictionPolicy,
	currentBranch string,
) []evictionCandidate {
	protectedSet := make(map[string]bool)
	for _, branch := range policy.ProtectBranches {
		protectedSet[branch] = true
	}

	candidates := []evictionCandidate{}
	for _, entry := range entries {
		branch := strings.TrimPrefix(entry.Key, prefix)
		if branch == currentBranch || protectedSet[branch] {
			continue
		}
		candidates = append(candidates, evictionCandidate{
			key:          entry.Key,
			name:         branch,
			lastAccessed: entry.UpdatedAt,
			sizeMB:       bytesToMB(entry.Size),
			deleted:      gitKnown && !gitBranches[branch],
		})
	}
	return candidates
}

// normalizeGitBranches converts git branch output to a set of normalized branch names.
// Strips markers like "* ", "remotes/origin/", etc.
//
// Examples:
//   - "* main" → "main"
//   - "  feature-x" → "feature-x"
//   - "remotes/origin/develop" → "develop"
func normalizeGitBranches(gitBranches []string) map[string]bool {
	branchSet := make(map[string]bool)

	for _, branch := range gitBranches {
		normalized := strings.TrimSpace(branch)
		normalized = strings.TrimPrefix(normalized, "* ")
		normalized = strings.TrimSpace(normalized)

		if strings.HasPrefix(normalized, "remotes/origin/") {
			normalized = strings.TrimPrefix(normalized, "remotes/origin/")
		} else if strings.HasPrefix(normalized, "remotes/") {
			continue
		}

		// Skip HEAD pointers
		if strings.Contains(normalized, "HEAD") {
			continue
		}

		if normalized != "" {
			branchSet[normalized] = true
		}
	}

	return branchSet
}

func bytesToMB(n int64) float64 {
	return float64(n) / (1024 * 1024)
}
