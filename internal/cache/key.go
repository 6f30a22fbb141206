package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/mvp-joe/declindex/internal/git"
)

const (
	projectEntryPrefix = "project/"
	libraryEntryPrefix = "library/"
)

// ProjectKey returns the persistent identity of the project at projectPath.
// Format: {remoteHash}-{locationHash}, 8 hex chars each. The location hash
// covers the worktree root and the project's path inside it, so clones of
// the same remote and sibling projects in one repository stay apart.
func ProjectKey(projectPath string, ops git.Operations) string {
	return remoteHash(ops.GetRemoteURL(projectPath)) + "-" + locationHash(projectPath, ops.GetWorktreeRoot(projectPath))
}

// remoteHash returns an 8-char hash of the normalized remote URL.
// Returns "00000000" if no remote is configured.
func remoteHash(remote string) string {
	if remote == "" {
		return "00000000"
	}
	return hashString(normalizeRemoteURL(remote))[:8]
}

// locationHash falls back to the project path itself when the project is
// not inside a worktree.
func locationHash(projectPath, worktreeRoot string) string {
	if worktreeRoot == "" {
		return hashString(filepath.ToSlash(projectPath))[:8]
	}
	rel, err := filepath.Rel(worktreeRoot, projectPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return hashString(filepath.ToSlash(projectPath))[:8]
	}
	return hashString(worktreeRoot + "\x00" + filepath.ToSlash(rel))[:8]
}

// normalizeRemoteURL normalizes git remote URLs to a canonical form.
// Strips protocols, converts SSH format to path format, removes .git suffix.
// Examples:
//   - https://github.com/user/repo.git -> github.com/user/repo
//   - git@github.com:user/repo.git -> github.com/user/repo
func normalizeRemoteURL(remote string) string {
	remote = strings.TrimSpace(remote)

	for _, scheme := range []string{"https://", "http://", "ssh://", "git://"} {
		remote = strings.TrimPrefix(remote, scheme)
	}

	// Strip .git suffix before handling git@ to avoid issues
	remote = strings.TrimSuffix(remote, ".git")

	// git@github.com:user/repo -> github.com/user/repo
	if strings.HasPrefix(remote, "git@") {
		remote = strings.TrimPrefix(remote, "git@")
		remote = strings.Replace(remote, ":", "/", 1)
	}

	return remote
}

// hashString returns SHA-256 hash of the input string as hex.
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// ProjectEntryKey is the store key of a project's index on one branch.
func ProjectEntryKey(projectKey, branch string) string {
	return projectEntryPrefix + projectKey + "/" + branch
}

// ProjectEntriesPrefix is the store key prefix shared by every branch of
// one project.
func ProjectEntriesPrefix(projectKey string) string {
	return projectEntryPrefix + projectKey + "/"
}

// LibraryEntryKey is the store key of a library's index. Libraries are
// immutable, so the checksum is part of the identity.
func LibraryEntryKey(path, checksum string) string {
	return libraryEntryPrefix + hashString(path)[:8] + "-" + checksum
}

// LibraryEntriesPrefix is the store key prefix shared by every library.
const LibraryEntriesPrefix = libraryEntryPrefix

// memoryKey identifies a project index within one branch in memory.
func memoryKey(branch, projectID string) string {
	return branch + "\x00" + projectID
}
