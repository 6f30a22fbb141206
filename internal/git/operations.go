// Package git answers the few repository questions declindex needs: which
// branch is checked out, which branches exist and where the repository
// lives. It shells out to the git binary.
package git

import (
	"os/exec"
	"path/filepath"
	"strings"
)

// Unknown is the branch reported outside a git repository.
const Unknown = "unknown"

// Operations defines the git queries used for cache keys, sessions and
// eviction. It allows mocking git in tests.
type Operations interface {
	// GetCurrentBranch returns the current branch name.
	// For detached HEAD, returns "detached-{short-hash}".
	// Returns Unknown if all git commands fail.
	GetCurrentBranch(projectPath string) string

	// GetBranches returns all local and remote branches.
	// Current branch is prefixed with "* ".
	GetBranches(projectPath string) ([]string, error)

	// GetRemoteURL returns the git remote URL.
	// Tries 'origin' first, then falls back to first available remote.
	// Returns empty string if no remote configured.
	GetRemoteURL(projectPath string) string

	// GetWorktreeRoot returns the git worktree root path.
	// Falls back to projectPath if not a git repository.
	GetWorktreeRoot(projectPath string) string

	// GetGitDir returns the absolute path of the repository's git
	// directory, or "" outside a repository.
	GetGitDir(projectPath string) string
}

// gitOps is the real implementation using exec.Command.
type gitOps struct{}

// NewOperations returns the default git operations implementation.
func NewOperations() Operations {
	return &gitOps{}
}

// output runs git in dir and returns its trimmed stdout.
func output(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (g *gitOps) GetCurrentBranch(projectPath string) string {
	if branch, err := output(projectPath, "branch", "--show-current"); err == nil && branch != "" {
		return branch
	}
	// Might be detached HEAD
	hash, err := output(projectPath, "rev-parse", "--short", "HEAD")
	if err != nil {
		return Unknown
	}
	return "detached-" + hash
}

func (g *gitOps) GetBranches(projectPath string) ([]string, error) {
	out, err := output(projectPath, "branch", "-a")
	if err != nil {
		return nil, err
	}

	var branches []string
	for _, line := range strings.Split(out, "\n") {
		// Strip surrounding whitespace but preserve the "*" marker
		if branch := strings.TrimSpace(line); branch != "" {
			branches = append(branches, branch)
		}
	}
	return branches, nil
}

func (g *gitOps) GetRemoteURL(projectPath string) string {
	if url, err := output(projectPath, "remote", "get-url", "origin"); err == nil {
		return url
	}

	remotes, err := output(projectPath, "remote")
	if err != nil || remotes == "" {
		return ""
	}
	first, _, _ := strings.Cut(remotes, "\n")
	url, _ := output(projectPath, "remote", "get-url", first)
	return url
}

func (g *gitOps) GetWorktreeRoot(projectPath string) string {
	root, err := output(projectPath, "rev-parse", "--show-toplevel")
	if err != nil {
		return projectPath
	}
	return root
}

func (g *gitOps) GetGitDir(projectPath string) string {
	dir, err := output(projectPath, "rev-parse", "--git-dir")
	if err != nil {
		return ""
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(projectPath, dir)
	}
	return dir
}
