package git

import "sync"

// MockGitOps is an Operations with fixed answers for tests. Fields may be
// changed between calls, including from other goroutines via Set.
type MockGitOps struct {
	mu sync.Mutex

	CurrentBranch string
	Branches      []string
	RemoteURL     string
	WorktreeRoot  string
	GitDir        string
	BranchesError error
}

// NewMockGitOps returns a mock on "main" with a GitHub remote.
func NewMockGitOps() *MockGitOps {
	return &MockGitOps{
		CurrentBranch: "main",
		Branches:      []string{"* main"},
		RemoteURL:     "https://github.com/user/repo.git",
		WorktreeRoot:  "/tmp/test-repo",
	}
}

// Set checks out branch and makes it the only listed branch besides others.
func (m *MockGitOps) Set(branch string, others ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CurrentBranch = branch
	m.Branches = append([]string{"* " + branch}, others...)
}

func (m *MockGitOps) GetCurrentBranch(string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CurrentBranch
}

func (m *MockGitOps) GetBranches(string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BranchesError != nil {
		return nil, m.BranchesError
	}
	return append([]string(nil), m.Branches...), nil
}

func (m *MockGitOps) GetRemoteURL(string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RemoteURL
}

func (m *MockGitOps) GetWorktreeRoot(string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.WorktreeRoot
}

func (m *MockGitOps) GetGitDir(string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GitDir
}

var _ Operations = (*MockGitOps)(nil)
