package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mvp-joe/declindex/internal/git"
	"github.com/stretchr/testify/require"
)

// setupCLI isolates a test from the user's configuration and cache and
// replaces git with a mock. It returns the mock and the cache directory.
func setupCLI(t *testing.T) (*git.MockGitOps, string) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)

	mock := git.NewMockGitOps()
	mock.RemoteURL = ""
	mock.WorktreeRoot = ""
	original := newGitOps
	newGitOps = func() git.Operations { return mock }
	t.Cleanup(func() { newGitOps = original })

	return mock, filepath.Join(home, ".declindex", "cache")
}

// writeProject creates a Go module with the given files.
func writeProject(t *testing.T, module string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files["go.mod"] = "module " + module + "\n\ngo 1.24\n"
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	return dir
}

// executeCommand runs the root command with args and returns its output.
// Flag variables are reset first because cobra keeps them between runs.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile, verbose = "", false
	indexQuiet = false
	findIgnoreCase, findDir, searchKind = false, ".", "fuzzy"
	cacheCleanAll = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}
