package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for FileWatcher:
// - NewFileWatcher fails for a missing root
// - a change is reported once, relative to the root, after the debounce
// - rapid changes to several files are batched, sorted and deduplicated
// - created, deleted and renamed files are reported
// - files in directories created after start are reported
// - files the match function rejects and hidden directories are ignored
// - changes made while paused are delivered on Resume
// - Stop is idempotent, safe concurrently and without Start
// - context cancellation stops callbacks

const testDebounce = 50 * time.Millisecond

func goFiles(rel string) bool { return strings.HasSuffix(rel, ".go") }

// batches collects callback invocations.
type batches struct {
	mu  sync.Mutex
	got [][]string
}

func (b *batches) add(files []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, files)
}

func (b *batches) all() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]string(nil), b.got...)
}

func (b *batches) files() []string {
	var out []string
	for _, batch := range b.all() {
		out = append(out, batch...)
	}
	return out
}

func startFileWatcher(t *testing.T, root string) (FileWatcher, *batches) {
	t.Helper()
	fw, err := NewFileWatcher(root, goFiles, WithDebounce(testDebounce))
	require.NoError(t, err)
	t.Cleanup(func() { fw.Stop() })

	b := &batches{}
	require.NoError(t, fw.Start(context.Background(), b.add))
	return fw, b
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNewFileWatcher_InvalidRoot(t *testing.T) {
	t.Parallel()

	fw, err := NewFileWatcher(filepath.Join(t.TempDir(), "missing"), goFiles)
	assert.Error(t, err)
	assert.Nil(t, fw)
}

func TestFileWatcher_SingleChange(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, b := startFileWatcher(t, root)

	write(t, filepath.Join(root, "main.go"), "package main")

	require.Eventually(t, func() bool { return len(b.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"main.go"}, b.all()[0])
}

func TestFileWatcher_BatchesAndDeduplicates(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	write(t, filepath.Join(root, "pkg", "keep.txt"), "")
	_, b := startFileWatcher(t, root)

	for i := 0; i < 3; i++ {
		write(t, filepath.Join(root, "b.go"), "package b")
		write(t, filepath.Join(root, "a.go"), "package a")
		write(t, filepath.Join(root, "pkg", "c.go"), "package pkg")
	}

	require.Eventually(t, func() bool { return len(b.files()) >= 3 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(3 * testDebounce)
	batches := b.all()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"a.go", "b.go", "pkg/c.go"}, batches[0])
}

func TestFileWatcher_CreateDeleteRename(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	write(t, filepath.Join(root, "old.go"), "package x")
	write(t, filepath.Join(root, "gone.go"), "package x")
	_, b := startFileWatcher(t, root)

	require.NoError(t, os.Remove(filepath.Join(root, "gone.go")))
	require.NoError(t, os.Rename(filepath.Join(root, "old.go"), filepath.Join(root, "new.go")))

	require.Eventually(t, func() bool { return len(uniq(b.files())) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"gone.go", "new.go", "old.go"}, uniq(b.files()))
}

func uniq(files []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range files {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func TestFileWatcher_NewDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	_, b := startFileWatcher(t, root)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0755))
	time.Sleep(100 * time.Millisecond)
	write(t, filepath.Join(root, "sub", "x.go"), "package sub")

	require.Eventually(t, func() bool {
		for _, f := range b.files() {
			if f == "sub/x.go" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFileWatcher_Filtering(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))
	_, b := startFileWatcher(t, root)

	write(t, filepath.Join(root, "notes.md"), "# notes")
	write(t, filepath.Join(root, ".git", "hook.go"), "package hook")
	write(t, filepath.Join(root, "main.go"), "package main")

	require.Eventually(t, func() bool { return len(b.files()) > 0 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(3 * testDebounce)
	assert.Equal(t, []string{"main.go"}, uniq(b.files()))
}

func TestFileWatcher_PauseResume(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	fw, b := startFileWatcher(t, root)

	fw.Pause()
	write(t, filepath.Join(root, "paused.go"), "package p")
	time.Sleep(5 * testDebounce)
	assert.Empty(t, b.all(), "no callback while paused")

	fw.Resume()
	require.Eventually(t, func() bool { return len(b.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"paused.go"}, b.all()[0])

	fw.Resume()
	time.Sleep(3 * testDebounce)
	assert.Len(t, b.all(), 1, "resuming twice delivers nothing new")
}

func TestFileWatcher_Stop(t *testing.T) {
	t.Parallel()

	unstarted, err := NewFileWatcher(t.TempDir(), goFiles)
	require.NoError(t, err)
	assert.NoError(t, unstarted.Stop())
	assert.NoError(t, unstarted.Stop())

	root := t.TempDir()
	fw, b := startFileWatcher(t, root)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fw.Stop()
		}()
	}
	wg.Wait()

	write(t, filepath.Join(root, "late.go"), "package late")
	time.Sleep(5 * testDebounce)
	assert.Empty(t, b.all())
}

func TestFileWatcher_ContextCancellation(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	fw, err := NewFileWatcher(root, goFiles, WithDebounce(testDebounce))
	require.NoError(t, err)
	defer fw.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	b := &batches{}
	require.NoError(t, fw.Start(ctx, b.add))
	cancel()
	time.Sleep(50 * time.Millisecond)

	write(t, filepath.Join(root, "late.go"), "package late")
	time.Sleep(5 * testDebounce)
	assert.Empty(t, b.all())
}
