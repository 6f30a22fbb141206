package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DetachedHead is the branch reported while HEAD points at a commit.
const DetachedHead = "detached"

type gitWatcher struct {
	gitDir   string
	headPath string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	mu     sync.RWMutex
	branch string

	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	stopOnce sync.Once
}

// NewGitWatcher watches HEAD in gitDir, the repository's git directory
// (git.Operations.GetGitDir). A nil logger uses slog.Default.
func NewGitWatcher(gitDir string, logger *slog.Logger) (GitWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	headPath := filepath.Join(gitDir, "HEAD")
	branch, err := readBranch(headPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", headPath, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &gitWatcher{
		gitDir:   gitDir,
		headPath: headPath,
		watcher:  watcher,
		logger:   logger,
		branch:   branch,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

func (gw *gitWatcher) Branch() string {
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	return gw.branch
}

// Start watches the git directory rather than HEAD itself, since git
// replaces HEAD through a rename.
func (gw *gitWatcher) Start(ctx context.Context, callback func(oldBranch, newBranch string)) error {
	if err := gw.watcher.Add(gw.gitDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", gw.gitDir, err)
	}
	gw.mu.Lock()
	gw.started = true
	gw.mu.Unlock()
	go gw.watch(ctx, callback)
	return nil
}

func (gw *gitWatcher) Stop() error {
	var err error
	gw.stopOnce.Do(func() {
		close(gw.stopCh)
		gw.mu.RLock()
		started := gw.started
		gw.mu.RUnlock()
		if started {
			<-gw.doneCh
		}
		err = gw.watcher.Close()
	})
	return err
}

func (gw *gitWatcher) watch(ctx context.Context, callback func(oldBranch, newBranch string)) {
	defer close(gw.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-gw.stopCh:
			return

		case event, ok := <-gw.watcher.Events:
			if !ok {
				return
			}
			// A removed HEAD is about to be recreated.
			if event.Name != gw.headPath || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			gw.check(callback)

		case err, ok := <-gw.watcher.Errors:
			if !ok {
				return
			}
			gw.logger.Warn("git watcher error", "error", err)
		}
	}
}

// check rereads HEAD and reports a changed branch.
func (gw *gitWatcher) check(callback func(oldBranch, newBranch string)) {
	branch, err := readBranch(gw.headPath)
	if err != nil {
		gw.logger.Warn("failed to read HEAD", "path", gw.headPath, "error", err)
		return
	}
	if branch == "" {
		// HEAD is being rewritten.
		return
	}

	gw.mu.Lock()
	previous := gw.branch
	gw.branch = branch
	gw.mu.Unlock()
	if branch == previous {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			gw.logger.Error("branch change callback panicked", "panic", r)
		}
	}()
	callback(previous, branch)
}

func readBranch(headPath string) (string, error) {
	content, err := os.ReadFile(headPath)
	if err != nil {
		return "", err
	}
	return parseBranch(content), nil
}

// parseBranch extracts the branch from HEAD content. A commit hash (SHA-1
// or SHA-256) is reported as DetachedHead.
func parseBranch(content []byte) string {
	line := strings.TrimSpace(string(content))
	if name, ok := strings.CutPrefix(line, "ref: refs/heads/"); ok {
		return strings.TrimSpace(name)
	}
	if (len(line) == 40 || len(line) == 64) && isHex(line) {
		return DetachedHead
	}
	return line
}

func isHex(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
