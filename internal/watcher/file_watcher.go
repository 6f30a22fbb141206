package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before changes are reported.
const DefaultDebounce = 500 * time.Millisecond

// FileWatcherOption configures NewFileWatcher.
type FileWatcherOption func(*fileWatcher)

// WithDebounce sets the quiet period before changes are reported.
func WithDebounce(d time.Duration) FileWatcherOption {
	return func(fw *fileWatcher) { fw.debounce = d }
}

// WithLogger sets the logger for watch errors.
func WithLogger(logger *slog.Logger) FileWatcherOption {
	return func(fw *fileWatcher) { fw.logger = logger }
}

type fileWatcher struct {
	watcher  *fsnotify.Watcher
	root     string
	match    func(rel string) bool
	debounce time.Duration
	logger   *slog.Logger

	callback func(files []string)
	cancel   context.CancelFunc
	stopOnce sync.Once
	doneCh   chan struct{}

	mu      sync.Mutex // protects paused, pending and timer
	paused  bool
	pending map[string]struct{}
	timer   *time.Timer
}

// NewFileWatcher watches every directory under root. Changes are reported
// for files whose root-relative, slash-separated path match accepts.
// Hidden directories such as .git are not watched.
func NewFileWatcher(root string, match func(rel string) bool, opts ...FileWatcherOption) (FileWatcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &fileWatcher{
		watcher:  watcher,
		root:     absRoot,
		match:    match,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		pending:  make(map[string]struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(fw)
	}

	if err := fw.addTree(absRoot); err != nil {
		watcher.Close()
		return nil, err
	}
	return fw, nil
}

func (fw *fileWatcher) Start(ctx context.Context, callback func(files []string)) error {
	if callback == nil {
		return nil
	}
	fw.callback = callback
	ctx, fw.cancel = context.WithCancel(ctx)
	go fw.watch(ctx)
	return nil
}

func (fw *fileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		if fw.cancel != nil {
			fw.cancel()
			<-fw.doneCh
		} else {
			close(fw.doneCh)
		}
		err = fw.watcher.Close()
	})
	return err
}

func (fw *fileWatcher) Pause() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.paused = true
}

func (fw *fileWatcher) Resume() {
	fw.mu.Lock()
	wasPaused := fw.paused
	fw.paused = false
	fw.mu.Unlock()
	if wasPaused {
		fw.flush()
	}
}

func (fw *fileWatcher) watch(ctx context.Context) {
	defer close(fw.doneCh)

	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			fw.stopTimer()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fw.addTree(event.Name); err != nil {
						fw.logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			rel, ok := fw.relevant(event)
			if !ok {
				continue
			}
			fw.mu.Lock()
			fw.pending[rel] = struct{}{}
			fw.resetTimerLocked(fire)
			fw.mu.Unlock()

		case <-fire:
			fw.mu.Lock()
			paused := fw.paused
			fw.mu.Unlock()
			if !paused {
				fw.flush()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", "error", err)
		}
	}
}

// flush reports and clears the pending changes.
func (fw *fileWatcher) flush() {
	fw.mu.Lock()
	if len(fw.pending) == 0 {
		fw.mu.Unlock()
		return
	}
	files := make([]string, 0, len(fw.pending))
	for rel := range fw.pending {
		files = append(files, rel)
	}
	fw.pending = make(map[string]struct{})
	fw.mu.Unlock()

	slices.Sort(files)
	fw.callback(files)
}

func (fw *fileWatcher) resetTimerLocked(fire chan struct{}) {
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	})
}

func (fw *fileWatcher) stopTimer() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.timer != nil {
		fw.timer.Stop()
		fw.timer = nil
	}
}

// relevant returns the root-relative path of a write, create, remove or
// rename of a matching file.
func (fw *fileWatcher) relevant(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}
	rel, err := filepath.Rel(fw.root, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if fw.match != nil && !fw.match(rel) {
		return "", false
	}
	return rel, true
}

// addTree watches dir and every non-hidden directory below it.
func (fw *fileWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			fw.logger.Warn("error accessing path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != fw.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			fw.logger.Warn("failed to watch directory", "dir", path, "error", err)
		}
		return nil
	})
}
