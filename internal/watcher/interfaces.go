// Package watcher keeps a project's indexes warm: it reports debounced
// source changes and git branch switches to a Refresher.
package watcher

import "context"

// FileWatcher reports changed source files, relative to the watched root.
type FileWatcher interface {
	// Start begins watching, calling callback with debounced changes.
	Start(ctx context.Context, callback func(files []string)) error

	// Stop stops watching and releases the underlying watcher.
	Stop() error

	// Pause holds callbacks back while changes keep accumulating.
	Pause()

	// Resume delivers held back changes, if any, and resumes callbacks.
	Resume()
}

// GitWatcher reports changes of the checked out branch.
type GitWatcher interface {
	// Start begins watching HEAD, calling callback on every branch change.
	Start(ctx context.Context, callback func(oldBranch, newBranch string)) error

	// Stop stops watching and releases the underlying watcher.
	Stop() error

	// Branch returns the last branch seen.
	Branch() string
}

// Refresher reacts to what the watchers observe.
type Refresher interface {
	// Refresh brings indexes up to date after files changed.
	Refresh(ctx context.Context, changed []string) error

	// SwitchBranch moves to another branch's indexes.
	SwitchBranch(ctx context.Context, branch string) error
}
