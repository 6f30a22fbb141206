package watcher

import (
	"context"
	"log/slog"
)

// Coordinator routes file changes and branch switches to a Refresher.
// Branch switches hold file changes back until the switch is done.
type Coordinator struct {
	git    GitWatcher // nil outside a git repository
	files  FileWatcher
	target Refresher
	logger *slog.Logger
}

// NewCoordinator creates a coordinator. git may be nil.
func NewCoordinator(git GitWatcher, files FileWatcher, target Refresher, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{git: git, files: files, target: target, logger: logger}
}

// Run starts the watchers and blocks until ctx is done or a watcher fails
// to start. Both watchers are stopped on return.
func (c *Coordinator) Run(ctx context.Context) error {
	defer c.stop()

	if c.git != nil {
		if err := c.git.Start(ctx, func(oldBranch, newBranch string) {
			c.switchBranch(ctx, oldBranch, newBranch)
		}); err != nil {
			return err
		}
	}
	if err := c.files.Start(ctx, func(files []string) {
		c.refresh(ctx, files)
	}); err != nil {
		return err
	}

	<-ctx.Done()
	return ctx.Err()
}

func (c *Coordinator) stop() {
	if c.git != nil {
		if err := c.git.Stop(); err != nil {
			c.logger.Warn("git watcher stop failed", "error", err)
		}
	}
	if err := c.files.Stop(); err != nil {
		c.logger.Warn("file watcher stop failed", "error", err)
	}
}

func (c *Coordinator) switchBranch(ctx context.Context, oldBranch, newBranch string) {
	c.logger.Info("branch switch detected", "from", oldBranch, "to", newBranch)

	c.files.Pause()
	defer c.files.Resume()

	if err := c.target.SwitchBranch(ctx, newBranch); err != nil {
		c.logger.Error("failed to switch branch", "branch", newBranch, "error", err)
		return
	}
	// The checkout rewrote the tree; bring the new branch up to date.
	if err := c.target.Refresh(ctx, nil); err != nil {
		c.logger.Error("refresh after branch switch failed", "branch", newBranch, "error", err)
	}
}

func (c *Coordinator) refresh(ctx context.Context, files []string) {
	if len(files) == 0 {
		return
	}
	c.logger.Info("files changed", "count", len(files))
	if err := c.target.Refresh(ctx, files); err != nil {
		c.logger.Error("refresh failed", "error", err)
	}
}
