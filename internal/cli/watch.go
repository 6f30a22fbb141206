package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/declindex/internal/watcher"
	"github.com/mvp-joe/declindex/internal/workspace"
)

var errAlreadyWatching = errors.New("project is already being watched")

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Keep the index current while files and branches change",
	Long: `Watch indexes the project, then re-indexes it whenever a matching source
file changes or the checked out branch switches. Changes are batched for
watch.debounce_ms milliseconds (global configuration).

Stop with Ctrl+C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	dir, err := resolveDir(args)
	if err != nil {
		return err
	}
	env, err := openEnvironment(ctx, dir, nil)
	if err != nil {
		return err
	}
	defer env.Close()

	unlock, err := lockWatch(env.cfg.Location().Root(), env.project.ID)
	if err != nil {
		return err
	}
	defer unlock()

	out := cmd.OutOrStdout()
	target := &workspaceRefresher{ws: env.workspace, session: env.session, out: out, logger: env.logger}
	if err := target.Refresh(ctx, nil); err != nil {
		return err
	}

	debounce := time.Duration(env.global.Watch.DebounceMS) * time.Millisecond
	files, err := watcher.NewFileWatcher(dir, env.project.Matches,
		watcher.WithDebounce(debounce),
		watcher.WithLogger(env.logger),
	)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	var branches watcher.GitWatcher
	if gitDir := env.git.GetGitDir(dir); gitDir != "" {
		branches, err = watcher.NewGitWatcher(gitDir, env.logger)
		if err != nil {
			return fmt.Errorf("failed to watch branch: %w", err)
		}
	}

	fmt.Fprintf(out, "Watching %s on %s (Ctrl+C to stop)\n", dir, target.branch())
	if err := watcher.NewCoordinator(branches, files, target, env.logger).Run(ctx); err != nil {
		return err
	}
	env.session = target.current()
	return nil
}

// lockWatch makes sure only one watcher runs per project. The lock is
// released when the process exits, even if it crashes.
func lockWatch(cacheRoot, projectID string) (func(), error) {
	if err := os.MkdirAll(cacheRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	lockPath := filepath.Join(cacheRoot, "watch-"+projectID+".lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire watch lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", errAlreadyWatching, projectID)
	}
	return func() { _ = lock.Unlock() }, nil
}

// workspaceRefresher re-indexes the workspace for the watcher.
type workspaceRefresher struct {
	ws     *workspace.Workspace
	out    io.Writer
	logger *slog.Logger

	mu      sync.Mutex
	session *workspace.Session
}

func (r *workspaceRefresher) current() *workspace.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

func (r *workspaceRefresher) branch() string {
	return r.current().Branch
}

func (r *workspaceRefresher) Refresh(ctx context.Context, changed []string) error {
	if len(changed) > 0 {
		r.logger.Debug("source files changed", "count", len(changed), "files", changed)
	}
	start := time.Now()
	results, err := r.ws.Refresh(ctx, r.current())
	if err != nil {
		return err
	}
	for _, res := range results {
		fmt.Fprintf(r.out, "✓ %s: %s names (%s) in %.1fs\n",
			res.ProjectID, formatNumber(res.Nodes), describeSource(res.Source), time.Since(start).Seconds())
	}
	return nil
}

func (r *workspaceRefresher) SwitchBranch(ctx context.Context, branch string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, err := r.ws.SwitchBranch(r.session.ID, branch)
	if err != nil {
		return err
	}
	r.session = sess
	fmt.Fprintf(r.out, "Switched to branch %s\n", branch)
	return nil
}
