package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/declindex/internal/cache"
)

var cacheCleanAll bool

// cacheCmd represents the cache command group
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the persistent index cache",
	Long: `Manage the persistent cache of serialized indexes.

Every project keeps one index per branch; reference libraries keep one
index per checksum.

Available commands:
  info   - Show cache location and per-branch entries
  clean  - Evict stale branches or clear the project's entries`,
}

// cacheInfoCmd shows cache location and per-branch entries
var cacheInfoCmd = &cobra.Command{
	Use:   "info [dir]",
	Short: "Show cache location and stats",
	Long: `Display the cache location and the cached branches of a project.

Shows:
  - Cache directory and storage backend
  - Project key and current branch
  - Size and age of each cached branch
  - Number of cached library indexes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCacheInfo,
}

// cacheCleanCmd manually triggers cache eviction
var cacheCleanCmd = &cobra.Command{
	Use:   "clean [dir]",
	Short: "Manually trigger cache eviction",
	Long: `Manually trigger cache eviction to remove old/deleted branches.

Eviction criteria (in order):
  1. Branches deleted in git (no longer exist)
  2. Branches older than storage.cache_max_age_days
  3. Oldest branches while the project exceeds storage.cache_max_size_mb

Protected branches (main, master) and the current branch are never evicted.
With --all every cached branch of the project is removed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCacheClean,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
	cacheCleanCmd.Flags().BoolVar(&cacheCleanAll, "all", false, "Remove every cached branch of the project")
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir, err := resolveDir(args)
	if err != nil {
		return err
	}
	env, err := openEnvironment(ctx, dir, nil)
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Storage Backend: %s\n", env.cfg.Storage.Backend)
	fmt.Fprintf(out, "Cache Location: %s\n", env.cfg.Location().Root())
	fmt.Fprintf(out, "Project Key: %s\n", env.project.ID)
	fmt.Fprintf(out, "Current Branch: %s\n", env.session.Branch)

	prefix := cache.ProjectEntriesPrefix(env.project.ID)
	entries, err := env.store.Entries(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to list cached branches: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})

	var total int64
	fmt.Fprintf(out, "\n%-30s %-15s %s\n", "Branch", "Updated", "Size")
	fmt.Fprintln(out, strings.Repeat("-", 60))
	for _, e := range entries {
		branch := strings.TrimPrefix(e.Key, prefix)
		if branch == env.session.Branch {
			branch += " *"
		}
		fmt.Fprintf(out, "%-30s %-15s %s\n", truncate(branch, 30), formatDuration(time.Since(e.UpdatedAt)), formatSize(e.Size))
		total += e.Size
	}
	fmt.Fprintf(out, "\nTotal: %s across %d branch(es)\n", formatSize(total), len(entries))

	libs, err := env.store.Entries(ctx, cache.LibraryEntriesPrefix)
	if err != nil {
		return fmt.Errorf("failed to list cached libraries: %w", err)
	}
	fmt.Fprintf(out, "Libraries: %d\n", len(libs))
	return nil
}

func runCacheClean(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir, err := resolveDir(args)
	if err != nil {
		return err
	}
	env, err := openEnvironment(ctx, dir, nil)
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	evictor := env.evictor()

	if cacheCleanAll {
		n, err := evictor.Clear(ctx, cache.ProjectEntriesPrefix(env.project.ID))
		if err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		env.workspace.Manager().DropProject(env.project.ID)
		fmt.Fprintf(out, "Removed %d cached branch(es)\n", n)
		return nil
	}

	result, err := evictor.EvictStaleBranches(ctx, env.project.ID, dir)
	if err != nil {
		return fmt.Errorf("eviction failed: %w", err)
	}
	if len(result.EvictedBranches) == 0 {
		fmt.Fprintln(out, "No branches evicted (cache is within limits)")
		return nil
	}
	fmt.Fprintf(out, "Evicted %d branch(es), freed %.2f MB\n", len(result.EvictedBranches), result.FreedMB)
	fmt.Fprintf(out, "Remaining: %.2f MB\n", result.RemainingMB)
	if verbose {
		fmt.Fprintln(out, "\nEvicted branches:")
		for _, branch := range result.EvictedBranches {
			fmt.Fprintf(out, "  - %s\n", branch)
		}
	}
	return nil
}

// formatSize renders a byte count as KB or MB.
func formatSize(n int64) string {
	if n < 1024*1024 {
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	}
	return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
}
