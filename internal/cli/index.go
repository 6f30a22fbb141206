package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var indexQuiet bool

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Build or refresh the declaration index of a project",
	Long: `Index discovers the project's source files, derives a content version and
makes sure an index for that version exists on the current branch.

An unchanged project is served from the persistent cache without parsing.
Reference libraries listed under paths.libraries are indexed as well.

Examples:
  # Index the current directory
  declindex index

  # Index another project without progress output
  declindex index ../service --quiet
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVarP(&indexQuiet, "quiet", "q", false, "Disable progress bars and non-error output")
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	dir, err := resolveDir(args)
	if err != nil {
		return err
	}

	progress := newIndexProgress(cmd.OutOrStdout(), indexQuiet)
	env, err := openEnvironment(ctx, dir, progress.OnFile)
	if err != nil {
		return err
	}
	defer env.Close()

	snap, err := env.workspace.Snapshot(ctx, env.project.ID)
	if err != nil {
		return err
	}
	progress.SetTotal(len(snap.Files()))

	idx, src, err := env.workspace.ProjectIndex(ctx, env.session, env.project.ID)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	progress.Done(env.project.ID, idx.Len(), src)

	out := cmd.OutOrStdout()
	libs, err := env.workspace.Libraries(env.project.ID)
	if err != nil {
		return err
	}
	for _, lib := range libs {
		libIdx, libSrc, err := env.workspace.Manager().LibraryIndex(ctx, lib)
		if err != nil {
			return fmt.Errorf("failed to index library %s: %w", lib.Path, err)
		}
		if !indexQuiet {
			fmt.Fprintf(out, "✓ library %s: %s names (%s)\n", lib.Path, formatNumber(libIdx.Len()), describeSource(libSrc))
		}
	}

	if verbose && !indexQuiet {
		fmt.Fprintf(out, "Project: %s\n", env.project.ID)
		fmt.Fprintf(out, "Branch: %s\n", env.session.Branch)
		fmt.Fprintf(out, "Version: %s\n", idx.Version())
		fmt.Fprintf(out, "Files: %d\n", len(snap.Files()))
	}
	return nil
}
