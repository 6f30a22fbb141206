package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mvp-joe/declindex/internal/cache"
	"github.com/mvp-joe/declindex/internal/config"
	"github.com/mvp-joe/declindex/internal/git"
	"github.com/mvp-joe/declindex/internal/project"
	"github.com/mvp-joe/declindex/internal/storage"
	"github.com/mvp-joe/declindex/internal/workspace"
)

// newGitOps is replaced in tests.
var newGitOps = func() git.Operations { return git.NewOperations() }

// environment is what every command works with: the project in dir opened
// in a workspace backed by the configured store.
type environment struct {
	cfg       *config.Config
	global    *config.GlobalConfig
	dir       string
	git       git.Operations
	logger    *slog.Logger
	store     storage.Store
	workspace *workspace.Workspace
	project   *project.Project
	session   *workspace.Session
}

// resolveDir returns the absolute project directory named by args, or the
// working directory.
func resolveDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve directory: %w", err)
	}
	return abs, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the global and project configuration for dir.
func loadConfig(dir string) (*config.Config, *config.GlobalConfig, error) {
	loader := config.NewLoader(dir)
	if cfgFile != "" {
		loader = config.NewFileLoader(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	global, err := config.LoadGlobalConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load global configuration: %w", err)
	}
	cfg.ApplyGlobal(global)
	return cfg, global, nil
}

// openEnvironment opens the project in dir, its configured libraries and a
// session on the checked out branch. onFile, if set, observes parsing.
func openEnvironment(ctx context.Context, dir string, onFile func(string)) (*environment, error) {
	cfg, global, err := loadConfig(dir)
	if err != nil {
		return nil, err
	}
	logger := newLogger()

	store, err := cfg.OpenStore(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}

	gitOps := newGitOps()
	projectOpts := cfg.ProjectOptions(logger)
	projectOpts.OnFile = onFile
	ws, err := workspace.New(workspace.Options{
		Cache: cache.Options{
			Store:        store,
			MaxNodes:     cfg.Cache.MaxNodes,
			IndexOptions: cfg.IndexOptions(),
			Logger:       logger,
		},
		Git:          gitOps,
		Project:      projectOpts,
		RetainClosed: cfg.Cache.RetainClosedProjects,
		MaxResults:   cfg.Search.MaxResults,
		Logger:       logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	env := &environment{
		cfg:       cfg,
		global:    global,
		dir:       dir,
		git:       gitOps,
		logger:    logger,
		store:     store,
		workspace: ws,
	}
	if err := env.openProject(ctx); err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

func (e *environment) openProject(ctx context.Context) error {
	p, err := e.workspace.AddProject(e.dir)
	if err != nil {
		return err
	}
	if err := e.workspace.OpenProject(p.ID); err != nil {
		return err
	}
	e.project = p

	libOpts := e.cfg.ProjectOptions(e.logger)
	for _, libDir := range e.cfg.Paths.Libraries {
		if !filepath.IsAbs(libDir) {
			libDir = filepath.Join(e.dir, libDir)
		}
		lib, err := project.LoadLibrary(ctx, libDir, libOpts)
		if err != nil {
			return fmt.Errorf("failed to load library %s: %w", libDir, err)
		}
		if err := e.workspace.AddLibrary(p.ID, lib); err != nil {
			return err
		}
	}

	e.session = e.workspace.SessionForDir(e.dir)
	return nil
}

func (e *environment) Close() {
	if e.session != nil {
		if err := e.workspace.CloseSession(e.session.ID); err != nil {
			e.logger.Debug("failed to close session", "error", err)
		}
	}
	e.workspace.Close()
	if err := e.store.Close(); err != nil {
		e.logger.Warn("failed to close cache store", "error", err)
	}
}

// evictor returns an evictor over the environment's store.
func (e *environment) evictor() *cache.Evictor {
	return &cache.Evictor{
		Store:    e.store,
		Git:      e.git,
		LockPath: e.cfg.Location().LockPath(),
		Policy:   e.cfg.EvictionPolicy(),
	}
}
