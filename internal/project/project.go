// Package project turns a source tree into versioned declaration
// snapshots: it discovers files, derives a content version and loads the
// declaration hierarchy on demand.
package project

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/mvp-joe/declindex/internal/decl"
	"github.com/mvp-joe/declindex/internal/symtree"
	"golang.org/x/mod/modfile"
	"golang.org/x/sync/errgroup"
)

// DefaultCodePatterns select every language with a registered parser.
var DefaultCodePatterns = []string{
	"**/*.go", "**/*.java", "**/*.ts", "**/*.tsx", "**/*.js",
	"**/*.py", "**/*.rs", "**/*.c", "**/*.h", "**/*.php", "**/*.rb",
}

// DefaultIgnorePatterns skip vendored and generated trees.
var DefaultIgnorePatterns = []string{
	"node_modules/**", "vendor/**", "target/**", "dist/**", "build/**",
}

// Options configures Open.
type Options struct {
	// ID identifies the project in caches; defaults to the directory name.
	ID             string
	CodePatterns   []string
	IgnorePatterns []string
	Concurrency    int
	Logger         *slog.Logger
	// OnFile is called for each file parsed while a snapshot's hierarchy
	// is loaded, from any goroutine.
	OnFile func(relPath string)
}

// Project is a source tree whose declarations can be indexed.
type Project struct {
	ID         string
	Dir        string
	ModulePath string

	discovery   *FileDiscovery
	registry    *decl.Registry
	concurrency int
	logger      *slog.Logger
	onFile      func(string)
}

// Open prepares the project rooted at dir.
func Open(dir string, opts Options) (*Project, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project dir: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat project dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project path %s is not a directory", absDir)
	}

	codePatterns := opts.CodePatterns
	if len(codePatterns) == 0 {
		codePatterns = DefaultCodePatterns
	}
	ignorePatterns := opts.IgnorePatterns
	if ignorePatterns == nil {
		ignorePatterns = DefaultIgnorePatterns
	}
	discovery, err := NewFileDiscovery(absDir, codePatterns, ignorePatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid file pattern: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := opts.ID
	if id == "" {
		id = filepath.Base(absDir)
	}
	modulePath := readModulePath(absDir)

	return &Project{
		ID:          id,
		Dir:         absDir,
		ModulePath:  modulePath,
		discovery:   discovery,
		registry:    decl.DefaultRegistry(modulePath),
		concurrency: opts.Concurrency,
		logger:      logger,
		onFile:      opts.OnFile,
	}, nil
}

// readModulePath returns the module path declared in dir/go.mod, or "".
func readModulePath(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}

// Matches reports whether a path relative to the project root would be
// indexed.
func (p *Project) Matches(relPath string) bool {
	if _, ok := p.registry.ParserFor(relPath); !ok {
		return false
	}
	return p.discovery.Matches(relPath)
}

// Snapshot discovers the current files and computes their version. The
// hierarchy itself is only loaded when Root is called.
func (p *Project) Snapshot(ctx context.Context) (*Snapshot, error) {
	files, err := p.discovery.DiscoverFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	var supported []string
	for _, f := range files {
		if _, ok := p.registry.ParserFor(f); ok {
			supported = append(supported, f)
		}
	}

	version, err := ComputeVersion(ctx, p.Dir, supported, p.concurrency)
	if err != nil {
		return nil, err
	}
	return &Snapshot{project: p, files: supported, version: version}, nil
}

// ComputeVersion hashes the relative paths and contents of files together
// with the loader revision. Any edit, rename, addition or removal changes
// the result.
func ComputeVersion(ctx context.Context, dir string, files []string, concurrency int) (symtree.Version, error) {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	hashes := make([][sha256.Size]byte, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(file)))
			if err != nil {
				return fmt.Errorf("failed to calculate hash for %s: %w", file, err)
			}
			hashes[i] = sha256.Sum256(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte("declindex-loader/" + strconv.Itoa(decl.FormatRevision) + "\n"))
	for i, file := range files {
		h.Write([]byte(file))
		h.Write([]byte{0})
		h.Write(hashes[i][:])
		h.Write([]byte{'\n'})
	}
	return symtree.Version(hex.EncodeToString(h.Sum(nil))), nil
}

// Snapshot is one version of a project's sources.
type Snapshot struct {
	project *Project
	files   []string
	version symtree.Version

	mu   sync.Mutex
	root *decl.Namespace
}

// Version identifies the snapshot's contents.
func (s *Snapshot) Version() symtree.Version { return s.version }

// Files returns the indexed files, relative to the project root.
func (s *Snapshot) Files() []string { return s.files }

// Project returns the project the snapshot was taken of.
func (s *Snapshot) Project() *Project { return s.project }

// Root loads the declaration hierarchy once and returns it on every later
// call. A failed load is not remembered.
func (s *Snapshot) Root(ctx context.Context) (symtree.Container, error) {
	ns, err := s.Namespace(ctx, s.project.onFile)
	if err != nil {
		return nil, err
	}
	return ns, nil
}

// Namespace is Root with a per-file progress callback for the first load.
func (s *Snapshot) Namespace(ctx context.Context, onFile func(string)) (*decl.Namespace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root != nil {
		return s.root, nil
	}

	p := s.project
	root, err := decl.Load(ctx, p.Dir, s.files, p.registry, decl.LoadOptions{
		Concurrency: p.concurrency,
		Logger:      p.logger,
		OnFile:      onFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", p.ID, err)
	}
	s.root = root
	return root, nil
}
