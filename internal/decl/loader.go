package decl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Registry routes files to parsers by extension.
type Registry struct {
	parsers []Parser
	byExt   map[string]Parser
}

// NewRegistry creates a registry. Later parsers win extension conflicts.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{byExt: make(map[string]Parser)}
	for _, p := range parsers {
		r.Register(p)
	}
	return r
}

// DefaultRegistry registers every supported language. goModulePath may be
// empty when the project has no go.mod.
func DefaultRegistry(goModulePath string) *Registry {
	return NewRegistry(
		NewGoParser(goModulePath),
		NewJavaParser(),
		NewTypeScriptParser(),
		NewTSXParser(),
		NewJavaScriptParser(),
		NewPythonParser(),
		NewRustParser(),
		NewCParser(),
		NewPhpParser(),
		NewRubyParser(),
	)
}

// Register adds p for all of its extensions.
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
	for _, ext := range p.Extensions() {
		r.byExt[strings.ToLower(ext)] = p
	}
}

// ParserFor returns the parser handling file, if any.
func (r *Registry) ParserFor(file string) (Parser, bool) {
	p, ok := r.byExt[strings.ToLower(path.Ext(file))]
	return p, ok
}

// Extensions returns every registered extension, sorted.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// LoadOptions tunes Load.
type LoadOptions struct {
	// Concurrency bounds parallel parsing; zero means GOMAXPROCS.
	Concurrency int
	// Logger receives per-file parse failures; nil means slog.Default().
	Logger *slog.Logger
	// OnFile is called after each file is parsed, from any goroutine.
	OnFile func(file string)
}

// Load parses files (slash-separated, relative to dir) in parallel and
// assembles their declarations. Files without a parser are ignored and
// files that fail to parse are logged and skipped; only read errors and
// cancellation fail the load. The result does not depend on scheduling.
func Load(ctx context.Context, dir string, files []string, registry *Registry, opts LoadOptions) (*Namespace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([][]*Unit, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, file := range files {
		p, ok := registry.ParserFor(file)
		if !ok {
			continue
		}
		g.Go(func() error {
			source, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(file)))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			units, err := p.Parse(gctx, file, source)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("skipping unparseable file", "file", file, "language", p.Language(), "error", err)
				return nil
			}
			results[i] = units
			if opts.OnFile != nil {
				opts.OnFile(file)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*Unit
	for _, units := range results {
		all = append(all, units...)
	}
	return Assemble(all), nil
}
