package project

import (
	"context"
	"fmt"

	"github.com/mvp-joe/declindex/internal/decl"
	"github.com/mvp-joe/declindex/internal/symtree"
)

// Library is an immutable set of reference declarations, such as a
// vendored dependency. Its identity is its path plus content checksum; a
// changed library is a different Library value.
type Library struct {
	Path     string
	Checksum string
	root     *decl.Namespace
	snap     *Snapshot
}

// NewLibrary wraps an already loaded hierarchy.
func NewLibrary(path, checksum string, root *decl.Namespace) *Library {
	return &Library{Path: path, Checksum: checksum, root: root}
}

// LoadLibrary discovers and checksums every indexable file under dir. The
// files are parsed on the first call to Root, so a library whose index is
// already cached is never parsed.
func LoadLibrary(ctx context.Context, dir string, opts Options) (*Library, error) {
	p, err := Open(dir, opts)
	if err != nil {
		return nil, err
	}
	snap, err := p.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot library %s: %w", dir, err)
	}
	return &Library{Path: p.Dir, Checksum: string(snap.Version()), snap: snap}, nil
}

// Root returns the library's declaration hierarchy, loading it on first use.
func (l *Library) Root(ctx context.Context) (symtree.Container, error) {
	if l.snap != nil {
		return l.snap.Root(ctx)
	}
	if l.root == nil {
		return nil, nil
	}
	return l.root, nil
}
