package cache

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mvp-joe/declindex/internal/storage"
	"github.com/mvp-joe/declindex/internal/symtree"
)

// memStore is an in-memory storage.Store with controllable timestamps and
// failure injection.
type memStore struct {
	mu       sync.Mutex
	entries  map[string]memEntry
	reads    int
	writes   int
	failRead error
	failWrite error
	now      func() time.Time
}

type memEntry struct {
	data      []byte
	updatedAt time.Time
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]memEntry), now: time.Now}
}

func (s *memStore) Read(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.failRead != nil {
		return nil, s.failRead
	}
	e, ok := s.entries[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return slices.Clone(e.data), nil
}

func (s *memStore) Write(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failWrite != nil {
		return s.failWrite
	}
	s.entries[key] = memEntry{data: slices.Clone(data), updatedAt: s.now()}
	return nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *memStore) Entries(ctx context.Context, prefix string) ([]storage.EntryInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.EntryInfo
	for key, e := range s.entries {
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.EntryInfo{Key: key, Size: int64(len(e.data)), UpdatedAt: e.updatedAt})
		}
	}
	slices.SortFunc(out, func(a, b storage.EntryInfo) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

func (s *memStore) Close() error { return nil }

// put stores data under key as if written at updatedAt.
func (s *memStore) put(key string, data []byte, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memEntry{data: data, updatedAt: updatedAt}
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

func (s *memStore) counts() (reads, writes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.writes
}

var errStoreDown = errors.New("store down")

// fakeContainer is a minimal declaration hierarchy.
type fakeContainer struct {
	name    string
	names   []string
	members map[string][]symtree.Symbol
}

func (c *fakeContainer) Name() string                              { return c.name }
func (c *fakeContainer) MemberNames() []string                     { return c.names }
func (c *fakeContainer) MembersNamed(name string) []symtree.Symbol { return c.members[name] }

func container(name string, members ...*fakeContainer) *fakeContainer {
	c := &fakeContainer{name: name, members: make(map[string][]symtree.Symbol)}
	for _, m := range members {
		if _, ok := c.members[m.name]; !ok {
			c.names = append(c.names, m.name)
		}
		c.members[m.name] = append(c.members[m.name], m)
	}
	return c
}

// fakeSnapshot counts how often its root is loaded.
type fakeSnapshot struct {
	version symtree.Version
	root    symtree.Container
	err     error

	mu    sync.Mutex
	loads int
}

func (s *fakeSnapshot) Version() symtree.Version { return s.version }

func (s *fakeSnapshot) Root(ctx context.Context) (symtree.Container, error) {
	s.mu.Lock()
	s.loads++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.root, nil
}

func (s *fakeSnapshot) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func sampleSnapshot(version string) *fakeSnapshot {
	return &fakeSnapshot{
		version: symtree.Version(version),
		root: container("",
			container("N", container("A"), container("B")),
			container("M", container("A")),
		),
	}
}
