package registry

import (
	"errors"
	"sync"
)

const (
	MaxEntries   = 1024
	DefaultShard = 0
)

var ErrFull = errors.New("registry full")

type Entry struct {
	Name  string
	Owner string
}

type Registry struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

func (r *Registry) Register(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) >= MaxEntries {
		return ErrFull
	}
	r.entries[e.Name] = e
	return nil
}
