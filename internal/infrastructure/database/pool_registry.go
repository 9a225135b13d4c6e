package database

import (
	"fmt"
	"sync"
)

// Registry holds at most one Manager per database, keyed by
// ConnectionConfig.Identity rather than the raw connection string.
//
// Managers are created lazily by Acquire and live until Close, which
// disconnects every manager and empties the registry. A registry can be
// reused after Close.
type Registry struct {
	mu       sync.Mutex
	managers map[string]*Manager
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{managers: make(map[string]*Manager)}
}

// Acquire returns the manager for the database url points at, creating it
// on first use.
//
// Options only take effect on creation. Acquiring an existing connection
// string with a different autocommit setting fails with ErrRegistryConflict
// rather than silently returning a manager that behaves differently.
func (r *Registry) Acquire(url string, opts ...Option) (*Manager, error) {
	cfg, err := ParseConnectionString(url)
	if err != nil {
		return nil, err
	}
	key := cfg.Identity()

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.managers[key]; ok {
		want := &Manager{autocommit: true}
		for _, opt := range opts {
			opt(want)
		}
		if want.autocommit != m.autocommit {
			return nil, fmt.Errorf("%w: %s already registered with autocommit=%t",
				ErrRegistryConflict, m.cfg.Redacted(), m.autocommit)
		}
		return m, nil
	}

	m := newManager(cfg, opts...)
	r.managers[key] = m
	return m, nil
}

// Len returns the number of managers held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}

// Close disconnects every manager and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	managers := r.managers
	r.managers = make(map[string]*Manager)
	r.mu.Unlock()

	for _, m := range managers {
		m.Disconnect()
	}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry, creating it on first use.
// The process entry point is expected to call CloseAll before exiting.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Acquire returns the process-wide manager for url. See Registry.Acquire.
func Acquire(url string, opts ...Option) (*Manager, error) {
	return Default().Acquire(url, opts...)
}

// CloseAll disconnects every manager in the process-wide registry.
func CloseAll() {
	Default().Close()
}
