// Package testutil provides persistent-tier doubles for store tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/meigma/shortblob/core"
)

// MemBackend is an in-memory core.Backend keyed by shard path.
// It counts reads and writes so tests can assert on cache behavior.
type MemBackend struct {
	mu     sync.RWMutex
	data   map[string][]byte
	reads  atomic.Int64
	writes atomic.Int64
	closes atomic.Int64
}

// NewMemBackend returns an empty MemBackend.
func NewMemBackend() *MemBackend {
	return &MemBackend{data: make(map[string][]byte)}
}

// Read implements core.Backend.
func (b *MemBackend) Read(_ context.Context, path core.ShardPath) ([]byte, error) {
	b.reads.Add(1)
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[path.Key()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path.Key(), core.ErrNotFound)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Write implements core.Backend.
func (b *MemBackend) Write(_ context.Context, path core.ShardPath, content []byte) error {
	b.writes.Add(1)
	stored := make([]byte, len(content))
	copy(stored, content)
	b.mu.Lock()
	b.data[path.Key()] = stored
	b.mu.Unlock()
	return nil
}

// Close implements core.Backend.
func (b *MemBackend) Close() error {
	b.closes.Add(1)
	return nil
}

// Closes returns the number of Close calls.
func (b *MemBackend) Closes() int64 { return b.closes.Load() }

// Reads returns the number of Read calls.
func (b *MemBackend) Reads() int64 { return b.reads.Load() }

// Writes returns the number of Write calls.
func (b *MemBackend) Writes() int64 { return b.writes.Load() }

// Get returns the raw stored bytes at key, bypassing the counters.
func (b *MemBackend) Get(key string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	return v, ok
}

// Keys returns the number of stored paths.
func (b *MemBackend) Keys() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// FailingBackend returns Err from every Read and Write.
type FailingBackend struct {
	Err error
}

// Read implements core.Backend.
func (b *FailingBackend) Read(context.Context, core.ShardPath) ([]byte, error) {
	return nil, b.Err
}

// Write implements core.Backend.
func (b *FailingBackend) Write(context.Context, core.ShardPath, []byte) error {
	return b.Err
}

// Close implements core.Backend.
func (b *FailingBackend) Close() error { return nil }

// GatedBackend wraps a core.Backend and holds every Read until Release is
// closed. A Read whose context ends first returns the context error.
type GatedBackend struct {
	core.Backend

	// Entered receives one value per Read that starts waiting, if non-nil.
	Entered chan struct{}
	Release chan struct{}
}

// NewGatedBackend returns a GatedBackend over b that holds reads until
// Release is closed.
func NewGatedBackend(b core.Backend) *GatedBackend {
	return &GatedBackend{
		Backend: b,
		Entered: make(chan struct{}, 16),
		Release: make(chan struct{}),
	}
}

// Read implements core.Backend.
func (b *GatedBackend) Read(ctx context.Context, path core.ShardPath) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.Entered != nil {
		select {
		case b.Entered <- struct{}{}:
		default:
		}
	}
	select {
	case <-b.Release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.Backend.Read(ctx, path)
}
