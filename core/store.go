package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

const meterName = "github.com/meigma/shortblob/core"

// Lookup outcomes recorded on the lookups counter.
const (
	outcomeMemory     = "memory"
	outcomePersistent = "persistent"
	outcomeMiss       = "miss"
	outcomeFailure    = "failure"
)

// Store maps identifiers to content across a memory tier and an optional
// persistent tier.
//
// Insert writes the persistent tier first and the memory tier second while
// holding a per-identifier lock, so colliding writers leave both tiers with
// the same (last) content. Lookup serves from memory and falls back to the
// persistent tier, filling memory on a hit. Concurrent misses for one
// identifier share a single persistent read.
type Store struct {
	hasher        *Hasher
	memory        *memoryTier
	memoryShards  int
	backend       Backend // nil = memory only
	writes        *keyLocks
	fillGroup     singleflight.Group
	logger        *slog.Logger
	meterProvider metric.MeterProvider
	inserts       metric.Int64Counter
	lookups       metric.Int64Counter
	failures      metric.Int64Counter
}

// StoreStats describes the memory tier.
type StoreStats struct {
	Keys       int   `json:"keys"`
	Bytes      int64 `json:"bytes"`
	Persistent bool  `json:"persistent"`
}

// NewStore creates a Store that derives identifiers with hasher.
func NewStore(hasher *Hasher, opts ...Option) (*Store, error) {
	if hasher == nil {
		return nil, &ConfigError{Field: "hasher", Reason: "must not be nil"}
	}
	s := &Store{
		hasher: hasher,
		writes: newKeyLocks(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	s.memory = newMemoryTier(s.memoryShards)
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.meterProvider == nil {
		s.meterProvider = otel.GetMeterProvider()
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("store: init metrics: %w", err)
	}
	return s, nil
}

func (s *Store) initMetrics() error {
	meter := s.meterProvider.Meter(meterName)
	var err error
	if s.inserts, err = meter.Int64Counter("shortblob.store.inserts",
		metric.WithDescription("Content inserted into the store.")); err != nil {
		return err
	}
	if s.lookups, err = meter.Int64Counter("shortblob.store.lookups",
		metric.WithDescription("Identifier lookups by outcome.")); err != nil {
		return err
	}
	if s.failures, err = meter.Int64Counter("shortblob.store.storage_failures",
		metric.WithDescription("Persistent tier errors other than not-found.")); err != nil {
		return err
	}
	return nil
}

// Hasher returns the hasher used to derive identifiers.
func (s *Store) Hasher() *Hasher { return s.hasher }

// Persistent reports whether a persistent tier is configured.
func (s *Store) Persistent() bool { return s.backend != nil }

// Insert stores content and returns its identifier. Inserting identical
// content again is a no-op apart from rewriting the same bytes; inserting
// different content under a colliding identifier replaces the old content.
//
// Persistent-tier failures are returned as *StorageError and leave the
// memory tier untouched.
func (s *Store) Insert(ctx context.Context, content []byte) (ID, error) {
	id := s.hasher.Hash(content)

	unlock := s.writes.lock(id)
	defer unlock()

	if s.backend != nil {
		path, err := s.hasher.Path(id)
		if err != nil {
			return "", err
		}
		if err := s.backend.Write(ctx, path, content); err != nil {
			return "", s.storageFailure(ctx, "write", path, err)
		}
	}
	s.memory.put(id, content)
	s.inserts.Add(ctx, 1)
	return id, nil
}

// Lookup returns the content stored under the identifier text raw.
// Malformed identifiers and identifiers absent from every tier yield an error
// matching ErrNotFound. Persistent-tier failures are returned as
// *StorageError.
func (s *Store) Lookup(ctx context.Context, raw string) ([]byte, error) {
	id, err := s.hasher.Parse(raw)
	if err != nil {
		s.recordLookup(ctx, outcomeMiss)
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	if content, ok := s.memory.get(id); ok {
		s.recordLookup(ctx, outcomeMemory)
		return content, nil
	}
	if s.backend == nil {
		s.recordLookup(ctx, outcomeMiss)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	// The fill is shared by every waiter, so one caller's cancellation must
	// not fail the others.
	result, err, _ := s.fillGroup.Do(string(id), func() (any, error) {
		return s.fill(context.WithoutCancel(ctx), id)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.recordLookup(ctx, outcomeMiss)
		} else {
			s.recordLookup(ctx, outcomeFailure)
		}
		return nil, err
	}
	s.recordLookup(ctx, outcomePersistent)
	content, _ := result.([]byte) //nolint:errcheck // fill always returns []byte on success
	// The slice is shared by every caller of this flight.
	return clone(content), nil
}

// fill reads id from the persistent tier and caches it in memory.
func (s *Store) fill(ctx context.Context, id ID) ([]byte, error) {
	// Another goroutine may have filled or inserted id since the caller
	// checked memory.
	if content, ok := s.memory.get(id); ok {
		return content, nil
	}
	path, err := s.hasher.Path(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	content, err := s.backend.Read(ctx, path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, s.storageFailure(ctx, "read", path, err)
	}

	unlock := s.writes.lock(id)
	defer unlock()
	// An insert that finished while we were reading wins over what we read.
	if current, ok := s.memory.get(id); ok {
		return current, nil
	}
	s.memory.put(id, content)
	return content, nil
}

// Stats reports the size of the memory tier.
func (s *Store) Stats() StoreStats {
	keys, bytes := s.memory.stats()
	return StoreStats{Keys: keys, Bytes: bytes, Persistent: s.backend != nil}
}

// Close releases the persistent tier.
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) storageFailure(ctx context.Context, op string, path ShardPath, err error) error {
	serr := &StorageError{Op: op, Path: path.Key(), Err: err}
	s.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	s.logger.ErrorContext(ctx, "persistent tier failure",
		slog.String("op", op),
		slog.String("path", path.Key()),
		slog.Any("error", err))
	return serr
}

func (s *Store) recordLookup(ctx context.Context, outcome string) {
	s.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
