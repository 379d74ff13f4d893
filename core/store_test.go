package core_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/meigma/shortblob/core"
	"github.com/meigma/shortblob/core/testutil"
)

func newStore(t *testing.T, length int, opts ...core.Option) *core.Store {
	t.Helper()
	h, err := core.NewHasher("sha256", length)
	require.NoError(t, err)
	s, err := core.NewStore(h, opts...)
	require.NoError(t, err)
	return s
}

func TestStoreInsertLookup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := testutil.NewMemBackend()
	s := newStore(t, 5, core.WithBackend(backend))

	id, err := s.Insert(ctx, []byte("https://example.com/"))
	require.NoError(t, err)
	assert.Equal(t, core.ID("0f115"), id)

	got, err := s.Lookup(ctx, id.String())
	require.NoError(t, err)
	assert.Equal(t, []byte("https://example.com/"), got)

	raw, ok := backend.Get("sha256/l5/0f/11/0f115")
	require.True(t, ok, "content should be written to the shard path")
	assert.Equal(t, []byte("https://example.com/"), raw)
	assert.Zero(t, backend.Reads(), "memory hit must not touch the persistent tier")
}

func TestStoreInsertDeterministic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t, 5, core.WithBackend(testutil.NewMemBackend()))

	first, err := s.Insert(ctx, []byte("same content"))
	require.NoError(t, err)
	for range 5 {
		again, err := s.Insert(ctx, []byte("same content"))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 1, s.Stats().Keys)
}

func TestStoreCacheFillOnMiss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := testutil.NewMemBackend()

	before := newStore(t, 5, core.WithBackend(backend))
	id, err := before.Insert(ctx, []byte("https://example.com/"))
	require.NoError(t, err)

	// A fresh store over the same backend models a process restart.
	after := newStore(t, 5, core.WithBackend(backend))
	assert.Zero(t, after.Stats().Keys)

	got, err := after.Lookup(ctx, id.String())
	require.NoError(t, err)
	assert.Equal(t, []byte("https://example.com/"), got)
	assert.Equal(t, int64(1), backend.Reads())

	got, err = after.Lookup(ctx, id.String())
	require.NoError(t, err)
	assert.Equal(t, []byte("https://example.com/"), got)
	assert.Equal(t, int64(1), backend.Reads(), "second lookup must be served from memory")
	assert.Equal(t, 1, after.Stats().Keys)
}

func TestStoreLookupNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := testutil.NewMemBackend()
	s := newStore(t, 5, core.WithBackend(backend))

	tests := []struct {
		name string
		id   string
	}{
		{"non hex", "zzzzz"},
		{"absent", "abcde"},
		{"wrong length", "abc"},
		{"traversal", "../.."},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Lookup(ctx, tt.id)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrNotFound)
			assert.NotErrorIs(t, err, core.ErrStorageFailure)
		})
	}
}

func TestStoreMemoryOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t, 5)
	assert.False(t, s.Persistent())

	id, err := s.Insert(ctx, []byte("volatile"))
	require.NoError(t, err)

	got, err := s.Lookup(ctx, id.String())
	require.NoError(t, err)
	assert.Equal(t, []byte("volatile"), got)

	restarted := newStore(t, 5)
	_, err = restarted.Lookup(ctx, id.String())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStoreCollisionLastWriterWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := testutil.NewMemBackend()
	// sha256("c1") and sha256("c5") both start with "d0".
	s := newStore(t, 2, core.WithBackend(backend))

	a, err := s.Insert(ctx, []byte("c1"))
	require.NoError(t, err)
	b, err := s.Insert(ctx, []byte("c5"))
	require.NoError(t, err)
	require.Equal(t, a, b)
	assert.Equal(t, core.ID("d0"), a)

	got, err := s.Lookup(ctx, "d0")
	require.NoError(t, err)
	assert.Equal(t, []byte("c5"), got)

	raw, ok := backend.Get("sha256/l2/d0")
	require.True(t, ok)
	assert.Equal(t, []byte("c5"), raw)
}

func TestStoreStorageFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	boom := errors.New("disk on fire")
	s := newStore(t, 5, core.WithBackend(&testutil.FailingBackend{Err: boom}))

	_, err := s.Insert(ctx, []byte("content"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorageFailure)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, core.ErrNotFound)

	var serr *core.StorageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "write", serr.Op)
	assert.Zero(t, s.Stats().Keys, "failed insert must not populate memory")

	_, err = s.Lookup(ctx, "abcde")
	assert.ErrorIs(t, err, core.ErrStorageFailure)
	assert.NotErrorIs(t, err, core.ErrNotFound)
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "read", serr.Op)
	assert.Equal(t, "sha256/l5/ab/cd/abcde", serr.Path)
}

func TestStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t, 5)

	content := []byte("mutable")
	id, err := s.Insert(ctx, content)
	require.NoError(t, err)
	content[0] = 'X'

	got, err := s.Lookup(ctx, id.String())
	require.NoError(t, err)
	assert.Equal(t, []byte("mutable"), got)

	got[0] = 'Y'
	again, err := s.Lookup(ctx, id.String())
	require.NoError(t, err)
	assert.Equal(t, []byte("mutable"), again)
}

func TestStoreConcurrentAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := testutil.NewMemBackend()
	s := newStore(t, 5, core.WithBackend(backend), core.WithMemoryShards(4))

	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				content := []byte(fmt.Sprintf("https://example.com/%d/%d", w%4, i))
				id, err := s.Insert(ctx, content)
				if err != nil {
					errs <- err
					return
				}
				if _, err := s.Lookup(ctx, id.String()); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, backend.Keys(), s.Stats().Keys)
}

func TestStoreConcurrentFillSharesRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := testutil.NewMemBackend()
	seed := newStore(t, 5, core.WithBackend(backend))
	id, err := seed.Insert(ctx, []byte("shared"))
	require.NoError(t, err)

	s := newStore(t, 5, core.WithBackend(backend))
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Lookup(ctx, id.String())
			assert.NoError(t, err)
			assert.Equal(t, []byte("shared"), got)
		}()
	}
	wg.Wait()
	// Allow a second read if a caller checked memory before the first flight
	// started and joined after it finished.
	assert.LessOrEqual(t, backend.Reads(), int64(2))
}

func TestStoreFillIgnoresCallerCancellation(t *testing.T) {
	t.Parallel()

	backend := testutil.NewMemBackend()
	seed := newStore(t, 5, core.WithBackend(backend))
	id, err := seed.Insert(context.Background(), []byte("https://example.com/"))
	require.NoError(t, err)

	gated := testutil.NewGatedBackend(backend)
	close(gated.Release)
	s := newStore(t, 5, core.WithBackend(gated))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := s.Lookup(ctx, id.String())
	require.NoError(t, err)
	assert.Equal(t, []byte("https://example.com/"), got)
}

func TestStoreCancelledWaiterDoesNotFailSharedFill(t *testing.T) {
	t.Parallel()

	backend := testutil.NewMemBackend()
	seed := newStore(t, 5, core.WithBackend(backend))
	id, err := seed.Insert(context.Background(), []byte("https://example.com/"))
	require.NoError(t, err)

	gated := testutil.NewGatedBackend(backend)
	s := newStore(t, 5, core.WithBackend(gated))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := s.Lookup(ctx, id.String())
		first <- err
	}()
	<-gated.Entered

	second := make(chan error, 1)
	var got []byte
	go func() {
		var err error
		got, err = s.Lookup(context.Background(), id.String())
		second <- err
	}()

	cancel()
	close(gated.Release)
	require.NoError(t, <-second)
	assert.Equal(t, []byte("https://example.com/"), got)
	assert.NoError(t, <-first)
}

func TestStoreMetrics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	s := newStore(t, 5, core.WithBackend(testutil.NewMemBackend()), core.WithMeterProvider(mp))

	id, err := s.Insert(ctx, []byte("measured"))
	require.NoError(t, err)
	_, err = s.Lookup(ctx, id.String())
	require.NoError(t, err)
	_, err = s.Lookup(ctx, "zzzzz")
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(1), totals["shortblob.store.inserts"])
	assert.Equal(t, int64(2), totals["shortblob.store.lookups"])
}

func TestNewStoreNilHasher(t *testing.T) {
	t.Parallel()

	_, err := core.NewStore(nil)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}
