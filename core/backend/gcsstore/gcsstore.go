//go:build gcp

package gcsstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/meigma/shortblob/core"
)

// Backend implements core.Backend on a GCS bucket. Objects are keyed by
// <prefix><shard path>.
type Backend struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ core.Backend = (*Backend)(nil)

// New creates a GCS client using Application Default Credentials.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcsstore: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcsstore: create client: %w", err)
	}
	return &Backend{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (b *Backend) object(path core.ShardPath) *storage.ObjectHandle {
	return b.client.Bucket(b.bucket).Object(b.prefix + path.Key())
}

// Read implements core.Backend.
func (b *Backend) Read(ctx context.Context, path core.ShardPath) ([]byte, error) {
	r, err := b.object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("gcsstore: %s: %w", path.Key(), core.ErrNotFound)
		}
		return nil, fmt.Errorf("gcsstore: get %s: %w", path.Key(), err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcsstore: read %s: %w", path.Key(), err)
	}
	return data, nil
}

// Write implements core.Backend. The object becomes visible only when the
// writer closes successfully.
func (b *Backend) Write(ctx context.Context, path core.ShardPath, content []byte) error {
	w := b.object(path).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcsstore: write %s: %w", path.Key(), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcsstore: close %s: %w", path.Key(), err)
	}
	return nil
}

// Close implements core.Backend.
func (b *Backend) Close() error {
	return b.client.Close()
}
