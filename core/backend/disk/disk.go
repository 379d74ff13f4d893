// Package disk implements the filesystem persistent tier.
//
// Content for identifier abcd1 (sha256, length 5) lives at
//
//	<root>/sha256/l5/ab/cd/abcd1
//
// or, when written with zstd compression, at <root>/sha256/l5/ab/cd/abcd1.zst.
// The suffix makes the encoding self-describing: reads try both leaves
// whatever the current write mode, and plain files stay byte-for-byte
// identical to the uncompressed layout.
//
// Each write lands in a temp file next to its target and is renamed into
// place, so readers never observe a partial file and concurrent writers to
// the same path resolve to whichever rename happens last.
package disk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"

	"github.com/meigma/shortblob/core"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

// Backend implements core.Backend on the local filesystem.
// The backend is safe for concurrent use.
type Backend struct {
	root        string
	dirPerm     os.FileMode
	filePerm    os.FileMode
	compression Compression
	encoder     *zstd.Encoder // nil unless compression is zstd
	bytes       atomic.Int64  // approximate size of stored files
	logger      *slog.Logger

	// Created on first decode.
	decOnce sync.Once
	decoder *zstd.Decoder
	decErr  error
}

var _ core.Backend = (*Backend)(nil)

// Option configures a disk backend.
type Option func(*Backend)

// WithDirPerm sets the permissions used for shard directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(b *Backend) {
		b.dirPerm = mode
	}
}

// WithFilePerm sets the permissions of stored files.
func WithFilePerm(mode os.FileMode) Option {
	return func(b *Backend) {
		b.filePerm = mode
	}
}

// WithCompression sets how new files are encoded. Reads accept both encodings
// regardless of this setting.
func WithCompression(c Compression) Option {
	return func(b *Backend) {
		b.compression = c
	}
}

// WithLogger sets the logger used for startup housekeeping.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// New creates a disk backend rooted at root, creating the directory if needed.
func New(root string, opts ...Option) (*Backend, error) {
	if root == "" {
		return nil, errors.New("disk: root is empty")
	}
	b := &Backend{
		root:     root,
		dirPerm:  defaultDirPerm,
		filePerm: defaultFilePerm,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.New(slog.DiscardHandler)
	}
	switch b.compression {
	case CompressionNone:
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("disk: zstd encoder: %w", err)
		}
		b.encoder = enc
	default:
		return nil, fmt.Errorf("disk: unsupported compression %d", b.compression)
	}
	if err := os.MkdirAll(root, b.dirPerm); err != nil {
		return nil, fmt.Errorf("disk: create root: %w", err)
	}
	size, removed, err := scanRoot(root)
	if err != nil {
		return nil, fmt.Errorf("disk: scan root: %w", err)
	}
	if removed > 0 {
		b.logger.Info("removed interrupted writes", slog.String("root", root), slog.Int("files", removed))
	}
	b.bytes.Store(size)
	return b, nil
}

// Root returns the root directory.
func (b *Backend) Root() string { return b.root }

// SizeBytes returns the approximate total size of stored files.
func (b *Backend) SizeBytes() int64 { return b.bytes.Load() }

// FilePath returns the location Write uses for path under the configured
// compression.
func (b *Backend) FilePath(path core.ShardPath) string {
	return b.leaf(path, b.compression)
}

func (b *Backend) leaf(path core.ShardPath, c Compression) string {
	name := filepath.Join(append([]string{b.root}, path.Segments()...)...)
	if c == CompressionZstd {
		name += zstdExt
	}
	return name
}

// Read implements core.Backend. The leaf for the configured compression is
// tried first, then the other encoding's leaf.
func (b *Backend) Read(_ context.Context, path core.ShardPath) ([]byte, error) {
	order := [2]Compression{CompressionNone, CompressionZstd}
	if b.compression == CompressionZstd {
		order = [2]Compression{CompressionZstd, CompressionNone}
	}
	for _, c := range order {
		data, err := os.ReadFile(b.leaf(path, c)) //nolint:gosec // path segments are validated hex
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if c == CompressionNone {
			return data, nil
		}
		return b.decode(path, data)
	}
	return nil, fmt.Errorf("disk: %s: %w", path.Key(), core.ErrNotFound)
}

func (b *Backend) decode(path core.ShardPath, data []byte) ([]byte, error) {
	b.decOnce.Do(func() {
		b.decoder, b.decErr = zstd.NewReader(nil)
	})
	if b.decErr != nil {
		return nil, fmt.Errorf("disk: zstd decoder: %w", b.decErr)
	}
	out, err := b.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("disk: decode %s: %w", path.Key(), err)
	}
	return out, nil
}

// Write implements core.Backend. Parent directories are created as needed;
// concurrent first writers to the same shard directory do not conflict.
// A copy under the other encoding's leaf is removed after the rename.
func (b *Backend) Write(_ context.Context, path core.ShardPath, content []byte) error {
	name := b.FilePath(path)
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, b.dirPerm); err != nil {
		return err
	}

	data := content
	if b.encoder != nil {
		data = b.encoder.EncodeAll(content, nil)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(b.filePerm); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	var previous int64
	if info, statErr := os.Stat(name); statErr == nil {
		previous = info.Size()
	}
	if err := os.Rename(tmpPath, name); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	b.bytes.Add(int64(len(data)) - previous)

	other := b.leaf(path, CompressionZstd)
	if b.compression == CompressionZstd {
		other = b.leaf(path, CompressionNone)
	}
	if info, statErr := os.Stat(other); statErr == nil {
		err := os.Remove(other)
		switch {
		case err == nil:
			b.bytes.Add(-info.Size())
		case !errors.Is(err, fs.ErrNotExist):
			return err
		}
	}
	return nil
}

// Close releases the zstd codecs, if any.
func (b *Backend) Close() error {
	if b.encoder != nil {
		_ = b.encoder.Close()
	}
	b.decOnce.Do(func() {})
	if b.decoder != nil {
		b.decoder.Close()
	}
	return nil
}
