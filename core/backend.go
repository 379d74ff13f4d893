package core

import "context"

// Backend is a persistent tier addressed by shard path.
//
// Read returns an error matching ErrNotFound when nothing is stored at path.
// Write stores content at path, replacing anything already there; a single
// Write must never be observed partially by a concurrent Read.
// Implementations must be safe for concurrent use.
type Backend interface {
	Read(ctx context.Context, path ShardPath) ([]byte, error)
	Write(ctx context.Context, path ShardPath, content []byte) error
	Close() error
}
