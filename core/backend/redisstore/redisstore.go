// Package redisstore implements the persistent tier on Redis.
//
// Each identifier is a plain string key, <prefix><shard path>. Keys never
// expire; the server should run with persistence (AOF or RDB) enabled for
// the tier to survive restarts.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/meigma/shortblob/core"
)

// Config holds connection settings for Backend.
type Config struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Backend implements core.Backend on Redis.
type Backend struct {
	client redis.UniversalClient
	prefix string
	owned  bool // close client on Close
}

var _ core.Backend = (*Backend)(nil)

// New connects to the Redis server in cfg and verifies it with PING.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redisstore: addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", cfg.Addr, err)
	}
	b := NewWithClient(client, cfg.Prefix)
	b.owned = true
	return b, nil
}

// NewWithClient creates a backend over an existing client. Close does not
// close a client supplied this way.
func NewWithClient(client redis.UniversalClient, prefix string) *Backend {
	return &Backend{client: client, prefix: prefix}
}

func (b *Backend) key(path core.ShardPath) string {
	return b.prefix + path.Key()
}

// Read implements core.Backend.
func (b *Backend) Read(ctx context.Context, path core.ShardPath) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key(path)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redisstore: %s: %w", b.key(path), core.ErrNotFound)
		}
		return nil, fmt.Errorf("redisstore: get %s: %w", b.key(path), err)
	}
	return data, nil
}

// Write implements core.Backend. SET replaces the value atomically.
func (b *Backend) Write(ctx context.Context, path core.ShardPath, content []byte) error {
	if err := b.client.Set(ctx, b.key(path), content, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: set %s: %w", b.key(path), err)
	}
	return nil
}

// Close implements core.Backend.
func (b *Backend) Close() error {
	if !b.owned {
		return nil
	}
	return b.client.Close()
}
