// Package backend selects and opens a persistent tier from configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meigma/shortblob/core"
	"github.com/meigma/shortblob/core/backend/disk"
	"github.com/meigma/shortblob/core/backend/gcsstore"
	"github.com/meigma/shortblob/core/backend/redisstore"
	"github.com/meigma/shortblob/core/backend/s3store"
	"github.com/meigma/shortblob/core/backend/sqlstore"
)

// Type names a persistent tier implementation.
type Type string

const (
	TypeDisk   Type = "disk"
	TypeMemory Type = "memory"
	TypeS3     Type = "s3"
	TypeGCS    Type = "gcs"
	TypeRedis  Type = "redis"
	TypeSQL    Type = "sql"
)

// Types lists every known backend name.
func Types() []Type {
	return []Type{TypeDisk, TypeMemory, TypeS3, TypeGCS, TypeRedis, TypeSQL}
}

// DiskConfig configures the filesystem tier.
type DiskConfig struct {
	Root        string `yaml:"root"`
	Compression string `yaml:"compression"`
}

// Config selects a backend by Type and carries the settings for each kind.
// Only the section matching Type is read.
type Config struct {
	Type  Type              `yaml:"type"`
	Disk  DiskConfig        `yaml:"disk"`
	S3    s3store.Config    `yaml:"s3"`
	GCS   gcsstore.Config   `yaml:"gcs"`
	Redis redisstore.Config `yaml:"redis"`
	SQL   sqlstore.Config   `yaml:"sql"`
}

// Validate checks that Type is known and its required settings are present.
func (c Config) Validate() error {
	switch c.Type {
	case TypeDisk, TypeMemory, "":
		if _, err := disk.ParseCompression(c.Disk.Compression); err != nil {
			return &core.ConfigError{Field: "backend.disk.compression", Reason: err.Error()}
		}
	case TypeS3:
		if c.S3.Bucket == "" {
			return &core.ConfigError{Field: "backend.s3.bucket", Reason: "required"}
		}
	case TypeGCS:
		if c.GCS.Bucket == "" {
			return &core.ConfigError{Field: "backend.gcs.bucket", Reason: "required"}
		}
	case TypeRedis:
		if c.Redis.Addr == "" {
			return &core.ConfigError{Field: "backend.redis.addr", Reason: "required"}
		}
	case TypeSQL:
		if c.SQL.Driver != sqlstore.DriverPostgres && c.SQL.Driver != sqlstore.DriverSQLite {
			return &core.ConfigError{Field: "backend.sql.driver", Reason: fmt.Sprintf("unsupported driver %q", c.SQL.Driver)}
		}
		if c.SQL.DSN == "" {
			return &core.ConfigError{Field: "backend.sql.dsn", Reason: "required"}
		}
	default:
		return &core.ConfigError{Field: "backend.type", Reason: fmt.Sprintf("unknown backend %q", c.Type)}
	}
	return nil
}

// Open builds the backend named by cfg.Type. An empty Type means disk.
//
// A nil Backend with a nil error means memory-only operation: either the
// memory type was requested or the disk root is empty. The latter is logged
// at WARN because nothing will survive a restart.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (core.Backend, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case TypeMemory:
		logger.InfoContext(ctx, "persistent tier disabled", "backend", TypeMemory)
		return nil, nil
	case TypeDisk, "":
		if cfg.Disk.Root == "" {
			logger.WarnContext(ctx, "disk root is empty, running memory-only; content will not survive restart")
			return nil, nil
		}
		comp, _ := disk.ParseCompression(cfg.Disk.Compression)
		b, err := disk.New(cfg.Disk.Root, disk.WithCompression(comp), disk.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "opened disk backend",
			"root", b.Root(),
			"compression", comp.String(),
			"size_bytes", b.SizeBytes())
		return b, nil
	case TypeS3:
		b, err := s3store.New(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "opened s3 backend", "bucket", cfg.S3.Bucket, "endpoint", cfg.S3.Endpoint)
		return b, nil
	case TypeGCS:
		b, err := openGCS(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "opened gcs backend", "bucket", cfg.GCS.Bucket)
		return b, nil
	case TypeRedis:
		b, err := redisstore.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "opened redis backend", "addr", cfg.Redis.Addr)
		return b, nil
	case TypeSQL:
		b, err := sqlstore.Open(ctx, cfg.SQL)
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "opened sql backend", "driver", cfg.SQL.Driver)
		return b, nil
	}
	return nil, &core.ConfigError{Field: "backend.type", Reason: fmt.Sprintf("unknown backend %q", cfg.Type)}
}
