// Package s3store implements the persistent tier on Amazon S3 or an
// S3-compatible service such as MinIO.
//
// Objects are keyed by <prefix><shard path>, e.g. "links/sha256/l5/ab/cd/abcd1".
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/meigma/shortblob/core"
)

// API is the subset of the S3 client used by Backend.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds connection settings for Backend.
type Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // optional custom endpoint (MinIO, LocalStack)
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Backend implements core.Backend on S3.
type Backend struct {
	client API
	bucket string
	prefix string
}

var _ core.Backend = (*Backend)(nil)

// New creates an S3 backend using the default AWS credential chain, or static
// credentials when both keys are set in cfg.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3store: bucket is required")
	}
	loadOpts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3store: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // required for MinIO/LocalStack
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient creates a backend over an existing client.
func NewWithClient(client API, bucket, prefix string) *Backend {
	return &Backend{client: client, bucket: bucket, prefix: prefix}
}

func (b *Backend) key(path core.ShardPath) string {
	return b.prefix + path.Key()
}

// Read implements core.Backend.
func (b *Backend) Read(ctx context.Context, path core.ShardPath) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3store: %s: %w", b.key(path), core.ErrNotFound)
		}
		return nil, fmt.Errorf("s3store: get %s: %w", b.key(path), err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3store: read %s: %w", b.key(path), err)
	}
	return data, nil
}

// Write implements core.Backend. S3 PUTs replace objects atomically.
func (b *Backend) Write(ctx context.Context, path core.ShardPath, content []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.key(path)),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("s3store: put %s: %w", b.key(path), err)
	}
	return nil
}

// Close implements core.Backend. The S3 client holds no resources.
func (b *Backend) Close() error { return nil }

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
