//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meigma/shortblob/core/backend/s3store"
)

const (
	minioUser     = "minioadmin"
	minioPassword = "minioadmin"
	minioBucket   = "shortblob"
	pgPassword    = "shortblob"
)

// --- Container Setup ---

// containers are shared across tests and cleaned up by the testcontainers reaper.
var (
	redisOnce sync.Once
	redisAddr string
	redisErr  error

	minioOnce sync.Once
	minioCfg  s3store.Config
	minioErr  error

	postgresOnce sync.Once
	postgresDSN  string
	postgresErr  error
)

func skipWithoutDocker(tb testing.TB) {
	tb.Helper()
	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}
}

// getRedis returns the address of the shared Redis server.
func getRedis(tb testing.TB) string {
	tb.Helper()
	skipWithoutDocker(tb)

	redisOnce.Do(func() {
		redisAddr, redisErr = startContainer(context.Background(), testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		}, "6379/tcp")
	})
	if redisErr != nil {
		tb.Fatalf("start redis container: %v", redisErr)
	}
	return redisAddr
}

// getMinio returns backend settings for the shared MinIO server with the
// test bucket already created.
func getMinio(tb testing.TB) s3store.Config {
	tb.Helper()
	skipWithoutDocker(tb)

	minioOnce.Do(func() {
		ctx := context.Background()
		var addr string
		addr, minioErr = startContainer(ctx, testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioPassword,
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000/tcp"),
		}, "9000/tcp")
		if minioErr != nil {
			return
		}
		minioCfg = s3store.Config{
			Bucket:          minioBucket,
			Region:          "us-east-1",
			Endpoint:        "http://" + addr,
			AccessKeyID:     minioUser,
			SecretAccessKey: minioPassword,
		}
		minioErr = createBucket(ctx, minioCfg)
	})
	if minioErr != nil {
		tb.Fatalf("start minio container: %v", minioErr)
	}
	return minioCfg
}

// getPostgres returns a DSN for the shared PostgreSQL server.
func getPostgres(tb testing.TB) string {
	tb.Helper()
	skipWithoutDocker(tb)

	postgresOnce.Do(func() {
		var addr string
		addr, postgresErr = startContainer(context.Background(), testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env:          map[string]string{"POSTGRES_PASSWORD": pgPassword},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		}, "5432/tcp")
		postgresDSN = fmt.Sprintf("postgres://postgres:%s@%s/postgres?sslmode=disable", pgPassword, addr)
	})
	if postgresErr != nil {
		tb.Fatalf("start postgres container: %v", postgresErr)
	}
	return postgresDSN
}

// startContainer starts req and returns the host:port mapped to port.
func startContainer(ctx context.Context, req testcontainers.ContainerRequest, port nat.Port) (string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start %s: %w", req.Image, err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve %s host: %w", req.Image, err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		return "", fmt.Errorf("resolve %s port: %w", req.Image, err)
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port()), nil
}

func createBucket(ctx context.Context, cfg s3store.Config) error {
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	})
	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(cfg.Bucket)})
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
	}
	return nil
}
