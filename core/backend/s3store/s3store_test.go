package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/shortblob/core"
)

// fakeS3 is an in-memory API keyed by bucket/key.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func testPath(t *testing.T) core.ShardPath {
	t.Helper()
	p, err := core.Resolve("sha256", 5, "abcd1")
	require.NoError(t, err)
	return p
}

func TestBackendRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	api := newFakeS3()
	b := NewWithClient(api, "links", "goto/")

	require.NoError(t, b.Write(ctx, testPath(t), []byte("https://example.com/")))
	assert.Contains(t, api.objects, "links/goto/sha256/l5/ab/cd/abcd1")

	got, err := b.Read(ctx, testPath(t))
	require.NoError(t, err)
	assert.Equal(t, []byte("https://example.com/"), got)
	assert.NoError(t, b.Close())
}

func TestBackendNotFound(t *testing.T) {
	t.Parallel()

	b := NewWithClient(newFakeS3(), "links", "")
	_, err := b.Read(context.Background(), testPath(t))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBackendNotFoundAPIError(t *testing.T) {
	t.Parallel()

	api := newFakeS3()
	api.getErr = &smithy.GenericAPIError{Code: "NotFound", Message: "404"}
	b := NewWithClient(api, "links", "")
	_, err := b.Read(context.Background(), testPath(t))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBackendOtherErrors(t *testing.T) {
	t.Parallel()

	api := newFakeS3()
	api.getErr = &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
	b := NewWithClient(api, "links", "")
	_, err := b.Read(context.Background(), testPath(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrNotFound)

	api.getErr = errors.New("connection reset")
	_, err = b.Read(context.Background(), testPath(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrNotFound)
}

func TestNewRequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Region: "us-east-1"})
	assert.Error(t, err)
}
