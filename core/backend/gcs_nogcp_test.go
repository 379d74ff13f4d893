//go:build !gcp

package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meigma/shortblob/core"
	"github.com/meigma/shortblob/core/backend/gcsstore"
)

func TestOpenGCSRequiresBuildTag(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Type: TypeGCS, GCS: gcsstore.Config{Bucket: "links"}}, nil)
	assert.ErrorContains(t, err, "-tags gcp")
	assert.ErrorIs(t, err, core.ErrConfiguration)
}
