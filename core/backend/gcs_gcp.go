//go:build gcp

package backend

import (
	"context"

	"github.com/meigma/shortblob/core"
	"github.com/meigma/shortblob/core/backend/gcsstore"
)

func openGCS(ctx context.Context, cfg gcsstore.Config) (core.Backend, error) {
	b, err := gcsstore.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}
