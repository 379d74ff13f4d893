//go:build !gcp

package backend

import (
	"context"

	"github.com/meigma/shortblob/core"
	"github.com/meigma/shortblob/core/backend/gcsstore"
)

func openGCS(context.Context, gcsstore.Config) (core.Backend, error) {
	return nil, &core.ConfigError{
		Field:  "backend.type",
		Reason: "gcs storage is not enabled in this build (use -tags gcp)",
	}
}
