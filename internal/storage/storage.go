// Package storage persists generated audio artifacts. Two backends exist:
// an S3-compatible object store used in deployments and a local filesystem
// store for development. Only the object store can presign download URLs.
package storage

import (
	"context"

	"server/internal/domain"
	"server/internal/infra"
)

// New picks the artifact store backend from configuration: object storage
// when S3 credentials are present, the local filesystem otherwise.
func New(ctx context.Context, cfg *infra.Config) (domain.ArtifactStore, error) {
	if cfg.ObjectStorageEnabled() {
		return NewS3Store(ctx, cfg)
	}
	return NewFileStore(cfg.StoragePath)
}
