package storage

import (
	"context"

	"vaultScope/internal/model"
)

// Store is the narrow persistence contract shared by the indexer and the
// reconciler. Schema management lives with the surrounding platform.
type Store interface {
	// InsertDistributionIfAbsent writes a record keyed by (tx_hash, log_index)
	// and reports whether a new row was created.
	InsertDistributionIfAbsent(ctx context.Context, rec model.DistributionRecord) (bool, error)

	GetCursor(ctx context.Context, name string) (uint64, bool, error)
	SetCursor(ctx context.Context, name string, block uint64) error

	// ListPoolProjects returns every (poolId, projectId) pair the project
	// registry currently knows.
	ListPoolProjects(ctx context.Context) ([]model.PoolProject, error)

	// ListProjectsWithPoolAndOwner returns projects holding both a resolved
	// pool and a verified owner address.
	ListProjectsWithPoolAndOwner(ctx context.Context) ([]model.Project, error)

	// UpdateProjectIDForPoolID stamps projectId onto distribution rows for the
	// pool that were stored before the mapping existed, returning the number
	// of rows repaired.
	UpdateProjectIDForPoolID(ctx context.Context, poolID, projectID string) (int64, error)
}
