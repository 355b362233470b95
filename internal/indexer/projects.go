package indexer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"vaultScope/internal/metrics"
	"vaultScope/internal/storage"
)

// ProjectCache maintains the pool to project mapping used to attribute
// distribution records. It is rebuilt wholesale at the start of every poll
// cycle so newly launched tokens are picked up without a restart; readers
// always see either the old or the new full map, never a mix.
type ProjectCache struct {
	store  storage.Store
	logger *zap.Logger

	mu     sync.RWMutex
	byPool map[string]string
}

func NewProjectCache(store storage.Store, logger *zap.Logger) *ProjectCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectCache{
		store:  store,
		logger: logger,
		byPool: make(map[string]string),
	}
}

// Refresh replaces the whole mapping from the project registry.
func (c *ProjectCache) Refresh(ctx context.Context) error {
	pairs, err := c.store.ListPoolProjects(ctx)
	if err != nil {
		return fmt.Errorf("list pool projects: %w", err)
	}

	next := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		next[normalizePoolID(pair.PoolID)] = pair.ProjectID
	}

	c.mu.Lock()
	c.byPool = next
	c.mu.Unlock()
	return nil
}

// Resolve returns the projectId for a pool, if the registry knows it.
func (c *ProjectCache) Resolve(poolID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	projectID, ok := c.byPool[normalizePoolID(poolID)]
	return projectID, ok
}

// Len reports the number of cached pool mappings.
func (c *ProjectCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byPool)
}

// Repair backfills projectId onto records that were stored before their pool
// had a registry entry. Record volume is bounded to fee events, so a full
// pass per cycle stays cheap.
func (c *ProjectCache) Repair(ctx context.Context) (int64, error) {
	c.mu.RLock()
	snapshot := make(map[string]string, len(c.byPool))
	for pool, project := range c.byPool {
		snapshot[pool] = project
	}
	c.mu.RUnlock()

	var repaired int64
	for pool, project := range snapshot {
		rows, err := c.store.UpdateProjectIDForPoolID(ctx, pool, project)
		if err != nil {
			return repaired, fmt.Errorf("repair pool %s: %w", pool, err)
		}
		if rows > 0 {
			c.logger.Info("repaired project attribution",
				zap.String("pool_id", pool),
				zap.String("project_id", project),
				zap.Int64("records", rows),
			)
		}
		repaired += rows
	}
	if repaired > 0 {
		metrics.ProjectRepairs.Add(float64(repaired))
	}
	return repaired, nil
}

// normalizePoolID lower-cases hex pool ids so registry rows and decoded logs
// always agree on the map key.
func normalizePoolID(poolID string) string {
	return strings.ToLower(strings.TrimSpace(poolID))
}
