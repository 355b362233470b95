package reconciler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vaultScope/internal/metrics"
	"vaultScope/internal/model"
)

const defaultSweepDelay = 2 * time.Second

// ProjectSource lists the projects the sweep visits: those with both a
// resolved pool and a verified owner.
type ProjectSource interface {
	ListProjectsWithPoolAndOwner(ctx context.Context) ([]model.Project, error)
}

// PoolReconciler is the reconciliation entry point the sweep drives.
type PoolReconciler interface {
	Reconcile(ctx context.Context, req Request) (Outcome, error)
}

// Sweep re-invokes reconciliation for every verified project once at boot so
// routing or escrow left inconsistent before a restart converges again.
// Iterations are paced with a fixed delay to respect RPC rate limits.
type Sweep struct {
	projects ProjectSource
	rec      PoolReconciler
	limiter  *rate.Limiter
	logger   *zap.Logger
}

func NewSweep(projects ProjectSource, rec PoolReconciler, delay time.Duration, logger *zap.Logger) *Sweep {
	if logger == nil {
		logger = zap.NewNop()
	}
	if delay <= 0 {
		delay = defaultSweepDelay
	}
	return &Sweep{
		projects: projects,
		rec:      rec,
		limiter:  rate.NewLimiter(rate.Every(delay), 1),
		logger:   logger,
	}
}

// Run executes the sweep once. A store that is unreachable at start aborts
// the sweep without error: availability at boot wins over completeness.
// Per-project failures are logged and never stop the iteration.
func (s *Sweep) Run(ctx context.Context) {
	projects, err := s.projects.ListProjectsWithPoolAndOwner(ctx)
	if err != nil {
		s.logger.Warn("sweep skipped, project registry unreachable", zap.Error(err))
		return
	}
	if len(projects) == 0 {
		s.logger.Info("sweep found no verified projects")
		return
	}

	s.logger.Info("startup sweep begin", zap.Int("projects", len(projects)))

	failures := 0
	for _, project := range projects {
		if err := s.limiter.Wait(ctx); err != nil {
			s.logger.Info("startup sweep cancelled", zap.Error(err))
			return
		}

		metrics.SweepProjects.Inc()

		req := Request{
			PoolID:     project.PoolID,
			DevAddress: project.DevAddress,
			ProjectID:  project.ID,
		}
		if project.TokenAddress != nil {
			req.TokenAddress = *project.TokenAddress
		}

		outcome, err := s.rec.Reconcile(ctx, req)
		if err != nil {
			failures++
			metrics.SweepFailures.Inc()
			s.logger.Error("sweep reconciliation failed",
				zap.String("project_id", project.ID),
				zap.String("pool_id", project.PoolID),
				zap.Error(err),
			)
			continue
		}

		s.logger.Info("sweep reconciliation done",
			zap.String("project_id", project.ID),
			zap.String("pool_id", project.PoolID),
			zap.String("escrow_action", string(outcome.EscrowAction)),
		)
	}

	s.logger.Info("startup sweep complete",
		zap.Int("projects", len(projects)),
		zap.Int("failures", failures),
	)
}
