package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"vaultScope/internal/metrics"
	"vaultScope/internal/storage"
)

// CursorName keys the indexer cursor in the persisted store.
const CursorName = "fee_distributions"

const (
	defaultBatchSize    = 1000
	defaultPollInterval = 15 * time.Second
	defaultRetryBackoff = 5 * time.Second
	defaultRetryCeiling = 5 * time.Minute
)

// PollerConfig holds runtime settings for the polling controller.
type PollerConfig struct {
	// StartBlock, when non-zero, seeds a missing cursor at StartBlock-1
	// instead of just behind the chain head.
	StartBlock   uint64
	BatchSize    uint64
	PollInterval time.Duration
	RetryBackoff time.Duration
	RetryCeiling time.Duration
}

// Status is an on-demand snapshot of poller state.
type Status struct {
	IsRunning          bool      `json:"isRunning"`
	LastProcessedBlock uint64    `json:"lastProcessedBlock"`
	CurrentBlock       uint64    `json:"currentBlock"`
	BlockLag           uint64    `json:"blockLag"`
	LastError          string    `json:"lastError,omitempty"`
	EventsIndexed      uint64    `json:"eventsIndexed"`
	StartedAt          time.Time `json:"startedAt"`
}

// Poller drives backfill-then-steady-state indexing of vault events. Exactly
// one instance may run against a given cursor; concurrent pollers would race
// on the cursor read-modify-write.
type Poller struct {
	cfg      PollerConfig
	chain    ChainReader
	fetcher  *Fetcher
	store    storage.Store
	projects *ProjectCache
	logger   *zap.Logger

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	doneCh     chan struct{}
	startedAt  time.Time
	lastBlock  uint64
	headBlock  uint64
	lastError  string
	indexed    uint64
	retryDelay time.Duration
}

// NewPoller builds a Poller with its dependencies.
func NewPoller(cfg PollerConfig, chainReader ChainReader, fetcher *Fetcher, store storage.Store, projects *ProjectCache, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.RetryCeiling < cfg.RetryBackoff {
		cfg.RetryCeiling = defaultRetryCeiling
	}
	return &Poller{
		cfg:        cfg,
		chain:      chainReader,
		fetcher:    fetcher,
		store:      store,
		projects:   projects,
		logger:     logger,
		retryDelay: cfg.RetryBackoff,
	}
}

// Start transitions the poller to running and schedules the first cycle
// immediately. It fails if the poller is already running.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("poller already running")
	}
	p.running = true
	p.startedAt = time.Now().UTC()
	p.lastError = ""
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.loop(ctx, p.stopCh, p.doneCh)
	return nil
}

// Stop is cooperative: it clears the pending timer and waits for any
// in-flight cycle to finish. It never interrupts work already started.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	<-doneCh
}

// Status returns a point-in-time snapshot.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lag uint64
	if p.headBlock > p.lastBlock {
		lag = p.headBlock - p.lastBlock
	}
	return Status{
		IsRunning:          p.running,
		LastProcessedBlock: p.lastBlock,
		CurrentBlock:       p.headBlock,
		BlockLag:           lag,
		LastError:          p.lastError,
		EventsIndexed:      p.indexed,
		StartedAt:          p.startedAt,
	}
}

func (p *Poller) loop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-timer.C:
		}

		if err := p.catchUp(ctx); err != nil {
			p.recordFailure(err)
		} else {
			p.recordSuccess()
		}

		// The retry-delay counter above is diagnostic; the cadence itself
		// stays fixed.
		timer.Reset(p.cfg.PollInterval)
	}
}

// catchUp reads the chain head and scans [cursor+1, head] in fixed-size
// sub-batches, persisting the cursor after each so a crash mid-backfill
// loses at most one sub-batch of progress. A missing cursor is seeded just
// behind the head (or at StartBlock-1) without scanning prior history.
func (p *Poller) catchUp(ctx context.Context) error {
	// Registry refresh first so launches since the last cycle resolve now.
	// A stale map is still a consistent map, so failure is not fatal here.
	if err := p.projects.Refresh(ctx); err != nil {
		p.logger.Warn("project registry refresh failed", zap.Error(err))
	}

	// Backfill project ids onto rows indexed before their launch registered.
	// Runs every cycle, idle ones included.
	if _, err := p.projects.Repair(ctx); err != nil {
		p.logger.Warn("project repair pass failed", zap.Error(err))
	}

	head, err := p.chain.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("latest block: %w", err)
	}

	cursor, ok, err := p.store.GetCursor(ctx, CursorName)
	if err != nil {
		return fmt.Errorf("get cursor: %w", err)
	}
	if !ok {
		var seed uint64
		if head > 0 {
			seed = head - 1
		}
		if p.cfg.StartBlock > 0 {
			seed = p.cfg.StartBlock - 1
		}
		if err := p.store.SetCursor(ctx, CursorName, seed); err != nil {
			return fmt.Errorf("seed cursor: %w", err)
		}
		p.setProgress(seed, head)
		p.logger.Info("cursor seeded", zap.Uint64("block", seed), zap.Uint64("head", head))
		return nil
	}

	if head <= cursor {
		p.setProgress(cursor, head)
		return nil
	}

	ranges, err := SplitRange(cursor+1, head, p.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		started := time.Now()

		records, err := p.fetcher.FetchRange(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return err
		}

		inserted := 0
		for i := range records {
			record := &records[i]
			if record.PoolID != nil && record.ProjectID == nil {
				if projectID, ok := p.projects.Resolve(*record.PoolID); ok {
					record.ProjectID = &projectID
				}
			}
			created, err := p.store.InsertDistributionIfAbsent(ctx, *record)
			if err != nil {
				return fmt.Errorf("insert distribution %s: %w", record.Key(), err)
			}
			if created {
				inserted++
				metrics.EventsIndexed.WithLabelValues(string(record.EventType)).Inc()
			} else {
				metrics.EventsDuplicate.Inc()
			}
		}

		if err := p.store.SetCursor(ctx, CursorName, blockRange.To); err != nil {
			return fmt.Errorf("set cursor: %w", err)
		}

		p.addIndexed(uint64(inserted))
		p.setProgress(blockRange.To, head)
		metrics.BatchesProcessed.Inc()
		metrics.BatchLatency.Observe(time.Since(started).Seconds())

		p.logger.Info("batch complete",
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
			zap.Int("records", len(records)),
			zap.Int("inserted", inserted),
		)
	}

	return nil
}

func (p *Poller) recordFailure(err error) {
	metrics.BatchErrors.Inc()

	p.mu.Lock()
	p.lastError = err.Error()
	delay := p.retryDelay
	p.retryDelay *= 2
	if p.retryDelay > p.cfg.RetryCeiling {
		p.retryDelay = p.cfg.RetryCeiling
	}
	p.mu.Unlock()

	p.logger.Error("poll cycle failed", zap.Error(err), zap.Duration("retry_delay", delay))
}

func (p *Poller) recordSuccess() {
	p.mu.Lock()
	p.lastError = ""
	p.retryDelay = p.cfg.RetryBackoff
	p.mu.Unlock()
}

func (p *Poller) setProgress(lastBlock, headBlock uint64) {
	p.mu.Lock()
	p.lastBlock = lastBlock
	p.headBlock = headBlock
	p.mu.Unlock()

	metrics.CursorBlock.Set(float64(lastBlock))
	if headBlock > lastBlock {
		metrics.BlockLag.Set(float64(headBlock - lastBlock))
	} else {
		metrics.BlockLag.Set(0)
	}
}

func (p *Poller) addIndexed(n uint64) {
	p.mu.Lock()
	p.indexed += n
	p.mu.Unlock()
}
