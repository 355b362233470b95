package indexer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"vaultScope/internal/model"
)

func newTestPoller(t *testing.T, cfg PollerConfig, chain *fakeChain, store *fakeStore) *Poller {
	t.Helper()
	fetcher, err := NewFetcher(chain, []common.Address{common.HexToAddress("0x00000000000000000000000000000000000000f1")}, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	return NewPoller(cfg, chain, fetcher, store, NewProjectCache(store, nil), nil)
}

func TestPollerSeedsCursorWithoutScanning(t *testing.T) {
	chain := &fakeChain{head: 1000, timestamps: map[uint64]uint64{1000: 1700000000}}
	store := newFakeStore()
	p := newTestPoller(t, PollerConfig{}, chain, store)

	if err := p.catchUp(context.Background()); err != nil {
		t.Fatalf("first catchUp: %v", err)
	}
	if got, ok := store.cursors[CursorName]; !ok || got != 999 {
		t.Fatalf("cursor = %d (ok=%v), want 999", got, ok)
	}
	if len(chain.filterCalls) != 0 {
		t.Fatalf("seeding cycle scanned history: %+v", chain.filterCalls)
	}

	if err := p.catchUp(context.Background()); err != nil {
		t.Fatalf("second catchUp: %v", err)
	}
	if len(chain.filterCalls) != 1 || chain.filterCalls[0] != (BlockRange{From: 1000, To: 1000}) {
		t.Fatalf("second cycle scans = %+v, want [{1000 1000}]", chain.filterCalls)
	}
	if store.cursors[CursorName] != 1000 {
		t.Fatalf("cursor = %d, want 1000", store.cursors[CursorName])
	}
}

func TestPollerSeedsCursorFromStartBlock(t *testing.T) {
	chain := &fakeChain{head: 1000}
	store := newFakeStore()
	p := newTestPoller(t, PollerConfig{StartBlock: 500, BatchSize: 200}, chain, store)

	if err := p.catchUp(context.Background()); err != nil {
		t.Fatalf("first catchUp: %v", err)
	}
	if store.cursors[CursorName] != 499 {
		t.Fatalf("cursor = %d, want 499", store.cursors[CursorName])
	}

	if err := p.catchUp(context.Background()); err != nil {
		t.Fatalf("second catchUp: %v", err)
	}
	want := []BlockRange{{From: 500, To: 699}, {From: 700, To: 899}, {From: 900, To: 1000}}
	if len(chain.filterCalls) != len(want) {
		t.Fatalf("filter calls = %+v, want %+v", chain.filterCalls, want)
	}
	for i, call := range chain.filterCalls {
		if call != want[i] {
			t.Fatalf("filter call %d = %+v, want %+v", i, call, want[i])
		}
	}
}

func TestPollerPersistsCursorPerSubBatchMonotonically(t *testing.T) {
	chain := &fakeChain{head: 1000}
	store := newFakeStore()
	store.cursors[CursorName] = 399
	p := newTestPoller(t, PollerConfig{BatchSize: 250}, chain, store)

	if err := p.catchUp(context.Background()); err != nil {
		t.Fatalf("catchUp: %v", err)
	}

	if len(store.cursorHistory) == 0 {
		t.Fatalf("no cursor writes recorded")
	}
	prev := uint64(0)
	for i, block := range store.cursorHistory {
		if block < prev {
			t.Fatalf("cursor decreased at write %d: %d < %d", i, block, prev)
		}
		prev = block
	}
	if prev != 1000 {
		t.Fatalf("final cursor = %d, want 1000", prev)
	}
}

func TestPollerIdempotentAcrossRescan(t *testing.T) {
	pool := common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	dev := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token := common.HexToAddress("0x2222222222222222222222222222222222222222")
	log := depositLog(t, 1000, 3, common.HexToHash("0x01"), pool, dev, token, 100, 5)

	chain := &fakeChain{head: 1000, logs: []types.Log{log}, timestamps: map[uint64]uint64{1000: 1700000000}}
	store := newFakeStore()
	store.cursors[CursorName] = 999
	p := newTestPoller(t, PollerConfig{}, chain, store)

	if err := p.catchUp(context.Background()); err != nil {
		t.Fatalf("first catchUp: %v", err)
	}
	if len(store.records) != 1 {
		t.Fatalf("records = %d, want 1", len(store.records))
	}

	// Crash before the cursor write would rescan the same range.
	store.cursors[CursorName] = 999
	if err := p.catchUp(context.Background()); err != nil {
		t.Fatalf("second catchUp: %v", err)
	}
	if len(store.records) != 1 {
		t.Fatalf("rescan duplicated records: %d", len(store.records))
	}
	if got := p.Status().EventsIndexed; got != 1 {
		t.Fatalf("EventsIndexed = %d, want 1", got)
	}
}

func TestPollerResolvesProjectAtCreation(t *testing.T) {
	pool := common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	dev := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token := common.HexToAddress("0x2222222222222222222222222222222222222222")
	log := depositLog(t, 1000, 0, common.HexToHash("0x02"), pool, dev, token, 100, 5)

	chain := &fakeChain{head: 1000, logs: []types.Log{log}, timestamps: map[uint64]uint64{1000: 1700000000}}
	store := newFakeStore()
	store.cursors[CursorName] = 999
	store.pools = []model.PoolProject{{PoolID: pool.Hex(), ProjectID: "proj-7"}}
	p := newTestPoller(t, PollerConfig{}, chain, store)

	if err := p.catchUp(context.Background()); err != nil {
		t.Fatalf("catchUp: %v", err)
	}

	var rec model.DistributionRecord
	for _, r := range store.records {
		rec = r
	}
	if rec.ProjectID == nil || *rec.ProjectID != "proj-7" {
		t.Fatalf("projectId = %v, want proj-7", rec.ProjectID)
	}
}

func TestPollerRetryDelayDoublesAndResets(t *testing.T) {
	chain := &fakeChain{head: 1000}
	store := newFakeStore()
	p := newTestPoller(t, PollerConfig{RetryBackoff: time.Second, RetryCeiling: 4 * time.Second}, chain, store)

	for i := 0; i < 4; i++ {
		p.recordFailure(fmt.Errorf("rpc down"))
	}
	if p.retryDelay != 4*time.Second {
		t.Fatalf("retryDelay = %v, want ceiling 4s", p.retryDelay)
	}
	if p.Status().LastError != "rpc down" {
		t.Fatalf("lastError = %q", p.Status().LastError)
	}

	p.recordSuccess()
	if p.retryDelay != time.Second {
		t.Fatalf("retryDelay after success = %v, want 1s", p.retryDelay)
	}
	if p.Status().LastError != "" {
		t.Fatalf("lastError not cleared: %q", p.Status().LastError)
	}
}

func TestPollerStartStopLifecycle(t *testing.T) {
	chain := &fakeChain{head: 1000}
	store := newFakeStore()
	p := newTestPoller(t, PollerConfig{PollInterval: time.Hour}, chain, store)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := p.Start(context.Background()); err == nil {
		t.Fatalf("second start should fail while running")
	}

	waitFor(t, time.Second, func() bool {
		return p.Status().LastProcessedBlock == 999
	})
	if !p.Status().IsRunning {
		t.Fatalf("status should report running")
	}

	p.Stop()
	if p.Status().IsRunning {
		t.Fatalf("status should report stopped")
	}

	// Stopped to Running again.
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	p.Stop()
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// fakeChain implements ChainReader over a fixed log set.
type fakeChain struct {
	mu          sync.Mutex
	head        uint64
	headErr     error
	logs        []types.Log
	filterErr   error
	filterCalls []BlockRange
	timestamps  map[uint64]uint64
	tsCalls     int
}

func (c *fakeChain) LatestBlockNumber(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.headErr != nil {
		return 0, c.headErr
	}
	return c.head, nil
}

func (c *fakeChain) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics []common.Hash) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filterCalls = append(c.filterCalls, BlockRange{From: fromBlock, To: toBlock})
	if c.filterErr != nil {
		return nil, c.filterErr
	}
	var out []types.Log
	for _, log := range c.logs {
		if log.BlockNumber >= fromBlock && log.BlockNumber <= toBlock {
			out = append(out, log)
		}
	}
	return out, nil
}

func (c *fakeChain) BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tsCalls++
	ts, ok := c.timestamps[blockNumber]
	if !ok {
		return 0, fmt.Errorf("no timestamp for block %d", blockNumber)
	}
	return ts, nil
}

// fakeStore implements storage.Store in memory.
type fakeStore struct {
	mu            sync.Mutex
	records       map[string]model.DistributionRecord
	insertOrder   []string
	cursors       map[string]uint64
	cursorHistory []uint64
	pools         []model.PoolProject
	projects      []model.Project
	repairRows    map[string]int64
	repairCalls   []string
	listErr       error
	insertErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:    make(map[string]model.DistributionRecord),
		cursors:    make(map[string]uint64),
		repairRows: make(map[string]int64),
	}
}

func (s *fakeStore) InsertDistributionIfAbsent(ctx context.Context, rec model.DistributionRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return false, s.insertErr
	}
	key := rec.Key()
	if _, ok := s.records[key]; ok {
		return false, nil
	}
	s.records[key] = rec
	s.insertOrder = append(s.insertOrder, key)
	return true, nil
}

func (s *fakeStore) GetCursor(ctx context.Context, name string) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	block, ok := s.cursors[name]
	return block, ok, nil
}

func (s *fakeStore) SetCursor(ctx context.Context, name string, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[name] = block
	s.cursorHistory = append(s.cursorHistory, block)
	return nil
}

func (s *fakeStore) ListPoolProjects(ctx context.Context) ([]model.PoolProject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]model.PoolProject(nil), s.pools...), nil
}

func (s *fakeStore) ListProjectsWithPoolAndOwner(ctx context.Context) ([]model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Project(nil), s.projects...), nil
}

func (s *fakeStore) UpdateProjectIDForPoolID(ctx context.Context, poolID, projectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repairCalls = append(s.repairCalls, poolID)
	return s.repairRows[poolID], nil
}
