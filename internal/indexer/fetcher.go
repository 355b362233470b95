package indexer

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"vaultScope/internal/metrics"
	"vaultScope/internal/model"
	"vaultScope/internal/vault"
)

// ChainReader is the ledger surface the indexer consumes.
type ChainReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics []common.Hash) ([]types.Log, error)
	BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error)
}

// Fetcher queries a block range for vault logs and decodes each into a
// distribution record.
type Fetcher struct {
	chain     ChainReader
	addresses []common.Address
	topics    []common.Hash
	logger    *zap.Logger
}

func NewFetcher(chainReader ChainReader, vaults []common.Address, logger *zap.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(vaults) == 0 {
		return nil, fmt.Errorf("at least one vault address is required")
	}
	topics, err := vault.EventTopics()
	if err != nil {
		return nil, err
	}
	return &Fetcher{
		chain:     chainReader,
		addresses: vaults,
		topics:    topics,
		logger:    logger,
	}, nil
}

// FetchRange returns decoded records for the inclusive range in ascending
// (blockNumber, logIndex) order. Timestamps are resolved once per distinct
// block. A log that fails to decode is skipped and logged, never aborting
// the rest of the range.
func (f *Fetcher) FetchRange(ctx context.Context, fromBlock, toBlock uint64) ([]model.DistributionRecord, error) {
	logs, err := f.chain.FilterLogs(ctx, fromBlock, toBlock, f.addresses, f.topics)
	if err != nil {
		return nil, fmt.Errorf("filter logs [%d, %d]: %w", fromBlock, toBlock, err)
	}
	if len(logs) == 0 {
		return nil, nil
	}

	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	timestamps := make(map[uint64]uint64)
	records := make([]model.DistributionRecord, 0, len(logs))
	for _, log := range logs {
		record, err := vault.DecodeLog(log)
		if err != nil {
			metrics.DecodeFailures.Inc()
			f.logger.Warn("skip undecodable log",
				zap.String("tx_hash", log.TxHash.Hex()),
				zap.Uint("log_index", log.Index),
				zap.Uint64("block_number", log.BlockNumber),
				zap.Error(err),
			)
			continue
		}

		ts, ok := timestamps[log.BlockNumber]
		if !ok {
			ts, err = f.chain.BlockTimestamp(ctx, log.BlockNumber)
			if err != nil {
				return nil, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			timestamps[log.BlockNumber] = ts
		}
		record.BlockTimestamp = ts

		records = append(records, record)
	}

	return records, nil
}
