package indexer

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"vaultScope/internal/model"
	"vaultScope/internal/vault"
)

func TestFetchRangeOrdersAndDecodes(t *testing.T) {
	pool := common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	dev := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token := common.HexToAddress("0x2222222222222222222222222222222222222222")

	garbage := types.Log{
		Topics:      []common.Hash{common.HexToHash("0xdead")},
		BlockNumber: 6,
		TxHash:      common.HexToHash("0x06"),
		Index:       0,
	}

	chain := &fakeChain{
		head: 10,
		logs: []types.Log{
			escrowLog(t, 7, 0, common.HexToHash("0x07"), pool, token, 777),
			depositLog(t, 5, 2, common.HexToHash("0x05"), pool, dev, token, 100, 5),
			garbage,
			depositLog(t, 5, 1, common.HexToHash("0x05"), pool, dev, token, 50, 2),
		},
		timestamps: map[uint64]uint64{5: 1700000500, 7: 1700000700},
	}

	fetcher, err := NewFetcher(chain, []common.Address{common.HexToAddress("0x00000000000000000000000000000000000000f1")}, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	records, err := fetcher.FetchRange(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("fetch range: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3 (garbage log must be skipped)", len(records))
	}

	wantOrder := []struct {
		block uint64
		index uint64
		typ   model.EventType
	}{
		{5, 1, model.EventDeposit},
		{5, 2, model.EventDeposit},
		{7, 0, model.EventEscrow},
	}
	for i, want := range wantOrder {
		got := records[i]
		if got.BlockNumber != want.block || got.LogIndex != want.index || got.EventType != want.typ {
			t.Fatalf("record %d = (%d,%d,%s), want (%d,%d,%s)",
				i, got.BlockNumber, got.LogIndex, got.EventType, want.block, want.index, want.typ)
		}
	}
}

func TestFetchRangeResolvesTimestampOncePerBlock(t *testing.T) {
	pool := common.HexToHash("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	dev := common.HexToAddress("0x3333333333333333333333333333333333333333")
	token := common.HexToAddress("0x4444444444444444444444444444444444444444")

	chain := &fakeChain{
		head: 100,
		logs: []types.Log{
			depositLog(t, 42, 0, common.HexToHash("0x42"), pool, dev, token, 1, 1),
			depositLog(t, 42, 1, common.HexToHash("0x42"), pool, dev, token, 2, 2),
			depositLog(t, 43, 0, common.HexToHash("0x43"), pool, dev, token, 3, 3),
		},
		timestamps: map[uint64]uint64{42: 1700004200, 43: 1700004300},
	}

	fetcher, err := NewFetcher(chain, []common.Address{common.HexToAddress("0x00000000000000000000000000000000000000f1")}, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	records, err := fetcher.FetchRange(context.Background(), 40, 50)
	if err != nil {
		t.Fatalf("fetch range: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if chain.tsCalls != 2 {
		t.Fatalf("timestamp lookups = %d, want one per distinct block (2)", chain.tsCalls)
	}
	if records[0].BlockTimestamp != 1700004200 || records[2].BlockTimestamp != 1700004300 {
		t.Fatalf("timestamps not attached: %d, %d", records[0].BlockTimestamp, records[2].BlockTimestamp)
	}
}

func TestFetchRangeEmpty(t *testing.T) {
	chain := &fakeChain{head: 10}
	fetcher, err := NewFetcher(chain, []common.Address{common.HexToAddress("0x00000000000000000000000000000000000000f1")}, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	records, err := fetcher.FetchRange(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("fetch range: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("records = %d, want 0", len(records))
	}
	if chain.tsCalls != 0 {
		t.Fatalf("timestamp lookups = %d, want 0", chain.tsCalls)
	}
}

func TestFetchRangePropagatesFilterError(t *testing.T) {
	chain := &fakeChain{head: 10, filterErr: fmt.Errorf("rpc timeout")}
	fetcher, err := NewFetcher(chain, []common.Address{common.HexToAddress("0x00000000000000000000000000000000000000f1")}, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	if _, err := fetcher.FetchRange(context.Background(), 1, 10); err == nil {
		t.Fatalf("expected filter error to propagate")
	}
}

func TestNewFetcherRequiresVaultAddress(t *testing.T) {
	if _, err := NewFetcher(&fakeChain{}, nil, nil); err == nil {
		t.Fatalf("expected error for empty vault list")
	}
}

func depositLog(t *testing.T, block uint64, index uint, txHash, pool common.Hash, dev, token common.Address, devAmount, protocolAmount int64) types.Log {
	t.Helper()
	vaultABI, err := vault.FeeVaultABI()
	if err != nil {
		t.Fatalf("vault abi: %v", err)
	}
	event := vaultABI.Events["FeesDeposited"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(devAmount), big.NewInt(protocolAmount))
	if err != nil {
		t.Fatalf("pack deposit: %v", err)
	}
	return types.Log{
		Address:     common.HexToAddress("0x00000000000000000000000000000000000000f1"),
		Topics:      []common.Hash{event.ID, pool, common.BytesToHash(dev.Bytes()), common.BytesToHash(token.Bytes())},
		Data:        data,
		BlockNumber: block,
		TxHash:      txHash,
		Index:       index,
	}
}

func escrowLog(t *testing.T, block uint64, index uint, txHash, pool common.Hash, token common.Address, amount int64) types.Log {
	t.Helper()
	vaultABI, err := vault.FeeVaultABI()
	if err != nil {
		t.Fatalf("vault abi: %v", err)
	}
	event := vaultABI.Events["FeesEscrowed"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(amount))
	if err != nil {
		t.Fatalf("pack escrow: %v", err)
	}
	return types.Log{
		Address:     common.HexToAddress("0x00000000000000000000000000000000000000f1"),
		Topics:      []common.Hash{event.ID, pool, common.BytesToHash(token.Bytes())},
		Data:        data,
		BlockNumber: block,
		TxHash:      txHash,
		Index:       index,
	}
}
