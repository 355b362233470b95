package reconciler

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// CodeReader fetches deployed contract bytecode.
type CodeReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// SelectorProbe reports whether a contract's deployed bytecode contains a
// 4-byte method selector. Deployed code is immutable, so verdicts are cached
// indefinitely per address.
type SelectorProbe struct {
	chain    CodeReader
	selector []byte

	mu    sync.Mutex
	cache map[common.Address]bool
}

func NewSelectorProbe(chain CodeReader, selector []byte) (*SelectorProbe, error) {
	if len(selector) != 4 {
		return nil, fmt.Errorf("selector must be 4 bytes, got %d", len(selector))
	}
	return &SelectorProbe{
		chain:    chain,
		selector: selector,
		cache:    make(map[common.Address]bool),
	}, nil
}

// Supports probes the address once and serves every later call from cache.
func (p *SelectorProbe) Supports(ctx context.Context, address common.Address) (bool, error) {
	p.mu.Lock()
	if verdict, ok := p.cache[address]; ok {
		p.mu.Unlock()
		return verdict, nil
	}
	p.mu.Unlock()

	code, err := p.chain.CodeAt(ctx, address, nil)
	if err != nil {
		return false, fmt.Errorf("code at %s: %w", address.Hex(), err)
	}
	verdict := bytes.Contains(code, p.selector)

	p.mu.Lock()
	p.cache[address] = verdict
	p.mu.Unlock()
	return verdict, nil
}
