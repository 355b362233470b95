package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Transactor signs and submits administrative contract calls with the
// configured admin key, waiting one confirmation per call.
type Transactor struct {
	client  *Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	signer  types.Signer
	logger  *zap.Logger

	mu sync.Mutex // serializes nonce acquisition and submission
}

// NewTransactor derives the signing identity from a hex-encoded private key.
func NewTransactor(ctx context.Context, client *Client, hexKey string, logger *zap.Logger) (*Transactor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse admin key: %w", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	return &Transactor{
		client:  client,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		signer:  types.LatestSignerForChainID(chainID),
		logger:  logger,
	}, nil
}

// From returns the administrative sender address.
func (t *Transactor) From() common.Address {
	return t.from
}

// Transact simulates the call, then signs, submits, and waits for one
// confirmation. The simulation error is returned unwrapped so callers can
// classify the revert reason without spending gas; a transaction that mines
// but reverts is returned as an error with its receipt.
func (t *Transactor) Transact(ctx context.Context, to common.Address, input []byte) (*types.Receipt, error) {
	msg := ethereum.CallMsg{From: t.from, To: &to, Data: input}
	if _, err := t.client.CallContract(ctx, msg, nil); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	nonce, err := t.client.PendingNonceAt(ctx, t.from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := t.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	gasLimit, err := t.client.EstimateGas(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gasLimit + gasLimit/5,
		GasPrice: gasPrice,
		Data:     input,
	})
	signed, err := types.SignTx(tx, t.signer, t.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	if err := t.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}

	t.logger.Debug("transaction submitted",
		zap.String("to", to.Hex()),
		zap.String("tx", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
	)

	receipt, err := t.client.WaitMined(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("wait mined %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("transaction %s reverted on-chain", signed.Hash().Hex())
	}
	return receipt, nil
}
