package reconciler

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"vaultScope/internal/metrics"
	"vaultScope/internal/vault"
)

// EscrowAction is the terminal verdict of the escrow step.
type EscrowAction string

const (
	EscrowAssigned   EscrowAction = "assigned"
	EscrowReassigned EscrowAction = "reassigned"
	EscrowNoop       EscrowAction = "noop"
)

// Request identifies the pool whose developer was just verified out-of-band.
// TokenAddress is optional; without it the locker step is skipped.
type Request struct {
	PoolID       string
	DevAddress   string
	ProjectID    string
	TokenAddress string
}

// Outcome reports what one reconciliation attempt changed. Expected but
// unsuccessful steps land here as data; only genuinely unexpected failures
// are returned as errors alongside it.
type Outcome struct {
	HookRoutingUpdated               bool         `json:"hookRoutingUpdated"`
	HookRoutingBlockedByPoolAssigned bool         `json:"hookRoutingBlockedByPoolAssigned"`
	LockerRoutingUpdated             bool         `json:"lockerRoutingUpdated"`
	EscrowAction                     EscrowAction `json:"escrowAction"`
}

// ContractReader serves the read-only contract surface the saga consults.
type ContractReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// TxSender submits a state-changing call and waits one confirmation.
type TxSender interface {
	Transact(ctx context.Context, to common.Address, input []byte) (*types.Receipt, error)
}

// Config wires the contract addresses the saga touches. Vaults lists the fee
// vault generations, current first; extra entries cover the migration window
// between generations. Hook, factory, and locker are optional; the zero
// address disables their steps.
type Config struct {
	Vaults  []common.Address
	Hook    common.Address
	Factory common.Address
	Locker  common.Address
}

// Reconciler makes the hook, locker, and vault contracts agree on a pool's
// developer, then releases any fees stuck in escrow. The steps have no
// cross-contract atomicity, so each reports its own outcome and the whole
// call is safe to repeat until it converges.
type Reconciler struct {
	cfg    Config
	chain  ContractReader
	sender TxSender
	probe  *SelectorProbe
	logger *zap.Logger
}

// New builds a Reconciler. A nil sender turns every state-changing step into
// a logged no-op; indexing does not depend on this subsystem.
func New(cfg Config, chain ContractReader, sender TxSender, logger *zap.Logger) (*Reconciler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Vaults) == 0 {
		return nil, fmt.Errorf("at least one vault address is required")
	}
	selector, err := vault.ReassignSelector()
	if err != nil {
		return nil, err
	}
	probe, err := NewSelectorProbe(chain, selector)
	if err != nil {
		return nil, err
	}
	return &Reconciler{
		cfg:    cfg,
		chain:  chain,
		sender: sender,
		probe:  probe,
		logger: logger,
	}, nil
}

// Reconcile runs the saga in fixed order: hook routing, locker routing, then
// escrow assignment. Malformed inputs fail immediately before any contract
// call; everything after that is best effort per step.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (Outcome, error) {
	outcome := Outcome{EscrowAction: EscrowNoop}

	poolID, err := vault.ParsePoolID(req.PoolID)
	if err != nil {
		return outcome, err
	}
	dev, err := vault.ParseDevAddress(req.DevAddress)
	if err != nil {
		return outcome, err
	}

	if r.sender == nil {
		r.logger.Info("no admin key configured, reconciliation is a no-op",
			zap.String("pool_id", poolID.Hex()),
			zap.String("dev", dev.Hex()),
		)
		return outcome, nil
	}

	log := r.logger.With(
		zap.String("pool_id", poolID.Hex()),
		zap.String("dev", dev.Hex()),
		zap.String("project_id", req.ProjectID),
	)

	outcome.HookRoutingUpdated, outcome.HookRoutingBlockedByPoolAssigned = r.syncHookRouting(ctx, log, poolID, dev)
	outcome.LockerRoutingUpdated = r.syncLockerRouting(ctx, log, poolID, dev, req.TokenAddress)

	action, err := r.assignEscrow(ctx, log, poolID, dev)
	outcome.EscrowAction = action
	metrics.ReconcileRuns.WithLabelValues(string(action)).Inc()
	if err != nil {
		metrics.ReconcileUnexpectedErrors.Inc()
		return outcome, err
	}

	log.Info("reconciliation complete",
		zap.Bool("hook_updated", outcome.HookRoutingUpdated),
		zap.Bool("hook_blocked", outcome.HookRoutingBlockedByPoolAssigned),
		zap.Bool("locker_updated", outcome.LockerRoutingUpdated),
		zap.String("escrow_action", string(outcome.EscrowAction)),
	)
	return outcome, nil
}

// syncHookRouting points the hook's fee routing at the verified dev. The hook
// performs an assign-once operation internally, so a "pool already assigned"
// revert is expected after the first reconciliation and reported as blocked
// rather than failed. Every other failure is logged and skipped.
func (r *Reconciler) syncHookRouting(ctx context.Context, log *zap.Logger, poolID common.Hash, dev common.Address) (updated, blocked bool) {
	if r.cfg.Hook == (common.Address{}) {
		return false, false
	}

	registered, err := r.poolRegistered(ctx, poolID)
	if err != nil {
		log.Warn("hook registration check failed", zap.Error(err))
		return false, false
	}
	if !registered {
		log.Debug("pool not registered on hook, skipping routing update")
		return false, false
	}

	input, err := vault.PackUpdateDevRouting(poolID, dev)
	if err != nil {
		log.Warn("pack updateDevRouting failed", zap.Error(err))
		return false, false
	}
	if _, err := r.sender.Transact(ctx, r.cfg.Hook, input); err != nil {
		if Classify(err) == ConditionAlreadyAssigned {
			log.Info("hook routing blocked, pool already assigned")
			return false, true
		}
		log.Warn("hook routing update failed", zap.Error(err))
		return false, false
	}

	log.Info("hook routing updated")
	return true, false
}

func (r *Reconciler) poolRegistered(ctx context.Context, poolID common.Hash) (bool, error) {
	input, err := vault.PackPoolRegistered(poolID)
	if err != nil {
		return false, err
	}
	hook := r.cfg.Hook
	data, err := r.chain.CallContract(ctx, ethereum.CallMsg{To: &hook, Data: input}, nil)
	if err != nil {
		return false, err
	}
	return vault.UnpackPoolRegistered(data)
}

// syncLockerRouting retargets the locked LP positions behind the pool token.
// The factory's launch info must name the expected pool; a mismatch means a
// stale lookup and skips the step. Positions are updated independently, and
// one success is enough to report the step as updated.
func (r *Reconciler) syncLockerRouting(ctx context.Context, log *zap.Logger, poolID common.Hash, dev common.Address, token string) bool {
	if r.cfg.Locker == (common.Address{}) || r.cfg.Factory == (common.Address{}) {
		return false
	}
	tokenAddr, err := vault.ParseOptionalAddress(token)
	if err != nil {
		log.Warn("invalid pool token address", zap.String("token", token), zap.Error(err))
		return false
	}
	if tokenAddr == (common.Address{}) {
		return false
	}

	info, err := r.launchInfo(ctx, tokenAddr)
	if err != nil {
		log.Warn("launch info lookup failed", zap.String("token", tokenAddr.Hex()), zap.Error(err))
		return false
	}
	if info.PoolID != poolID {
		log.Warn("launch info names a different pool, skipping locker update",
			zap.String("token", tokenAddr.Hex()),
			zap.String("launch_pool_id", info.PoolID.Hex()),
		)
		return false
	}

	updated := false
	for _, position := range info.PositionIDs {
		input, err := vault.PackUpdateOwner(position, dev)
		if err != nil {
			log.Warn("pack updateOwner failed", zap.String("position", position.String()), zap.Error(err))
			continue
		}
		if _, err := r.sender.Transact(ctx, r.cfg.Locker, input); err != nil {
			log.Warn("locker position update failed", zap.String("position", position.String()), zap.Error(err))
			continue
		}
		log.Info("locker position owner updated", zap.String("position", position.String()))
		updated = true
	}
	return updated
}

func (r *Reconciler) launchInfo(ctx context.Context, token common.Address) (vault.LaunchInfo, error) {
	input, err := vault.PackGetLaunchInfo(token)
	if err != nil {
		return vault.LaunchInfo{}, err
	}
	factory := r.cfg.Factory
	data, err := r.chain.CallContract(ctx, ethereum.CallMsg{To: &factory, Data: input}, nil)
	if err != nil {
		return vault.LaunchInfo{}, err
	}
	return vault.UnpackGetLaunchInfo(data)
}

// assignEscrow releases escrowed fees to the dev, trying each configured
// vault generation in order. Expected business conditions resolve to noop;
// an unexpected assign failure moves on to the next vault and is returned
// only when no vault succeeds. An unexpected reassign failure is final.
func (r *Reconciler) assignEscrow(ctx context.Context, log *zap.Logger, poolID common.Hash, dev common.Address) (EscrowAction, error) {
	assignInput, err := vault.PackAssign(poolID, dev)
	if err != nil {
		return EscrowNoop, err
	}

	var lastUnexpected error
	for _, vaultAddr := range r.cfg.Vaults {
		vlog := log.With(zap.String("vault", vaultAddr.Hex()))

		_, err := r.sender.Transact(ctx, vaultAddr, assignInput)
		if err == nil {
			vlog.Info("escrow assigned")
			return EscrowAssigned, nil
		}

		switch Classify(err) {
		case ConditionNoUnclaimedFees:
			vlog.Info("no unclaimed fees in escrow")
			return EscrowNoop, nil

		case ConditionAlreadyAssigned:
			supported, probeErr := r.probe.Supports(ctx, vaultAddr)
			if probeErr != nil {
				vlog.Warn("reassign capability probe failed", zap.Error(probeErr))
				lastUnexpected = probeErr
				continue
			}
			if !supported {
				vlog.Warn("vault lacks reassign, escrow cannot be recovered here")
				continue
			}

			reassignInput, err := vault.PackReassign(poolID, dev)
			if err != nil {
				return EscrowNoop, err
			}
			if _, err := r.sender.Transact(ctx, vaultAddr, reassignInput); err != nil {
				if Classify(err) == ConditionNoUnclaimedFees {
					vlog.Info("escrow already released, nothing to reassign")
					return EscrowNoop, nil
				}
				return EscrowNoop, fmt.Errorf("reassign on %s: %w", vaultAddr.Hex(), err)
			}
			vlog.Info("escrow reassigned")
			return EscrowReassigned, nil

		default:
			vlog.Warn("unexpected assign failure", zap.Error(err))
			lastUnexpected = err
		}
	}

	if lastUnexpected != nil {
		return EscrowNoop, fmt.Errorf("assign escrow: %w", lastUnexpected)
	}
	return EscrowNoop, nil
}
