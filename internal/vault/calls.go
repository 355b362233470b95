package vault

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// LaunchInfo is the factory's record of a launched token: the pool it trades
// in and the locked LP positions backing it.
type LaunchInfo struct {
	PoolID      common.Hash
	PositionIDs []*big.Int
}

// ParsePoolID parses and validates a 32-byte pool identifier in hex form.
func ParsePoolID(input string) (common.Hash, error) {
	data, err := hexutil.Decode(strings.TrimSpace(input))
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid pool id %q: %w", input, err)
	}
	if len(data) != 32 {
		return common.Hash{}, fmt.Errorf("invalid pool id length: %d bytes", len(data))
	}
	return common.BytesToHash(data), nil
}

// ParseDevAddress parses a developer address, rejecting the zero address.
func ParseDevAddress(input string) (common.Address, error) {
	trimmed := strings.TrimSpace(input)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid dev address: %s", input)
	}
	addr := common.HexToAddress(trimmed)
	if addr == ZeroAddress {
		return common.Address{}, fmt.Errorf("dev address is the zero address")
	}
	return addr, nil
}

// PackAssign encodes vault assign(poolId, dev).
func PackAssign(poolID common.Hash, dev common.Address) ([]byte, error) {
	parsed, err := FeeVaultABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack("assign", poolID, dev)
	if err != nil {
		return nil, fmt.Errorf("pack assign: %w", err)
	}
	return data, nil
}

// PackReassign encodes vault reassign(poolId, dev).
func PackReassign(poolID common.Hash, dev common.Address) ([]byte, error) {
	parsed, err := FeeVaultABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack("reassign", poolID, dev)
	if err != nil {
		return nil, fmt.Errorf("pack reassign: %w", err)
	}
	return data, nil
}

// PackPoolRegistered encodes the hook poolRegistered(poolId) view call.
func PackPoolRegistered(poolID common.Hash) ([]byte, error) {
	parsed, err := HookABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack("poolRegistered", poolID)
	if err != nil {
		return nil, fmt.Errorf("pack poolRegistered: %w", err)
	}
	return data, nil
}

// UnpackPoolRegistered decodes the hook poolRegistered response.
func UnpackPoolRegistered(data []byte) (bool, error) {
	parsed, err := HookABI()
	if err != nil {
		return false, err
	}
	values, err := parsed.Unpack("poolRegistered", data)
	if err != nil {
		return false, fmt.Errorf("unpack poolRegistered: %w", err)
	}
	if len(values) != 1 {
		return false, fmt.Errorf("unexpected poolRegistered values: %d", len(values))
	}
	registered, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("unsupported bool type %T", values[0])
	}
	return registered, nil
}

// PackUpdateDevRouting encodes the hook updateDevRouting(poolId, dev) call.
func PackUpdateDevRouting(poolID common.Hash, dev common.Address) ([]byte, error) {
	parsed, err := HookABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack("updateDevRouting", poolID, dev)
	if err != nil {
		return nil, fmt.Errorf("pack updateDevRouting: %w", err)
	}
	return data, nil
}

// PackGetLaunchInfo encodes the factory getLaunchInfo(token) view call.
func PackGetLaunchInfo(token common.Address) ([]byte, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack("getLaunchInfo", token)
	if err != nil {
		return nil, fmt.Errorf("pack getLaunchInfo: %w", err)
	}
	return data, nil
}

// UnpackGetLaunchInfo decodes the factory getLaunchInfo response.
func UnpackGetLaunchInfo(data []byte) (LaunchInfo, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return LaunchInfo{}, err
	}
	values, err := parsed.Unpack("getLaunchInfo", data)
	if err != nil {
		return LaunchInfo{}, fmt.Errorf("unpack getLaunchInfo: %w", err)
	}
	if len(values) != 2 {
		return LaunchInfo{}, fmt.Errorf("unexpected getLaunchInfo values: %d", len(values))
	}
	poolID, err := asHash(values[0])
	if err != nil {
		return LaunchInfo{}, fmt.Errorf("getLaunchInfo poolId: %w", err)
	}
	positions, ok := values[1].([]*big.Int)
	if !ok {
		return LaunchInfo{}, fmt.Errorf("unsupported position list type %T", values[1])
	}
	return LaunchInfo{PoolID: poolID, PositionIDs: positions}, nil
}

// PackUpdateOwner encodes the locker updateOwner(positionId, owner) call.
func PackUpdateOwner(positionID *big.Int, owner common.Address) ([]byte, error) {
	parsed, err := LockerABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack("updateOwner", positionID, owner)
	if err != nil {
		return nil, fmt.Errorf("pack updateOwner: %w", err)
	}
	return data, nil
}

func asHash(value interface{}) (common.Hash, error) {
	switch v := value.(type) {
	case common.Hash:
		return v, nil
	case [32]byte:
		return common.Hash(v), nil
	default:
		return common.Hash{}, fmt.Errorf("unsupported hash type %T", value)
	}
}
