package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"vaultScope/internal/model"
)

// ZeroAddress is the sentinel token address recorded when an event does not
// emit one (DevAssigned transfers whatever the vault escrowed for the pool).
var ZeroAddress = common.Address{}

// DecodeLog converts a raw vault log into a distribution record. The record
// carries the log identity (tx hash, log index, block number); the caller
// fills in the block timestamp and project attribution.
func DecodeLog(log types.Log) (model.DistributionRecord, error) {
	if len(log.Topics) == 0 {
		return model.DistributionRecord{}, fmt.Errorf("missing topics")
	}
	parsed, err := FeeVaultABI()
	if err != nil {
		return model.DistributionRecord{}, err
	}

	record := model.DistributionRecord{
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		BlockNumber: log.BlockNumber,
	}

	switch log.Topics[0] {
	case parsed.Events["FeesDeposited"].ID:
		return decodeFeesDeposited(parsed.Events["FeesDeposited"], log, record)
	case parsed.Events["FeesEscrowed"].ID:
		return decodePoolTokenAmount(parsed.Events["FeesEscrowed"], log, record, model.EventEscrow)
	case parsed.Events["DevAssigned"].ID:
		return decodeDevAssigned(parsed.Events["DevAssigned"], log, record)
	case parsed.Events["FeesExpired"].ID:
		return decodePoolTokenAmount(parsed.Events["FeesExpired"], log, record, model.EventExpired)
	case parsed.Events["DevFeesClaimed"].ID:
		return decodeDevFeesClaimed(parsed.Events["DevFeesClaimed"], log, record)
	case parsed.Events["ProtocolFeesClaimed"].ID:
		return decodeProtocolFeesClaimed(parsed.Events["ProtocolFeesClaimed"], log, record)
	default:
		return record, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}
}

func decodeFeesDeposited(event abi.Event, log types.Log, record model.DistributionRecord) (model.DistributionRecord, error) {
	var indexed struct {
		PoolId common.Hash
		Dev    common.Address
		Token  common.Address
	}
	if err := parseIndexed(&indexed, event, log.Topics); err != nil {
		return record, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return record, err
	}
	if len(values) != 2 {
		return record, fmt.Errorf("unexpected %s values: %d", event.Name, len(values))
	}
	devAmount, err := asBigInt(values[0])
	if err != nil {
		return record, err
	}
	protocolAmount, err := asBigInt(values[1])
	if err != nil {
		return record, err
	}

	record.EventType = model.EventDeposit
	record.PoolID = strPtr(indexed.PoolId.Hex())
	record.DevAddress = strPtr(indexed.Dev.Hex())
	record.TokenAddress = strPtr(indexed.Token.Hex())
	record.DevAmount = strPtr(devAmount.String())
	record.ProtocolAmount = strPtr(protocolAmount.String())
	return record, nil
}

// decodePoolTokenAmount handles FeesEscrowed and FeesExpired, which share the
// (poolId, token, amount) layout.
func decodePoolTokenAmount(event abi.Event, log types.Log, record model.DistributionRecord, eventType model.EventType) (model.DistributionRecord, error) {
	var indexed struct {
		PoolId common.Hash
		Token  common.Address
	}
	if err := parseIndexed(&indexed, event, log.Topics); err != nil {
		return record, err
	}

	amount, err := unpackSingleAmount(event, log.Data)
	if err != nil {
		return record, err
	}

	record.EventType = eventType
	record.PoolID = strPtr(indexed.PoolId.Hex())
	record.TokenAddress = strPtr(indexed.Token.Hex())
	record.Amount = strPtr(amount.String())
	return record, nil
}

func decodeDevAssigned(event abi.Event, log types.Log, record model.DistributionRecord) (model.DistributionRecord, error) {
	var indexed struct {
		PoolId common.Hash
		Dev    common.Address
	}
	if err := parseIndexed(&indexed, event, log.Topics); err != nil {
		return record, err
	}

	transferred, err := unpackSingleAmount(event, log.Data)
	if err != nil {
		return record, err
	}

	record.EventType = model.EventDevAssigned
	record.PoolID = strPtr(indexed.PoolId.Hex())
	record.DevAddress = strPtr(indexed.Dev.Hex())
	record.TokenAddress = strPtr(ZeroAddress.Hex())
	record.Amount = strPtr(transferred.String())
	return record, nil
}

func decodeDevFeesClaimed(event abi.Event, log types.Log, record model.DistributionRecord) (model.DistributionRecord, error) {
	var indexed struct {
		Dev   common.Address
		Token common.Address
	}
	if err := parseIndexed(&indexed, event, log.Topics); err != nil {
		return record, err
	}

	amount, err := unpackSingleAmount(event, log.Data)
	if err != nil {
		return record, err
	}

	record.EventType = model.EventDevClaimed
	record.DevAddress = strPtr(indexed.Dev.Hex())
	record.TokenAddress = strPtr(indexed.Token.Hex())
	record.Amount = strPtr(amount.String())
	return record, nil
}

func decodeProtocolFeesClaimed(event abi.Event, log types.Log, record model.DistributionRecord) (model.DistributionRecord, error) {
	var indexed struct {
		Token common.Address
	}
	if err := parseIndexed(&indexed, event, log.Topics); err != nil {
		return record, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return record, err
	}
	if len(values) != 2 {
		return record, fmt.Errorf("unexpected %s values: %d", event.Name, len(values))
	}
	amount, err := asBigInt(values[0])
	if err != nil {
		return record, err
	}
	to, err := asAddress(values[1])
	if err != nil {
		return record, err
	}

	record.EventType = model.EventProtocolClaimed
	record.TokenAddress = strPtr(indexed.Token.Hex())
	record.RecipientAddress = strPtr(to.Hex())
	record.Amount = strPtr(amount.String())
	return record, nil
}

func parseIndexed(out interface{}, event abi.Event, topics []common.Hash) error {
	indexed := indexedArguments(event.Inputs)
	if len(topics) != len(indexed)+1 {
		return fmt.Errorf("expected %d topics for %s, got %d", len(indexed)+1, event.Name, len(topics))
	}
	if err := abi.ParseTopics(out, indexed, topics[1:]); err != nil {
		return fmt.Errorf("parse %s topics: %w", event.Name, err)
	}
	return nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, data []byte) ([]interface{}, error) {
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func unpackSingleAmount(event abi.Event, data []byte) (*big.Int, error) {
	values, err := unpackNonIndexed(event, data)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected %s values: %d", event.Name, len(values))
	}
	return asBigInt(values[0])
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func strPtr(s string) *string {
	return &s
}
