package vault

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const feeVaultABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "dev", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "devAmount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "protocolAmount", "type": "uint256"}
    ],
    "name": "FeesDeposited",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "FeesEscrowed",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "dev", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "tokensTransferred", "type": "uint256"}
    ],
    "name": "DevAssigned",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "FeesExpired",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "dev", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "DevFeesClaimed",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "to", "type": "address"}
    ],
    "name": "ProtocolFeesClaimed",
    "type": "event"
  },
  {
    "inputs": [
      {"internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"internalType": "address", "name": "dev", "type": "address"}
    ],
    "name": "assign",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"internalType": "address", "name": "dev", "type": "address"}
    ],
    "name": "reassign",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const hookABIJSON = `[
  {
    "inputs": [{"internalType": "bytes32", "name": "poolId", "type": "bytes32"}],
    "name": "poolRegistered",
    "outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"internalType": "address", "name": "dev", "type": "address"}
    ],
    "name": "updateDevRouting",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const factoryABIJSON = `[
  {
    "inputs": [{"internalType": "address", "name": "token", "type": "address"}],
    "name": "getLaunchInfo",
    "outputs": [
      {"internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"internalType": "uint256[]", "name": "positionIds", "type": "uint256[]"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const lockerABIJSON = `[
  {
    "inputs": [
      {"internalType": "uint256", "name": "positionId", "type": "uint256"},
      {"internalType": "address", "name": "owner", "type": "address"}
    ],
    "name": "updateOwner",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

var (
	feeVaultABI     abi.ABI
	feeVaultABIOnce sync.Once
	feeVaultABIErr  error

	hookABI     abi.ABI
	hookABIOnce sync.Once
	hookABIErr  error

	factoryABI     abi.ABI
	factoryABIOnce sync.Once
	factoryABIErr  error

	lockerABI     abi.ABI
	lockerABIOnce sync.Once
	lockerABIErr  error
)

// FeeVaultABI returns the parsed fee vault ABI.
func FeeVaultABI() (abi.ABI, error) {
	feeVaultABIOnce.Do(func() {
		feeVaultABI, feeVaultABIErr = abi.JSON(strings.NewReader(feeVaultABIJSON))
	})
	return feeVaultABI, feeVaultABIErr
}

// HookABI returns the parsed hook ABI.
func HookABI() (abi.ABI, error) {
	hookABIOnce.Do(func() {
		hookABI, hookABIErr = abi.JSON(strings.NewReader(hookABIJSON))
	})
	return hookABI, hookABIErr
}

// FactoryABI returns the parsed launch factory ABI.
func FactoryABI() (abi.ABI, error) {
	factoryABIOnce.Do(func() {
		factoryABI, factoryABIErr = abi.JSON(strings.NewReader(factoryABIJSON))
	})
	return factoryABI, factoryABIErr
}

// LockerABI returns the parsed LP locker ABI.
func LockerABI() (abi.ABI, error) {
	lockerABIOnce.Do(func() {
		lockerABI, lockerABIErr = abi.JSON(strings.NewReader(lockerABIJSON))
	})
	return lockerABI, lockerABIErr
}

// EventTopics returns the topic0 hashes of every indexed vault event, in the
// order the log filter should request them.
func EventTopics() ([]common.Hash, error) {
	parsed, err := FeeVaultABI()
	if err != nil {
		return nil, err
	}
	names := []string{
		"FeesDeposited",
		"FeesEscrowed",
		"DevAssigned",
		"FeesExpired",
		"DevFeesClaimed",
		"ProtocolFeesClaimed",
	}
	topics := make([]common.Hash, 0, len(names))
	for _, name := range names {
		topics = append(topics, parsed.Events[name].ID)
	}
	return topics, nil
}

// ReassignSelector returns the 4-byte method selector of reassign, used to
// probe deployed vault bytecode for recovery support.
func ReassignSelector() ([]byte, error) {
	parsed, err := FeeVaultABI()
	if err != nil {
		return nil, err
	}
	return parsed.Methods["reassign"].ID, nil
}
