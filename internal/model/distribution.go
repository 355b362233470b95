package model

import "fmt"

// EventType labels a fee vault log after decoding.
type EventType string

const (
	EventDeposit         EventType = "deposit"
	EventEscrow          EventType = "escrow"
	EventDevAssigned     EventType = "dev_assigned"
	EventExpired         EventType = "expired"
	EventDevClaimed      EventType = "dev_claimed"
	EventProtocolClaimed EventType = "protocol_claimed"
)

// DistributionRecord is the normalized representation of one fee vault event.
// (TxHash, LogIndex) is the unique key. Pointer fields are nullable and
// event-dependent: DevFeesClaimed and ProtocolFeesClaimed carry no pool id,
// deposits carry the split amounts instead of Amount, and ProjectID is only
// set when the pool is known to the project registry at indexing time (a
// later repair pass fills it in otherwise, and never clears it again).
type DistributionRecord struct {
	TxHash           string    `json:"tx_hash"`
	LogIndex         uint64    `json:"log_index"`
	BlockNumber      uint64    `json:"block_number"`
	BlockTimestamp   uint64    `json:"block_timestamp"`
	EventType        EventType `json:"event_type"`
	PoolID           *string   `json:"pool_id,omitempty"`
	DevAddress       *string   `json:"dev_address,omitempty"`
	TokenAddress     *string   `json:"token_address,omitempty"`
	RecipientAddress *string   `json:"recipient_address,omitempty"`
	DevAmount        *string   `json:"dev_amount,omitempty"`
	ProtocolAmount   *string   `json:"protocol_amount,omitempty"`
	Amount           *string   `json:"amount,omitempty"`
	ProjectID        *string   `json:"project_id,omitempty"`
}

// Key returns the unique identity of the record as "txHash:logIndex".
func (r DistributionRecord) Key() string {
	return fmt.Sprintf("%s:%d", r.TxHash, r.LogIndex)
}
