package reconciler

import "strings"

// Condition classifies an on-chain failure by its revert reason.
type Condition int

const (
	// ConditionUnexpected is the fallback for any reason not listed below.
	ConditionUnexpected Condition = iota
	// ConditionNoUnclaimedFees means the vault holds nothing in escrow for
	// the pool. Success-equivalent.
	ConditionNoUnclaimedFees
	// ConditionAlreadyAssigned means the contract performed its assign-once
	// operation earlier. Expected after the first successful reconciliation.
	ConditionAlreadyAssigned
)

func (c Condition) String() string {
	switch c {
	case ConditionNoUnclaimedFees:
		return "no_unclaimed_fees"
	case ConditionAlreadyAssigned:
		return "already_assigned"
	default:
		return "unexpected"
	}
}

// Known revert-reason fragments. Substring matching is brittle, so every
// fragment lives in this one table; anything unmatched falls through to
// ConditionUnexpected. The "already assigned" fragment also covers the hook's
// "pool already assigned" reason.
var knownConditions = []struct {
	fragment  string
	condition Condition
}{
	{"no unclaimed fees", ConditionNoUnclaimedFees},
	{"already assigned", ConditionAlreadyAssigned},
}

// Classify maps an error to an expected business condition, or
// ConditionUnexpected when no known fragment matches.
func Classify(err error) Condition {
	if err == nil {
		return ConditionUnexpected
	}
	reason := strings.ToLower(err.Error())
	for _, known := range knownConditions {
		if strings.Contains(reason, known.fragment) {
			return known.condition
		}
	}
	return ConditionUnexpected
}
