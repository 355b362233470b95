package model

// Project is one launch-registry row with everything routing needs: the pool
// the project launched, the developer that verified ownership of it, and the
// pool token when the launch recorded one.
type Project struct {
	ID           string  `json:"id"`
	PoolID       string  `json:"pool_id"`
	DevAddress   string  `json:"dev_address"`
	TokenAddress *string `json:"token_address,omitempty"`
}

// PoolProject maps a pool id to the project that owns it. The identity cache
// holds the full set of these, replaced wholesale every poll cycle.
type PoolProject struct {
	PoolID    string `json:"pool_id"`
	ProjectID string `json:"project_id"`
}
