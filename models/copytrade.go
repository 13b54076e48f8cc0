package models

import (
	"math/big"
	"time"
)

// SellPolicy controls how a mirrored sell is sized relative to the
// follower's holdings.
type SellPolicy string

const (
	// SellPolicyAll sells the follower's entire balance of the token,
	// regardless of what fraction the target sold.
	SellPolicyAll SellPolicy = "sell_all"
	// SellPolicyProportional sells the same fraction of the follower's
	// balance as the target sold of theirs.
	SellPolicyProportional SellPolicy = "proportional"
)

// CopyTradeConfig is one follower's subscription to a target wallet.
type CopyTradeConfig struct {
	ID             int64      `json:"id"`
	UserID         string     `json:"user_id"`
	TargetWallet   string     `json:"target_wallet"` // normalized lowercase
	MaxWeiPerTrade *big.Int   `json:"max_wei_per_trade"`
	SlippagePct    float64    `json:"slippage_pct"`
	Active         bool       `json:"active"`
	SandboxMode    bool       `json:"sandbox_mode"`
	SellPolicy     SellPolicy `json:"sell_policy"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// MirrorStatus is the terminal state of one mirrored trade attempt.
type MirrorStatus string

const (
	MirrorStatusExecuted  MirrorStatus = "executed"
	MirrorStatusSimulated MirrorStatus = "simulated"
	MirrorStatusSkipped   MirrorStatus = "skipped"
	MirrorStatusFailed    MirrorStatus = "failed"
)

// MirrorOutcome records what happened to one follower's mirror of one
// upstream trade.
type MirrorOutcome struct {
	ConfigID      int64        `json:"config_id"`
	UserID        string       `json:"user_id"`
	TargetWallet  string       `json:"target_wallet"`
	Side          TradeKind    `json:"side"`
	Token         string       `json:"token"`
	Amount        *big.Int     `json:"amount"`
	AmountDisplay string       `json:"amount_display"`
	Status        MirrorStatus `json:"status"`
	Reason        string       `json:"reason,omitempty"`
	TxHashes      []string     `json:"tx_hashes,omitempty"`
	CompletedAt   time.Time    `json:"completed_at"`
}
