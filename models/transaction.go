// Package models defines the domain types shared across the zoracle
// copy-trade core: observed chain transactions, classified trade
// intents, follower configurations and outbound domain events.
package models

import (
	"math/big"
	"time"
)

// TxStatus tracks how far a transaction has progressed on chain.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
)

// ChainTransaction is a raw transaction as observed from the node.
// It is immutable once observed; a confirmed variant with the same hash
// supersedes the pending one.
type ChainTransaction struct {
	Hash     string   `json:"hash"`
	From     string   `json:"from"`
	To       string   `json:"to"` // empty for contract creation
	Value    *big.Int `json:"value"`
	Input    string   `json:"input"`
	GasPrice *big.Int `json:"gas_price"`
	Nonce    uint64   `json:"nonce"`
	Status   TxStatus `json:"status"`

	// BlockNumber is zero while the transaction is pending.
	BlockNumber uint64    `json:"block_number,omitempty"`
	ObservedAt  time.Time `json:"observed_at"`
}

// HasCalldata reports whether the transaction carries contract calldata.
// Plain value moves have empty input or a bare "0x".
func (tx *ChainTransaction) HasCalldata() bool {
	return tx.Input != "" && tx.Input != "0x"
}
