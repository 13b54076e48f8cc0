package models

import "math/big"

// TradeKind is the classified meaning of a transaction.
type TradeKind string

const (
	TradeKindBuy           TradeKind = "buy"
	TradeKindSell          TradeKind = "sell"
	TradeKindTokenToToken  TradeKind = "token_to_token"
	TradeKindTransfer      TradeKind = "transfer"
	TradeKindApproval      TradeKind = "approval"
	TradeKindContentCreate TradeKind = "content_create"
)

// TradeIntent is the decoded, structured meaning of a transaction as
// opposed to its raw bytes. Amounts are exact integer base units;
// AmountDisplay is decimal-adjusted for downstream presentation only
// and must never be fed back into sizing math.
type TradeIntent struct {
	Kind TradeKind

	// Swap fields. InputToken/OutputToken are lowercase addresses;
	// the zero-value native marker is used for the ETH side of a swap.
	InputToken  string
	OutputToken string

	// AmountIn is the declared input amount in base units. For buys this
	// is the transaction value (wei); for sells the router amountIn.
	AmountIn      *big.Int
	AmountDisplay string

	// InputDecimals are the input token's declared decimals (18 when the
	// token does not report any).
	InputDecimals int

	// Recipient for transfers/approvals; spender for approvals.
	Counterparty string

	// Args carries the raw decoded arguments for listeners that need
	// more than the normalized fields.
	Args map[string]interface{}

	Tx *ChainTransaction
}

// NativeToken marks the native-currency side of a swap path.
const NativeToken = "ETH"

// IsSwap reports whether the intent moves value through a DEX router.
func (ti *TradeIntent) IsSwap() bool {
	switch ti.Kind {
	case TradeKindBuy, TradeKindSell, TradeKindTokenToToken:
		return true
	}
	return false
}
