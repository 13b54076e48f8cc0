package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Quoter fetches router price quotes via getAmountsOut.
type Quoter struct {
	node   *NodeClient
	abis   *ParsedABIs
	router common.Address
	weth   common.Address
}

// NewQuoter binds a quoter to one router contract.
func NewQuoter(node *NodeClient, abis *ParsedABIs, routerAddr, wethAddr string) *Quoter {
	return &Quoter{
		node:   node,
		abis:   abis,
		router: common.HexToAddress(routerAddr),
		weth:   common.HexToAddress(wethAddr),
	}
}

// Router returns the lowercase router address the quoter is bound to.
func (q *Quoter) Router() string {
	return strings.ToLower(q.router.Hex())
}

// WETH returns the lowercase wrapped-native token address.
func (q *Quoter) WETH() string {
	return strings.ToLower(q.weth.Hex())
}

// AmountsOut runs getAmountsOut for an arbitrary path and returns the
// full amounts vector.
func (q *Quoter) AmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	data, err := q.abis.Router.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("chain: pack getAmountsOut: %w", err)
	}
	out, err := q.node.CallContract(ctx, q.router, data)
	if err != nil {
		return nil, fmt.Errorf("chain: getAmountsOut call: %w", err)
	}
	var amounts []*big.Int
	if err := q.abis.Router.UnpackIntoInterface(&amounts, "getAmountsOut", out); err != nil {
		return nil, fmt.Errorf("chain: unpack getAmountsOut: %w", err)
	}
	if len(amounts) < 2 {
		return nil, fmt.Errorf("chain: getAmountsOut returned %d amounts", len(amounts))
	}
	return amounts, nil
}

// QuoteBuy returns the expected token output for spending amountWei of
// native currency on the given token.
func (q *Quoter) QuoteBuy(ctx context.Context, tokenAddr string, amountWei *big.Int) (*big.Int, error) {
	path := []common.Address{q.weth, common.HexToAddress(tokenAddr)}
	amounts, err := q.AmountsOut(ctx, amountWei, path)
	if err != nil {
		return nil, err
	}
	return amounts[len(amounts)-1], nil
}

// QuoteSell returns the expected native-currency output for selling
// amountTokens of the given token.
func (q *Quoter) QuoteSell(ctx context.Context, tokenAddr string, amountTokens *big.Int) (*big.Int, error) {
	path := []common.Address{common.HexToAddress(tokenAddr), q.weth}
	amounts, err := q.AmountsOut(ctx, amountTokens, path)
	if err != nil {
		return nil, err
	}
	return amounts[len(amounts)-1], nil
}

// MinAcceptableOutput applies a slippage percentage to a quoted output
// in integer math: quoted * (100 - slippagePct) / 100. Slippage is
// carried in basis points internally so fractional percentages survive
// without floating point.
func MinAcceptableOutput(quoted *big.Int, slippagePct float64) *big.Int {
	if quoted == nil {
		return nil
	}
	bps := int64(slippagePct * 100)
	if bps < 0 {
		bps = 0
	}
	if bps > 10000 {
		bps = 10000
	}
	out := new(big.Int).Mul(quoted, big.NewInt(10000-bps))
	return out.Div(out, big.NewInt(10000))
}
