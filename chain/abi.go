// Package chain owns every conversation with the Base node: the live
// WebSocket subscription with ordered fallbacks, HTTP JSON-RPC calls,
// ERC-20 metadata reads, router quotes and transaction signing.
package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABIs for the three interface shapes the core decodes against.
// Anything beyond these selectors is intentionally undecodable.
const (
	// RouterABI covers the UniswapV2-style swap surface (BaseSwap, Velora).
	RouterABI = `[
		{"inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactETHForTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"payable","type":"function"},
		{"inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactTokensForETH","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"name":"swapExactTokensForTokens","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"}
	]`

	// ERC20ABI is the minimal token surface: metadata, balances,
	// transfers and approvals.
	ERC20ABI = `[
		{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
		{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
		{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
		{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
		{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
		{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
	]`

	// FactoryABI is the content-coin factory creation surface.
	FactoryABI = `[
		{"inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"tokenURI","type":"string"},{"name":"payoutRecipient","type":"address"}],"name":"createContentCoin","outputs":[{"name":"coin","type":"address"}],"stateMutability":"nonpayable","type":"function"}
	]`
)

// ParsedABIs bundles the parsed interface definitions so packages decode
// and pack against a single shared set.
type ParsedABIs struct {
	Router  abi.ABI
	ERC20   abi.ABI
	Factory abi.ABI
}

// ParseABIs parses the embedded interface definitions once at startup.
func ParseABIs() (*ParsedABIs, error) {
	router, err := abi.JSON(strings.NewReader(RouterABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse router ABI: %w", err)
	}
	erc20, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse erc20 ABI: %w", err)
	}
	factory, err := abi.JSON(strings.NewReader(FactoryABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse factory ABI: %w", err)
	}
	return &ParsedABIs{Router: router, ERC20: erc20, Factory: factory}, nil
}
