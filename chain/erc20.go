package chain

import (
	"context"
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/folajindayo/zoracle-telegram-sub001/utils"
)

// TokenInfo is the cached metadata of one ERC-20 token.
type TokenInfo struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// TokenReader resolves ERC-20 metadata, balances and allowances through
// eth_call. Missing metadata degrades to safe defaults (18 decimals,
// "UNKNOWN" symbol) instead of failing the caller.
type TokenReader struct {
	node *NodeClient
	abis *ParsedABIs
}

// NewTokenReader builds a reader over the shared node client.
func NewTokenReader(node *NodeClient, abis *ParsedABIs) *TokenReader {
	return &TokenReader{node: node, abis: abis}
}

// Info fetches name/symbol/decimals for a token. Each field degrades
// independently; the call itself never errors on metadata problems.
func (r *TokenReader) Info(ctx context.Context, tokenAddr string) *TokenInfo {
	addr := common.HexToAddress(tokenAddr)
	info := &TokenInfo{
		Address:  utils.NormalizeAddress(tokenAddr),
		Name:     "Unknown Token",
		Symbol:   "UNKNOWN",
		Decimals: 18,
	}

	if name, err := r.callString(ctx, addr, "name"); err == nil && name != "" {
		info.Name = name
	}
	if symbol, err := r.callString(ctx, addr, "symbol"); err == nil && symbol != "" {
		info.Symbol = symbol
	}
	if dec, err := r.decimals(ctx, addr); err == nil {
		info.Decimals = dec
	} else {
		log.Printf("[TokenReader] %s missing decimals, defaulting to 18: %v", utils.ShortAddress(tokenAddr), err)
	}
	return info
}

func (r *TokenReader) callString(ctx context.Context, token common.Address, method string) (string, error) {
	data, err := r.abis.ERC20.Pack(method)
	if err != nil {
		return "", fmt.Errorf("chain: pack %s: %w", method, err)
	}
	out, err := r.node.CallContract(ctx, token, data)
	if err != nil {
		return "", err
	}
	vals, err := r.abis.ERC20.Methods[method].Outputs.Unpack(out)
	if err != nil || len(vals) == 0 {
		return "", fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	s, ok := vals[0].(string)
	if !ok {
		return "", fmt.Errorf("chain: %s returned non-string", method)
	}
	return s, nil
}

func (r *TokenReader) decimals(ctx context.Context, token common.Address) (int, error) {
	data, err := r.abis.ERC20.Pack("decimals")
	if err != nil {
		return 0, err
	}
	out, err := r.node.CallContract(ctx, token, data)
	if err != nil {
		return 0, err
	}
	vals, err := r.abis.ERC20.Methods["decimals"].Outputs.Unpack(out)
	if err != nil || len(vals) == 0 {
		return 0, fmt.Errorf("chain: unpack decimals: %w", err)
	}
	dec, ok := vals[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("chain: decimals returned unexpected type %T", vals[0])
	}
	return int(dec), nil
}

// BalanceOf returns a wallet's token balance in base units.
func (r *TokenReader) BalanceOf(ctx context.Context, tokenAddr, owner string) (*big.Int, error) {
	data, err := r.abis.ERC20.Pack("balanceOf", common.HexToAddress(owner))
	if err != nil {
		return nil, fmt.Errorf("chain: pack balanceOf: %w", err)
	}
	out, err := r.node.CallContract(ctx, common.HexToAddress(tokenAddr), data)
	if err != nil {
		return nil, err
	}
	vals, err := r.abis.ERC20.Methods["balanceOf"].Outputs.Unpack(out)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("chain: unpack balanceOf: %w", err)
	}
	bal, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: balanceOf returned unexpected type %T", vals[0])
	}
	return bal, nil
}

// Allowance returns how much the spender may move on the owner's behalf.
func (r *TokenReader) Allowance(ctx context.Context, tokenAddr, owner, spender string) (*big.Int, error) {
	data, err := r.abis.ERC20.Pack("allowance", common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return nil, fmt.Errorf("chain: pack allowance: %w", err)
	}
	out, err := r.node.CallContract(ctx, common.HexToAddress(tokenAddr), data)
	if err != nil {
		return nil, err
	}
	vals, err := r.abis.ERC20.Methods["allowance"].Outputs.Unpack(out)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("chain: unpack allowance: %w", err)
	}
	allowance, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: allowance returned unexpected type %T", vals[0])
	}
	return allowance, nil
}
