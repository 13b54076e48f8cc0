package monitor

import (
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/folajindayo/zoracle-telegram-sub001/chain"
	"github.com/folajindayo/zoracle-telegram-sub001/models"
	"github.com/folajindayo/zoracle-telegram-sub001/utils"
)

// TokenMetaSource resolves token decimals without blocking.
// Classification is CPU-only; implementations must answer from cache
// and default to 18 on a miss rather than call out to the chain.
type TokenMetaSource interface {
	TokenDecimals(token string) int
}

// defaultDecimals is used when nothing is known about a token.
const defaultDecimals = 18

// Classifier decides what a raw transaction *means*: a DEX swap, an
// ERC-20 transfer or approval, a content-coin creation, or a plain
// value move. Transactions it cannot decode are not errors; most
// contract calls on the chain have shapes this core does not know.
type Classifier struct {
	abis      *chain.ParsedABIs
	routers   map[string]bool
	factories map[string]bool
	weth      string
	tokens    TokenMetaSource
}

// NewClassifier builds a classifier over the configured address sets.
// tokens may be nil; decimals then always default to 18.
func NewClassifier(abis *chain.ParsedABIs, routerAddrs, factoryAddrs []string, wethAddr string, tokens TokenMetaSource) *Classifier {
	routers := make(map[string]bool, len(routerAddrs))
	for _, a := range routerAddrs {
		routers[utils.NormalizeAddress(a)] = true
	}
	factories := make(map[string]bool, len(factoryAddrs))
	for _, a := range factoryAddrs {
		factories[utils.NormalizeAddress(a)] = true
	}
	return &Classifier{
		abis:      abis,
		routers:   routers,
		factories: factories,
		weth:      utils.NormalizeAddress(wethAddr),
		tokens:    tokens,
	}
}

// Classify returns the decoded trade intent, or nil when the
// transaction does not match any known shape. It never errors and
// never blocks on the network.
func (c *Classifier) Classify(tx *models.ChainTransaction) *models.TradeIntent {
	if tx == nil {
		return nil
	}

	// Plain value moves: no target contract or no calldata.
	if tx.To == "" || !tx.HasCalldata() {
		value := tx.Value
		if value == nil {
			value = new(big.Int)
		}
		return &models.TradeIntent{
			Kind:          models.TradeKindTransfer,
			InputToken:    models.NativeToken,
			AmountIn:      value,
			AmountDisplay: utils.FormatUnits(value, defaultDecimals),
			InputDecimals: defaultDecimals,
			Counterparty:  tx.To,
			Tx:            tx,
		}
	}

	data, err := hexutil.Decode(tx.Input)
	if err != nil || len(data) < 4 {
		return nil
	}

	to := utils.NormalizeAddress(tx.To)
	switch {
	case c.routers[to]:
		return c.classifyRouterCall(tx, data)
	case c.factories[to]:
		return c.classifyFactoryCall(tx, data)
	default:
		return c.classifyERC20Call(tx, data)
	}
}

func (c *Classifier) decimalsFor(token string) int {
	if c.tokens == nil {
		return defaultDecimals
	}
	return c.tokens.TokenDecimals(token)
}

// classifyRouterCall decodes against the swap-router interface only.
func (c *Classifier) classifyRouterCall(tx *models.ChainTransaction, data []byte) *models.TradeIntent {
	method, err := c.abis.Router.MethodById(data[:4])
	if err != nil {
		// Unknown selector on a known router. Expected, silent.
		return nil
	}
	args := make(map[string]interface{})
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		log.Printf("[Classifier] Malformed %s calldata in %s, skipping", method.Name, utils.ShortHash(tx.Hash))
		return nil
	}

	path, ok := args["path"].([]common.Address)
	if !ok || len(path) < 2 {
		return nil
	}

	intent := &models.TradeIntent{Args: args, Tx: tx}

	switch method.Name {
	case "swapExactETHForTokens":
		value := tx.Value
		if value == nil {
			value = new(big.Int)
		}
		intent.Kind = models.TradeKindBuy
		intent.InputToken = models.NativeToken
		intent.OutputToken = utils.NormalizeAddress(path[len(path)-1].Hex())
		intent.AmountIn = value
		intent.InputDecimals = defaultDecimals
		intent.AmountDisplay = utils.FormatUnits(value, defaultDecimals)

	case "swapExactTokensForETH":
		amountIn, ok := args["amountIn"].(*big.Int)
		if !ok {
			return nil
		}
		token := utils.NormalizeAddress(path[0].Hex())
		dec := c.decimalsFor(token)
		intent.Kind = models.TradeKindSell
		intent.InputToken = token
		intent.OutputToken = models.NativeToken
		intent.AmountIn = amountIn
		intent.InputDecimals = dec
		intent.AmountDisplay = utils.FormatUnits(amountIn, dec)

	case "swapExactTokensForTokens":
		amountIn, ok := args["amountIn"].(*big.Int)
		if !ok {
			return nil
		}
		token := utils.NormalizeAddress(path[0].Hex())
		dec := c.decimalsFor(token)
		intent.Kind = models.TradeKindTokenToToken
		intent.InputToken = token
		intent.OutputToken = utils.NormalizeAddress(path[len(path)-1].Hex())
		intent.AmountIn = amountIn
		intent.InputDecimals = dec
		intent.AmountDisplay = utils.FormatUnits(amountIn, dec)

	default:
		return nil
	}

	return intent
}

// classifyFactoryCall decodes content-coin creation calls.
func (c *Classifier) classifyFactoryCall(tx *models.ChainTransaction, data []byte) *models.TradeIntent {
	method, err := c.abis.Factory.MethodById(data[:4])
	if err != nil || method.Name != "createContentCoin" {
		return nil
	}
	args := make(map[string]interface{})
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		return nil
	}
	return &models.TradeIntent{
		Kind: models.TradeKindContentCreate,
		Args: args,
		Tx:   tx,
	}
}

// classifyERC20Call decodes arbitrary contract calls generically
// against the ERC-20 interface.
func (c *Classifier) classifyERC20Call(tx *models.ChainTransaction, data []byte) *models.TradeIntent {
	method, err := c.abis.ERC20.MethodById(data[:4])
	if err != nil {
		return nil
	}
	args := make(map[string]interface{})
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		return nil
	}

	token := utils.NormalizeAddress(tx.To)
	dec := c.decimalsFor(token)

	switch method.Name {
	case "transfer":
		amount, ok := args["_value"].(*big.Int)
		if !ok {
			return nil
		}
		recipient, _ := args["_to"].(common.Address)
		return &models.TradeIntent{
			Kind:          models.TradeKindTransfer,
			InputToken:    token,
			AmountIn:      amount,
			AmountDisplay: utils.FormatUnits(amount, dec),
			InputDecimals: dec,
			Counterparty:  utils.NormalizeAddress(recipient.Hex()),
			Args:          args,
			Tx:            tx,
		}

	case "approve":
		amount, ok := args["_value"].(*big.Int)
		if !ok {
			return nil
		}
		spender, _ := args["_spender"].(common.Address)
		return &models.TradeIntent{
			Kind:          models.TradeKindApproval,
			InputToken:    token,
			AmountIn:      amount,
			AmountDisplay: utils.FormatUnits(amount, dec),
			InputDecimals: dec,
			Counterparty:  utils.NormalizeAddress(spender.Hex()),
			Args:          args,
			Tx:            tx,
		}
	}

	return nil
}

// IsRouter reports whether an address is a configured DEX router.
func (c *Classifier) IsRouter(addr string) bool {
	return c.routers[utils.NormalizeAddress(addr)]
}

// WETH returns the configured wrapped-native token address.
func (c *Classifier) WETH() string {
	return c.weth
}
