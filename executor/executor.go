package executor

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/folajindayo/zoracle-telegram-sub001/chain"
	"github.com/folajindayo/zoracle-telegram-sub001/config"
	"github.com/folajindayo/zoracle-telegram-sub001/utils"
)

// Side is the direction of an order from the follower's perspective.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Order is one trade to execute on behalf of a user. Amount is in wei
// for buys and in token base units for sells.
type Order struct {
	UserID      string
	Side        Side
	Token       string
	Amount      *big.Int
	SlippagePct float64
}

// SubOrderResult is the outcome of one slice of a split order.
type SubOrderResult struct {
	Amount *big.Int `json:"amount"`
	TxHash string   `json:"tx_hash,omitempty"`
	Err    string   `json:"error,omitempty"`
}

// Result aggregates the sub-order outcomes of one order. An order can
// partially succeed when some slices land and later ones fail.
type Result struct {
	Side      Side             `json:"side"`
	Token     string           `json:"token"`
	Requested *big.Int         `json:"requested"`
	SubOrders []SubOrderResult `json:"sub_orders"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// TxHashes returns the hashes of the sub-orders that landed.
func (r *Result) TxHashes() []string {
	var hashes []string
	for _, sub := range r.SubOrders {
		if sub.TxHash != "" && sub.Err == "" {
			hashes = append(hashes, sub.TxHash)
		}
	}
	return hashes
}

// AllFailed reports whether no slice of the order succeeded.
func (r *Result) AllFailed() bool {
	return r.Succeeded == 0 && r.Failed > 0
}

// TxNode is the slice of the node client the engine submits through.
type TxNode interface {
	PendingNonce(ctx context.Context, addr string) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	WaitReceipt(ctx context.Context, hash string, timeout time.Duration) (*types.Receipt, error)
}

// PriceQuoter answers router quotes and address lookups.
type PriceQuoter interface {
	QuoteBuy(ctx context.Context, tokenAddr string, amountWei *big.Int) (*big.Int, error)
	QuoteSell(ctx context.Context, tokenAddr string, amountTokens *big.Int) (*big.Int, error)
	Router() string
	WETH() string
}

// AllowanceReader reads standing ERC-20 allowances.
type AllowanceReader interface {
	Allowance(ctx context.Context, tokenAddr, owner, spender string) (*big.Int, error)
}

var (
	_ TxNode          = (*chain.NodeClient)(nil)
	_ PriceQuoter     = (*chain.Quoter)(nil)
	_ AllowanceReader = (*chain.TokenReader)(nil)
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

type job struct {
	ctx      context.Context
	order    Order
	signer   chain.Signer
	resultCh chan *Result
}

type signerQueue struct {
	jobs chan *job
}

// Engine executes orders through the swap router. Orders for the same
// signing key are serialized through a per-signer queue so nonces never
// race; orders for different keys run concurrently. Large orders are
// sliced into sub-orders submitted sequentially with random delays.
type Engine struct {
	cfg     config.ExecutorConfig
	node    TxNode
	quoter  PriceQuoter
	tokens  AllowanceReader
	abis    *chain.ParsedABIs
	signers chain.SignerProvider

	router    common.Address
	threshold *big.Int

	mu     sync.Mutex
	queues map[string]*signerQueue

	rngMu sync.Mutex
	rng   *rand.Rand

	stopCh  chan struct{}
	wg      sync.WaitGroup
	stopped bool
}

// New builds an execution engine over the shared chain plumbing.
func New(cfg config.ExecutorConfig, node TxNode, quoter PriceQuoter,
	tokens AllowanceReader, abis *chain.ParsedABIs, signers chain.SignerProvider) *Engine {
	return &Engine{
		cfg:       cfg,
		node:      node,
		quoter:    quoter,
		tokens:    tokens,
		abis:      abis,
		signers:   signers,
		router:    common.HexToAddress(cfg.RouterAddress),
		threshold: ThresholdWei(cfg.MEVThresholdETH),
		queues:    make(map[string]*signerQueue),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		stopCh:    make(chan struct{}),
	}
}

// Execute runs one order to completion. It blocks until every sub-order
// has been attempted or ctx is cancelled, returning the aggregated
// result. Orders sharing a signer run strictly one at a time.
func (e *Engine) Execute(ctx context.Context, order Order) (*Result, error) {
	if order.Amount == nil || order.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("executor: non-positive amount")
	}

	signer, err := e.signers.GetSigner(ctx, order.UserID)
	if err != nil {
		return nil, err
	}

	j := &job{ctx: ctx, order: order, signer: signer, resultCh: make(chan *Result, 1)}
	q := e.queueFor(signer.Address())

	select {
	case q.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.stopCh:
		return nil, fmt.Errorf("executor: shutting down")
	}

	select {
	case res := <-j.resultCh:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop drains the queues and waits for in-flight orders to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()
	log.Printf("[Executor] Stopped")
}

func (e *Engine) queueFor(signerAddr string) *signerQueue {
	addr := utils.NormalizeAddress(signerAddr)

	e.mu.Lock()
	defer e.mu.Unlock()

	if q, ok := e.queues[addr]; ok {
		return q
	}
	q := &signerQueue{jobs: make(chan *job, 32)}
	e.queues[addr] = q

	e.wg.Add(1)
	go e.runQueue(addr, q)
	return q
}

func (e *Engine) runQueue(addr string, q *signerQueue) {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopCh:
			return
		case j := <-q.jobs:
			res := e.runOrder(j)
			j.resultCh <- res
		}
	}
}

func (e *Engine) runOrder(j *job) *Result {
	order := j.order
	res := &Result{
		Side:      order.Side,
		Token:     utils.NormalizeAddress(order.Token),
		Requested: new(big.Int).Set(order.Amount),
	}

	parts := e.splitPlan(j.ctx, order)
	if len(parts) > 1 {
		log.Printf("[Executor] Splitting %s %s order into %d sub-orders",
			order.Side, utils.ShortAddress(res.Token), len(parts))
	}

	for i, amount := range parts {
		if i > 0 {
			if !e.sleepBetweenSplits(j.ctx) {
				res.SubOrders = append(res.SubOrders, SubOrderResult{
					Amount: amount, Err: "cancelled before submission",
				})
				res.Failed++
				continue
			}
		}

		sub := e.runSubOrder(j.ctx, j.signer, order, amount)
		res.SubOrders = append(res.SubOrders, sub)
		if sub.Err == "" {
			res.Succeeded++
		} else {
			res.Failed++
			log.Printf("[Executor] Sub-order %d/%d failed for %s: %s",
				i+1, len(parts), order.UserID, sub.Err)
		}
	}

	return res
}

// splitPlan decides the sub-order slicing. The threshold is in wei, so
// buy amounts compare directly; sell amounts are token base units and
// are gated on the quoted native-terms value of the whole position.
func (e *Engine) splitPlan(ctx context.Context, order Order) []*big.Int {
	if order.Side != SideSell {
		return SplitAmounts(order.Amount, e.threshold, e.cfg.OrderSplits)
	}
	if e.threshold == nil || e.cfg.OrderSplits <= 1 {
		return []*big.Int{new(big.Int).Set(order.Amount)}
	}

	value, err := e.quoter.QuoteSell(ctx, order.Token, order.Amount)
	if err != nil || value == nil {
		// No price means no native-terms size to gate on.
		if err != nil {
			log.Printf("[Executor] Split sizing quote failed for %s: %v",
				utils.ShortAddress(order.Token), err)
		}
		return []*big.Int{new(big.Int).Set(order.Amount)}
	}
	if value.Cmp(e.threshold) <= 0 {
		return []*big.Int{new(big.Int).Set(order.Amount)}
	}
	return splitEven(order.Amount, e.cfg.OrderSplits)
}

func (e *Engine) runSubOrder(ctx context.Context, signer chain.Signer, order Order, amount *big.Int) SubOrderResult {
	sub := SubOrderResult{Amount: new(big.Int).Set(amount)}

	var (
		hash string
		err  error
	)
	switch order.Side {
	case SideBuy:
		hash, err = e.buy(ctx, signer, order.Token, amount, order.SlippagePct)
	case SideSell:
		hash, err = e.sell(ctx, signer, order.Token, amount, order.SlippagePct)
	default:
		err = fmt.Errorf("unknown side %q", order.Side)
	}

	sub.TxHash = hash
	if err != nil {
		sub.Err = err.Error()
	}
	return sub
}

// buy swaps native ETH for the token. When a fee recipient is
// configured, the fee is skimmed off the spend with a plain transfer
// before the swap.
func (e *Engine) buy(ctx context.Context, signer chain.Signer, token string, amountWei *big.Int, slippagePct float64) (string, error) {
	spend := new(big.Int).Set(amountWei)

	if fee := e.feeFor(amountWei); fee != nil {
		if err := e.sendFee(ctx, signer, fee); err != nil {
			return "", fmt.Errorf("fee transfer: %w", err)
		}
		spend.Sub(spend, fee)
	}

	quoted, err := e.quoter.QuoteBuy(ctx, token, spend)
	if err != nil {
		return "", fmt.Errorf("quote: %w", err)
	}
	minOut := chain.MinAcceptableOutput(quoted, slippagePct)

	path := []common.Address{common.HexToAddress(e.quoter.WETH()), common.HexToAddress(token)}
	data, err := e.abis.Router.Pack("swapExactETHForTokens",
		minOut, path, common.HexToAddress(signer.Address()), e.deadline())
	if err != nil {
		return "", fmt.Errorf("pack swap: %w", err)
	}

	return e.submit(ctx, signer, e.router, spend, data, true)
}

// sell swaps token base units back to native ETH, approving the router
// first when the standing allowance is too small.
func (e *Engine) sell(ctx context.Context, signer chain.Signer, token string, amountTokens *big.Int, slippagePct float64) (string, error) {
	if err := e.ensureAllowance(ctx, signer, token, amountTokens); err != nil {
		return "", err
	}

	quoted, err := e.quoter.QuoteSell(ctx, token, amountTokens)
	if err != nil {
		return "", fmt.Errorf("quote: %w", err)
	}
	minOut := chain.MinAcceptableOutput(quoted, slippagePct)

	path := []common.Address{common.HexToAddress(token), common.HexToAddress(e.quoter.WETH())}
	data, err := e.abis.Router.Pack("swapExactTokensForETH",
		amountTokens, minOut, path, common.HexToAddress(signer.Address()), e.deadline())
	if err != nil {
		return "", fmt.Errorf("pack swap: %w", err)
	}

	return e.submit(ctx, signer, e.router, big.NewInt(0), data, true)
}

// ensureAllowance grants the router an unlimited allowance once per
// token instead of an exact allowance per trade.
func (e *Engine) ensureAllowance(ctx context.Context, signer chain.Signer, token string, needed *big.Int) error {
	allowance, err := e.tokens.Allowance(ctx, token, signer.Address(), e.quoter.Router())
	if err != nil {
		return fmt.Errorf("allowance: %w", err)
	}
	if allowance.Cmp(needed) >= 0 {
		return nil
	}

	data, err := e.abis.ERC20.Pack("approve", e.router, maxUint256)
	if err != nil {
		return fmt.Errorf("pack approve: %w", err)
	}

	log.Printf("[Executor] Approving router for %s", utils.ShortAddress(token))
	if _, err := e.submit(ctx, signer, common.HexToAddress(token), big.NewInt(0), data, true); err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	return nil
}

func (e *Engine) sendFee(ctx context.Context, signer chain.Signer, fee *big.Int) error {
	_, err := e.submit(ctx, signer, common.HexToAddress(e.cfg.FeeRecipient), fee, nil, false)
	return err
}

// submit signs and broadcasts one transaction. When waitMined is set it
// also blocks until the receipt lands and checks the status.
func (e *Engine) submit(ctx context.Context, signer chain.Signer, to common.Address, value *big.Int, data []byte, waitMined bool) (string, error) {
	nonce, err := e.node.PendingNonce(ctx, signer.Address())
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}

	gasPrice, err := e.node.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("gas price: %w", err)
	}

	gasLimit := e.cfg.GasLimit
	if data == nil {
		gasLimit = 21000
	}

	tx := types.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)
	signed, err := signer.SignTx(tx)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	if err := e.node.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	hash := signed.Hash().Hex()

	if !waitMined {
		return hash, nil
	}

	receipt, err := e.node.WaitReceipt(ctx, hash, e.cfg.ReceiptTimeout())
	if err != nil {
		return hash, fmt.Errorf("receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return hash, fmt.Errorf("transaction %s reverted", utils.ShortHash(hash))
	}
	return hash, nil
}

// feeFor returns the skim for one sub-order, or nil when no fee is
// configured or the computed fee rounds to zero.
func (e *Engine) feeFor(amount *big.Int) *big.Int {
	if e.cfg.FeeRecipient == "" || e.cfg.FeePercentage <= 0 {
		return nil
	}
	bps := int64(e.cfg.FeePercentage * 100)
	if bps <= 0 {
		return nil
	}
	fee := new(big.Int).Mul(amount, big.NewInt(bps))
	fee.Div(fee, big.NewInt(10000))
	if fee.Sign() <= 0 || fee.Cmp(amount) >= 0 {
		return nil
	}
	return fee
}

func (e *Engine) deadline() *big.Int {
	minutes := e.cfg.DeadlineMinutes
	if minutes <= 0 {
		minutes = 20
	}
	return big.NewInt(time.Now().Add(time.Duration(minutes) * time.Minute).Unix())
}

// sleepBetweenSplits waits a random interval inside the configured
// window. Returns false when the context was cancelled while waiting.
func (e *Engine) sleepBetweenSplits(ctx context.Context) bool {
	min := e.cfg.SplitMinDelayMS
	max := e.cfg.SplitMaxDelayMS
	if max < min {
		max = min
	}

	delay := time.Duration(min) * time.Millisecond
	if span := max - min; span > 0 {
		e.rngMu.Lock()
		delay += time.Duration(e.rng.Intn(span+1)) * time.Millisecond
		e.rngMu.Unlock()
	}
	if delay <= 0 {
		return true
	}

	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}
