package mirror

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/folajindayo/zoracle-telegram-sub001/chain"
	"github.com/folajindayo/zoracle-telegram-sub001/config"
	"github.com/folajindayo/zoracle-telegram-sub001/executor"
	"github.com/folajindayo/zoracle-telegram-sub001/models"
	"github.com/folajindayo/zoracle-telegram-sub001/monitor"
	"github.com/folajindayo/zoracle-telegram-sub001/storage"
	"github.com/folajindayo/zoracle-telegram-sub001/utils"
)

// OrderExecutor hands a sized order to the execution layer.
type OrderExecutor interface {
	Execute(ctx context.Context, order executor.Order) (*executor.Result, error)
}

// FundsReader answers balance queries for sizing decisions.
type FundsReader interface {
	NativeBalance(ctx context.Context, addr string) (*big.Int, error)
	TokenBalance(ctx context.Context, token, owner string) (*big.Int, error)
}

// ChainFunds is the live FundsReader over the shared node client.
type ChainFunds struct {
	node   *chain.NodeClient
	tokens *chain.TokenReader
}

func NewChainFunds(node *chain.NodeClient, tokens *chain.TokenReader) *ChainFunds {
	return &ChainFunds{node: node, tokens: tokens}
}

func (f *ChainFunds) NativeBalance(ctx context.Context, addr string) (*big.Int, error) {
	return f.node.Balance(ctx, addr)
}

func (f *ChainFunds) TokenBalance(ctx context.Context, token, owner string) (*big.Int, error) {
	return f.tokens.BalanceOf(ctx, token, owner)
}

// EngineStats are the engine's lifetime counters.
type EngineStats struct {
	Detected  int64 `json:"detected"`
	Executed  int64 `json:"executed"`
	Simulated int64 `json:"simulated"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
	Targets   int   `json:"targets"`
}

// Engine mirrors detected trades to followers. It owns one monitor
// listener per unique target wallet and fans each detected trade out
// to that target's followers, each on its own goroutine with a random
// delay so mirrors never land in lockstep.
type Engine struct {
	cfg      config.MirrorConfig
	store    storage.ConfigStore
	registry *monitor.ListenerRegistry
	exec     OrderExecutor
	funds    FundsReader
	signers  chain.SignerProvider
	sink     EventSink

	mu      sync.Mutex
	targets map[string]bool
	stats   EngineStats

	rngMu sync.Mutex
	rng   *rand.Rand

	wg sync.WaitGroup
}

// NewEngine wires the mirroring engine. A nil sink falls back to the
// logging sink.
func NewEngine(cfg config.MirrorConfig, store storage.ConfigStore, registry *monitor.ListenerRegistry,
	exec OrderExecutor, funds FundsReader, signers chain.SignerProvider, sink EventSink) *Engine {
	if sink == nil {
		sink = LogSink{}
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		registry: registry,
		exec:     exec,
		funds:    funds,
		signers:  signers,
		sink:     sink,
		targets:  make(map[string]bool),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func listenerID(target string) string {
	return "mirror:" + target
}

// StartMonitoring registers the swap listener for a target wallet.
// Returns false when the target was already being monitored.
func (e *Engine) StartMonitoring(targetWallet string) bool {
	target := utils.NormalizeAddress(targetWallet)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.targets[target] {
		return false
	}

	ok := e.registry.Register(listenerID(target), monitor.CategorySwap,
		func(intent *models.TradeIntent) bool {
			return intent.Tx != nil && intent.Tx.From == target
		},
		func(intent *models.TradeIntent) {
			e.onTrade(target, intent)
		},
		monitor.ListenerOptions{TargetWallet: target},
	)
	if !ok {
		return false
	}

	e.targets[target] = true
	log.Printf("[Mirror] Monitoring %s", utils.ShortAddress(target))
	return true
}

// StopMonitoring removes the target's listener. Returns false when the
// target was not monitored.
func (e *Engine) StopMonitoring(targetWallet string) bool {
	target := utils.NormalizeAddress(targetWallet)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.targets[target] {
		return false
	}

	delete(e.targets, target)
	e.registry.Unregister(listenerID(target))
	log.Printf("[Mirror] Stopped monitoring %s", utils.ShortAddress(target))
	return true
}

// IsMonitoring reports whether a target currently has a listener.
func (e *Engine) IsMonitoring(targetWallet string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.targets[utils.NormalizeAddress(targetWallet)]
}

// ResumeAll re-registers listeners for every target that still has an
// active follower. Called once at startup.
func (e *Engine) ResumeAll(ctx context.Context) error {
	targets, err := e.store.ListActiveTargets(ctx)
	if err != nil {
		return fmt.Errorf("mirror: list targets: %w", err)
	}
	for _, target := range targets {
		e.StartMonitoring(target)
	}
	log.Printf("[Mirror] Resumed %d targets", len(targets))
	return nil
}

// AddFollower persists a subscription and starts monitoring the target
// if this is its first active follower.
func (e *Engine) AddFollower(ctx context.Context, cfg *models.CopyTradeConfig) (*models.CopyTradeConfig, error) {
	if cfg.SellPolicy == "" {
		cfg.SellPolicy = models.SellPolicy(e.cfg.SellPolicy)
	}
	if cfg.SellPolicy == "" {
		cfg.SellPolicy = models.SellPolicyAll
	}

	saved, err := e.store.SaveConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if saved.Active {
		e.StartMonitoring(saved.TargetWallet)
	}
	return saved, nil
}

// SetFollowerActive pauses or resumes a subscription, keeping the
// target's listener consistent with its set of active followers.
func (e *Engine) SetFollowerActive(ctx context.Context, id int64, active bool) error {
	cfg, err := e.store.GetConfig(ctx, id)
	if err != nil {
		return err
	}
	if err := e.store.SetConfigActive(ctx, id, active); err != nil {
		return err
	}

	if active {
		e.StartMonitoring(cfg.TargetWallet)
		return nil
	}
	remaining, err := e.store.ListConfigsByTarget(ctx, cfg.TargetWallet)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		e.StopMonitoring(cfg.TargetWallet)
	}
	return nil
}

// RemoveFollower deletes a subscription and stops monitoring the
// target once its last active follower is gone.
func (e *Engine) RemoveFollower(ctx context.Context, id int64) error {
	cfg, err := e.store.GetConfig(ctx, id)
	if err != nil {
		return err
	}
	if err := e.store.DeleteConfig(ctx, id); err != nil {
		return err
	}

	remaining, err := e.store.ListConfigsByTarget(ctx, cfg.TargetWallet)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		e.StopMonitoring(cfg.TargetWallet)
	}
	return nil
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.Targets = len(e.targets)
	return s
}

// Wait blocks until all in-flight mirrors have completed. Used by
// shutdown and tests.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) onTrade(target string, intent *models.TradeIntent) {
	e.mu.Lock()
	e.stats.Detected++
	e.mu.Unlock()

	e.sink.Emit(newTradeEvent(target, intent))

	ctx := context.Background()
	configs, err := e.store.ListConfigsByTarget(ctx, target)
	if err != nil {
		log.Printf("[Mirror] Failed to load followers of %s: %v", utils.ShortAddress(target), err)
		return
	}

	for _, cfg := range configs {
		cfg := cfg
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.sleepJitter()
			outcome := e.mirrorOne(ctx, cfg, intent)
			e.record(ctx, outcome)
		}()
	}
}

func (e *Engine) record(ctx context.Context, outcome *models.MirrorOutcome) {
	e.mu.Lock()
	switch outcome.Status {
	case models.MirrorStatusExecuted:
		e.stats.Executed++
	case models.MirrorStatusSimulated:
		e.stats.Simulated++
	case models.MirrorStatusSkipped:
		e.stats.Skipped++
	default:
		e.stats.Failed++
	}
	e.mu.Unlock()

	if err := e.store.SaveOutcome(ctx, outcome); err != nil {
		log.Printf("[Mirror] Failed to persist outcome for %s: %v", outcome.UserID, err)
	}
	e.sink.Emit(newOutcomeEvent(outcome))
}

func (e *Engine) mirrorOne(ctx context.Context, cfg *models.CopyTradeConfig, intent *models.TradeIntent) *models.MirrorOutcome {
	outcome := &models.MirrorOutcome{
		ConfigID:     cfg.ID,
		UserID:       cfg.UserID,
		TargetWallet: cfg.TargetWallet,
		Side:         intent.Kind,
		CompletedAt:  time.Now(),
	}

	var token string
	switch intent.Kind {
	case models.TradeKindBuy:
		token = intent.OutputToken
	case models.TradeKindSell:
		token = intent.InputToken
	default:
		outcome.Status = models.MirrorStatusSkipped
		outcome.Reason = fmt.Sprintf("unsupported trade kind %q", intent.Kind)
		return outcome
	}
	outcome.Token = token

	if cfg.SandboxMode {
		amount := e.sandboxSize(cfg, intent)
		outcome.Status = models.MirrorStatusSimulated
		outcome.Amount = amount
		decimals := 18
		if intent.Kind == models.TradeKindSell {
			decimals = intent.InputDecimals
		}
		outcome.AmountDisplay = utils.FormatUnits(amount, decimals)
		return outcome
	}

	signer, err := e.signers.GetSigner(ctx, cfg.UserID)
	if err != nil {
		outcome.Status = models.MirrorStatusFailed
		outcome.Reason = fmt.Sprintf("signer: %v", err)
		return outcome
	}
	wallet := signer.Address()

	var (
		amount *big.Int
		side   executor.Side
	)
	switch intent.Kind {
	case models.TradeKindBuy:
		side = executor.SideBuy
		amount, err = e.buySize(ctx, cfg, wallet, intent.AmountIn)
	case models.TradeKindSell:
		side = executor.SideSell
		amount, err = e.sellSize(ctx, cfg, wallet, token, intent)
	}
	if err != nil {
		outcome.Status = models.MirrorStatusFailed
		outcome.Reason = err.Error()
		return outcome
	}
	if amount == nil || amount.Sign() <= 0 {
		outcome.Status = models.MirrorStatusSkipped
		outcome.Reason = "insufficient balance"
		return outcome
	}

	slippage := cfg.SlippagePct
	if slippage <= 0 {
		slippage = e.cfg.DefaultSlippage
	}

	outcome.Amount = amount
	decimals := 18
	if side == executor.SideSell {
		decimals = intent.InputDecimals
	}
	outcome.AmountDisplay = utils.FormatUnits(amount, decimals)

	res, err := e.exec.Execute(ctx, executor.Order{
		UserID:      cfg.UserID,
		Side:        side,
		Token:       token,
		Amount:      amount,
		SlippagePct: slippage,
	})
	if err != nil {
		outcome.Status = models.MirrorStatusFailed
		outcome.Reason = err.Error()
		return outcome
	}

	outcome.TxHashes = res.TxHashes()
	if res.AllFailed() {
		outcome.Status = models.MirrorStatusFailed
		outcome.Reason = "all sub-orders failed"
		return outcome
	}

	outcome.Status = models.MirrorStatusExecuted
	if res.Failed > 0 {
		outcome.Reason = fmt.Sprintf("partial: %d of %d sub-orders failed", res.Failed, res.Failed+res.Succeeded)
	}
	return outcome
}

// buySize returns min(target's spend, follower's cap, spendable
// balance) where spendable leaves the gas reserve untouched.
func (e *Engine) buySize(ctx context.Context, cfg *models.CopyTradeConfig, wallet string, targetSpend *big.Int) (*big.Int, error) {
	balance, err := e.funds.NativeBalance(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}

	reserve := e.cfg.GasReservePct
	if reserve <= 0 || reserve >= 100 {
		reserve = 5
	}
	spendable := new(big.Int).Mul(balance, big.NewInt(int64((100-reserve)*100)))
	spendable.Div(spendable, big.NewInt(10000))

	candidates := []*big.Int{targetSpend, spendable}
	if cfg.MaxWeiPerTrade != nil && cfg.MaxWeiPerTrade.Sign() > 0 {
		candidates = append(candidates, cfg.MaxWeiPerTrade)
	}
	return utils.MinBig(candidates...), nil
}

// sellSize returns the follower's stake to unwind. sell_all liquidates
// the whole holding; proportional matches the fraction the target sold
// of their pre-trade balance, falling back to sell_all when that
// fraction cannot be established.
func (e *Engine) sellSize(ctx context.Context, cfg *models.CopyTradeConfig, wallet, token string, intent *models.TradeIntent) (*big.Int, error) {
	held, err := e.funds.TokenBalance(ctx, token, wallet)
	if err != nil {
		return nil, fmt.Errorf("token balance: %w", err)
	}
	if held.Sign() <= 0 {
		return big.NewInt(0), nil
	}

	if cfg.SellPolicy != models.SellPolicyProportional {
		return held, nil
	}

	targetHeld, err := e.funds.TokenBalance(ctx, token, cfg.TargetWallet)
	if err != nil {
		return held, nil
	}
	// Pre-trade estimate: the observed sell may not be mined yet, so
	// the target's current balance still includes the amount being sold.
	preTrade := targetHeld
	if preTrade.Cmp(intent.AmountIn) < 0 {
		preTrade = new(big.Int).Add(targetHeld, intent.AmountIn)
	}
	if preTrade.Sign() <= 0 {
		return held, nil
	}

	amount := new(big.Int).Mul(held, intent.AmountIn)
	amount.Div(amount, preTrade)
	if amount.Cmp(held) > 0 {
		amount = held
	}
	return amount, nil
}

// sandboxSize mirrors the live buy cap without touching balances, so
// sandbox runs never issue RPC calls. The wei cap only makes sense for
// buys; sell amounts are token base units.
func (e *Engine) sandboxSize(cfg *models.CopyTradeConfig, intent *models.TradeIntent) *big.Int {
	if intent.AmountIn == nil {
		return big.NewInt(0)
	}
	if intent.Kind == models.TradeKindBuy && cfg.MaxWeiPerTrade != nil && cfg.MaxWeiPerTrade.Sign() > 0 {
		return utils.MinBig(intent.AmountIn, cfg.MaxWeiPerTrade)
	}
	return new(big.Int).Set(intent.AmountIn)
}

func (e *Engine) sleepJitter() {
	min := e.cfg.MinDelayMS
	max := e.cfg.MaxDelayMS
	if max < min {
		max = min
	}

	delay := time.Duration(min) * time.Millisecond
	if span := max - min; span > 0 {
		e.rngMu.Lock()
		delay += time.Duration(e.rng.Intn(span+1)) * time.Millisecond
		e.rngMu.Unlock()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
}
