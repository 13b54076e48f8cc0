package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/folajindayo/zoracle-telegram-sub001/config"
	"github.com/folajindayo/zoracle-telegram-sub001/models"
)

// PendingHandler receives a full pending transaction.
type PendingHandler func(tx *models.ChainTransaction)

// BlockHandler receives each new block's transactions.
type BlockHandler func(blockNumber uint64, txs []*models.ChainTransaction)

// ErrorHandler receives recoverable transport errors for observation
// only; recovery is the manager's job, never the subscriber's.
type ErrorHandler func(err error)

// ProviderManager owns the one live subscription connection to the
// node, with ordered fallback endpoints, liveness verification and
// reconnect backoff. Subscribers never see transport errors or panics;
// the manager logs and recovers.
type ProviderManager struct {
	cfg  config.ProviderConfig
	node *NodeClient

	conn   *websocket.Conn
	connMu sync.Mutex

	pendingSubID string
	headsSubID   string

	handlersMu      sync.RWMutex
	pendingHandlers []PendingHandler
	blockHandlers   []BlockHandler
	errorHandlers   []ErrorHandler

	// failoverCount picks fallback[(count-1) mod N] on each reconnect.
	failoverCount int

	// pollMode is set when the provider rejects eth_subscribe; blocks
	// are then polled at the configured interval instead.
	pollMode      bool
	lastPolledBlk uint64

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	wg      sync.WaitGroup

	statsMu     sync.RWMutex
	pendingSeen int64
	blocksSeen  int64
	reconnects  int64
}

// NewProviderManager wires the manager to its node client. Connect must
// be called before Start.
func NewProviderManager(cfg config.ProviderConfig, node *NodeClient) *ProviderManager {
	return &ProviderManager{
		cfg:    cfg,
		node:   node,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// SubscribePending registers a callback for pending transactions.
func (p *ProviderManager) SubscribePending(cb func(tx *models.ChainTransaction)) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.pendingHandlers = append(p.pendingHandlers, cb)
}

// SubscribeBlocks registers a callback for new-block transaction sets.
func (p *ProviderManager) SubscribeBlocks(cb func(blockNumber uint64, txs []*models.ChainTransaction)) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.blockHandlers = append(p.blockHandlers, cb)
}

// SubscribeErrors registers an observer for recoverable transport errors.
func (p *ProviderManager) SubscribeErrors(cb func(err error)) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.errorHandlers = append(p.errorHandlers, cb)
}

// CurrentBlockNumber proxies the node's head block number.
func (p *ProviderManager) CurrentBlockNumber(ctx context.Context) (uint64, error) {
	return p.node.BlockNumber(ctx)
}

// endpointForAttempt returns the WS endpoint for the current failover
// counter: the primary first, then fallback[(counter-1) mod N].
func (p *ProviderManager) endpointForAttempt() string {
	if p.failoverCount == 0 || len(p.cfg.WSFallbacks) == 0 {
		return p.cfg.WSEndpoint
	}
	return p.cfg.WSFallbacks[(p.failoverCount-1)%len(p.cfg.WSFallbacks)]
}

// Connect dials the active endpoint, verifies liveness with a block
// number call, and establishes the pending + heads subscriptions. On a
// subscription-unsupported provider it degrades to block polling.
func (p *ProviderManager) Connect(ctx context.Context) error {
	endpoint := p.endpointForAttempt()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(endpoint, nil)
	if err != nil {
		p.failoverCount++
		return fmt.Errorf("chain: dial %s: %w", endpoint, err)
	}

	// Liveness before declaring the connection usable.
	liveCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	blk, err := p.node.BlockNumber(liveCtx)
	cancel()
	if err != nil {
		conn.Close()
		p.failoverCount++
		return fmt.Errorf("chain: liveness check on %s: %w", endpoint, err)
	}

	p.connMu.Lock()
	p.conn = conn
	p.connMu.Unlock()

	p.lastPolledBlk = blk

	if err := p.subscribe(); err != nil {
		if isSubscribeUnsupported(err) {
			log.Printf("[Provider] %s does not support subscriptions, falling back to block polling", endpoint)
			p.setPollMode(true)
		} else {
			conn.Close()
			p.failoverCount++
			return fmt.Errorf("chain: subscribe on %s: %w", endpoint, err)
		}
	}

	log.Printf("[Provider] Connected to %s (head=%d, pollMode=%v)", endpoint, blk, p.inPollMode())
	return nil
}

func (p *ProviderManager) setPollMode(v bool) {
	p.connMu.Lock()
	p.pollMode = v
	p.connMu.Unlock()
}

func (p *ProviderManager) inPollMode() bool {
	p.connMu.Lock()
	defer p.connMu.Unlock()
	return p.pollMode
}

func isSubscribeUnsupported(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "notifications not supported") ||
		strings.Contains(msg, "subscription not supported") ||
		strings.Contains(msg, "method not found") ||
		strings.Contains(msg, "not available")
}

type subscribeResponse struct {
	ID     int    `json:"id"`
	Result string `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *ProviderManager) subscribe() error {
	p.connMu.Lock()
	defer p.connMu.Unlock()

	if p.conn == nil {
		return fmt.Errorf("not connected")
	}

	subs := []struct {
		id     int
		params []interface{}
		out    *string
	}{
		{1, []interface{}{"newPendingTransactions"}, &p.pendingSubID},
		{2, []interface{}{"newHeads"}, &p.headsSubID},
	}

	for _, s := range subs {
		msg := map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "eth_subscribe",
			"params":  s.params,
			"id":      s.id,
		}
		if err := p.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe write: %w", err)
		}

		p.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		_, raw, err := p.conn.ReadMessage()
		p.conn.SetReadDeadline(time.Time{})
		if err != nil {
			return fmt.Errorf("subscribe read: %w", err)
		}

		var resp subscribeResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return fmt.Errorf("subscribe parse: %w", err)
		}
		if resp.Error != nil {
			return fmt.Errorf("subscribe error: %s", resp.Error.Message)
		}
		*s.out = resp.Result
	}

	log.Printf("[Provider] Subscribed (pending=%s heads=%s)", p.pendingSubID, p.headsSubID)
	return nil
}

// Start launches the read loop (or poll loop). Connect must have
// succeeded first.
func (p *ProviderManager) Start(ctx context.Context) error {
	if p.running {
		return fmt.Errorf("provider manager already running")
	}
	p.running = true

	if p.inPollMode() {
		p.wg.Add(1)
		go p.pollLoop(ctx)
	} else {
		p.wg.Add(1)
		go p.readLoop(ctx)
	}

	go func() {
		p.wg.Wait()
		close(p.doneCh)
	}()

	log.Printf("[Provider] Started")
	return nil
}

// Stop shuts the manager down and cancels pending reconnect timers.
func (p *ProviderManager) Stop() {
	if !p.running {
		return
	}
	p.running = false
	close(p.stopCh)

	p.connMu.Lock()
	if p.conn != nil {
		p.conn.Close()
	}
	p.connMu.Unlock()

	select {
	case <-p.doneCh:
	case <-time.After(5 * time.Second):
		log.Printf("[Provider] Shutdown timeout")
	}
	log.Printf("[Provider] Stopped")
}

// Stats returns ingestion counters.
func (p *ProviderManager) Stats() (pendingSeen, blocksSeen, reconnects int64) {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()
	return p.pendingSeen, p.blocksSeen, p.reconnects
}

func (p *ProviderManager) readLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		default:
		}

		// A reconnect may have landed on a subscription-less endpoint.
		// Hand the feed to the poll loop; this connection will never
		// deliver notifications.
		if p.inPollMode() {
			log.Printf("[Provider] Handing feed to block polling")
			p.wg.Add(1)
			go p.pollLoop(ctx)
			return
		}

		p.connMu.Lock()
		conn := p.conn
		p.connMu.Unlock()

		if conn == nil {
			p.reconnect(ctx)
			continue
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			p.notifyError(err)
			if IsRateLimited(err) {
				// Failover does not fix a quota problem: cool down and
				// resume on the same endpoint.
				cooldown := time.Duration(p.cfg.RateLimitCooldownSec) * time.Second
				log.Printf("[Provider] Rate limited, pausing %s before resuming same endpoint", cooldown)
				select {
				case <-ctx.Done():
					return
				case <-p.stopCh:
					return
				case <-time.After(cooldown):
				}
				p.redial(ctx, false)
				continue
			}
			log.Printf("[Provider] Read error: %v, failing over...", err)
			p.reconnect(ctx)
			continue
		}

		p.handleMessage(ctx, raw)
	}
}

// reconnect advances the failover counter and redials with backoff.
func (p *ProviderManager) reconnect(ctx context.Context) {
	p.failoverCount++
	p.statsMu.Lock()
	p.reconnects++
	p.statsMu.Unlock()
	p.redial(ctx, true)
}

func (p *ProviderManager) redial(ctx context.Context, backoff bool) {
	p.connMu.Lock()
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	p.connMu.Unlock()

	if backoff {
		delay := time.Duration(p.cfg.ReconnectDelaySec) * time.Second
		log.Printf("[Provider] Reconnecting in %s (failover=%d)...", delay, p.failoverCount)
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-time.After(delay):
		}
	}

	if err := p.Connect(ctx); err != nil {
		log.Printf("[Provider] Reconnection failed: %v", err)
	}
}

type subscriptionNotice struct {
	Method string `json:"method"`
	Params struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
}

func (p *ProviderManager) handleMessage(ctx context.Context, raw []byte) {
	var notice subscriptionNotice
	if err := json.Unmarshal(raw, &notice); err != nil {
		return
	}
	if notice.Method != "eth_subscription" {
		return
	}

	switch notice.Params.Subscription {
	case p.pendingSubID:
		var hash string
		if err := json.Unmarshal(notice.Params.Result, &hash); err != nil || hash == "" {
			return
		}
		p.statsMu.Lock()
		p.pendingSeen++
		count := p.pendingSeen
		p.statsMu.Unlock()
		if count%10000 == 0 {
			log.Printf("[Provider] Seen %d pending transactions", count)
		}
		// Fetch the full body off the read loop so a slow RPC never
		// stalls ingestion.
		go p.fetchAndEmitPending(ctx, hash)

	case p.headsSubID:
		var head struct {
			Number string `json:"number"`
		}
		if err := json.Unmarshal(notice.Params.Result, &head); err != nil || head.Number == "" {
			return
		}
		var num uint64
		if _, err := fmt.Sscanf(head.Number, "0x%x", &num); err != nil {
			return
		}
		go p.fetchAndEmitBlock(ctx, num)
	}
}

func (p *ProviderManager) fetchAndEmitPending(ctx context.Context, hash string) {
	tx, err := p.node.TransactionByHash(ctx, hash)
	if err != nil || tx == nil {
		// Gone from the pool or not yet visible on this endpoint.
		return
	}
	p.emitPending(tx)
}

func (p *ProviderManager) fetchAndEmitBlock(ctx context.Context, num uint64) {
	txs, err := p.node.BlockTransactions(ctx, num)
	if err != nil {
		p.notifyError(err)
		return
	}
	p.statsMu.Lock()
	p.blocksSeen++
	p.statsMu.Unlock()
	p.emitBlock(num, txs)
}

// pollLoop drives the block feed when the provider rejects
// subscriptions. The pending feed is unavailable in this mode.
func (p *ProviderManager) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	interval := time.Duration(p.cfg.BlockPollIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			head, err := p.node.BlockNumber(ctx)
			if err != nil {
				p.notifyError(err)
				continue
			}
			for blk := p.lastPolledBlk + 1; blk <= head; blk++ {
				p.fetchAndEmitBlock(ctx, blk)
				p.lastPolledBlk = blk
			}
		}
	}
}

func (p *ProviderManager) emitPending(tx *models.ChainTransaction) {
	p.handlersMu.RLock()
	handlers := make([]PendingHandler, len(p.pendingHandlers))
	copy(handlers, p.pendingHandlers)
	p.handlersMu.RUnlock()

	for _, h := range handlers {
		p.safeInvoke(func() { h(tx) })
	}
}

func (p *ProviderManager) emitBlock(num uint64, txs []*models.ChainTransaction) {
	p.handlersMu.RLock()
	handlers := make([]BlockHandler, len(p.blockHandlers))
	copy(handlers, p.blockHandlers)
	p.handlersMu.RUnlock()

	for _, h := range handlers {
		p.safeInvoke(func() { h(num, txs) })
	}
}

func (p *ProviderManager) notifyError(err error) {
	p.handlersMu.RLock()
	handlers := make([]ErrorHandler, len(p.errorHandlers))
	copy(handlers, p.errorHandlers)
	p.handlersMu.RUnlock()

	for _, h := range handlers {
		p.safeInvoke(func() { h(err) })
	}
}

// safeInvoke keeps subscriber panics from killing the read loop.
func (p *ProviderManager) safeInvoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Provider] Subscriber panic recovered: %v", r)
		}
	}()
	fn()
}
