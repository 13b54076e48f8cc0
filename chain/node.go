package chain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/folajindayo/zoracle-telegram-sub001/models"
	"github.com/folajindayo/zoracle-telegram-sub001/utils"
)

// minCallGap throttles outbound RPC calls so a burst of pending
// transactions does not exhaust the provider's request budget.
const minCallGap = 10 * time.Millisecond

// NodeClient issues request/response JSON-RPC calls over HTTP with
// ordered fallback endpoints. Transport failures rotate to the next
// endpoint; rate-limit errors pause the client on the same endpoint,
// since failover does not fix a quota problem.
type NodeClient struct {
	endpoints []string

	mu             sync.Mutex
	idx            int
	rpc            *rpc.Client
	eth            *ethclient.Client
	cooldown       time.Time
	cooldownWindow time.Duration

	lastCall   time.Time
	lastCallMu sync.Mutex
}

// DialNode connects to the first reachable HTTP endpoint.
func DialNode(endpoints []string, cooldownWindow time.Duration) (*NodeClient, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("chain: no HTTP endpoints configured")
	}
	n := &NodeClient{endpoints: endpoints, cooldownWindow: cooldownWindow}
	if err := n.dialLocked(0); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *NodeClient) dialLocked(idx int) error {
	var lastErr error
	for i := 0; i < len(n.endpoints); i++ {
		candidate := (idx + i) % len(n.endpoints)
		c, err := rpc.Dial(n.endpoints[candidate])
		if err != nil {
			lastErr = err
			continue
		}
		n.idx = candidate
		n.rpc = c
		n.eth = ethclient.NewClient(c)
		log.Printf("[NodeClient] Connected to %s", n.endpoints[candidate])
		return nil
	}
	return fmt.Errorf("chain: all HTTP endpoints failed: %w", lastErr)
}

// Eth returns the go-ethereum client bound to the current endpoint.
func (n *NodeClient) Eth() *ethclient.Client {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.eth
}

// IsRateLimited reports whether an RPC error is quota-class (HTTP 429 or
// a provider-specific "too many requests" message).
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "request limit")
}

func (n *NodeClient) throttle() {
	n.lastCallMu.Lock()
	if since := time.Since(n.lastCall); since < minCallGap {
		time.Sleep(minCallGap - since)
	}
	n.lastCall = time.Now()
	n.lastCallMu.Unlock()
}

// call runs fn with cooldown and failover handling. A rate-limited call
// blocks subsequent calls for the cooldown window and stays on the same
// endpoint; any other error rotates to the next fallback.
func (n *NodeClient) call(ctx context.Context, fn func() error) error {
	n.mu.Lock()
	until := n.cooldown
	n.mu.Unlock()

	if wait := time.Until(until); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	n.throttle()

	err := fn()
	if err == nil {
		return nil
	}

	if IsRateLimited(err) {
		n.mu.Lock()
		n.cooldown = time.Now().Add(n.cooldownWindow)
		n.mu.Unlock()
		log.Printf("[NodeClient] Rate limited, cooling down %s: %v", n.cooldownWindow, err)
		return err
	}

	if ctx.Err() == nil {
		n.mu.Lock()
		if dialErr := n.dialLocked(n.idx + 1); dialErr != nil {
			log.Printf("[NodeClient] Failover dial failed: %v", dialErr)
		}
		n.mu.Unlock()
	}
	return err
}

// BlockNumber returns the current head block number. Doubles as the
// liveness probe after reconnects.
func (n *NodeClient) BlockNumber(ctx context.Context) (uint64, error) {
	var num uint64
	err := n.call(ctx, func() error {
		var innerErr error
		num, innerErr = n.Eth().BlockNumber(ctx)
		return innerErr
	})
	return num, err
}

// rpcTransaction mirrors the eth_getTransactionByHash result shape.
type rpcTransaction struct {
	Hash        string         `json:"hash"`
	From        string         `json:"from"`
	To          *string        `json:"to"`
	Value       *hexutil.Big   `json:"value"`
	Input       string         `json:"input"`
	GasPrice    *hexutil.Big   `json:"gasPrice"`
	Nonce       hexutil.Uint64 `json:"nonce"`
	BlockNumber *hexutil.Big   `json:"blockNumber"`
}

// TransactionByHash fetches the full transaction. Pending transactions
// frequently vanish before they can be fetched; callers treat a nil
// result as "gone", not an error.
func (n *NodeClient) TransactionByHash(ctx context.Context, hash string) (*models.ChainTransaction, error) {
	var raw *rpcTransaction
	err := n.call(ctx, func() error {
		return n.rpcClient().CallContext(ctx, &raw, "eth_getTransactionByHash", hash)
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	tx := &models.ChainTransaction{
		Hash:       utils.NormalizeAddress(raw.Hash),
		From:       utils.NormalizeAddress(raw.From),
		Input:      raw.Input,
		Nonce:      uint64(raw.Nonce),
		Status:     models.TxStatusPending,
		ObservedAt: time.Now(),
	}
	if raw.To != nil {
		tx.To = utils.NormalizeAddress(*raw.To)
	}
	if raw.Value != nil {
		tx.Value = raw.Value.ToInt()
	} else {
		tx.Value = new(big.Int)
	}
	if raw.GasPrice != nil {
		tx.GasPrice = raw.GasPrice.ToInt()
	}
	if raw.BlockNumber != nil {
		tx.Status = models.TxStatusConfirmed
		tx.BlockNumber = raw.BlockNumber.ToInt().Uint64()
	}
	return tx, nil
}

// BlockTransactions returns the full transactions of one block, marked
// confirmed. Used by the polling fallback and block feed.
func (n *NodeClient) BlockTransactions(ctx context.Context, number uint64) ([]*models.ChainTransaction, error) {
	var raw struct {
		Number       *hexutil.Big      `json:"number"`
		Transactions []*rpcTransaction `json:"transactions"`
	}
	err := n.call(ctx, func() error {
		return n.rpcClient().CallContext(ctx, &raw, "eth_getBlockByNumber", hexutil.EncodeUint64(number), true)
	})
	if err != nil {
		return nil, err
	}

	txs := make([]*models.ChainTransaction, 0, len(raw.Transactions))
	for _, r := range raw.Transactions {
		tx := &models.ChainTransaction{
			Hash:        utils.NormalizeAddress(r.Hash),
			From:        utils.NormalizeAddress(r.From),
			Input:       r.Input,
			Nonce:       uint64(r.Nonce),
			Status:      models.TxStatusConfirmed,
			BlockNumber: number,
			ObservedAt:  time.Now(),
		}
		if r.To != nil {
			tx.To = utils.NormalizeAddress(*r.To)
		}
		if r.Value != nil {
			tx.Value = r.Value.ToInt()
		} else {
			tx.Value = new(big.Int)
		}
		if r.GasPrice != nil {
			tx.GasPrice = r.GasPrice.ToInt()
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// Balance returns the native-currency balance of an address in wei.
func (n *NodeClient) Balance(ctx context.Context, addr string) (*big.Int, error) {
	var bal *big.Int
	err := n.call(ctx, func() error {
		var innerErr error
		bal, innerErr = n.Eth().BalanceAt(ctx, common.HexToAddress(addr), nil)
		return innerErr
	})
	return bal, err
}

// CallContract runs a read-only eth_call.
func (n *NodeClient) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	err := n.call(ctx, func() error {
		var innerErr error
		out, innerErr = n.Eth().CallContract(ctx, callMsg(to, data), nil)
		return innerErr
	})
	return out, err
}

// PendingNonce returns the next nonce for an address including pending
// transactions.
func (n *NodeClient) PendingNonce(ctx context.Context, addr string) (uint64, error) {
	var nonce uint64
	err := n.call(ctx, func() error {
		var innerErr error
		nonce, innerErr = n.Eth().PendingNonceAt(ctx, common.HexToAddress(addr))
		return innerErr
	})
	return nonce, err
}

// SuggestGasPrice returns the node's gas price estimate.
func (n *NodeClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := n.call(ctx, func() error {
		var innerErr error
		price, innerErr = n.Eth().SuggestGasPrice(ctx)
		return innerErr
	})
	return price, err
}

// SendTransaction broadcasts a signed transaction.
func (n *NodeClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return n.call(ctx, func() error {
		return n.Eth().SendTransaction(ctx, tx)
	})
}

// ErrReceiptTimeout marks a bounded on-chain wait that expired. Retry
// is a caller decision.
var ErrReceiptTimeout = errors.New("chain: receipt wait timed out")

// WaitReceipt polls for a transaction receipt until the timeout
// elapses. The wait is bounded; on expiry the caller gets
// ErrReceiptTimeout and decides its own retry policy.
func (n *NodeClient) WaitReceipt(ctx context.Context, hash string, timeout time.Duration) (*types.Receipt, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		var receipt *types.Receipt
		err := n.call(ctx, func() error {
			var innerErr error
			receipt, innerErr = n.Eth().TransactionReceipt(ctx, common.HexToHash(hash))
			return innerErr
		})
		if err == nil && receipt != nil {
			return receipt, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s after %s", ErrReceiptTimeout, hash, timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func callMsg(to common.Address, data []byte) ethereum.CallMsg {
	return ethereum.CallMsg{To: &to, Data: data}
}

func (n *NodeClient) rpcClient() *rpc.Client {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rpc
}

// Close tears down the underlying connection.
func (n *NodeClient) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.rpc != nil {
		n.rpc.Close()
	}
}
