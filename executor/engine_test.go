package executor

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/folajindayo/zoracle-telegram-sub001/chain"
	"github.com/folajindayo/zoracle-telegram-sub001/config"
)

const (
	testRouter     = "0x327df1e6de05895d2ab08513aadd9313fe505d86"
	testWETH       = "0x4200000000000000000000000000000000000006"
	testToken      = "0x1111111111111111111111111111111111111111"
	testSignerAddr = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

type fakeSigner struct {
	addr string
}

func (s *fakeSigner) Address() string { return s.addr }

func (s *fakeSigner) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	return tx, nil
}

type fakeSignerProvider struct {
	signer chain.Signer
}

func (p *fakeSignerProvider) GetSigner(_ context.Context, _ string) (chain.Signer, error) {
	return p.signer, nil
}

// fakeNode records every broadcast and can fail or pause individual
// sends. Values are recorded because a buy carries its spend as the
// transaction value.
type fakeNode struct {
	mu         sync.Mutex
	nonce      uint64
	sentValues []*big.Int
	sendErrAt  map[int]error
	started    chan struct{}
	release    chan struct{}
}

func (n *fakeNode) PendingNonce(_ context.Context, _ string) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	nonce := n.nonce
	n.nonce++
	return nonce, nil
}

func (n *fakeNode) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return big.NewInt(1e9), nil
}

func (n *fakeNode) SendTransaction(_ context.Context, tx *types.Transaction) error {
	n.mu.Lock()
	idx := len(n.sentValues)
	n.sentValues = append(n.sentValues, new(big.Int).Set(tx.Value()))
	err := n.sendErrAt[idx]
	started, release := n.started, n.release
	n.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return err
}

func (n *fakeNode) WaitReceipt(_ context.Context, _ string, _ time.Duration) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func (n *fakeNode) sends() []*big.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*big.Int, len(n.sentValues))
	copy(out, n.sentValues)
	return out
}

// fakeQuoter quotes buys 1:1 and sells at a fixed native value.
type fakeQuoter struct {
	sellValue *big.Int
	sellErr   error
}

func (q *fakeQuoter) QuoteBuy(_ context.Context, _ string, amountWei *big.Int) (*big.Int, error) {
	return new(big.Int).Set(amountWei), nil
}

func (q *fakeQuoter) QuoteSell(_ context.Context, _ string, _ *big.Int) (*big.Int, error) {
	if q.sellErr != nil {
		return nil, q.sellErr
	}
	return new(big.Int).Set(q.sellValue), nil
}

func (q *fakeQuoter) Router() string { return testRouter }
func (q *fakeQuoter) WETH() string   { return testWETH }

type fakeAllowance struct{}

func (fakeAllowance) Allowance(_ context.Context, _, _, _ string) (*big.Int, error) {
	return new(big.Int).Set(maxUint256), nil
}

func splitCfg() config.ExecutorConfig {
	return config.ExecutorConfig{
		RouterAddress:   testRouter,
		MEVThresholdETH: 1.0,
		OrderSplits:     3,
		GasLimit:        300000,
		DeadlineMinutes: 20,
	}
}

func newTestEngine(t *testing.T, cfg config.ExecutorConfig, node *fakeNode, quoter *fakeQuoter) *Engine {
	t.Helper()
	abis, err := chain.ParseABIs()
	if err != nil {
		t.Fatalf("parse abis: %v", err)
	}
	signers := &fakeSignerProvider{signer: &fakeSigner{addr: testSignerAddr}}
	e := New(cfg, node, quoter, fakeAllowance{}, abis, signers)
	t.Cleanup(e.Stop)
	return e
}

// The split threshold is denominated in wei. A sell of many base units
// of a near-worthless token must stay whole, and a sell of few base
// units worth more than the threshold must split.
func TestExecute_SellSplitGatedOnNativeValue(t *testing.T) {
	cases := []struct {
		name      string
		amount    *big.Int
		sellValue *big.Int
		wantParts int
	}{
		{"large position below threshold", big.NewInt(50_000_000_000), big.NewInt(5e17), 1},
		{"small position above threshold", eth(2), eth(3), 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			node := &fakeNode{}
			e := newTestEngine(t, splitCfg(), node, &fakeQuoter{sellValue: tc.sellValue})

			res, err := e.Execute(context.Background(), Order{
				UserID: "alice", Side: SideSell, Token: testToken,
				Amount: tc.amount, SlippagePct: 5,
			})
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if len(res.SubOrders) != tc.wantParts {
				t.Fatalf("expected %d sub-orders, got %d", tc.wantParts, len(res.SubOrders))
			}
			if res.Succeeded != tc.wantParts || res.Failed != 0 {
				t.Fatalf("expected %d successes, got %+v", tc.wantParts, res)
			}
		})
	}
}

func TestExecute_SellStaysWholeWhenQuoteFails(t *testing.T) {
	node := &fakeNode{}
	e := newTestEngine(t, splitCfg(), node, &fakeQuoter{sellErr: errors.New("no pool")})

	res, err := e.Execute(context.Background(), Order{
		UserID: "alice", Side: SideSell, Token: testToken,
		Amount: eth(5), SlippagePct: 5,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(res.SubOrders) != 1 {
		t.Fatalf("expected a single sub-order, got %d", len(res.SubOrders))
	}
}

// A failing middle slice must not erase the slices that already landed.
func TestExecute_PartialFailureKeepsPriorSuccesses(t *testing.T) {
	node := &fakeNode{sendErrAt: map[int]error{1: errors.New("nonce too low")}}
	e := newTestEngine(t, splitCfg(), node, &fakeQuoter{sellValue: eth(1)})

	res, err := e.Execute(context.Background(), Order{
		UserID: "alice", Side: SideBuy, Token: testToken,
		Amount: eth(3), SlippagePct: 5,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if len(res.SubOrders) != 3 {
		t.Fatalf("expected 3 sub-orders, got %d", len(res.SubOrders))
	}
	if res.Succeeded != 2 || res.Failed != 1 {
		t.Fatalf("expected 2 successes and 1 failure, got %+v", res)
	}
	if res.SubOrders[0].TxHash == "" || res.SubOrders[2].TxHash == "" {
		t.Fatal("surviving sub-orders lost their hashes")
	}
	if !strings.Contains(res.SubOrders[1].Err, "send") {
		t.Fatalf("expected send failure on the middle slice, got %q", res.SubOrders[1].Err)
	}
	if res.AllFailed() {
		t.Fatal("partial success reported as total failure")
	}
	if hashes := res.TxHashes(); len(hashes) != 2 {
		t.Fatalf("expected 2 landed hashes, got %v", hashes)
	}
}

// Two orders for the same signing key must run strictly one after the
// other, in enqueue order.
func TestExecute_SameSignerOrdersSerialized(t *testing.T) {
	node := &fakeNode{
		started: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
	cfg := splitCfg()
	cfg.MEVThresholdETH = 0 // no splitting
	e := newTestEngine(t, cfg, node, &fakeQuoter{sellValue: eth(1)})

	run := func(amount *big.Int) chan error {
		done := make(chan error, 1)
		go func() {
			_, err := e.Execute(context.Background(), Order{
				UserID: "alice", Side: SideBuy, Token: testToken,
				Amount: amount, SlippagePct: 5,
			})
			done <- err
		}()
		return done
	}

	done1 := run(big.NewInt(111))
	<-node.started // first order is mid-broadcast

	done2 := run(big.NewInt(222))

	// The second order must not reach the node while the first is
	// still in flight.
	select {
	case <-node.started:
		t.Fatal("second order broadcast before the first completed")
	case <-time.After(100 * time.Millisecond):
	}

	node.release <- struct{}{}
	if err := <-done1; err != nil {
		t.Fatalf("first order: %v", err)
	}

	<-node.started
	node.release <- struct{}{}
	if err := <-done2; err != nil {
		t.Fatalf("second order: %v", err)
	}

	sent := node.sends()
	if len(sent) != 2 || sent[0].Int64() != 111 || sent[1].Int64() != 222 {
		t.Fatalf("expected broadcasts in enqueue order [111 222], got %v", sent)
	}
}
