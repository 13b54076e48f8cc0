package monitor

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/folajindayo/zoracle-telegram-sub001/models"
)

// fakeFeed drives the monitor directly without a chain connection.
type fakeFeed struct {
	pending func(tx *models.ChainTransaction)
	blocks  func(blockNumber uint64, txs []*models.ChainTransaction)
	errs    func(err error)
}

func (f *fakeFeed) SubscribePending(cb func(tx *models.ChainTransaction)) { f.pending = cb }
func (f *fakeFeed) SubscribeBlocks(cb func(blockNumber uint64, txs []*models.ChainTransaction)) {
	f.blocks = cb
}
func (f *fakeFeed) SubscribeErrors(cb func(err error)) { f.errs = cb }

func newTestMonitor(t *testing.T) (*ChainMonitor, *fakeFeed, *ListenerRegistry) {
	t.Helper()
	feed := &fakeFeed{}
	registry := NewListenerRegistry()
	mon := NewChainMonitor(feed, NewProcessedSet(100), newTestClassifier(t, nil), registry)
	if err := mon.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return mon, feed, registry
}

func nativeTx(hash string) *models.ChainTransaction {
	return &models.ChainTransaction{
		Hash:  hash,
		From:  testWallet,
		To:    testToken,
		Value: big.NewInt(1),
		Input: "0x",
	}
}

func TestMonitor_StartIsOneShot(t *testing.T) {
	mon, _, _ := newTestMonitor(t)
	if err := mon.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}
}

func TestMonitor_DedupAcrossFeeds(t *testing.T) {
	mon, feed, registry := newTestMonitor(t)

	var fired int
	registry.Register("count", CategoryAny, nil, func(*models.TradeIntent) { fired++ }, ListenerOptions{})

	tx := nativeTx("0xdup")
	feed.pending(tx)
	// Same transaction arrives again when its block lands
	feed.blocks(100, []*models.ChainTransaction{tx})

	if fired != 1 {
		t.Fatalf("expected 1 dispatch, got %d", fired)
	}

	stats := mon.Stats()
	if stats.Observed != 2 {
		t.Fatalf("expected 2 observed, got %d", stats.Observed)
	}
	if stats.Duplicates != 1 {
		t.Fatalf("expected 1 duplicate, got %d", stats.Duplicates)
	}
	if stats.Classified != 1 {
		t.Fatalf("expected 1 classified, got %d", stats.Classified)
	}
}

func TestMonitor_UnclassifiedIsSilent(t *testing.T) {
	mon, feed, registry := newTestMonitor(t)

	var fired int
	registry.Register("count", CategoryAny, nil, func(*models.TradeIntent) { fired++ }, ListenerOptions{})

	feed.pending(&models.ChainTransaction{Hash: "0xopaque", To: testToken, Input: "0xdeadbeef"})

	if fired != 0 {
		t.Fatalf("expected no dispatch, got %d", fired)
	}
	if stats := mon.Stats(); stats.Classified != 0 {
		t.Fatalf("expected 0 classified, got %d", stats.Classified)
	}
}

func TestMonitor_IgnoresEmptyHashes(t *testing.T) {
	mon, feed, _ := newTestMonitor(t)

	feed.pending(nil)
	feed.pending(&models.ChainTransaction{Hash: ""})

	if stats := mon.Stats(); stats.Observed != 0 {
		t.Fatalf("expected 0 observed, got %d", stats.Observed)
	}
}

func TestMonitor_FeedErrorsCounted(t *testing.T) {
	mon, feed, _ := newTestMonitor(t)

	feed.errs(errors.New("read: connection reset"))
	feed.errs(errors.New("read: connection reset"))

	if stats := mon.Stats(); stats.FeedErrors != 2 {
		t.Fatalf("expected 2 feed errors, got %d", stats.FeedErrors)
	}
}
