package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/folajindayo/zoracle-telegram-sub001/models"
)

// TxFeed is the slice of the provider surface the monitor consumes.
type TxFeed interface {
	SubscribePending(cb func(tx *models.ChainTransaction))
	SubscribeBlocks(cb func(blockNumber uint64, txs []*models.ChainTransaction))
	SubscribeErrors(cb func(err error))
}

// ChainMonitor wires the feed through dedup and classification into the
// listener registry. Transport errors stay inside the provider; decode
// misses are silent; only classified intents reach listeners.
type ChainMonitor struct {
	feed       TxFeed
	processed  *ProcessedSet
	classifier *Classifier
	registry   *ListenerRegistry

	statsMu    sync.RWMutex
	observed   int64
	duplicates int64
	classified int64
	errors     int64

	started bool
}

// NewChainMonitor assembles the ingestion pipeline.
func NewChainMonitor(feed TxFeed, processed *ProcessedSet, classifier *Classifier, registry *ListenerRegistry) *ChainMonitor {
	return &ChainMonitor{
		feed:       feed,
		processed:  processed,
		classifier: classifier,
		registry:   registry,
	}
}

// Registry exposes the listener table for consumers that register
// listeners (the copy-trade engine, the alerting layer).
func (m *ChainMonitor) Registry() *ListenerRegistry {
	return m.registry
}

// Start attaches the monitor to the feed. Idempotent per process; the
// feed owns its own lifecycle.
func (m *ChainMonitor) Start(ctx context.Context) error {
	if m.started {
		return fmt.Errorf("chain monitor already started")
	}
	m.started = true

	m.feed.SubscribePending(func(tx *models.ChainTransaction) {
		m.ingest(tx)
	})
	m.feed.SubscribeBlocks(func(blockNumber uint64, txs []*models.ChainTransaction) {
		for _, tx := range txs {
			m.ingest(tx)
		}
	})
	m.feed.SubscribeErrors(func(err error) {
		m.statsMu.Lock()
		m.errors++
		m.statsMu.Unlock()
	})

	log.Printf("[Monitor] Attached to transaction feed")
	return nil
}

// ingest runs one transaction through dedup → classify → dispatch.
func (m *ChainMonitor) ingest(tx *models.ChainTransaction) {
	if tx == nil || tx.Hash == "" {
		return
	}

	m.statsMu.Lock()
	m.observed++
	m.statsMu.Unlock()

	if !m.processed.ShouldProcess(tx.Hash) {
		m.statsMu.Lock()
		m.duplicates++
		m.statsMu.Unlock()
		return
	}

	intent := m.classifier.Classify(tx)
	if intent == nil {
		return
	}

	m.statsMu.Lock()
	m.classified++
	m.statsMu.Unlock()

	m.registry.Dispatch(intent)
}

// MonitorStats is a snapshot of ingestion counters.
type MonitorStats struct {
	Observed   int64 `json:"observed"`
	Duplicates int64 `json:"duplicates"`
	Classified int64 `json:"classified"`
	FeedErrors int64 `json:"feed_errors"`
	Listeners  int   `json:"listeners"`
	Dispatched int64 `json:"dispatched"`
}

// Stats returns the current counters.
func (m *ChainMonitor) Stats() MonitorStats {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()
	return MonitorStats{
		Observed:   m.observed,
		Duplicates: m.duplicates,
		Classified: m.classified,
		FeedErrors: m.errors,
		Listeners:  m.registry.Len(),
		Dispatched: m.registry.Dispatched(),
	}
}
