package storage

import (
	"context"
	"log"
	"sync"

	"github.com/folajindayo/zoracle-telegram-sub001/chain"
	"github.com/folajindayo/zoracle-telegram-sub001/utils"
)

const defaultTokenDecimals = 18

// TokenMetaCache answers token decimal lookups from memory so the hot
// classification path never blocks on I/O. Unknown tokens get the
// default of 18 immediately while a background worker resolves the
// real metadata through the store and, failing that, the chain.
type TokenMetaCache struct {
	mu       sync.RWMutex
	decimals map[string]int

	store  ConfigStore
	reader *chain.TokenReader

	fetchCh chan string
	queued  map[string]bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewTokenMetaCache builds the cache. Either store or reader may be
// nil; missing backends just mean unknown tokens stay at the default.
func NewTokenMetaCache(store ConfigStore, reader *chain.TokenReader) *TokenMetaCache {
	return &TokenMetaCache{
		decimals: make(map[string]int),
		store:    store,
		reader:   reader,
		fetchCh:  make(chan string, 256),
		queued:   make(map[string]bool),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background resolver.
func (c *TokenMetaCache) Start() {
	go c.resolveLoop()
}

// Stop shuts the resolver down and waits for it to exit.
func (c *TokenMetaCache) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

// TokenDecimals returns the cached decimals for a token, or 18 when
// unknown. Never blocks.
func (c *TokenMetaCache) TokenDecimals(token string) int {
	addr := utils.NormalizeAddress(token)

	c.mu.RLock()
	d, ok := c.decimals[addr]
	c.mu.RUnlock()
	if ok {
		return d
	}

	c.enqueue(addr)
	return defaultTokenDecimals
}

// Put records known metadata directly, bypassing the resolver.
func (c *TokenMetaCache) Put(token string, decimals int) {
	addr := utils.NormalizeAddress(token)
	c.mu.Lock()
	c.decimals[addr] = decimals
	c.mu.Unlock()
}

func (c *TokenMetaCache) enqueue(addr string) {
	c.mu.Lock()
	if c.queued[addr] {
		c.mu.Unlock()
		return
	}
	c.queued[addr] = true
	c.mu.Unlock()

	select {
	case c.fetchCh <- addr:
	default:
		// Queue full, drop and allow a later lookup to retry
		c.mu.Lock()
		delete(c.queued, addr)
		c.mu.Unlock()
	}
}

func (c *TokenMetaCache) resolveLoop() {
	defer close(c.doneCh)

	for {
		select {
		case <-c.stopCh:
			return
		case addr := <-c.fetchCh:
			c.resolve(addr)
			c.mu.Lock()
			delete(c.queued, addr)
			c.mu.Unlock()
		}
	}
}

func (c *TokenMetaCache) resolve(addr string) {
	ctx := context.Background()

	if c.store != nil {
		if info, err := c.store.GetToken(ctx, addr); err == nil {
			c.Put(addr, info.Decimals)
			return
		}
	}

	if c.reader == nil {
		return
	}

	info := c.reader.Info(ctx, addr)
	c.Put(addr, info.Decimals)

	if c.store != nil {
		if err := c.store.SaveToken(ctx, info); err != nil {
			log.Printf("[TokenCache] Failed to persist metadata for %s: %v", utils.ShortAddress(addr), err)
		}
	}
}
