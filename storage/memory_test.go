package storage

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/folajindayo/zoracle-telegram-sub001/chain"
	"github.com/folajindayo/zoracle-telegram-sub001/models"
)

func TestMemoryStore_SaveConfigUpserts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.SaveConfig(ctx, &models.CopyTradeConfig{
		UserID:         "alice",
		TargetWallet:   "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		MaxWeiPerTrade: big.NewInt(100),
		Active:         true,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if first.TargetWallet != "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
		t.Fatalf("target should be normalized, got %s", first.TargetWallet)
	}

	// Same (user, target) pair updates in place
	second, err := m.SaveConfig(ctx, &models.CopyTradeConfig{
		UserID:         "alice",
		TargetWallet:   "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		MaxWeiPerTrade: big.NewInt(999),
		Active:         true,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert should keep id %d, got %d", first.ID, second.ID)
	}

	configs, _ := m.ListConfigsByUser(ctx, "alice")
	if len(configs) != 1 {
		t.Fatalf("expected 1 config, got %d", len(configs))
	}
	if configs[0].MaxWeiPerTrade.Int64() != 999 {
		t.Fatalf("expected updated cap, got %s", configs[0].MaxWeiPerTrade)
	}
}

func TestMemoryStore_ListConfigsByTargetFiltersInactive(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	target := "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

	m.SaveConfig(ctx, &models.CopyTradeConfig{UserID: "alice", TargetWallet: target, Active: true})
	paused, _ := m.SaveConfig(ctx, &models.CopyTradeConfig{UserID: "bob", TargetWallet: target, Active: true})
	m.SetConfigActive(ctx, paused.ID, false)

	configs, err := m.ListConfigsByTarget(ctx, target)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(configs) != 1 || configs[0].UserID != "alice" {
		t.Fatalf("expected only alice, got %+v", configs)
	}
}

func TestMemoryStore_ListActiveTargets(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.SaveConfig(ctx, &models.CopyTradeConfig{UserID: "a", TargetWallet: "0x01", Active: true})
	m.SaveConfig(ctx, &models.CopyTradeConfig{UserID: "b", TargetWallet: "0x01", Active: true})
	m.SaveConfig(ctx, &models.CopyTradeConfig{UserID: "c", TargetWallet: "0x02", Active: false})

	targets, _ := m.ListActiveTargets(ctx)
	if len(targets) != 1 || targets[0] != "0x01" {
		t.Fatalf("expected [0x01], got %v", targets)
	}
}

func TestMemoryStore_DeleteAndNotFound(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	cfg, _ := m.SaveConfig(ctx, &models.CopyTradeConfig{UserID: "a", TargetWallet: "0x01", Active: true})
	if err := m.DeleteConfig(ctx, cfg.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.DeleteConfig(ctx, cfg.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.GetConfig(ctx, cfg.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_OutcomesNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i, status := range []models.MirrorStatus{models.MirrorStatusSkipped, models.MirrorStatusExecuted} {
		m.SaveOutcome(ctx, &models.MirrorOutcome{
			ConfigID:    int64(i),
			UserID:      "alice",
			Status:      status,
			CompletedAt: time.Now(),
		})
	}
	m.SaveOutcome(ctx, &models.MirrorOutcome{UserID: "bob", Status: models.MirrorStatusFailed})

	outcomes, _ := m.ListOutcomesByUser(ctx, "alice", 10)
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Status != models.MirrorStatusExecuted {
		t.Fatalf("expected newest first, got %s", outcomes[0].Status)
	}

	limited, _ := m.ListOutcomesByUser(ctx, "alice", 1)
	if len(limited) != 1 {
		t.Fatalf("limit not honored, got %d", len(limited))
	}
}

func TestMemoryStore_TokenRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.GetToken(ctx, "0x01"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	m.SaveToken(ctx, &chain.TokenInfo{Address: "0x01", Name: "Test", Symbol: "TST", Decimals: 6})
	info, err := m.GetToken(ctx, "0x01")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if info.Decimals != 6 || info.Symbol != "TST" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestTokenMetaCache_DefaultsAndResolves(t *testing.T) {
	m := NewMemory()
	m.SaveToken(context.Background(), &chain.TokenInfo{
		Address: "0x1111111111111111111111111111111111111111", Name: "Six", Symbol: "SIX", Decimals: 6,
	})

	cache := NewTokenMetaCache(m, nil)
	cache.Start()
	defer cache.Stop()

	// First lookup is a miss and must answer immediately with the default
	if d := cache.TokenDecimals("0x1111111111111111111111111111111111111111"); d != 18 {
		t.Fatalf("miss should default to 18, got %d", d)
	}

	// The background resolver fills the cache from the store
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cache.TokenDecimals("0x1111111111111111111111111111111111111111") == 6 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("resolver never filled the cache")
}

func TestTokenMetaCache_Put(t *testing.T) {
	cache := NewTokenMetaCache(nil, nil)

	cache.Put("0xABCDEF", 9)
	if d := cache.TokenDecimals("0xabcdef"); d != 9 {
		t.Fatalf("expected 9, got %d", d)
	}
}
