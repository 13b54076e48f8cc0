package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/folajindayo/zoracle-telegram-sub001/chain"
	"github.com/folajindayo/zoracle-telegram-sub001/models"
	"github.com/folajindayo/zoracle-telegram-sub001/utils"
)

// MemoryStore is an in-memory ConfigStore used by tests and by sandbox
// deployments that run without Postgres.
type MemoryStore struct {
	mu sync.RWMutex

	nextID   int64
	configs  map[int64]*models.CopyTradeConfig
	outcomes []*models.MirrorOutcome
	tokens   map[string]*chain.TokenInfo

	// Call tracking for assertions
	Calls map[string]int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		nextID:  1,
		configs: make(map[int64]*models.CopyTradeConfig),
		tokens:  make(map[string]*chain.TokenInfo),
		Calls:   make(map[string]int),
	}
}

func (m *MemoryStore) track(name string) {
	m.Calls[name]++
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }

// SaveConfig upserts by (user, target) pair, mirroring the Postgres
// unique constraint.
func (m *MemoryStore) SaveConfig(_ context.Context, cfg *models.CopyTradeConfig) (*models.CopyTradeConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("SaveConfig")

	stored := *cfg
	stored.TargetWallet = utils.NormalizeAddress(cfg.TargetWallet)
	now := time.Now()

	for id, existing := range m.configs {
		if existing.UserID == stored.UserID && existing.TargetWallet == stored.TargetWallet {
			stored.ID = id
			stored.CreatedAt = existing.CreatedAt
			stored.UpdatedAt = now
			m.configs[id] = &stored
			out := stored
			return &out, nil
		}
	}

	stored.ID = m.nextID
	m.nextID++
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.configs[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (m *MemoryStore) GetConfig(_ context.Context, id int64) (*models.CopyTradeConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *cfg
	return &out, nil
}

func (m *MemoryStore) ListConfigsByUser(_ context.Context, userID string) ([]*models.CopyTradeConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var configs []*models.CopyTradeConfig
	for _, cfg := range m.configs {
		if cfg.UserID == userID {
			out := *cfg
			configs = append(configs, &out)
		}
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })
	return configs, nil
}

func (m *MemoryStore) ListConfigsByTarget(_ context.Context, targetWallet string) ([]*models.CopyTradeConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	target := utils.NormalizeAddress(targetWallet)
	var configs []*models.CopyTradeConfig
	for _, cfg := range m.configs {
		if cfg.Active && cfg.TargetWallet == target {
			out := *cfg
			configs = append(configs, &out)
		}
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })
	return configs, nil
}

func (m *MemoryStore) ListActiveTargets(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var targets []string
	for _, cfg := range m.configs {
		if cfg.Active && !seen[cfg.TargetWallet] {
			seen[cfg.TargetWallet] = true
			targets = append(targets, cfg.TargetWallet)
		}
	}
	sort.Strings(targets)
	return targets, nil
}

func (m *MemoryStore) SetConfigActive(_ context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[id]
	if !ok {
		return ErrNotFound
	}
	cfg.Active = active
	cfg.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) DeleteConfig(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.configs[id]; !ok {
		return ErrNotFound
	}
	delete(m.configs, id)
	return nil
}

func (m *MemoryStore) SaveOutcome(_ context.Context, outcome *models.MirrorOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("SaveOutcome")

	out := *outcome
	m.outcomes = append(m.outcomes, &out)
	return nil
}

func (m *MemoryStore) ListOutcomesByUser(_ context.Context, userID string, limit int) ([]*models.MirrorOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	var outcomes []*models.MirrorOutcome
	for i := len(m.outcomes) - 1; i >= 0 && len(outcomes) < limit; i-- {
		if m.outcomes[i].UserID == userID {
			out := *m.outcomes[i]
			outcomes = append(outcomes, &out)
		}
	}
	return outcomes, nil
}

func (m *MemoryStore) GetToken(_ context.Context, address string) (*chain.TokenInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.tokens[utils.NormalizeAddress(address)]
	if !ok {
		return nil, ErrNotFound
	}
	out := *info
	return &out, nil
}

func (m *MemoryStore) SaveToken(_ context.Context, info *chain.TokenInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := *info
	out.Address = utils.NormalizeAddress(info.Address)
	m.tokens[out.Address] = &out
	return nil
}
