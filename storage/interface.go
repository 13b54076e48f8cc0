package storage

import (
	"context"

	"github.com/folajindayo/zoracle-telegram-sub001/chain"
	"github.com/folajindayo/zoracle-telegram-sub001/models"
)

// ConfigStore defines the persistence backend for copy-trade
// subscriptions, mirror history and token metadata.
type ConfigStore interface {
	Close() error

	// Copy-trade configuration
	SaveConfig(ctx context.Context, cfg *models.CopyTradeConfig) (*models.CopyTradeConfig, error)
	GetConfig(ctx context.Context, id int64) (*models.CopyTradeConfig, error)
	ListConfigsByUser(ctx context.Context, userID string) ([]*models.CopyTradeConfig, error)
	ListConfigsByTarget(ctx context.Context, targetWallet string) ([]*models.CopyTradeConfig, error)
	ListActiveTargets(ctx context.Context) ([]string, error)
	SetConfigActive(ctx context.Context, id int64, active bool) error
	DeleteConfig(ctx context.Context, id int64) error

	// Mirror history
	SaveOutcome(ctx context.Context, outcome *models.MirrorOutcome) error
	ListOutcomesByUser(ctx context.Context, userID string, limit int) ([]*models.MirrorOutcome, error)

	// Token metadata cache
	GetToken(ctx context.Context, address string) (*chain.TokenInfo, error)
	SaveToken(ctx context.Context, info *chain.TokenInfo) error
}

// Ensure both implementations satisfy the interface
var _ ConfigStore = (*PostgresStore)(nil)
var _ ConfigStore = (*MemoryStore)(nil)
