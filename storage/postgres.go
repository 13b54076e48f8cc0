package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/folajindayo/zoracle-telegram-sub001/chain"
	"github.com/folajindayo/zoracle-telegram-sub001/models"
	"github.com/folajindayo/zoracle-telegram-sub001/utils"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// PostgresStore wraps PostgreSQL persistence with Redis caching
type PostgresStore struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

// NewPostgres creates a new PostgreSQL store with connection pooling and Redis cache
func NewPostgres(ctx context.Context) (*PostgresStore, error) {
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "zoracle")
	password := getEnv("POSTGRES_PASSWORD", "zoracle123")
	dbname := getEnv("POSTGRES_DB", "zoracle")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?pool_max_conns=20&pool_min_conns=4",
		user, password, host, port, dbname)

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	config.MaxConns = 20
	config.MinConns = 4
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second

	// Keep slow queries from stalling the mirror path
	config.ConnConfig.RuntimeParams["statement_timeout"] = "30000"
	config.ConnConfig.RuntimeParams["lock_timeout"] = "10000"

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	redisHost := getEnv("REDIS_HOST", "localhost")
	redisPort := getEnv("REDIS_PORT", "6379")
	redisPassword := getEnv("REDIS_PASSWORD", "")

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", redisHost, redisPort),
		Password:     redisPassword,
		DB:           0,
		PoolSize:     50,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	s := &PostgresStore{pool: pool, redis: rdb}
	if err := s.initSchema(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("postgres: init schema: %w", err)
	}
	return s, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS copy_trade_configs (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			target_wallet TEXT NOT NULL,
			max_wei_per_trade NUMERIC(78,0) NOT NULL DEFAULT 0,
			slippage_pct DOUBLE PRECISION NOT NULL DEFAULT 5,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			sandbox_mode BOOLEAN NOT NULL DEFAULT FALSE,
			sell_policy TEXT NOT NULL DEFAULT 'sell_all',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, target_wallet)
		);
		CREATE INDEX IF NOT EXISTS idx_configs_target ON copy_trade_configs (target_wallet) WHERE active;

		CREATE TABLE IF NOT EXISTS mirror_outcomes (
			id BIGSERIAL PRIMARY KEY,
			config_id BIGINT NOT NULL,
			user_id TEXT NOT NULL,
			target_wallet TEXT NOT NULL,
			side TEXT NOT NULL,
			token TEXT NOT NULL,
			amount NUMERIC(78,0),
			amount_display TEXT,
			status TEXT NOT NULL,
			reason TEXT,
			tx_hashes TEXT[],
			completed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_outcomes_user ON mirror_outcomes (user_id, completed_at DESC);

		CREATE TABLE IF NOT EXISTS token_metadata (
			address TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			symbol TEXT NOT NULL,
			decimals INT NOT NULL DEFAULT 18,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// Close releases database connections
func (s *PostgresStore) Close() error {
	if s.redis != nil {
		s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// SaveConfig upserts a follower's subscription to a target wallet and
// returns the stored row. The (user, target) pair is unique.
func (s *PostgresStore) SaveConfig(ctx context.Context, cfg *models.CopyTradeConfig) (*models.CopyTradeConfig, error) {
	target := utils.NormalizeAddress(cfg.TargetWallet)
	maxWei := "0"
	if cfg.MaxWeiPerTrade != nil {
		maxWei = cfg.MaxWeiPerTrade.String()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO copy_trade_configs (
			user_id, target_wallet, max_wei_per_trade, slippage_pct,
			active, sandbox_mode, sell_policy
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, target_wallet) DO UPDATE SET
			max_wei_per_trade = EXCLUDED.max_wei_per_trade,
			slippage_pct = EXCLUDED.slippage_pct,
			active = EXCLUDED.active,
			sandbox_mode = EXCLUDED.sandbox_mode,
			sell_policy = EXCLUDED.sell_policy,
			updated_at = NOW()
		RETURNING id, user_id, target_wallet, max_wei_per_trade::TEXT, slippage_pct,
			active, sandbox_mode, sell_policy, created_at, updated_at
	`, cfg.UserID, target, maxWei, cfg.SlippagePct, cfg.Active, cfg.SandboxMode, string(cfg.SellPolicy))

	saved, err := scanConfig(row)
	if err != nil {
		return nil, fmt.Errorf("save config: %w", err)
	}

	s.invalidateConfigCaches(ctx, saved)
	return saved, nil
}

// GetConfig fetches one subscription by id.
func (s *PostgresStore) GetConfig(ctx context.Context, id int64) (*models.CopyTradeConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, target_wallet, max_wei_per_trade::TEXT, slippage_pct,
			active, sandbox_mode, sell_policy, created_at, updated_at
		FROM copy_trade_configs WHERE id = $1
	`, id)

	cfg, err := scanConfig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return cfg, err
}

// ListConfigsByUser returns all of a user's subscriptions.
func (s *PostgresStore) ListConfigsByUser(ctx context.Context, userID string) ([]*models.CopyTradeConfig, error) {
	cacheKey := fmt.Sprintf("configs:user:%s", userID)
	if cached, err := s.redis.Get(ctx, cacheKey).Bytes(); err == nil {
		var configs []*models.CopyTradeConfig
		if json.Unmarshal(cached, &configs) == nil {
			return configs, nil
		}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, target_wallet, max_wei_per_trade::TEXT, slippage_pct,
			active, sandbox_mode, sell_policy, created_at, updated_at
		FROM copy_trade_configs WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs, err := scanConfigs(rows)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(configs); err == nil {
		s.redis.Set(ctx, cacheKey, data, 2*time.Minute)
	}
	return configs, nil
}

// ListConfigsByTarget returns the active subscriptions following one
// target wallet. The mirror engine calls this on every detected trade,
// so results are cached briefly in Redis.
func (s *PostgresStore) ListConfigsByTarget(ctx context.Context, targetWallet string) ([]*models.CopyTradeConfig, error) {
	target := utils.NormalizeAddress(targetWallet)
	cacheKey := fmt.Sprintf("configs:target:%s", target)
	if cached, err := s.redis.Get(ctx, cacheKey).Bytes(); err == nil {
		var configs []*models.CopyTradeConfig
		if json.Unmarshal(cached, &configs) == nil {
			return configs, nil
		}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, target_wallet, max_wei_per_trade::TEXT, slippage_pct,
			active, sandbox_mode, sell_policy, created_at, updated_at
		FROM copy_trade_configs WHERE target_wallet = $1 AND active ORDER BY id
	`, target)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs, err := scanConfigs(rows)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(configs); err == nil {
		s.redis.Set(ctx, cacheKey, data, time.Minute)
	}
	return configs, nil
}

// ListActiveTargets returns the distinct target wallets that have at
// least one active follower.
func (s *PostgresStore) ListActiveTargets(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT target_wallet FROM copy_trade_configs WHERE active
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// SetConfigActive pauses or resumes one subscription.
func (s *PostgresStore) SetConfigActive(ctx context.Context, id int64, active bool) error {
	cfg, err := s.GetConfig(ctx, id)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE copy_trade_configs SET active = $2, updated_at = NOW() WHERE id = $1
	`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.invalidateConfigCaches(ctx, cfg)
	return nil
}

// DeleteConfig removes one subscription.
func (s *PostgresStore) DeleteConfig(ctx context.Context, id int64) error {
	cfg, err := s.GetConfig(ctx, id)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM copy_trade_configs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.invalidateConfigCaches(ctx, cfg)
	return nil
}

func (s *PostgresStore) invalidateConfigCaches(ctx context.Context, cfg *models.CopyTradeConfig) {
	s.redis.Del(ctx,
		fmt.Sprintf("configs:user:%s", cfg.UserID),
		fmt.Sprintf("configs:target:%s", cfg.TargetWallet),
	)
}

// SaveOutcome appends one mirror attempt to the history log.
func (s *PostgresStore) SaveOutcome(ctx context.Context, outcome *models.MirrorOutcome) error {
	var amount *string
	if outcome.Amount != nil {
		v := outcome.Amount.String()
		amount = &v
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO mirror_outcomes (
			config_id, user_id, target_wallet, side, token, amount,
			amount_display, status, reason, tx_hashes, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, outcome.ConfigID, outcome.UserID, outcome.TargetWallet, string(outcome.Side),
		outcome.Token, amount, outcome.AmountDisplay, string(outcome.Status),
		outcome.Reason, outcome.TxHashes, outcome.CompletedAt)
	if err != nil {
		return fmt.Errorf("save outcome: %w", err)
	}
	return nil
}

// ListOutcomesByUser returns a user's most recent mirror attempts.
func (s *PostgresStore) ListOutcomesByUser(ctx context.Context, userID string, limit int) ([]*models.MirrorOutcome, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT config_id, user_id, target_wallet, side, token, amount::TEXT,
			amount_display, status, reason, tx_hashes, completed_at
		FROM mirror_outcomes WHERE user_id = $1
		ORDER BY completed_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []*models.MirrorOutcome
	for rows.Next() {
		var (
			o      models.MirrorOutcome
			side   string
			status string
			amount *string
			reason *string
		)
		if err := rows.Scan(&o.ConfigID, &o.UserID, &o.TargetWallet, &side, &o.Token,
			&amount, &o.AmountDisplay, &status, &reason, &o.TxHashes, &o.CompletedAt); err != nil {
			return nil, err
		}
		o.Side = models.TradeKind(side)
		o.Status = models.MirrorStatus(status)
		if amount != nil {
			o.Amount, _ = new(big.Int).SetString(*amount, 10)
		}
		if reason != nil {
			o.Reason = *reason
		}
		outcomes = append(outcomes, &o)
	}
	return outcomes, rows.Err()
}

// GetToken reads cached token metadata, checking Redis before Postgres.
func (s *PostgresStore) GetToken(ctx context.Context, address string) (*chain.TokenInfo, error) {
	addr := utils.NormalizeAddress(address)
	cacheKey := fmt.Sprintf("token:%s", addr)
	if cached, err := s.redis.Get(ctx, cacheKey).Bytes(); err == nil {
		var info chain.TokenInfo
		if json.Unmarshal(cached, &info) == nil {
			return &info, nil
		}
	}

	var info chain.TokenInfo
	err := s.pool.QueryRow(ctx, `
		SELECT address, name, symbol, decimals FROM token_metadata WHERE address = $1
	`, addr).Scan(&info.Address, &info.Name, &info.Symbol, &info.Decimals)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(&info); err == nil {
		s.redis.Set(ctx, cacheKey, data, 24*time.Hour)
	}
	return &info, nil
}

// SaveToken upserts token metadata and refreshes the Redis copy.
func (s *PostgresStore) SaveToken(ctx context.Context, info *chain.TokenInfo) error {
	addr := utils.NormalizeAddress(info.Address)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO token_metadata (address, name, symbol, decimals)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO UPDATE SET
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			decimals = EXCLUDED.decimals,
			updated_at = NOW()
	`, addr, info.Name, info.Symbol, info.Decimals)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	if data, err := json.Marshal(info); err == nil {
		s.redis.Set(ctx, fmt.Sprintf("token:%s", addr), data, 24*time.Hour)
	}
	return nil
}

func scanConfig(row pgx.Row) (*models.CopyTradeConfig, error) {
	var (
		cfg    models.CopyTradeConfig
		maxWei string
		policy string
	)
	if err := row.Scan(&cfg.ID, &cfg.UserID, &cfg.TargetWallet, &maxWei, &cfg.SlippagePct,
		&cfg.Active, &cfg.SandboxMode, &policy, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return nil, err
	}
	cfg.MaxWeiPerTrade, _ = new(big.Int).SetString(maxWei, 10)
	cfg.SellPolicy = models.SellPolicy(policy)
	return &cfg, nil
}

func scanConfigs(rows pgx.Rows) ([]*models.CopyTradeConfig, error) {
	var configs []*models.CopyTradeConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}
