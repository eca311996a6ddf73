package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quadro-commerce/api/internal/platform/config"
)

const (
	defaultMaxConns          = 8
	defaultConnectTimeout    = 10 * time.Second
	defaultHealthCheckPeriod = 30 * time.Second
)

var ErrProviderClosed = errors.New("postgres: provider is closed")

// Provider owns the shared pgx connection pool.
type Provider struct {
	pool *pgxpool.Pool
}

// ProviderOption customises pool construction.
type ProviderOption func(*pgxpool.Config)

// WithMaxConns overrides the pool size.
func WithMaxConns(n int32) ProviderOption {
	return func(cfg *pgxpool.Config) {
		if n > 0 {
			cfg.MaxConns = n
		}
	}
}

// NewProvider connects the pool and verifies the connection with a ping.
func NewProvider(ctx context.Context, cfg config.PostgresConfig, opts ...ProviderOption) (*Provider, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	poolCfg.MaxConns = defaultMaxConns
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	poolCfg.HealthCheckPeriod = defaultHealthCheckPeriod
	for _, opt := range opts {
		if opt != nil {
			opt(poolCfg)
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Provider{pool: pool}, nil
}

// Pool exposes the underlying pool for repositories.
func (p *Provider) Pool() (*pgxpool.Pool, error) {
	if p == nil || p.pool == nil {
		return nil, ErrProviderClosed
	}
	return p.pool, nil
}

// Ping reports backend reachability for health checks.
func (p *Provider) Ping(ctx context.Context) error {
	pool, err := p.Pool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// Close releases the pool. The Provider cannot be reused afterwards.
func (p *Provider) Close(ctx context.Context) error {
	if p == nil || p.pool == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.pool.Close()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		p.pool = nil
		return nil
	}
}
