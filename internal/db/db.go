package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pet-persona/internal/config"
)

const applicationName = "pet-persona"

// PoolConfig traduce la configuracion del servicio a la del pool sin conectar.
func PoolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// el pool acompana a los workers de refresco y a las requests concurrentes
	poolCfg.MaxConns = int32(cfg.DBMaxConns)
	if minConns := int32(cfg.RefreshWorkers); minConns < poolCfg.MaxConns {
		poolCfg.MinConns = minConns
	} else {
		poolCfg.MinConns = poolCfg.MaxConns
	}
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = cfg.DBConnectTimeout()
	if _, ok := poolCfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	return poolCfg, nil
}

// Open conecta, verifica y deja el esquema listo para la dimension configurada.
func Open(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	ctxPing, cancel := context.WithTimeout(ctx, cfg.DBConnectTimeout())
	err = pool.Ping(ctxPing)
	cancel()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := EnsureSchema(ctx, pool, cfg.EmbeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db schema: %w", err)
	}
	return pool, nil
}
