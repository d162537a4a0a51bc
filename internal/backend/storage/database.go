package storage

import (
	"context"
	"fmt"
	"log/slog"

	"SilentFail/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx общий интерфейс пула и транзакции
type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func NewPostgres(ctx context.Context, cfg *config.DatabaseConfig, log *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("failed to open connection to postgres", "error", err)
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		log.Error("failed to ping database", "error", err)
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	log.Info("successfully connected to postgres database",
		"host", cfg.Host,
		"dbname", cfg.DBName,
	)
	return pool, nil
}

type postgresDatabase struct {
	pool *pgxpool.Pool
}

func NewPostgresDatabase(pool *pgxpool.Pool) Database {
	return &postgresDatabase{pool: pool}
}

func (d *postgresDatabase) Repos() Repositories {
	return newPostgresRepositories(d.pool)
}

func (d *postgresDatabase) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// после Commit откат ничего не делает
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, newPostgresRepositories(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (d *postgresDatabase) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

func (d *postgresDatabase) Close() {
	d.pool.Close()
}

func newPostgresRepositories(db dbtx) Repositories {
	return Repositories{
		Monitors:  &monitorStore{db: db},
		Pings:     &pingStore{db: db},
		Downtimes: &downtimeStore{db: db},
		Owners:    &ownerStore{db: db},
	}
}
