package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"courseware/internal/domain/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Prefix string
	Nodes  string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Prefix: prefix,
		Nodes:  fmt.Sprintf("%slibrary_nodes", prefix),
	}
}

// CreateConnectionPool opens and pings a pgx pool.
//
// Direct connections keep pgx's default cached prepared statements. PgBouncer in
// transaction mode (port 6543 on Supabase) cannot hold prepared statements, so there
// the pool switches to QueryExecModeCacheDescribe unless the connection string sets
// default_query_exec_mode itself. Table prefixes are interpolated into the SQL text,
// so each environment caches its own statements.
func CreateConnectionPool(ctx context.Context, databaseURL string, logger *slog.Logger) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	// Configure pool size
	config.MaxConns = 25
	config.MinConns = 5

	// Extended protocol keeps text[] parameters typed without preparing statements
	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		logger.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("database connected",
		"host", config.ConnConfig.Host,
		"max_conns", config.MaxConns,
		"exec_mode", config.ConnConfig.DefaultQueryExecMode.String(),
	)

	return pool, nil
}

// GetExecutor returns the transaction stored in ctx, or the pool when there is none,
// so the same statements run inside and outside ExecTx.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
