package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LeifuChen/SynthetixFundingRateArbitrage/pkg/types"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStore creates a new PostgreSQL trade log.
func NewPostgresStore(cfg *PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-trade-log-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStore{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// AppendTransition appends one row per state transition; a position's
// history is the sequence of its rows ordered by recorded_at.
func (p *PostgresStore) AppendTransition(ctx context.Context, pos *types.Position) error {
	query := `
		INSERT INTO trade_log (
			position_id, venue, symbol, side, size_in_asset,
			status, realized_pnl, accrued_funding, tx_ref,
			entry_timestamp, recorded_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		pos.ID,
		string(pos.Venue),
		pos.Symbol,
		string(pos.Side),
		pos.SizeInAsset,
		string(pos.Status),
		pos.RealizedPnl,
		pos.AccruedFunding,
		pos.TxRef,
		pos.EntryTimestamp,
		time.Now().UTC(),
	)
	if err != nil {
		TransitionErrorsTotal.Inc()
		return fmt.Errorf("append transition: %w", err)
	}

	TransitionsTotal.WithLabelValues(string(pos.Status)).Inc()

	p.logger.Debug("trade-log-appended",
		zap.String("position-id", pos.ID),
		zap.String("venue", string(pos.Venue)),
		zap.String("symbol", pos.Symbol),
		zap.String("status", string(pos.Status)))

	return nil
}

// HasOpenPosition checks the latest transition for (venue, symbol).
func (p *PostgresStore) HasOpenPosition(ctx context.Context, venue types.Venue, symbol string) (bool, error) {
	query := `
		SELECT status
		FROM trade_log
		WHERE venue = $1 AND symbol = $2
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	var status string
	err := p.db.QueryRowContext(ctx, query, string(venue), symbol).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query latest transition: %w", err)
	}

	return !types.PositionStatus(status).Terminal(), nil
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	p.logger.Info("closing-postgres-trade-log")
	return p.db.Close()
}
