package provider

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/tm1ddleton/analytics/internal/analytics/key"
	"github.com/tm1ddleton/analytics/internal/analytics/types"
	"github.com/tm1ddleton/analytics/internal/platform/errors"
	"github.com/tm1ddleton/analytics/internal/platform/logging"
)

// priceRow mirrors the prices(asset, ts, close) table migrated in
// migrations/.
type priceRow struct {
	Asset string    `db:"asset"`
	TS    time.Time `db:"ts"`
	Close float64   `db:"close"`
}

// Postgres queries historical closes from a prices table via sqlx over
// lib/pq. It implements types.Provider.
type Postgres struct {
	db     *sqlx.DB
	logger *logging.Logger
}

// NewPostgres opens a connection pool against dsn and verifies
// connectivity with a ping.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("provider: connecting to postgres: %w", err)
	}
	return &Postgres{db: db, logger: logging.Default()}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) Query(ctx context.Context, asset string, rng key.DateRange) (types.Series, error) {
	start := time.Now()
	var rows []priceRow
	err := p.db.SelectContext(ctx, &rows,
		`SELECT asset, ts, close FROM prices WHERE asset = $1 AND ts >= $2 AND ts < $3 ORDER BY ts ASC`,
		asset, rng.Start, rng.End,
	)
	p.logger.LogDatabaseQuery(ctx, "select prices", time.Since(start), err)
	if err == sql.ErrNoRows {
		return types.Series{}, nil
	}
	if err != nil {
		return nil, errors.ProviderOther(asset, err)
	}

	out := make(types.Series, len(rows))
	for i, r := range rows {
		out[i] = types.Point{Timestamp: r.TS, Value: r.Close}
	}
	return out, nil
}

func (p *Postgres) Calendar(ctx context.Context, asset string, rng key.DateRange) ([]time.Time, error) {
	start := time.Now()
	var timestamps []time.Time
	err := p.db.SelectContext(ctx, &timestamps,
		`SELECT ts FROM prices WHERE asset = $1 AND ts >= $2 AND ts < $3 ORDER BY ts ASC`,
		asset, rng.Start, rng.End,
	)
	p.logger.LogDatabaseQuery(ctx, "select calendar", time.Since(start), err)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.ProviderOther(asset, err)
	}
	return timestamps, nil
}
