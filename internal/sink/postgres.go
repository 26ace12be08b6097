package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `CREATE TABLE IF NOT EXISTS zone_samples (
	time                TIMESTAMPTZ NOT NULL,
	zone                TEXT NOT NULL,
	current_temperature DOUBLE PRECISION NOT NULL,
	target_temperature  DOUBLE PRECISION NOT NULL,
	on_time             INTEGER NOT NULL,
	cycle               INTEGER NOT NULL,
	p                   DOUBLE PRECISION NOT NULL,
	i                   DOUBLE PRECISION NOT NULL,
	d                   DOUBLE PRECISION NOT NULL
)`

const pgInsert = `INSERT INTO zone_samples
	(time, zone, current_temperature, target_temperature, on_time, cycle, p, i, d)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres writes samples to a zone_samples table, e.g. a TimescaleDB hypertable.
type Postgres struct {
	db   execer
	pool *pgxpool.Pool
}

func DialPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}

	p := &Postgres{db: pool, pool: pool}
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("create zone_samples: %w", err)
	}
	return nil
}

func (p *Postgres) Append(ctx context.Context, zoneID string, row []string) error {
	s, err := ParseRow(zoneID, row)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx, pgInsert, s.SampledAt, s.Zone, s.CurrentTemperature, s.TargetTemperature, s.OnTime, s.Cycle, s.P, s.I, s.D)
	if err != nil {
		return fmt.Errorf("insert sample for %s: %w", zoneID, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
