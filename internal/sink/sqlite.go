package sink

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/thatsimonsguy/hydronic-controller/db"
)

type SQLite struct {
	db *sqlx.DB
}

func NewSQLite(conn *sqlx.DB) *SQLite {
	return &SQLite{db: conn}
}

func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	conn, err := db.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewSQLite(conn), nil
}

func (s *SQLite) Append(ctx context.Context, zoneID string, row []string) error {
	sample, err := ParseRow(zoneID, row)
	if err != nil {
		return err
	}
	return db.InsertSample(ctx, s.db, sample)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
