package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS zone_samples (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	zone                TEXT NOT NULL,
	sampled_at          DATETIME NOT NULL,
	current_temperature REAL NOT NULL,
	target_temperature  REAL NOT NULL,
	on_time             INTEGER NOT NULL,
	cycle               INTEGER NOT NULL,
	p                   REAL NOT NULL,
	i                   REAL NOT NULL,
	d                   REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS zone_samples_zone_time ON zone_samples (zone, sampled_at);
`

// Open opens (creating if needed) the sample database at path.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serialises writers; one connection avoids SQLITE_BUSY between zones.
	db.SetMaxOpenConns(1)

	if err := ApplySchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("path", path).Msg("Sample database ready")
	return db, nil
}

func ApplySchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
