package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/thatsimonsguy/hydronic-controller/internal/model"
)

const insertSample = `INSERT INTO zone_samples
	(zone, sampled_at, current_temperature, target_temperature, on_time, cycle, p, i, d)
	VALUES (:zone, :sampled_at, :current_temperature, :target_temperature, :on_time, :cycle, :p, :i, :d)`

func InsertSample(ctx context.Context, db *sqlx.DB, s model.Sample) error {
	if _, err := db.NamedExecContext(ctx, insertSample, s); err != nil {
		return fmt.Errorf("insert sample for %s: %w", s.Zone, err)
	}
	return nil
}
