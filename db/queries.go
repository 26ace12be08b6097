package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/thatsimonsguy/hydronic-controller/internal/model"
)

// RecentSamples returns up to limit rows for zone, newest first.
func RecentSamples(ctx context.Context, db *sqlx.DB, zone string, limit int) ([]model.Sample, error) {
	var samples []model.Sample
	err := db.SelectContext(ctx, &samples, `SELECT zone, sampled_at, current_temperature, target_temperature, on_time, cycle, p, i, d
		FROM zone_samples WHERE zone = ? ORDER BY sampled_at DESC, id DESC LIMIT ?`, zone, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples for %s: %w", zone, err)
	}
	return samples, nil
}

func CountSamples(ctx context.Context, db *sqlx.DB, zone string) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM zone_samples WHERE zone = ?`, zone); err != nil {
		return 0, fmt.Errorf("failed to count samples for %s: %w", zone, err)
	}
	return n, nil
}
