package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/hydronic-controller/internal/model"
)

func sample(zone string, at time.Time, temp float64) model.Sample {
	return model.Sample{
		Zone:               zone,
		SampledAt:          at,
		CurrentTemperature: temp,
		TargetTemperature:  21,
		OnTime:             60,
		Cycle:              12,
		P:                  0.5,
		I:                  0.01,
		D:                  -0.002,
	}
}

func TestInsertAndQuerySamples(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "samples.db"))
	require.NoError(t, err)
	defer db.Close()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, s := range []model.Sample{
		sample("living", base, 19.5),
		sample("living", base.Add(10*time.Second), 19.6),
		sample("living", base.Add(20*time.Second), 19.7),
		sample("bath", base, 22),
	} {
		require.NoError(t, InsertSample(ctx, db, s))
	}

	n, err := CountSamples(ctx, db, "living")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := RecentSamples(ctx, db, "living", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 19.7, got[0].CurrentTemperature)
	assert.Equal(t, 19.6, got[1].CurrentTemperature)
	assert.True(t, base.Add(20*time.Second).Equal(got[0].SampledAt))
	assert.Equal(t, 60, got[0].OnTime)
	assert.Equal(t, -0.002, got[0].D)
}

func TestOpen_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "samples.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, InsertSample(ctx, db, sample("living", time.Now().UTC(), 20)))
	db.Close()

	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	n, err := CountSamples(ctx, db, "living")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
