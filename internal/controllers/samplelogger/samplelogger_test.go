package samplelogger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/hydronic-controller/internal/config"
	"github.com/thatsimonsguy/hydronic-controller/internal/model"
	"github.com/thatsimonsguy/hydronic-controller/internal/sink"
	"github.com/thatsimonsguy/hydronic-controller/internal/zone"
)

type captureSink struct {
	zones []string
	rows  [][]string
	err   error
}

func (c *captureSink) Append(_ context.Context, zoneID string, row []string) error {
	c.zones = append(c.zones, zoneID)
	c.rows = append(c.rows, row)
	return c.err
}

func newZone() *zone.Zone {
	return zone.New(config.Zone{Name: "living", SensorPath: "sensors/living", OutputGPIO: 22, SamplingInterval: 5, CyclePeriod: 10})
}

func TestRow(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := zone.Snapshot{
		Temperature:  19.46,
		Setpoint:     21,
		ControlValue: 0.3791,
		Cycle:        17,
		Duration:     120,
		P:            0.25,
		I:            0.1234567,
		D:            -0.0000004,
		Relay:        model.ModeHeat,
		LastSample:   &ts,
	}

	assert.Equal(t,
		[]string{"2024-01-01T12:00:00Z", "19.5", "21.0", "45", "17", "0.250000", "0.123457", "-0.000000"},
		Row(s))
}

func TestTick_NoRowBeforeFirstSample(t *testing.T) {
	z := newZone()
	c := &captureSink{}
	New(z, c, 10*time.Second).Tick(context.Background())
	assert.Empty(t, c.rows)
}

func TestTick_AppendsRow(t *testing.T) {
	z := newZone()
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	z.RecordPID(zone.PIDUpdate{Temperature: 20, Setpoint: 21, ControlValue: 0.5, P: 1, Sample: &ts})
	z.RecordValve(3, model.ModeHeat)

	c := &captureSink{}
	l := New(z, c, 10*time.Second)
	l.Tick(context.Background())

	require.Len(t, c.rows, 1)
	assert.Equal(t, []string{"living"}, c.zones)
	assert.Equal(t, "60", c.rows[0][sink.ColOnTime])
	assert.Equal(t, "3", c.rows[0][sink.ColCycle])
	assert.Equal(t, "logger:living", l.Name())
	assert.Equal(t, 10*time.Second, l.Interval())
}

func TestTick_SinkErrorIsSwallowed(t *testing.T) {
	z := newZone()
	ts := time.Now()
	z.RecordPID(zone.PIDUpdate{Sample: &ts})

	c := &captureSink{err: errors.New("read-only file system")}
	assert.NotPanics(t, func() {
		New(z, c, time.Second).Tick(context.Background())
	})
	assert.Len(t, c.rows, 1)
}

func TestTick_CSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	z := newZone()
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	z.RecordPID(zone.PIDUpdate{Temperature: 20, Setpoint: 21, ControlValue: 0.25, Sample: &ts})

	New(z, sink.NewCSV(dir), time.Second).Tick(context.Background())

	data, err := os.ReadFile(filepath.Join(dir, "living_pid.csv"))
	require.NoError(t, err)
	fields := strings.Split(strings.TrimSpace(string(data)), ",")
	s, err := sink.ParseRow("living", fields)
	require.NoError(t, err)
	assert.Equal(t, 30, s.OnTime)
	assert.Equal(t, 20.0, s.CurrentTemperature)
}
