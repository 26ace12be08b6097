// Package sink holds the append-only destinations for zone sample rows.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hydronic-controller/internal/config"
	"github.com/thatsimonsguy/hydronic-controller/internal/model"
)

// Sink appends one ordered row for a zone.
type Sink interface {
	Append(ctx context.Context, zoneID string, row []string) error
}

// Row columns, in order.
const (
	ColTimestamp = iota
	ColCurrentTemperature
	ColTargetTemperature
	ColOnTime
	ColCycle
	ColP
	ColI
	ColD
	numColumns
)

// ParseRow turns a logged row back into a typed sample for the database sinks.
func ParseRow(zoneID string, row []string) (model.Sample, error) {
	if len(row) != numColumns {
		return model.Sample{}, fmt.Errorf("row for %s has %d fields, want %d", zoneID, len(row), numColumns)
	}

	s := model.Sample{Zone: zoneID}
	var err error
	if s.SampledAt, err = time.Parse(time.RFC3339Nano, row[ColTimestamp]); err != nil {
		return s, fmt.Errorf("timestamp: %w", err)
	}

	floats := []struct {
		col int
		dst *float64
	}{
		{ColCurrentTemperature, &s.CurrentTemperature},
		{ColTargetTemperature, &s.TargetTemperature},
		{ColP, &s.P},
		{ColI, &s.I},
		{ColD, &s.D},
	}
	for _, f := range floats {
		if *f.dst, err = strconv.ParseFloat(row[f.col], 64); err != nil {
			return s, fmt.Errorf("column %d: %w", f.col, err)
		}
	}

	if s.OnTime, err = strconv.Atoi(row[ColOnTime]); err != nil {
		return s, fmt.Errorf("on_time: %w", err)
	}
	if s.Cycle, err = strconv.Atoi(row[ColCycle]); err != nil {
		return s, fmt.Errorf("cycle: %w", err)
	}
	return s, nil
}

// Multi fans a row out to every sink and reports all failures together.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Len() int { return len(m.sinks) }

func (m *Multi) Append(ctx context.Context, zoneID string, row []string) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Append(ctx, zoneID, row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// Open builds every sink named in cfg. A sink that cannot be opened is
// logged and left out.
func Open(ctx context.Context, cfg config.Sinks) *Multi {
	var sinks []Sink

	if cfg.CSVDir != "" {
		sinks = append(sinks, NewCSV(cfg.CSVDir))
		log.Info().Str("dir", cfg.CSVDir).Msg("CSV sample sink enabled")
	}

	if cfg.SQLitePath != "" {
		s, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.SQLitePath).Msg("Failed to open sqlite sample sink")
		} else {
			sinks = append(sinks, s)
		}
	}

	if cfg.PostgresURL != "" {
		s, err := DialPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect postgres sample sink")
		} else {
			sinks = append(sinks, s)
		}
	}

	return NewMulti(sinks...)
}
