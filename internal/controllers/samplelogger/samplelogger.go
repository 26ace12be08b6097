package samplelogger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hydronic-controller/internal/sink"
	"github.com/thatsimonsguy/hydronic-controller/internal/zone"
)

type Logger struct {
	zone     *zone.Zone
	sink     sink.Sink
	interval time.Duration
}

func New(z *zone.Zone, s sink.Sink, interval time.Duration) *Logger {
	return &Logger{zone: z, sink: s, interval: interval}
}

func (l *Logger) Name() string { return "logger:" + l.zone.Name }

func (l *Logger) Interval() time.Duration { return l.interval }

func (l *Logger) Tick(ctx context.Context) {
	snap := l.zone.Snapshot()
	if snap.LastSample == nil {
		return
	}

	if err := l.sink.Append(ctx, l.zone.Name, Row(snap)); err != nil {
		log.Warn().Err(err).Str("zone", l.zone.Name).Msg("Failed to append sample row")
	}
}

// Row renders a snapshot in sink column order. The control value is shown in
// on-time steps of the valve window.
func Row(s zone.Snapshot) []string {
	var ts string
	if s.LastSample != nil {
		ts = s.LastSample.Format(time.RFC3339)
	}
	return []string{
		ts,
		fmt.Sprintf("%.1f", s.Temperature),
		fmt.Sprintf("%.1f", s.Setpoint),
		fmt.Sprintf("%.0f", s.ControlValue*float64(s.Duration)),
		strconv.Itoa(s.Cycle),
		fmt.Sprintf("%.6f", s.P),
		fmt.Sprintf("%.6f", s.I),
		fmt.Sprintf("%.6f", s.D),
	}
}
