package sensorwatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hydronic-controller/internal/notifications"
	"github.com/thatsimonsguy/hydronic-controller/internal/zone"
)

var now = time.Now

// Watch alerts once when a zone stops receiving fresh temperature samples
// and once more when samples resume.
type Watch struct {
	zone       *zone.Zone
	notifier   notifications.Notifier
	staleAfter time.Duration
	started    time.Time
	stale      bool
}

func New(z *zone.Zone, n notifications.Notifier, staleAfter time.Duration) *Watch {
	return &Watch{zone: z, notifier: n, staleAfter: staleAfter, started: now()}
}

func (w *Watch) Name() string { return "sensorwatch:" + w.zone.Name }

func (w *Watch) Interval() time.Duration {
	if i := w.staleAfter / 4; i > w.zone.SamplingInterval {
		return i
	}
	return w.zone.SamplingInterval
}

func (w *Watch) Tick(ctx context.Context) {
	last, ok := w.zone.LastSample()
	ref := last
	if !ok {
		ref = w.started
	}
	age := now().Sub(ref)

	switch {
	case age > w.staleAfter && !w.stale:
		w.stale = true
		msg := fmt.Sprintf("%s: no temperature sample for %s, holding last value %.1f", w.zone.Name, age.Round(time.Second), w.zone.Temperature())
		log.Warn().Str("zone", w.zone.Name).Dur("age", age).Msg("Zone sensor stale")
		w.send(ctx, "Zone Sensor Stale", msg)

	case age <= w.staleAfter && w.stale:
		w.stale = false
		msg := fmt.Sprintf("%s: temperature samples resumed at %.1f", w.zone.Name, w.zone.Temperature())
		log.Info().Str("zone", w.zone.Name).Msg("Zone sensor recovered")
		w.send(ctx, "Zone Sensor Recovery", msg)
	}
}

func (w *Watch) send(ctx context.Context, title, msg string) {
	if err := w.notifier.Send(ctx, title, msg); err != nil {
		log.Error().Err(err).Str("zone", w.zone.Name).Msg("Failed to send sensor notification")
	}
}
