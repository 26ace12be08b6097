package pidloop

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hydronic-controller/internal/datadog"
	"github.com/thatsimonsguy/hydronic-controller/internal/model"
	"github.com/thatsimonsguy/hydronic-controller/internal/store"
	"github.com/thatsimonsguy/hydronic-controller/internal/zone"
)

// ControlLaw maps (current temperature, setpoint) to a duty fraction.
type ControlLaw interface {
	Update(current, setpoint float64, now time.Time) float64
	Components() (p, i, d float64)
}

var now = time.Now

type Loop struct {
	zone    *zone.Zone
	store   store.Store
	law     ControlLaw
	metrics datadog.Gauger
}

func New(z *zone.Zone, st store.Store, law ControlLaw, metrics datadog.Gauger) *Loop {
	if metrics == nil {
		metrics = (*datadog.Metrics)(nil)
	}
	return &Loop{zone: z, store: st, law: law, metrics: metrics}
}

func (l *Loop) Name() string { return "pid:" + l.zone.Name }

func (l *Loop) Interval() time.Duration { return l.zone.SamplingInterval }

// Prime seeds the zone setpoint from the current temperature so that the
// loop holds steady until a target temperature is published.
func (l *Loop) Prime(ctx context.Context) {
	sample, err := l.readTemperature(ctx)
	if err != nil {
		log.Info().Str("zone", l.zone.Name).Str("reason", store.Classify(err)).Msg("No temperature at startup, setpoint starts at 0")
		return
	}
	l.zone.SeedSetpoint(sample.Temperature)
	log.Info().Str("zone", l.zone.Name).Float64("setpoint", sample.Temperature).Msg("Seeded setpoint from current temperature")
}

func (l *Loop) Tick(ctx context.Context) {
	z := l.zone
	ts := now()

	temperature := z.Temperature()
	var fresh *time.Time
	if sample, err := l.readTemperature(ctx); err != nil {
		logMissing(z.Name, store.CurrentTemperature(z.SensorPath), err)
	} else {
		temperature = sample.Temperature
		fresh = &sample.Timestamp
	}

	setpoint := z.Setpoint()
	if sp, err := l.readSetpoint(ctx); err != nil {
		logMissing(z.Name, store.TargetTemperature(z.SensorPath), err)
	} else {
		setpoint = sp
	}

	value := clamp(l.law.Update(temperature, setpoint, ts))

	topic := store.ControlValue(z.SensorPath)
	if err := store.SetAndPublish(ctx, l.store, topic, store.EncodeControlValue(value)); err != nil {
		log.Warn().Err(err).Str("zone", z.Name).Str("topic", topic).Msg("Failed to publish control value")
	}

	p, i, d := l.law.Components()
	z.RecordPID(zone.PIDUpdate{
		Temperature:  temperature,
		Setpoint:     setpoint,
		ControlValue: value,
		P:            p,
		I:            i,
		D:            d,
		Sample:       fresh,
	})

	tag := fmt.Sprintf("zone:%s", z.Name)
	l.metrics.Gauge("zone.temperature", temperature, "component:sensor", tag)
	l.metrics.Gauge("zone.setpoint", setpoint, tag)
	l.metrics.Gauge("zone.control_value", value, "component:pid", tag)

	log.Debug().
		Str("zone", z.Name).
		Float64("temp", temperature).
		Float64("setpoint", setpoint).
		Float64("control_value", value).
		Bool("fresh", fresh != nil).
		Msg("PID update")
}

func (l *Loop) readTemperature(ctx context.Context) (model.ControlSample, error) {
	raw, err := l.store.Get(ctx, store.CurrentTemperature(l.zone.SensorPath))
	if err != nil {
		return model.ControlSample{}, err
	}
	return store.DecodeTemperature(raw, now())
}

func (l *Loop) readSetpoint(ctx context.Context) (float64, error) {
	raw, err := l.store.Get(ctx, store.TargetTemperature(l.zone.SensorPath))
	if err != nil {
		return 0, err
	}
	return store.DecodeSetpoint(raw)
}

// Absent keys are routine; anything else is worth a warning.
func logMissing(zoneName, topic string, err error) {
	ev := log.Warn()
	if store.Classify(err) == "missing" {
		ev = log.Debug()
	}
	ev.Err(err).Str("zone", zoneName).Str("topic", topic).Str("reason", store.Classify(err)).Msg("Keeping previous value")
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
