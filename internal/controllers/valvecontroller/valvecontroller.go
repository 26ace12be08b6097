package valvecontroller

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hydronic-controller/internal/datadog"
	"github.com/thatsimonsguy/hydronic-controller/internal/gpio"
	"github.com/thatsimonsguy/hydronic-controller/internal/model"
	"github.com/thatsimonsguy/hydronic-controller/internal/store"
	"github.com/thatsimonsguy/hydronic-controller/internal/zone"
)

// Controller turns a zone's control value into a leading-edge on/off pattern
// over a window of zone.Duration sampling steps.
type Controller struct {
	zone    *zone.Zone
	store   store.Store
	io      gpio.DigitalIO
	metrics datadog.Gauger
}

func New(z *zone.Zone, st store.Store, io gpio.DigitalIO, metrics datadog.Gauger) *Controller {
	if metrics == nil {
		metrics = (*datadog.Metrics)(nil)
	}
	return &Controller{zone: z, store: st, io: io, metrics: metrics}
}

func (c *Controller) Name() string { return "valve:" + c.zone.Name }

func (c *Controller) Interval() time.Duration { return c.zone.SamplingInterval }

func (c *Controller) Tick(ctx context.Context) {
	z := c.zone

	demand, err := c.readDemand(ctx)
	if err != nil {
		skip(z.Name, store.TargetHeatingCoolingState(z.SensorPath), err)
		return
	}
	value, err := c.readControlValue(ctx)
	if err != nil {
		skip(z.Name, store.ControlValue(z.SensorPath), err)
		return
	}

	cycle := z.Cycle()
	mode, onTime := decide(demand, value, z.Duration, cycle)
	next := (cycle + 1) % z.Duration

	log.Debug().
		Str("zone", z.Name).
		Str("demand", demand.String()).
		Float64("control_value", value).
		Int("on_time", onTime).
		Int("cycle", cycle).
		Str("mode", mode.String()).
		Msg("Valve decision")

	if err := gpio.Drive(c.io, z.Output, mode == model.ModeHeat); err != nil {
		log.Error().Err(err).Str("zone", z.Name).Int("pin", z.Output.Number).Msg("Failed to drive zone valve")
		z.AdvanceCycle(next)
		return
	}

	if prev := z.Relay(); prev != mode {
		log.Info().Str("zone", z.Name).Str("from", prev.String()).Str("to", mode.String()).Msg("Zone valve state changed")
	}

	topic := store.HeatingCoolingState(z.SensorPath)
	if err := store.SetAndPublish(ctx, c.store, topic, store.EncodeMode(mode)); err != nil {
		log.Warn().Err(err).Str("zone", z.Name).Str("topic", topic).Msg("Failed to publish heating/cooling state")
	}

	z.RecordValve(next, mode)
	c.metrics.Gauge("zone.valve_state", float64(mode), "component:valve", fmt.Sprintf("zone:%s", z.Name))
}

// decide returns HEAT for the first floor(value*duration) steps of the window
// whenever demand is not OFF. COOL demand is not distinguished from HEAT.
func decide(demand model.Mode, value float64, duration, cycle int) (model.Mode, int) {
	onTime := int(math.Floor(value * float64(duration)))
	if demand != model.ModeOff && onTime > 0 && onTime > cycle {
		return model.ModeHeat, onTime
	}
	return model.ModeOff, onTime
}

func (c *Controller) readDemand(ctx context.Context) (model.Mode, error) {
	raw, err := c.store.Get(ctx, store.TargetHeatingCoolingState(c.zone.SensorPath))
	if err != nil {
		return model.ModeOff, err
	}
	return store.DecodeMode(raw)
}

func (c *Controller) readControlValue(ctx context.Context) (float64, error) {
	raw, err := c.store.Get(ctx, store.ControlValue(c.zone.SensorPath))
	if err != nil {
		return 0, err
	}
	v, err := store.DecodeControlValue(raw)
	if err != nil {
		return 0, err
	}
	return math.Max(0, math.Min(1, v)), nil
}

func skip(zoneName, topic string, err error) {
	ev := log.Warn()
	if store.Classify(err) == "missing" {
		ev = log.Debug()
	}
	ev.Err(err).Str("zone", zoneName).Str("topic", topic).Str("reason", store.Classify(err)).Msg("Skipping valve iteration")
}
