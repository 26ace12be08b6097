package zone

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hydronic-controller/internal/config"
	"github.com/thatsimonsguy/hydronic-controller/internal/model"
	"github.com/thatsimonsguy/hydronic-controller/internal/worker"
)

// Zone is the live state of one heating zone. Each field has exactly one
// writer: the PID loop owns the temperatures, control value and PID terms,
// the valve controller owns the cycle counter and relay state. Readers load
// fields independently, so a Snapshot may mix values from different ticks.
type Zone struct {
	Name             string
	SensorPath       string
	InputPin         int
	Output           model.GPIOPin
	SamplingInterval time.Duration
	Duration         int

	Tuning config.PIDTuning

	temperature  atomicFloat
	setpoint     atomicFloat
	controlValue atomicFloat
	p, i, d      atomicFloat
	lastSample   atomic.Pointer[time.Time]
	cycle        atomic.Int64
	relay        atomic.Int32
}

type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64 { return math.Float64frombits(f.bits.Load()) }

func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }

func New(cfg config.Zone) *Zone {
	return &Zone{
		Name:             cfg.Name,
		SensorPath:       cfg.SensorPath,
		InputPin:         cfg.InputGPIO,
		Output:           model.GPIOPin{Number: cfg.OutputGPIO, ActiveHigh: !cfg.ActiveLow},
		SamplingInterval: cfg.Sampling(),
		Duration:         cfg.Steps(),
		Tuning:           cfg.PID,
	}
}

func (z *Zone) Temperature() float64  { return z.temperature.Load() }
func (z *Zone) Setpoint() float64     { return z.setpoint.Load() }
func (z *Zone) ControlValue() float64 { return z.controlValue.Load() }
func (z *Zone) Cycle() int            { return int(z.cycle.Load()) }
func (z *Zone) Relay() model.Mode     { return model.Mode(z.relay.Load()) }

func (z *Zone) Components() (p, i, d float64) {
	return z.p.Load(), z.i.Load(), z.d.Load()
}

// LastSample reports the timestamp of the most recent fresh temperature
// sample; ok is false until the first one arrives.
func (z *Zone) LastSample() (t time.Time, ok bool) {
	ts := z.lastSample.Load()
	if ts == nil {
		return time.Time{}, false
	}
	return *ts, true
}

// PIDUpdate is what one PID loop iteration publishes into the zone.
// Sample is nil when no fresh temperature was read.
type PIDUpdate struct {
	Temperature  float64
	Setpoint     float64
	ControlValue float64
	P, I, D      float64
	Sample       *time.Time
}

func (z *Zone) RecordPID(u PIDUpdate) {
	z.temperature.Store(u.Temperature)
	z.setpoint.Store(u.Setpoint)
	z.controlValue.Store(u.ControlValue)
	z.p.Store(u.P)
	z.i.Store(u.I)
	z.d.Store(u.D)
	if u.Sample != nil {
		ts := *u.Sample
		z.lastSample.Store(&ts)
	}
}

// SeedSetpoint sets the initial setpoint before the PID loop starts.
func (z *Zone) SeedSetpoint(sp float64) {
	z.setpoint.Store(sp)
}

// RecordValve stores the relay state and the cycle position of the next tick.
func (z *Zone) RecordValve(nextCycle int, relay model.Mode) {
	z.relay.Store(int32(relay))
	z.cycle.Store(int64(nextCycle))
}

// AdvanceCycle moves the cycle counter without touching the relay state.
func (z *Zone) AdvanceCycle(nextCycle int) {
	z.cycle.Store(int64(nextCycle))
}

type Snapshot struct {
	Name         string     `json:"name"`
	SensorPath   string     `json:"sensor_path"`
	Temperature  float64    `json:"current_temperature"`
	Setpoint     float64    `json:"target_temperature"`
	ControlValue float64    `json:"control_value"`
	P            float64    `json:"p"`
	I            float64    `json:"i"`
	D            float64    `json:"d"`
	Cycle        int        `json:"cycle"`
	Duration     int        `json:"duration"`
	Relay        model.Mode `json:"relay"`
	LastSample   *time.Time `json:"last_sample_time,omitempty"`
}

func (z *Zone) Snapshot() Snapshot {
	s := Snapshot{
		Name:         z.Name,
		SensorPath:   z.SensorPath,
		Temperature:  z.Temperature(),
		Setpoint:     z.Setpoint(),
		ControlValue: z.ControlValue(),
		Cycle:        z.Cycle(),
		Duration:     z.Duration,
		Relay:        z.Relay(),
	}
	s.P, s.I, s.D = z.Components()
	if ts, ok := z.LastSample(); ok {
		s.LastSample = &ts
	}
	return s
}

// Loop is one periodic worker attached to a zone.
type Loop interface {
	Name() string
	Interval() time.Duration
	Tick(ctx context.Context)
}

// Start launches every loop on the group. They stop when ctx is done.
func (z *Zone) Start(ctx context.Context, g *worker.Group, loops ...Loop) {
	log.Info().Str("zone", z.Name).Int("loops", len(loops)).Msg("Starting zone")
	for _, l := range loops {
		g.Go(ctx, l.Name(), l.Interval(), l.Tick)
	}
}
