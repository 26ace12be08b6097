package boilercontroller

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hydronic-controller/internal/datadog"
	"github.com/thatsimonsguy/hydronic-controller/internal/gpio"
	"github.com/thatsimonsguy/hydronic-controller/internal/model"
	"github.com/thatsimonsguy/hydronic-controller/internal/store"
)

// Input is one zone's demand contact.
type Input struct {
	Zone string
	Pin  int
}

type Status struct {
	Firing   bool      `json:"firing"`
	Inputs   []bool    `json:"inputs"`
	PolledAt time.Time `json:"polled_at"`
}

// Controller fires the shared boiler whenever any zone input is high.
type Controller struct {
	inputs     []Input
	output     model.GPIOPin
	interval   time.Duration
	io         gpio.DigitalIO
	store      store.Store
	stateTopic string
	metrics    datadog.Gauger

	last atomic.Pointer[Status]
}

// Options configures a Controller. Store and StateTopic are optional; when
// both are set the boiler state is published as "0" or "1".
type Options struct {
	Inputs     []Input
	Output     model.GPIOPin
	Interval   time.Duration
	IO         gpio.DigitalIO
	Store      store.Store
	StateTopic string
	Metrics    datadog.Gauger
}

func New(opts Options) *Controller {
	if opts.Metrics == nil {
		opts.Metrics = (*datadog.Metrics)(nil)
	}
	return &Controller{
		inputs:     opts.Inputs,
		output:     opts.Output,
		interval:   opts.Interval,
		io:         opts.IO,
		store:      opts.Store,
		stateTopic: opts.StateTopic,
		metrics:    opts.Metrics,
	}
}

func (c *Controller) Name() string { return "boiler" }

func (c *Controller) Interval() time.Duration { return c.interval }

// Last returns the most recent poll, or nil before the first one.
func (c *Controller) Last() *Status {
	return c.last.Load()
}

func (c *Controller) Tick(ctx context.Context) {
	levels := make([]bool, len(c.inputs))
	for i, in := range c.inputs {
		level, err := c.io.Read(in.Pin)
		if err != nil {
			log.Error().Err(err).Str("zone", in.Zone).Int("pin", in.Pin).Msg("Failed to read zone demand input, skipping boiler update")
			return
		}
		levels[i] = level
	}

	firing := combine(levels)

	if err := gpio.Drive(c.io, c.output, firing); err != nil {
		log.Error().Err(err).Int("pin", c.output.Number).Msg("Failed to drive boiler")
		return
	}

	if prev := c.last.Load(); prev == nil || prev.Firing != firing {
		log.Info().Bool("firing", firing).Interface("inputs", levels).Msg("Boiler state changed")
	}
	c.last.Store(&Status{Firing: firing, Inputs: levels, PolledAt: time.Now()})

	state := 0.0
	if firing {
		state = 1
	}
	c.metrics.Gauge("boiler.state", state, "component:boiler")

	if c.store != nil && c.stateTopic != "" {
		value := "0"
		if firing {
			value = "1"
		}
		if err := store.SetAndPublish(ctx, c.store, c.stateTopic, value); err != nil {
			log.Warn().Err(err).Str("topic", c.stateTopic).Msg("Failed to publish boiler state")
		}
	}
}

func combine(levels []bool) bool {
	for _, l := range levels {
		if l {
			return true
		}
	}
	return false
}
