// Package pid is a discrete PID controller with output limits, a minimum
// sample time and derivative on measurement.
package pid

import (
	"math"
	"time"
)

const DefaultSampleTime = time.Second

// Controller is not safe for concurrent use; each zone's PID loop owns one.
type Controller struct {
	Kp, Ki, Kd float64
	Min, Max   float64
	SampleTime time.Duration

	setpoint float64

	proportional float64
	integral     float64
	derivative   float64

	lastTime   time.Time
	lastInput  float64
	lastOutput float64
	primed     bool
}

// New returns a controller limited to [0,1] whose clock starts at now.
func New(kp, ki, kd, setpoint float64, now time.Time) *Controller {
	return &Controller{
		Kp:         kp,
		Ki:         ki,
		Kd:         kd,
		Min:        0,
		Max:        1,
		SampleTime: DefaultSampleTime,
		setpoint:   setpoint,
		lastTime:   now,
	}
}

func (c *Controller) Setpoint() float64 { return c.setpoint }

func (c *Controller) SetSetpoint(sp float64) { c.setpoint = sp }

// Update sets the setpoint and computes a new output for input.
func (c *Controller) Update(input, setpoint float64, now time.Time) float64 {
	c.setpoint = setpoint
	return c.Compute(input, now)
}

// Compute returns the controller output for input at time now. Calls closer
// together than SampleTime return the previous output unchanged.
func (c *Controller) Compute(input float64, now time.Time) float64 {
	dt := now.Sub(c.lastTime).Seconds()
	if dt <= 0 {
		dt = 1e-16
	}
	if c.primed && dt < c.SampleTime.Seconds() {
		return c.lastOutput
	}

	err := c.setpoint - input
	dInput := 0.0
	if c.primed {
		dInput = input - c.lastInput
	}

	c.proportional = c.Kp * err
	c.integral = c.clamp(c.integral + c.Ki*err*dt)
	c.derivative = -c.Kd * dInput / dt

	out := c.clamp(c.proportional + c.integral + c.derivative)

	c.lastOutput = out
	c.lastInput = input
	c.lastTime = now
	c.primed = true
	return out
}

// Components returns the last proportional, integral and derivative terms.
func (c *Controller) Components() (p, i, d float64) {
	return c.proportional, c.integral, c.derivative
}

func (c *Controller) clamp(v float64) float64 {
	return math.Max(c.Min, math.Min(c.Max, v))
}
