package model

import (
	"fmt"
	"strings"
	"time"
)

// Mode is both the externally requested demand mode and the locally
// computed relay state. The integer values are the wire encoding.
type Mode int

const (
	ModeOff  Mode = 0
	ModeHeat Mode = 1
	ModeCool Mode = 2
)

func (m Mode) String() string {
	switch m {
	case ModeHeat:
		return "heat"
	case ModeCool:
		return "cool"
	default:
		return "off"
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode accepts a mode name or its wire integer.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "0":
		return ModeOff, nil
	case "heat", "1":
		return ModeHeat, nil
	case "cool", "2":
		return ModeCool, nil
	}
	return ModeOff, fmt.Errorf("unknown mode %q", s)
}

func (m Mode) Valid() bool {
	return m >= ModeOff && m <= ModeCool
}

type GPIOPin struct {
	Number     int
	ActiveHigh bool
}

// ControlSample is one temperature reading as published by the sensor ingest.
type ControlSample struct {
	Temperature float64
	Timestamp   time.Time
}

// Sample is one logged row of a zone's control state.
type Sample struct {
	Zone               string    `db:"zone"`
	SampledAt          time.Time `db:"sampled_at"`
	CurrentTemperature float64   `db:"current_temperature"`
	TargetTemperature  float64   `db:"target_temperature"`
	OnTime             int       `db:"on_time"`
	Cycle              int       `db:"cycle"`
	P                  float64   `db:"p"`
	I                  float64   `db:"i"`
	D                  float64   `db:"d"`
}
