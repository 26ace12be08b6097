// Package store is the key/value + publish medium the zone workers use to
// talk to each other and to the outside world. Keys are a sensor path plus a
// topic suffix.
package store

import (
	"context"
	"errors"
)

const (
	SuffixCurrentTemperature        = "/current_temperature"
	SuffixTargetTemperature         = "/target_temperature"
	SuffixControlValue              = "/control_value"
	SuffixTargetHeatingCoolingState = "/target_heatingcooling_state"
	SuffixHeatingCoolingState       = "/heating_cooling_state"
)

var (
	ErrMissing         = errors.New("key missing")
	ErrUnavailable     = errors.New("store unavailable")
	ErrInvalidEncoding = errors.New("invalid encoding")
)

// Store is last-writer-wins per topic; there is no ordering across topics.
type Store interface {
	// Get returns ErrMissing when the topic has never been set.
	Get(ctx context.Context, topic string) (string, error)
	Set(ctx context.Context, topic, value string) error
	Publish(ctx context.Context, topic, value string) error
}

func SetAndPublish(ctx context.Context, s Store, topic, value string) error {
	if err := s.Set(ctx, topic, value); err != nil {
		return err
	}
	return s.Publish(ctx, topic, value)
}

// Classify names the failure class of a store or codec error for logging.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissing):
		return "missing"
	case errors.Is(err, ErrInvalidEncoding):
		return "invalid_encoding"
	default:
		return "unavailable"
	}
}

func CurrentTemperature(sensor string) string { return sensor + SuffixCurrentTemperature }

func TargetTemperature(sensor string) string { return sensor + SuffixTargetTemperature }

func ControlValue(sensor string) string { return sensor + SuffixControlValue }

func TargetHeatingCoolingState(sensor string) string {
	return sensor + SuffixTargetHeatingCoolingState
}

func HeatingCoolingState(sensor string) string { return sensor + SuffixHeatingCoolingState }
