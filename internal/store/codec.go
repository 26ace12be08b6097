package store

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/thatsimonsguy/hydronic-controller/internal/model"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

type temperaturePayload struct {
	Value json.RawMessage `json:"value"`
	Time  json.RawMessage `json:"time,omitempty"`
}

type setpointPayload struct {
	Value json.RawMessage `json:"value"`
}

// DecodeTemperature parses a `{value, time}` sensor message. A missing time
// is taken to be now.
func DecodeTemperature(raw string, now time.Time) (model.ControlSample, error) {
	var p temperaturePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return model.ControlSample{}, errors.Wrapf(ErrInvalidEncoding, "temperature %q: %v", raw, err)
	}

	value, err := parseNumber(p.Value)
	if err != nil {
		return model.ControlSample{}, errors.WithMessagef(err, "temperature %q", raw)
	}

	ts, err := parseTime(p.Time, now)
	if err != nil {
		return model.ControlSample{}, errors.WithMessagef(err, "temperature %q", raw)
	}

	return model.ControlSample{Temperature: value, Timestamp: ts}, nil
}

func EncodeTemperature(sample model.ControlSample) string {
	b, _ := json.Marshal(map[string]interface{}{
		"value": sample.Temperature,
		"time":  sample.Timestamp.Format(time.RFC3339Nano),
	})
	return string(b)
}

// DecodeSetpoint parses a `{value}` setpoint message.
func DecodeSetpoint(raw string) (float64, error) {
	var p setpointPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return 0, errors.Wrapf(ErrInvalidEncoding, "setpoint %q: %v", raw, err)
	}
	v, err := parseNumber(p.Value)
	if err != nil {
		return 0, errors.WithMessagef(err, "setpoint %q", raw)
	}
	return v, nil
}

func EncodeSetpoint(v float64) string {
	b, _ := json.Marshal(map[string]float64{"value": v})
	return string(b)
}

func DecodeControlValue(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Wrapf(ErrInvalidEncoding, "control value %q", raw)
	}
	return v, nil
}

func EncodeControlValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func DecodeMode(raw string) (model.Mode, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || !model.Mode(n).Valid() {
		return model.ModeOff, errors.Wrapf(ErrInvalidEncoding, "heating/cooling state %q", raw)
	}
	return model.Mode(n), nil
}

func EncodeMode(m model.Mode) string {
	return strconv.Itoa(int(m))
}

// parseNumber accepts a JSON number or a numeric string.
func parseNumber(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.Wrap(ErrInvalidEncoding, "missing value")
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, errors.Wrapf(ErrInvalidEncoding, "value %s", string(raw))
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.Wrapf(ErrInvalidEncoding, "value %q", s)
	}
	return f, nil
}

// parseTime accepts an ISO-8601 string or unix seconds.
func parseTime(raw json.RawMessage, now time.Time) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return now, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range timeLayouts {
			if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, errors.Wrapf(ErrInvalidEncoding, "time %q", s)
	}

	var secs float64
	if err := json.Unmarshal(raw, &secs); err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidEncoding, "time %s", string(raw))
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)), nil
}
