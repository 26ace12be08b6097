package datadog

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hydronic-controller/internal/config"
)

// Gauger is what the controllers need from the metrics client.
type Gauger interface {
	Gauge(name string, value float64, tags ...string)
}

// Metrics is safe to use as a nil pointer; every call is then a no-op.
type Metrics struct {
	client *statsd.Client
	warn   bool
}

// New returns nil when metrics are disabled or the client cannot be built.
func New(cfg config.Datadog) *Metrics {
	if !cfg.Enabled {
		return nil
	}

	client, err := statsd.New(cfg.Addr,
		statsd.WithNamespace(cfg.Namespace),
		statsd.WithTags(cfg.Tags),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create DogStatsD client")
		return nil
	}

	log.Info().
		Str("addr", cfg.Addr).
		Str("namespace", cfg.Namespace).
		Strs("tags", cfg.Tags).
		Msg("Datadog metrics initialized")

	return &Metrics{client: client, warn: true}
}

func (m *Metrics) Gauge(name string, value float64, tags ...string) {
	if m == nil || m.client == nil {
		return
	}
	if err := m.client.Gauge(name, value, tags, 1); err != nil && m.warn {
		log.Warn().Err(err).Str("metric", name).Msg("Failed to emit gauge metric")
	}
}

func (m *Metrics) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}
