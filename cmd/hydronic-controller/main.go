package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hydronic-controller/internal/api"
	"github.com/thatsimonsguy/hydronic-controller/internal/config"
	"github.com/thatsimonsguy/hydronic-controller/internal/controllers/boilercontroller"
	"github.com/thatsimonsguy/hydronic-controller/internal/controllers/pidloop"
	"github.com/thatsimonsguy/hydronic-controller/internal/controllers/samplelogger"
	"github.com/thatsimonsguy/hydronic-controller/internal/controllers/sensorwatch"
	"github.com/thatsimonsguy/hydronic-controller/internal/controllers/valvecontroller"
	"github.com/thatsimonsguy/hydronic-controller/internal/datadog"
	"github.com/thatsimonsguy/hydronic-controller/internal/gpio"
	"github.com/thatsimonsguy/hydronic-controller/internal/logging"
	"github.com/thatsimonsguy/hydronic-controller/internal/model"
	"github.com/thatsimonsguy/hydronic-controller/internal/mqttmirror"
	"github.com/thatsimonsguy/hydronic-controller/internal/notifications"
	"github.com/thatsimonsguy/hydronic-controller/internal/pid"
	"github.com/thatsimonsguy/hydronic-controller/internal/sink"
	"github.com/thatsimonsguy/hydronic-controller/internal/store"
	"github.com/thatsimonsguy/hydronic-controller/internal/worker"
	"github.com/thatsimonsguy/hydronic-controller/internal/zone"
	"github.com/thatsimonsguy/hydronic-controller/system/shutdown"
	"github.com/thatsimonsguy/hydronic-controller/system/startup"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)

	log.Info().
		Str("config", cfg.ConfigFile).
		Int("zones", len(cfg.Zones)).
		Msg("Starting hydronic controller")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var io gpio.DigitalIO = gpio.Pinctrl{}
	if cfg.SafeMode {
		io = gpio.SafeMode{DigitalIO: io}
		log.Warn().Msg("SAFE MODE ENABLED: GPIO writes are disabled system-wide")
	}

	relays := startup.RelayPins(&cfg)
	if err := gpio.ValidateStartupPins(io, relays); err != nil {
		log.Warn().Err(err).Msg("Unexpected pin state at startup, forcing relays inactive")
	}
	if err := startup.ConfigurePins(io, &cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure GPIO pins")
	}

	st, closeStore := openStore(ctx, &cfg)
	defer closeStore()

	if cfg.MQTT.URL != "" {
		mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		client, err := mqttmirror.Connect(mctx, cfg.MQTT.URL)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.MQTT.URL).Msg("MQTT mirror disabled")
		} else {
			defer client.Close()
			st = mqttmirror.Wrap(st, client, cfg.MQTT.TopicPrefix)
		}
	}

	metrics := datadog.New(cfg.Datadog)
	defer metrics.Close()

	sinks := sink.Open(ctx, cfg.Sinks)
	defer sinks.Close()

	ntfy := notifications.New(cfg.Notifications)

	var group worker.Group
	zones := make([]*zone.Zone, 0, len(cfg.Zones))
	inputs := make([]boilercontroller.Input, 0, len(cfg.Zones))

	for _, zc := range cfg.Zones {
		z := zone.New(zc)
		law := pid.New(*zc.PID.Kp, *zc.PID.Ki, *zc.PID.Kd, 0, time.Now())

		pidLoop := pidloop.New(z, st, law, metrics)
		pidLoop.Prime(ctx)

		loops := []zone.Loop{
			pidLoop,
			valvecontroller.New(z, st, io, metrics),
			samplelogger.New(z, sinks, cfg.LoggingPeriod()),
		}
		if ntfy != nil {
			loops = append(loops, sensorwatch.New(z, ntfy, cfg.Notifications.StalePeriod()))
		}
		z.Start(ctx, &group, loops...)

		zones = append(zones, z)
		inputs = append(inputs, boilercontroller.Input{Zone: z.Name, Pin: z.InputPin})
	}

	boiler := boilercontroller.New(boilercontroller.Options{
		Inputs:     inputs,
		Output:     model.GPIOPin{Number: cfg.Boiler.OutputGPIO, ActiveHigh: !cfg.Boiler.ActiveLow},
		Interval:   cfg.Boiler.Period(),
		IO:         io,
		Store:      st,
		StateTopic: cfg.Boiler.StateTopic,
		Metrics:    metrics,
	})
	group.Go(ctx, boiler.Name(), boiler.Interval(), boiler.Tick)

	var server *api.Server
	if cfg.API.Port != 0 {
		server = api.NewServer(cfg.API.Port, zones, boiler, st)
		go func() {
			if err := server.Start(); err != nil {
				log.Error().Err(err).Msg("API server stopped")
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("Shutdown requested, stopping workers")

	if server != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Stop(sctx); err != nil {
			log.Warn().Err(err).Msg("API server did not stop cleanly")
		}
		cancel()
	}

	group.Wait()
	if err := shutdown.Shutdown(io, relays); err != nil {
		log.Error().Err(err).Msg("Not every relay could be deactivated")
	}
	log.Info().Msg("Hydronic controller stopped")
}

// openStore connects to Redis. An unreachable server is not fatal: every
// worker treats failed operations as missing data until it comes back. In
// safe mode an unreachable server is replaced by an in-process store.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func()) {
	rs, err := store.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.StoreTimeout())
	if err == nil {
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis state store")
		return rs, func() { rs.Close() }
	}

	if cfg.SafeMode {
		rs.Close()
		log.Warn().Err(err).Msg("Redis unreachable, using in-memory state store for safe-mode run")
		return store.NewMemory(), func() {}
	}

	log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, workers will skip iterations until it answers")
	return rs, func() { rs.Close() }
}
