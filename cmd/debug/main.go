package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/pborman/getopt/v2"

	"github.com/thatsimonsguy/hydronic-controller/db"
	"github.com/thatsimonsguy/hydronic-controller/internal/config"
	"github.com/thatsimonsguy/hydronic-controller/internal/model"
	"github.com/thatsimonsguy/hydronic-controller/internal/pinctrl"
	"github.com/thatsimonsguy/hydronic-controller/internal/store"
	"github.com/thatsimonsguy/hydronic-controller/system/startup"
)

const usage = `commands:
  set-setpoint        --zone NAME --value DEGREES
  set-demand          --zone NAME --value off|heat|cool
  publish-temperature --zone NAME --value DEGREES
  show-zone           --zone NAME
  tail-samples        --zone NAME [--count N]
  show-pins
  write-boot-script   [--out PATH] [--install]`

func main() {
	configFile := getopt.StringLong("config", 'c', "config.json", "config file pathname")
	zoneName := getopt.StringLong("zone", 'z', "", "zone name")
	value := getopt.StringLong("value", 'v', "", "value for set/publish commands")
	count := getopt.IntLong("count", 'n', 10, "rows for tail-samples")
	out := getopt.StringLong("out", 'o', "/usr/local/bin/hydronic-gpio-boot.sh", "boot script path")
	install := getopt.BoolLong("install", 'i', "also install the systemd units")
	help := getopt.BoolLong("help", 'h', "show help")
	getopt.Parse()

	args := getopt.Args()
	if *help || len(args) != 1 {
		getopt.Usage()
		fmt.Println(usage)
		os.Exit(0)
	}
	command := args[0]

	cfg, err := config.FromFile(*configFile)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch command {
	case "write-boot-script":
		err = writeBootScript(&cfg, *out, *install)
	case "show-pins":
		err = showPins(&cfg)
	case "tail-samples":
		err = tailSamples(ctx, &cfg, *zoneName, *count)
	default:
		err = runStoreCommand(ctx, &cfg, command, *zoneName, *value)
	}

	if err != nil {
		fmt.Printf("Command %s failed: %v\n", command, err)
		os.Exit(1)
	}
	fmt.Printf("Command %s completed successfully\n", command)
}

func findZone(cfg *config.Config, name string) (config.Zone, error) {
	if name == "" {
		return config.Zone{}, fmt.Errorf("zone name is required")
	}
	for _, z := range cfg.Zones {
		if z.Name == name {
			return z, nil
		}
	}
	return config.Zone{}, fmt.Errorf("no zone named %q", name)
}

func runStoreCommand(ctx context.Context, cfg *config.Config, command, zoneName, value string) error {
	z, err := findZone(cfg, zoneName)
	if err != nil {
		return err
	}

	rs, err := store.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.StoreTimeout())
	if err != nil {
		return err
	}
	defer rs.Close()

	switch command {
	case "set-setpoint":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid setpoint %q: %w", value, err)
		}
		return store.SetAndPublish(ctx, rs, store.TargetTemperature(z.SensorPath), store.EncodeSetpoint(v))

	case "set-demand":
		mode, err := model.ParseMode(value)
		if err != nil {
			return err
		}
		return store.SetAndPublish(ctx, rs, store.TargetHeatingCoolingState(z.SensorPath), store.EncodeMode(mode))

	case "publish-temperature":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid temperature %q: %w", value, err)
		}
		sample := model.ControlSample{Temperature: v, Timestamp: time.Now()}
		return store.SetAndPublish(ctx, rs, store.CurrentTemperature(z.SensorPath), store.EncodeTemperature(sample))

	case "show-zone":
		return showZone(ctx, rs, z)
	}
	return fmt.Errorf("unknown command %q", command)
}

func showZone(ctx context.Context, st store.Store, z config.Zone) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "zone\t%s\n", z.Name)
	for _, topic := range []string{
		store.CurrentTemperature(z.SensorPath),
		store.TargetTemperature(z.SensorPath),
		store.ControlValue(z.SensorPath),
		store.TargetHeatingCoolingState(z.SensorPath),
		store.HeatingCoolingState(z.SensorPath),
	} {
		v, err := st.Get(ctx, topic)
		if err != nil {
			v = "<" + store.Classify(err) + ">"
		}
		fmt.Fprintf(w, "%s\t%s\n", topic, v)
	}
	return w.Flush()
}

func tailSamples(ctx context.Context, cfg *config.Config, zoneName string, n int) error {
	if cfg.Sinks.SQLitePath == "" {
		return fmt.Errorf("sinks.sqlite_path is not configured")
	}
	if _, err := findZone(cfg, zoneName); err != nil {
		return err
	}

	conn, err := db.Open(ctx, cfg.Sinks.SQLitePath)
	if err != nil {
		return err
	}
	defer conn.Close()

	samples, err := db.RecentSamples(ctx, conn, zoneName, n)
	if err != nil {
		return err
	}
	total, err := db.CountSamples(ctx, conn, zoneName)
	if err != nil {
		return err
	}
	fmt.Printf("%s: newest %d of %d samples\n", zoneName, len(samples), total)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "time\ttemp\ttarget\ton_time\tcycle\tp\ti\td")
	for _, s := range samples {
		fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%d\t%d\t%.6f\t%.6f\t%.6f\n",
			s.SampledAt.Format(time.RFC3339), s.CurrentTemperature, s.TargetTemperature, s.OnTime, s.Cycle, s.P, s.I, s.D)
	}
	return w.Flush()
}

func writeBootScript(cfg *config.Config, path string, install bool) error {
	if err := startup.WriteStartupScript(cfg, path); err != nil {
		return err
	}
	fmt.Printf("Boot script written to %s\n", path)
	if !install {
		return nil
	}

	gpioUnit := "/etc/systemd/system/hydronic-gpio.service"
	if err := startup.InstallStartupService(path, gpioUnit); err != nil {
		return err
	}
	execCmd := fmt.Sprintf("/usr/local/bin/hydronic-controller --config %s", cfg.ConfigFile)
	if err := startup.InstallControllerService("/etc/systemd/system/hydronic-controller.service", gpioUnit, execCmd); err != nil {
		return err
	}
	return startup.RunStartupScript(path)
}

// showPins prints the pinctrl view of every relay and input the config names.
func showPins(cfg *config.Config) error {
	relays := startup.RelayPins(cfg)
	inputs := cfg.InputPins()

	pins := append([]int(nil), inputs...)
	names := make([]string, 0, len(relays))
	for name, pin := range relays {
		names = append(names, name)
		pins = append(pins, pin.Number)
	}
	sort.Strings(names)

	states, err := pinctrl.Get(pins...)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "name\tpin\tmode\tpull\tlevel\tactive")
	for _, name := range names {
		pin := relays[name]
		s := states[pin.Number]
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%v\n", name, pin.Number, s.Mode, s.Pull, s.Level, s.Active(pin.ActiveHigh))
	}
	for _, pin := range inputs {
		s := states[pin]
		fmt.Fprintf(w, "input\t%d\t%s\t%s\t%s\t-\n", pin, s.Mode, s.Pull, s.Level)
	}
	return w.Flush()
}
