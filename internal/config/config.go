package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pborman/getopt/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigFile       = "config.json"
	defaultLogFile          = "/var/log/hydronic-controller.log"
	defaultSamplingInterval = 5  // seconds
	defaultCyclePeriod      = 10 // minutes
	defaultBoilerInterval   = 5  // seconds
	defaultLoggingInterval  = 10 // seconds
	defaultStoreTimeoutMS   = 2000
	defaultRedisAddr        = "localhost:6379"
	defaultTopicPrefix      = "hydronic"
	defaultNtfyServer       = "https://ntfy.sh"
	defaultStaleAfter       = 600 // seconds

	defaultKp = 1.0
	defaultKi = 0.01
	defaultKd = 0.5
)

type PIDTuning struct {
	Kp *float64 `json:"kp" yaml:"kp"`
	Ki *float64 `json:"ki" yaml:"ki"`
	Kd *float64 `json:"kd" yaml:"kd"`
}

type Zone struct {
	SensorPath       string    `json:"sensor_path" yaml:"sensor_path"`
	InputGPIO        int       `json:"input_gpio" yaml:"input_gpio"`
	OutputGPIO       int       `json:"output_gpio" yaml:"output_gpio"`
	Name             string    `json:"name" yaml:"name"`
	ActiveLow        bool      `json:"active_low" yaml:"active_low"`
	SamplingInterval int       `json:"sampling_interval" yaml:"sampling_interval"` // seconds
	CyclePeriod      int       `json:"cycle_period" yaml:"cycle_period"`           // minutes
	PID              PIDTuning `json:"pid" yaml:"pid"`
}

type Boiler struct {
	OutputGPIO int    `json:"output_gpio" yaml:"output_gpio"`
	ActiveLow  bool   `json:"active_low" yaml:"active_low"`
	Interval   int    `json:"interval" yaml:"interval"` // seconds
	StateTopic string `json:"state_topic" yaml:"state_topic"`
}

type Redis struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type MQTT struct {
	URL         string `json:"url" yaml:"url"`
	TopicPrefix string `json:"topic_prefix" yaml:"topic_prefix"`
}

type Sinks struct {
	CSVDir      string `json:"csv_dir" yaml:"csv_dir"`
	SQLitePath  string `json:"sqlite_path" yaml:"sqlite_path"`
	PostgresURL string `json:"postgres_url" yaml:"postgres_url"`
}

type Datadog struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Addr      string   `json:"addr" yaml:"addr"`
	Namespace string   `json:"namespace" yaml:"namespace"`
	Tags      []string `json:"tags" yaml:"tags"`
}

type Notifications struct {
	NtfyServer string `json:"ntfy_server" yaml:"ntfy_server"`
	NtfyTopic  string `json:"ntfy_topic" yaml:"ntfy_topic"`
	StaleAfter int    `json:"stale_after" yaml:"stale_after"` // seconds
}

type API struct {
	Port int `json:"port" yaml:"port"`
}

type Config struct {
	ConfigFile string        `json:"-" yaml:"-"`
	LogLevel   zerolog.Level `json:"-" yaml:"-"`

	LogLevelName    string  `json:"log_level" yaml:"log_level"`
	LogFile         string  `json:"log_file" yaml:"log_file"`
	SafeMode        bool    `json:"safe_mode" yaml:"safe_mode"`
	StoreTimeoutMS  int     `json:"store_timeout_ms" yaml:"store_timeout_ms"`
	LoggingInterval int     `json:"logging_interval" yaml:"logging_interval"` // seconds
	Inputs          []int   `json:"inputs" yaml:"inputs"`
	Zones           []Zone  `json:"zones" yaml:"zones"`
	Boiler          Boiler  `json:"boiler" yaml:"boiler"`
	Redis           Redis   `json:"redis" yaml:"redis"`
	MQTT            MQTT    `json:"mqtt" yaml:"mqtt"`
	Sinks           Sinks   `json:"sinks" yaml:"sinks"`
	Datadog         Datadog `json:"datadog" yaml:"datadog"`
	API             API     `json:"api" yaml:"api"`

	Notifications Notifications `json:"notifications" yaml:"notifications"`
}

// Load parses the command line, reads the config file and validates it.
// Any problem with the file is fatal.
func Load() Config {
	configFile := getopt.StringLong("config", 'c', defaultConfigFile, "config file pathname")
	logLevel := getopt.StringLong("log-level", 'l', "", "log level (debug, info, warn, error)")
	safeMode := getopt.BoolLong("safe-mode", 's', "disable all GPIO writes")
	getopt.Parse()

	cfg, err := FromFile(*configFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}

	if *logLevel != "" {
		cfg.LogLevelName = *logLevel
		cfg.LogLevel = parseLogLevel(*logLevel)
	}
	if *safeMode {
		cfg.SafeMode = true
	}

	return cfg
}

// FromFile reads and validates a config file. JSON and YAML are both accepted,
// chosen by file extension.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ConfigFile = path
	return cfg, nil
}

// Parse decodes raw config bytes, fills defaults and validates the result.
func Parse(data []byte, ext string) (cfg Config, err error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, err
	}

	cfg.fillDefaults()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	cfg.validate()
	return cfg, nil
}

func (cfg *Config) fillDefaults() {
	if cfg.LogFile == "" {
		cfg.LogFile = defaultLogFile
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)
	if cfg.StoreTimeoutMS == 0 {
		cfg.StoreTimeoutMS = defaultStoreTimeoutMS
	}
	if cfg.LoggingInterval == 0 {
		cfg.LoggingInterval = defaultLoggingInterval
	}
	if cfg.Boiler.Interval == 0 {
		cfg.Boiler.Interval = defaultBoilerInterval
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaultRedisAddr
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = defaultTopicPrefix
	}
	if cfg.Notifications.NtfyServer == "" {
		cfg.Notifications.NtfyServer = defaultNtfyServer
	}
	if cfg.Notifications.StaleAfter == 0 {
		cfg.Notifications.StaleAfter = defaultStaleAfter
	}
	for i := range cfg.Zones {
		cfg.Zones[i].fillDefaults()
	}
}

func (z *Zone) fillDefaults() {
	if z.SamplingInterval == 0 {
		z.SamplingInterval = defaultSamplingInterval
	}
	if z.CyclePeriod == 0 {
		z.CyclePeriod = defaultCyclePeriod
	}
	if z.PID.Kp == nil {
		z.PID.Kp = ptr(defaultKp)
	}
	if z.PID.Ki == nil {
		z.PID.Ki = ptr(defaultKi)
	}
	if z.PID.Kd == nil {
		z.PID.Kd = ptr(defaultKd)
	}
}

func ptr[T any](v T) *T {
	return &v
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) validate() {
	var (
		problems  []string
		usedPins  = map[int]string{}
		conflicts []string
	)

	claim := func(pin int, owner string) {
		if other, exists := usedPins[pin]; exists {
			conflicts = append(conflicts, fmt.Sprintf("%s and %s both use pin %d", owner, other, pin))
			return
		}
		usedPins[pin] = owner
	}

	if len(cfg.Zones) == 0 {
		problems = append(problems, "no zones configured")
	}

	for _, f := range []struct {
		name  string
		value int
	}{
		{"boiler.interval", cfg.Boiler.Interval},
		{"logging_interval", cfg.LoggingInterval},
		{"store_timeout_ms", cfg.StoreTimeoutMS},
		{"notifications.stale_after", cfg.Notifications.StaleAfter},
	} {
		if f.value <= 0 {
			problems = append(problems, f.name+" must be positive")
		}
	}

	claim(cfg.Boiler.OutputGPIO, "boiler.output_gpio")

	names := map[string]bool{}
	for i, z := range cfg.Zones {
		label := z.Name
		if label == "" {
			label = fmt.Sprintf("zones[%d]", i)
			problems = append(problems, label+": missing name")
		}
		if names[z.Name] {
			problems = append(problems, label+": duplicate zone name")
		}
		names[z.Name] = true

		if z.SensorPath == "" {
			problems = append(problems, label+": missing sensor_path")
		}
		if z.SamplingInterval < 0 || z.CyclePeriod < 0 {
			problems = append(problems, label+": intervals must be positive")
			continue
		}
		if z.CyclePeriod*60 < z.SamplingInterval {
			problems = append(problems, label+": cycle_period is shorter than sampling_interval")
		} else if (z.CyclePeriod*60)%z.SamplingInterval != 0 {
			problems = append(problems, label+": cycle_period is not a whole number of sampling intervals")
		}

		claim(z.OutputGPIO, label+".output_gpio")
	}

	for _, pin := range cfg.InputPins() {
		if owner, isOutput := usedPins[pin]; isOutput {
			conflicts = append(conflicts, fmt.Sprintf("input pin %d is also %s", pin, owner))
		}
	}

	if len(problems) > 0 {
		panic("Invalid config: " + strings.Join(problems, ", "))
	}
	if len(conflicts) > 0 {
		panic("Conflicting GPIO pins: " + strings.Join(conflicts, ", "))
	}
}

// InputPins returns every pin configured as an input: the global input list
// plus each zone's demand input, without duplicates.
func (cfg *Config) InputPins() []int {
	seen := map[int]bool{}
	var pins []int
	add := func(p int) {
		if !seen[p] {
			seen[p] = true
			pins = append(pins, p)
		}
	}
	for _, p := range cfg.Inputs {
		add(p)
	}
	for _, z := range cfg.Zones {
		add(z.InputGPIO)
	}
	return pins
}

func (cfg *Config) StoreTimeout() time.Duration {
	return time.Duration(cfg.StoreTimeoutMS) * time.Millisecond
}

func (cfg *Config) LoggingPeriod() time.Duration {
	return time.Duration(cfg.LoggingInterval) * time.Second
}

func (n Notifications) StalePeriod() time.Duration {
	return time.Duration(n.StaleAfter) * time.Second
}

func (b Boiler) Period() time.Duration {
	return time.Duration(b.Interval) * time.Second
}

func (z Zone) Sampling() time.Duration {
	return time.Duration(z.SamplingInterval) * time.Second
}

// Steps is the number of sampling intervals in one valve cycle window.
func (z Zone) Steps() int {
	return z.CyclePeriod * 60 / z.SamplingInterval
}
