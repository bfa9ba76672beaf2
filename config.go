package main

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds every value in SPEC_FULL.md §6's "Configurable constants"
// table plus the ambient concerns (operator HTTP address, log level). It
// is resolved once at startup and never mutated afterward. The constants
// in limits.go carry the same default values as its envDefault tags.
//
// Resolution order, highest priority first: command-line flags, then the
// optional YAML config file, then environment variables (optionally
// loaded from a .env file), then the envDefault tags below.
type Config struct {
	Addr      string `env:"CHATD_ADDR" envDefault:":12000"`
	APIAddr   string `env:"CHATD_API_ADDR" envDefault:":8090"`
	LogLevel  string `env:"CHATD_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"CHATD_LOG_FORMAT" envDefault:"json"`

	BufferSize      int `env:"CHATD_BUFFER_SIZE" envDefault:"1024"`
	MaxNameLength   int `env:"CHATD_MAX_NAME_LENGTH" envDefault:"63"`
	MaxMuteList     int `env:"CHATD_MAX_MUTE_LIST" envDefault:"16"`
	HistoryCapacity int `env:"CHATD_HISTORY_CAPACITY" envDefault:"15"`
	RoomBuckets     int `env:"CHATD_ROOM_BUCKETS" envDefault:"32"`

	InactivityThreshold time.Duration `env:"CHATD_INACTIVITY_THRESHOLD" envDefault:"300s"`
	PingTimeout         time.Duration `env:"CHATD_PING_TIMEOUT" envDefault:"10s"`
	SweepInterval       time.Duration `env:"CHATD_SWEEP_INTERVAL" envDefault:"500ms"`
}

// yamlConfig mirrors Config's operator-facing fields for an optional
// static config file (CHATD_CONFIG_FILE or -config-file). Pointers let
// loadConfig tell "not set in the file" apart from a real zero value, so
// a file that only sets addr doesn't clobber the rest back to defaults.
type yamlConfig struct {
	Addr      *string `yaml:"addr"`
	APIAddr   *string `yaml:"api_addr"`
	LogLevel  *string `yaml:"log_level"`
	LogFormat *string `yaml:"log_format"`

	BufferSize      *int `yaml:"buffer_size"`
	MaxNameLength   *int `yaml:"max_name_length"`
	MaxMuteList     *int `yaml:"max_mute_list"`
	HistoryCapacity *int `yaml:"history_capacity"`
	RoomBuckets     *int `yaml:"room_buckets"`

	InactivityThreshold *time.Duration `yaml:"inactivity_threshold"`
	PingTimeout         *time.Duration `yaml:"ping_timeout"`
	SweepInterval       *time.Duration `yaml:"sweep_interval"`
}

// applyYAMLFile loads path and overlays any fields it sets onto cfg. A
// missing path is not an error — the file is entirely optional.
func applyYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if y.Addr != nil {
		cfg.Addr = *y.Addr
	}
	if y.APIAddr != nil {
		cfg.APIAddr = *y.APIAddr
	}
	if y.LogLevel != nil {
		cfg.LogLevel = *y.LogLevel
	}
	if y.LogFormat != nil {
		cfg.LogFormat = *y.LogFormat
	}
	if y.BufferSize != nil {
		cfg.BufferSize = *y.BufferSize
	}
	if y.MaxNameLength != nil {
		cfg.MaxNameLength = *y.MaxNameLength
	}
	if y.MaxMuteList != nil {
		cfg.MaxMuteList = *y.MaxMuteList
	}
	if y.HistoryCapacity != nil {
		cfg.HistoryCapacity = *y.HistoryCapacity
	}
	if y.RoomBuckets != nil {
		cfg.RoomBuckets = *y.RoomBuckets
	}
	if y.InactivityThreshold != nil {
		cfg.InactivityThreshold = *y.InactivityThreshold
	}
	if y.PingTimeout != nil {
		cfg.PingTimeout = *y.PingTimeout
	}
	if y.SweepInterval != nil {
		cfg.SweepInterval = *y.SweepInterval
	}
	return nil
}

// loadConfig resolves Config from flags, environment, an optional YAML
// file, and a .env file, grounded on the pack's own env+godotenv+pflag
// layering (see DESIGN.md). Priority, highest first: command-line flags,
// then CHATD_CONFIG_FILE/-config-file's contents, then plain environment
// variables (optionally loaded from a .env file), then the envDefault
// tags on Config.
func loadConfig(args []string, logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && logger != nil {
		logger.Debug().Msg("no .env file found, using environment and defaults")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	configFile := os.Getenv("CHATD_CONFIG_FILE")
	probe := flag.NewFlagSet("chatd-config-probe", flag.ContinueOnError)
	probe.ParseErrorsWhitelist.UnknownFlags = true
	probe.StringVar(&configFile, "config-file", configFile, "optional YAML file overlaying environment defaults")
	_ = probe.Parse(args)

	if configFile != "" {
		if err := applyYAMLFile(cfg, configFile); err != nil {
			return nil, err
		}
	}

	fs := flag.NewFlagSet("chatd", flag.ContinueOnError)
	fs.StringVar(&configFile, "config-file", configFile, "optional YAML file overlaying environment defaults")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "UDP chat listen address")
	fs.StringVar(&cfg.APIAddr, "api-addr", cfg.APIAddr, "operator HTTP listen address (empty disables it)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn, or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or console")
	fs.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "maximum datagram size in bytes")
	fs.IntVar(&cfg.MaxNameLength, "max-name-length", cfg.MaxNameLength, "maximum client/room name length in bytes")
	fs.IntVar(&cfg.MaxMuteList, "max-mute-list", cfg.MaxMuteList, "maximum entries in a client's mute list")
	fs.IntVar(&cfg.HistoryCapacity, "history-capacity", cfg.HistoryCapacity, "entries retained per history ring")
	fs.IntVar(&cfg.RoomBuckets, "room-buckets", cfg.RoomBuckets, "bucket count for the room registry's hash table")
	fs.DurationVar(&cfg.InactivityThreshold, "inactivity-threshold", cfg.InactivityThreshold, "idle time before a client is pinged")
	fs.DurationVar(&cfg.PingTimeout, "ping-timeout", cfg.PingTimeout, "time to respond to a ping before eviction")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "maximum sweeper sleep between checks")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.BufferSize < 64 {
		return fmt.Errorf("buffer-size must be at least 64, got %d", c.BufferSize)
	}
	if c.MaxNameLength < 1 {
		return fmt.Errorf("max-name-length must be positive, got %d", c.MaxNameLength)
	}
	if c.RoomBuckets < 1 {
		return fmt.Errorf("room-buckets must be positive, got %d", c.RoomBuckets)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log-level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log-format must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// logFields logs the resolved configuration once at startup, the way
// the pack's own config types do (see DESIGN.md).
func (c *Config) logFields(logger zerolog.Logger) {
	logger.Info().
		Str("addr", c.Addr).
		Str("api_addr", c.APIAddr).
		Int("buffer_size", c.BufferSize).
		Int("max_name_length", c.MaxNameLength).
		Int("max_mute_list", c.MaxMuteList).
		Int("history_capacity", c.HistoryCapacity).
		Int("room_buckets", c.RoomBuckets).
		Dur("inactivity_threshold", c.InactivityThreshold).
		Dur("ping_timeout", c.PingTimeout).
		Dur("sweep_interval", c.SweepInterval).
		Msg("configuration loaded")
}
