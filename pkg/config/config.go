package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration. Values come from defaults, then the yaml file, then the PORT and
// CLIENT_URL environment variables, then command line flags.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Board     BoardConfig     `yaml:"board"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// AllowedOrigins limits browser websocket origins. Empty allows any origin.
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ReadLimit      int64         `yaml:"read_limit"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongWait       time.Duration `yaml:"pong_wait"`
	WriteWait      time.Duration `yaml:"write_wait"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

type BoardConfig struct {
	QueueSize        int      `yaml:"queue_size"`
	Palette          []string `yaml:"palette"`
	ClearRedoOnLeave bool     `yaml:"clear_redo_on_leave"`
}

// ArchiveConfig controls the diagnostic sqlite archive. It is write only and never restores a board.
type ArchiveConfig struct {
	Path     string        `yaml:"path"`
	Interval time.Duration `yaml:"interval"`
}

type DiscoveryConfig struct {
	MDNS     bool   `yaml:"mdns"`
	Instance string `yaml:"instance"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the yaml file at path, if any, and applies defaults and environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	applyEnv(cfg, os.Getenv)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if port := strings.TrimSpace(getenv("PORT")); port != "" && cfg.Server.Addr == "" {
		cfg.Server.Addr = ":" + port
	}
	if origin := strings.TrimSpace(getenv("CLIENT_URL")); origin != "" {
		cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, origin)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "localhost:3001"
	}
	if cfg.Server.ReadLimit == 0 {
		cfg.Server.ReadLimit = 1 << 20
	}
	if cfg.Server.PongWait == 0 {
		cfg.Server.PongWait = 60 * time.Second
	}
	if cfg.Server.PingInterval == 0 {
		cfg.Server.PingInterval = 25 * time.Second
	}
	if cfg.Server.WriteWait == 0 {
		cfg.Server.WriteWait = 10 * time.Second
	}
	if cfg.Server.ShutdownGrace == 0 {
		cfg.Server.ShutdownGrace = 5 * time.Second
	}
	if cfg.Board.QueueSize == 0 {
		cfg.Board.QueueSize = 256
	}
	if cfg.Archive.Interval == 0 {
		cfg.Archive.Interval = 5 * time.Second
	}
	if cfg.Discovery.Instance == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.Discovery.Instance = host
		} else {
			cfg.Discovery.Instance = "sketchsync"
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func (c *Config) Validate() error {
	if c.Server.ReadLimit < 0 {
		return fmt.Errorf("server.read_limit must not be negative")
	}
	if c.Server.PingInterval >= c.Server.PongWait {
		return fmt.Errorf("server.ping_interval must be shorter than server.pong_wait")
	}
	if c.Board.QueueSize < 1 {
		return fmt.Errorf("board.queue_size must be at least 1")
	}
	for _, color := range c.Board.Palette {
		if strings.TrimSpace(color) == "" {
			return fmt.Errorf("board.palette must not contain empty colors")
		}
	}
	if c.Archive.Interval < 0 {
		return fmt.Errorf("archive.interval must not be negative")
	}
	if _, err := c.Logging.level(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

func (l LoggingConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// Logger builds the process logger described by the config.
func (l LoggingConfig) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
