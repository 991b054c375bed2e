package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/guileen/memquery/logger"
)

// EnvPrefix prefixes every environment override, e.g. MEMQUERY_SERVER_ADDR
// sets server.addr.
const EnvPrefix = "MEMQUERY"

// Config holds the configuration of the memquery binary.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Exec   ExecConfig   `mapstructure:"exec"`
	Expr   ExprConfig   `mapstructure:"expr"`
}

type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	AddSource bool   `mapstructure:"add_source"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig configures the relation store. An empty Path keeps everything
// in memory.
type StoreConfig struct {
	Path string `mapstructure:"path"`
	Sync bool   `mapstructure:"sync"`
}

type ExecConfig struct {
	// HashJoin enables hash joins for equi-joins.
	HashJoin bool `mapstructure:"hash_join"`
	// MaxRows caps the rows a single query may produce; 0 means unlimited.
	MaxRows int `mapstructure:"max_rows"`
}

type ExprConfig struct {
	CacheSize int `mapstructure:"cache_size"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{Sync: true},
		Exec:  ExecConfig{HashJoin: true},
		Expr:  ExprConfig{CacheSize: 256},
	}
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.format", c.Log.Format)
	v.SetDefault("log.add_source", c.Log.AddSource)
	v.SetDefault("server.addr", c.Server.Addr)
	v.SetDefault("server.read_timeout", c.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", c.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("store.path", c.Store.Path)
	v.SetDefault("store.sync", c.Store.Sync)
	v.SetDefault("exec.hash_join", c.Exec.HashJoin)
	v.SetDefault("exec.max_rows", c.Exec.MaxRows)
	v.SetDefault("expr.cache_size", c.Expr.CacheSize)
}

// Load reads defaults, then the optional config file at path (any format
// viper understands), then MEMQUERY_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || os.IsNotExist(err) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := logger.ParseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be json or text, got %q", c.Log.Format))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr: must not be empty"))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server: timeouts must not be negative"))
	}
	if c.Exec.MaxRows < 0 {
		errs = append(errs, fmt.Errorf("exec.max_rows: must not be negative, got %d", c.Exec.MaxRows))
	}
	if c.Expr.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("expr.cache_size: must be positive, got %d", c.Expr.CacheSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Logger converts the log section into a logger configuration writing to
// stderr.
func (c LogConfig) Logger() logger.Config {
	cfg := logger.DefaultConfig()
	if level, ok := logger.ParseLevel(c.Level); ok {
		cfg.Level = level
	}
	if c.Format != "" {
		cfg.Format = strings.ToLower(c.Format)
	}
	cfg.AddSource = c.AddSource
	return cfg
}
