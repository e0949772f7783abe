package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rendis/flowgpt/internal/store"
	"github.com/rendis/flowgpt/pkg/schema"
)

// EnvPrefix prefixes every environment override, e.g. FLOWGPT_STORE_DSN.
const EnvPrefix = "FLOWGPT"

// Config holds all flowgpt configuration.
// Priority: env vars > flowgpt.yaml > defaults.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Store       StoreConfig       `mapstructure:"store"`
	Log         LogConfig         `mapstructure:"log"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Execution   ExecutionConfig   `mapstructure:"execution"`
	MCP         MCPConfig         `mapstructure:"mcp"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RedisConfig enables the status cache when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MaintenanceConfig drives the prune job. A zero Retention disables it.
type MaintenanceConfig struct {
	Retention time.Duration `mapstructure:"retention"`
	Schedule  string        `mapstructure:"schedule"`
}

// ExecutionConfig bounds a single pipeline run. Zero means no timeout.
type ExecutionConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type MCPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("store.driver", store.DriverLibSQL)
	v.SetDefault("store.dsn", "file:flowgpt.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 10*time.Minute)
	v.SetDefault("maintenance.retention", time.Duration(0))
	v.SetDefault("maintenance.schedule", "@daily")
	v.SetDefault("execution.timeout", time.Duration(0))
	v.SetDefault("mcp.enabled", true)
	v.SetDefault("mcp.base_url", "")
}

// Load reads configuration. When file is empty, flowgpt.yaml is searched in
// the working directory, $HOME/.flowgpt and /etc/flowgpt; a missing file is
// not an error. An explicit file that cannot be read is.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("flowgpt")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.flowgpt")
		v.AddConfigPath("/etc/flowgpt")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var problems []string
	switch c.Store.Driver {
	case store.DriverLibSQL, store.DriverPostgres:
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not one of %s, %s",
			c.Store.Driver, store.DriverLibSQL, store.DriverPostgres))
	}
	if c.Store.DSN == "" {
		problems = append(problems, "store.dsn is required")
	}
	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		problems = append(problems, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		problems = append(problems, "server.write_timeout must be positive")
	}
	if c.Execution.Timeout < 0 {
		problems = append(problems, "execution.timeout must not be negative")
	}
	if c.Maintenance.Retention < 0 {
		problems = append(problems, "maintenance.retention must not be negative")
	}
	if c.Maintenance.Retention > 0 && c.Maintenance.Schedule == "" {
		problems = append(problems, "maintenance.schedule is required when retention is set")
	}
	if c.Redis.Addr != "" && c.Redis.TTL <= 0 {
		problems = append(problems, "redis.ttl must be positive")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q is not text or json", c.Log.Format))
	}

	if len(problems) > 0 {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid configuration: %s",
			strings.Join(problems, "; ")).WithDetails(map[string]any{"problems": problems})
	}
	return nil
}

// BaseURL is the externally visible server URL, derived from the listen
// address unless mcp.base_url overrides it.
func (c *Config) BaseURL() string {
	if c.MCP.BaseURL != "" {
		return c.MCP.BaseURL
	}
	addr := c.Server.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
