package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jt828/go-span-tracing/pkg/resourcespan"
	"github.com/spf13/viper"
)

const envPrefix = "SPANTRACE"

type Config struct {
	ServiceName string          `mapstructure:"service_name"`
	Log         LogConfig       `mapstructure:"log"`
	Tracing     TracingConfig   `mapstructure:"tracing"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Probe       ProbeConfig     `mapstructure:"probe"`
	Server      ServerConfig    `mapstructure:"server"`
	Snowflake   SnowflakeConfig `mapstructure:"snowflake"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type TracingConfig struct {
	Endpoint        string   `mapstructure:"endpoint"`
	Insecure        bool     `mapstructure:"insecure"`
	Types           []string `mapstructure:"types"`
	RollbackAsError bool     `mapstructure:"rollback_as_error"`
}

type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	Name         string `mapstructure:"name"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type ProbeConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type ServerConfig struct {
	GrpcAddr    string `mapstructure:"grpc_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type SnowflakeConfig struct {
	// NodeID < 0 derives the node from HOSTNAME.
	NodeID int64 `mapstructure:"node_id"`
}

// LoadConfig reads an optional YAML file and overlays SPANTRACE_* environment
// variables, e.g. SPANTRACE_DATABASE_DSN for database.dsn.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "go-span-tracing")
	v.SetDefault("log.level", "info")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.types", []string{
		string(resourcespan.TraceTypeConnection),
		string(resourcespan.TraceTypeQuery),
		string(resourcespan.TraceTypeFetch),
	})
	v.SetDefault("tracing.rollback_as_error", true)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.name", "postgresql")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("probe.interval", 10*time.Second)
	v.SetDefault("server.grpc_addr", ":50051")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("snowflake.node_id", -1)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Probe.Interval <= 0 {
		errs = append(errs, fmt.Errorf("probe.interval must be positive, got %s", c.Probe.Interval))
	}
	if _, err := c.TraceTypes(); err != nil {
		errs = append(errs, err)
	}
	if c.Snowflake.NodeID > 1023 {
		errs = append(errs, fmt.Errorf("snowflake.node_id must be at most 1023, got %d", c.Snowflake.NodeID))
	}
	return errors.Join(errs...)
}

func (c *Config) TraceTypes() ([]resourcespan.TraceType, error) {
	types := make([]resourcespan.TraceType, 0, len(c.Tracing.Types))
	for _, raw := range c.Tracing.Types {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			t, ok := resourcespan.ParseTraceType(strings.ToLower(s))
			if !ok {
				return nil, fmt.Errorf("unknown tracing type %q", s)
			}
			types = append(types, t)
		}
	}
	return types, nil
}
