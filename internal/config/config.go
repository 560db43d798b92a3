// Package config loads the sn-cfg client settings from flags and the
// environment.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SN_CFG_CLI"

const (
	DefaultAddress = "ip6-localhost"
	DefaultPort    = 50100
	DefaultTimeout = 30 * time.Second
)

// Config holds the client connection settings.
type Config struct {
	Address  string        `mapstructure:"address"`
	Port     int           `mapstructure:"port"`
	Timeout  time.Duration `mapstructure:"timeout"`
	LogLevel string        `mapstructure:"log_level"`
}

// Load reads configuration from environment variables, overridden by any
// flag set on the command line. Environment variables use the prefix
// "SN_CFG_CLI", so "log_level" becomes "SN_CFG_CLI_LOG_LEVEL". Flags are
// looked up by key with underscores replaced by dashes.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault("address", DefaultAddress)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("log_level", "warn")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for _, key := range []string{"address", "port", "timeout", "log_level"} {
			if f := flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if _, err := cfg.Level(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Target returns the gRPC dial target.
func (c *Config) Target() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
