package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Target() != "ip6-localhost:50100" {
		t.Errorf("target = %q", cfg.Target())
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if level, _ := cfg.Level(); level != slog.LevelWarn {
		t.Errorf("level = %v, want warn", level)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SN_CFG_CLI_ADDRESS", "10.0.0.1")
	t.Setenv("SN_CFG_CLI_PORT", "6000")
	t.Setenv("SN_CFG_CLI_TIMEOUT", "5s")
	t.Setenv("SN_CFG_CLI_LOG_LEVEL", "debug")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Target() != "10.0.0.1:6000" {
		t.Errorf("target = %q, want 10.0.0.1:6000", cfg.Target())
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", cfg.Timeout)
	}
	if level, _ := cfg.Level(); level != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level)
	}
}

func TestLoadFlagOverride(t *testing.T) {
	t.Setenv("SN_CFG_CLI_ADDRESS", "10.0.0.1")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("address", DefaultAddress, "")
	flags.Int("port", DefaultPort, "")
	if err := flags.Parse([]string{"--address", "::1", "--port", "7000"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(flags)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Target() != "[::1]:7000" {
		t.Errorf("target = %q, want [::1]:7000", cfg.Target())
	}
}

func TestLoadUnsetFlagKeepsEnv(t *testing.T) {
	t.Setenv("SN_CFG_CLI_ADDRESS", "10.0.0.1")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("address", DefaultAddress, "")
	if err := flags.Parse(nil); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(flags)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Address != "10.0.0.1" {
		t.Errorf("address = %q, want the environment value", cfg.Address)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"port", "SN_CFG_CLI_PORT", "0"},
		{"log level", "SN_CFG_CLI_LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			if _, err := Load(nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}
