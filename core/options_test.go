package core

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

type failingRawLoader struct {
	err error
}

func (l failingRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return nil, l.err
}

func TestLoadConfig_DefaultsWhenNothingConfigured(t *testing.T) {
	cfg, err := LoadConfig(context.Background(), nil, nil, Config{})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Wallet.Type != "memory" || cfg.Wallet.Name != "default" {
		t.Fatalf("expected default wallet, got %+v", cfg.Wallet)
	}
	if cfg.SQL.Driver != "sqlite3" {
		t.Fatalf("expected default sql driver, got %q", cfg.SQL.Driver)
	}
}

func TestLoadConfig_LayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(StaticConfigLoader{Values: map[string]any{
		"wallet": map[string]any{
			"type": "sql",
			"name": "from-config",
		},
		"timing": map[string]any{
			"enabled":  true,
			"log_file": "/tmp/timing.log",
		},
		"sql": map[string]any{
			"dsn": "file:agent.db",
		},
	}})

	cfg, err := LoadConfig(context.Background(), provider, GoOptionsResolver{}, Config{
		Wallet: WalletConfig{Name: "from-runtime"},
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Wallet.Name != "from-runtime" {
		t.Fatalf("expected runtime value to override config, got %q", cfg.Wallet.Name)
	}
	if cfg.Wallet.Type != "sql" || cfg.SQL.DSN != "file:agent.db" {
		t.Fatalf("expected config layer values, got %+v", cfg)
	}
	if cfg.SQL.Driver != "sqlite3" {
		t.Fatalf("expected default to fill unset driver, got %q", cfg.SQL.Driver)
	}
	if !cfg.Timing.Enabled || cfg.Timing.LogFile != "/tmp/timing.log" {
		t.Fatalf("expected timing from config, got %+v", cfg.Timing)
	}

	settings := cfg.Settings()
	enabled, err := settings.GetBool(SettingTimingEnabled, false)
	if err != nil || !enabled {
		t.Fatalf("expected timing.enabled in settings")
	}
	logFile, _ := settings.GetString(SettingTimingLogFile, "")
	if logFile != "/tmp/timing.log" {
		t.Fatalf("expected timing.log.file in settings, got %q", logFile)
	}
	walletType, _ := settings.GetString(SettingWalletType, "")
	if walletType != "sql" {
		t.Fatalf("expected wallet.type in settings, got %q", walletType)
	}
}

func TestLoadConfig_LoaderErrorPropagates(t *testing.T) {
	loadErr := errors.New("vault sealed")
	_, err := LoadConfig(context.Background(), NewCfgxConfigProvider(failingRawLoader{err: loadErr}), nil, Config{})
	if !errors.Is(err, loadErr) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]Config{
		"missing wallet type": {},
		"unknown driver":      {Wallet: WalletConfig{Type: "sql"}, SQL: SQLConfig{Driver: "oracle"}},
		"log without timing":  {Wallet: WalletConfig{Type: "memory"}, Timing: TimingConfig{LogFile: "x.log"}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			var richErr *goerrors.Error
			if !goerrors.As(err, &richErr) {
				t.Fatalf("expected go-errors type, got %T", err)
			}
			if richErr.TextCode != AgentErrorInvalidConfiguration {
				t.Fatalf("unexpected text code %q", richErr.TextCode)
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}
