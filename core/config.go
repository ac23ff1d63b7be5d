package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

type WalletConfig struct {
	Type string `koanf:"type" mapstructure:"type"`
	Name string `koanf:"name" mapstructure:"name"`
}

type TimingConfig struct {
	Enabled bool   `koanf:"enabled" mapstructure:"enabled"`
	LogFile string `koanf:"log_file" mapstructure:"log_file"`
}

type InjectorConfig struct {
	EnforceTyping bool `koanf:"enforce_typing" mapstructure:"enforce_typing"`
}

type SQLConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

type RedisConfig struct {
	URL       string `koanf:"url" mapstructure:"url"`
	KeyPrefix string `koanf:"key_prefix" mapstructure:"key_prefix"`
}

type SecurityConfig struct {
	AppKey string `koanf:"app_key" mapstructure:"app_key"`
}

type Config struct {
	Wallet   WalletConfig   `koanf:"wallet" mapstructure:"wallet"`
	Timing   TimingConfig   `koanf:"timing" mapstructure:"timing"`
	Injector InjectorConfig `koanf:"injector" mapstructure:"injector"`
	SQL      SQLConfig      `koanf:"sql" mapstructure:"sql"`
	Redis    RedisConfig    `koanf:"redis" mapstructure:"redis"`
	Security SecurityConfig `koanf:"security" mapstructure:"security"`
}

func DefaultConfig() Config {
	return Config{
		Wallet: WalletConfig{Type: "memory", Name: "default"},
		SQL:    SQLConfig{Driver: "sqlite3"},
		Redis:  RedisConfig{KeyPrefix: "vcagent"},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Wallet.Type) == "" {
		return configValidationError("wallet.type", "wallet type is required")
	}
	switch strings.TrimSpace(c.SQL.Driver) {
	case "", "sqlite3", "postgres":
	default:
		return configValidationError("sql.driver", "sql driver must be sqlite3 or postgres")
	}
	if strings.TrimSpace(c.Timing.LogFile) != "" && !c.Timing.Enabled {
		return configValidationError("timing.log_file", "timing log file requires timing.enabled")
	}
	return nil
}

// Settings flattens the configuration into the dotted keys read by the
// composition layer and the backends. Secrets are left out.
func (c Config) Settings() Settings {
	values := map[string]any{
		SettingWalletType:    strings.TrimSpace(c.Wallet.Type),
		SettingWalletName:    strings.TrimSpace(c.Wallet.Name),
		SettingTimingEnabled: c.Timing.Enabled,
		SettingEnforceTyping: c.Injector.EnforceTyping,
		"sql.driver":         strings.TrimSpace(c.SQL.Driver),
		"sql.debug":          c.SQL.Debug,
		"redis.key_prefix":   strings.TrimSpace(c.Redis.KeyPrefix),
	}
	if logFile := strings.TrimSpace(c.Timing.LogFile); logFile != "" {
		values[SettingTimingLogFile] = logFile
	}
	return NewSettings(values)
}

func configValidationError(field string, message string) error {
	return goerrors.NewValidation("core: invalid configuration", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(AgentErrorInvalidConfiguration).
		WithSeverity(goerrors.SeverityError)
}
