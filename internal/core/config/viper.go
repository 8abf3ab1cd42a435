package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"host":         "condition_api.host",
	"port":         "condition_api.port",
	"metrics-port": "condition_api.metrics_port",
	"definitions":  "condition_api.definitions_file",
	"db-url":       "database.url",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
// flags may be nil; only flags the user actually set override lower layers.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*ConditionAPIConfig, error) {
	v := viper.New()

	def := DefaultConditionAPIConfig()
	v.SetDefault("condition_api.host", def.Host)
	v.SetDefault("condition_api.port", def.Port)
	v.SetDefault("condition_api.max_connections", def.MaxConnections)
	v.SetDefault("condition_api.request_timeout", def.RequestTimeout.String())
	v.SetDefault("condition_api.max_document_bytes", def.MaxDocumentBytes)
	v.SetDefault("condition_api.metrics_port", def.MetricsPort)
	v.SetDefault("condition_api.data_dir", def.DataDir)
	v.SetDefault("condition_api.definitions_file", "")
	v.SetDefault("database.url", "")
	v.SetDefault("log.level", def.LogLevel)
	v.SetDefault("log.format", def.LogFormat)

	// COND_CONDITION_API_PORT -> condition_api.port
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	// Secrets are environment-only.
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &ConditionAPIConfig{
		Host:             v.GetString("condition_api.host"),
		Port:             v.GetInt("condition_api.port"),
		MaxConnections:   v.GetInt("condition_api.max_connections"),
		RequestTimeout:   v.GetDuration("condition_api.request_timeout"),
		MaxDocumentBytes: v.GetInt("condition_api.max_document_bytes"),
		MetricsPort:      v.GetInt("condition_api.metrics_port"),
		DataDir:          v.GetString("condition_api.data_dir"),
		DefinitionsFile:  v.GetString("condition_api.definitions_file"),
		DatabaseURL:      v.GetString("database.url"),
		LogLevel:         v.GetString("log.level"),
		LogFormat:        v.GetString("log.format"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port ranges and positive limits.
func validateConfig(cfg *ConditionAPIConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("metrics_port must be between 0 and 65535, got %d", cfg.MetricsPort)
	}
	if cfg.MetricsPort != 0 && cfg.MetricsPort == cfg.Port {
		return fmt.Errorf("metrics_port must differ from port %d", cfg.Port)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxDocumentBytes <= 0 {
		return fmt.Errorf("max_document_bytes must be positive, got %d", cfg.MaxDocumentBytes)
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.LogFormat)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("condition_api.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use %s_HMAC_SECRET environment variable)", EnvPrefix)
	}
	return nil
}
