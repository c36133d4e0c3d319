package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from an optional file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	return Load(configPath, nil)
}

// Load is LoadConfig with command flags bound over the file and
// environment. Flags are bound under their viper key (for example the
// --port flag of `logview web` binds "web.port").
func Load(configPath string, flags map[string]*pflag.Flag) (*Config, error) {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("web.host", d.Web.Host)
	v.SetDefault("web.port", d.Web.Port)
	v.SetDefault("web.grpc_port", d.Web.GRPCPort)
	v.SetDefault("web.log_file", d.Web.LogFile)
	v.SetDefault("web.max_records", d.Web.MaxRecords)
	v.SetDefault("web.request_timeout", d.Web.RequestTimeout.String())
	v.SetDefault("web.max_body_bytes", d.Web.MaxBodyBytes)
	v.SetDefault("web.query_rate", d.Web.QueryRate)
	v.SetDefault("web.query_burst", d.Web.QueryBurst)
	v.SetDefault("web.require_auth", d.Web.RequireAuth)
	v.SetDefault("output.palette", d.Output.Palette)

	// Bind environment variables with LV_ prefix
	v.SetEnvPrefix("LV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only.
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	cfg := &Config{
		Web: WebConfig{
			Host:           v.GetString("web.host"),
			Port:           v.GetInt("web.port"),
			GRPCPort:       v.GetInt("web.grpc_port"),
			LogFile:        v.GetString("web.log_file"),
			MaxRecords:     v.GetInt("web.max_records"),
			RequestTimeout: v.GetDuration("web.request_timeout"),
			MaxBodyBytes:   v.GetInt64("web.max_body_bytes"),
			QueryRate:      v.GetFloat64("web.query_rate"),
			QueryBurst:     v.GetInt("web.query_burst"),
			RequireAuth:    v.GetBool("web.require_auth"),
		},
		Output: OutputConfig{
			Palette: v.GetStringSlice("output.palette"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port ranges and positive limits.
func validateConfig(cfg *Config) error {
	w := cfg.Web
	if w.Port <= 0 || w.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", w.Port)
	}
	if w.GRPCPort < 0 || w.GRPCPort > 65535 {
		return fmt.Errorf("grpc_port must be between 0 and 65535, got %d", w.GRPCPort)
	}
	if w.GRPCPort != 0 && w.GRPCPort == w.Port {
		return fmt.Errorf("grpc_port must differ from port %d", w.Port)
	}
	if w.MaxRecords <= 0 {
		return fmt.Errorf("max_records must be positive, got %d", w.MaxRecords)
	}
	if w.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", w.RequestTimeout)
	}
	if w.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", w.MaxBodyBytes)
	}
	if w.QueryRate < 0 {
		return fmt.Errorf("query_rate must not be negative, got %v", w.QueryRate)
	}
	if w.QueryRate > 0 && w.QueryBurst <= 0 {
		return fmt.Errorf("query_burst must be positive when query_rate is set, got %d", w.QueryBurst)
	}
	if len(cfg.Output.Palette) == 0 {
		return fmt.Errorf("output.palette must not be empty")
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
// Only the file is inspected: IsSet would also see LV_HMAC_SECRET through
// AutomaticEnv.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("web.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use LV_HMAC_SECRET environment variable)")
	}
	return nil
}
