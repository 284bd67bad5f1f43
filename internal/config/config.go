// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const envPrefix = "BREED_CLASSIFIER"

// Config holds all configuration for the service
type Config struct {
	// Server configuration
	Port        int `mapstructure:"port"`
	GRPCPort    int `mapstructure:"grpc_port"`
	MetricsPort int `mapstructure:"metrics_port"`

	// Model configuration
	Model       string `mapstructure:"model"`
	ONNXLibrary string `mapstructure:"onnx_library"`

	// Result cache; an empty address disables it
	Redis    string        `mapstructure:"redis"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`

	// OpenTelemetry configuration
	OTELEnabled  bool   `mapstructure:"otel_enabled"`
	OTELEndpoint string `mapstructure:"otel_endpoint"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Feature flags
	UseMock bool `mapstructure:"use_mock"`
}

// Overrides carries command-line flag values. Zero values leave the loaded
// configuration untouched.
type Overrides struct {
	Port        int
	GRPCPort    int
	MetricsPort int
	Model       string
	Redis       string
	UseMock     bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8000)
	v.SetDefault("grpc_port", 50051)
	v.SetDefault("metrics_port", 9100)
	v.SetDefault("model", "models/onnx_model.onnx")
	v.SetDefault("onnx_library", "")
	v.SetDefault("redis", "")
	v.SetDefault("cache_ttl", time.Hour)
	v.SetDefault("max_upload_bytes", 10<<20)
	v.SetDefault("otel_enabled", false)
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("use_mock", false)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	// Environment variable configuration
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Also read OTEL standard env var
	v.BindEnv("otel_endpoint", envPrefix+"_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	return v
}

// Load loads configuration from flags, environment variables, and optional config file.
// Priority (highest to lowest): flags > env vars > config file > defaults.
// An empty configFile searches the default locations and tolerates absence.
func Load(configFile string, flags Overrides) (*Config, error) {
	v := newViper()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/breed-classifier/")
		v.AddConfigPath("$HOME/.breed-classifier")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				// Config file was found but another error occurred
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	applyOverrides(v, flags)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Setting an OTLP endpoint turns tracing on.
	if cfg.OTELEndpoint != "" {
		cfg.OTELEnabled = true
	}

	return &cfg, nil
}

func applyOverrides(v *viper.Viper, flags Overrides) {
	if flags.Port > 0 {
		v.Set("port", flags.Port)
	}
	if flags.GRPCPort > 0 {
		v.Set("grpc_port", flags.GRPCPort)
	}
	if flags.MetricsPort > 0 {
		v.Set("metrics_port", flags.MetricsPort)
	}
	if flags.Model != "" {
		v.Set("model", flags.Model)
	}
	if flags.Redis != "" {
		v.Set("redis", flags.Redis)
	}
	if flags.UseMock {
		v.Set("use_mock", true)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	ports := map[string]int{"port": c.Port, "grpc_port": c.GRPCPort, "metrics_port": c.MetricsPort}
	seen := make(map[int]string, len(ports))
	for _, name := range []string{"port", "grpc_port", "metrics_port"} {
		p := ports[name]
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid %s: %d", name, p)
		}
		if other, ok := seen[p]; ok {
			return fmt.Errorf("%s and %s must be different", other, name)
		}
		seen[p] = name
	}
	if c.Model == "" && !c.UseMock {
		return fmt.Errorf("model path is required when not using mock inference")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid max_upload_bytes: %d", c.MaxUploadBytes)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("invalid cache_ttl: %s", c.CacheTTL)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}
