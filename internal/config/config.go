package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"metaboqc/internal/errors"
)

// Config represents the complete process configuration
type Config struct {
	Log       LogConfig       `validate:"required"`
	QC        QCConfig        `validate:"required"`
	Server    ServerConfig    `validate:"required"`
	Catalogue CatalogueConfig
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `validate:"oneof=ERROR WARN WARNING INFO DEBUG TRACE"`
}

// QCConfig holds the QC pipeline settings that come from the environment;
// thresholds themselves live in the SOP file named here.
type QCConfig struct {
	SOP       string `validate:"required"`
	OutputDir string `validate:"required"`
	Workers   int    `validate:"gte=1,lte=256"`
}

// ServerConfig holds report server settings
type ServerConfig struct {
	Port         string        `validate:"required,numeric"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
}

// CatalogueConfig holds the compound catalogue connection
type CatalogueConfig struct {
	DSN         string
	PPMTol      float64 `validate:"gt=0"`
	RTTolerance float64 `validate:"gt=0"`
}

// Enabled reports whether a catalogue DSN is configured.
func (c CatalogueConfig) Enabled() bool {
	return c.DSN != ""
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "INFO"),
		},
		QC: QCConfig{
			SOP:       getEnvOrDefault("QC_SOP", "GenericMS"),
			OutputDir: getEnvOrDefault("QC_OUTPUT_DIR", "./reports"),
			Workers:   getEnvIntOrDefault("QC_WORKERS", 1),
		},
		Server: ServerConfig{
			Port:         getEnvOrDefault("PORT", "8080"),
			ReadTimeout:  getEnvDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
		},
		Catalogue: CatalogueConfig{
			DSN:         getEnvOrDefault("QC_CATALOGUE_DSN", ""),
			PPMTol:      getEnvFloatOrDefault("QC_CATALOGUE_PPM", 10),
			RTTolerance: getEnvFloatOrDefault("QC_CATALOGUE_RT_TOL", 0.1),
		},
	}

	if err := Validate(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// Validate checks struct tags on the configuration.
func Validate(config *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
