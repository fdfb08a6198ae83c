// ./internal/config/config.go

package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds application-wide configuration.
type Config struct {
	Port             string
	ShutdownTimeout  time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	NumShards        int
	SchemaFile       string
	DefaultSortField string
	UseTextIndex     bool
	Debug            bool
	WriteTokenHash   string
}

// NewDefaultConfig creates a Config struct with sensible default values.
func NewDefaultConfig() Config {
	return Config{
		Port:             ":5876",
		ShutdownTimeout:  10 * time.Second,
		ReadTimeout:      15 * time.Second,
		WriteTimeout:     15 * time.Second,
		NumShards:        16,
		SchemaFile:       "schema.json",
		DefaultSortField: "_id",
		UseTextIndex:     false,
		Debug:            false,
		WriteTokenHash:   "",
	}
}

// LoadConfig loads configuration with a clear precedence: Environment > Defaults.
func LoadConfig() Config {
	cfg := NewDefaultConfig()
	slog.Info("Loading configuration...")
	applyEnvConfig(&cfg)
	return cfg
}

// applyEnvConfig overrides config values from environment variables.
func applyEnvConfig(cfg *Config) {
	if portEnv := os.Getenv("GRIDTOOLS_PORT"); portEnv != "" {
		cfg.Port = portEnv
		slog.Info("Overriding Port from environment", "value", portEnv)
	}

	if numShardsEnv := os.Getenv("GRIDTOOLS_NUM_SHARDS"); numShardsEnv != "" {
		if i, err := strconv.Atoi(numShardsEnv); err == nil && i > 0 {
			cfg.NumShards = i
			slog.Info("Overriding NumShards from environment", "value", i)
		} else {
			slog.Warn("Invalid GRIDTOOLS_NUM_SHARDS env var, using default", "value", numShardsEnv)
		}
	}

	if schemaEnv := os.Getenv("GRIDTOOLS_SCHEMA_FILE"); schemaEnv != "" {
		cfg.SchemaFile = schemaEnv
		slog.Info("Overriding SchemaFile from environment", "value", schemaEnv)
	}

	if sortEnv := os.Getenv("GRIDTOOLS_DEFAULT_SORT_FIELD"); sortEnv != "" {
		cfg.DefaultSortField = sortEnv
		slog.Info("Overriding DefaultSortField from environment", "value", sortEnv)
	}

	if textIndexEnv := os.Getenv("GRIDTOOLS_USE_TEXT_INDEX"); textIndexEnv != "" {
		if b, err := strconv.ParseBool(textIndexEnv); err == nil {
			cfg.UseTextIndex = b
			slog.Info("Overriding UseTextIndex from environment", "value", b)
		} else {
			slog.Warn("Invalid GRIDTOOLS_USE_TEXT_INDEX env var, using default", "value", textIndexEnv)
		}
	}

	if debugEnv := os.Getenv("GRIDTOOLS_DEBUG"); debugEnv != "" {
		if b, err := strconv.ParseBool(debugEnv); err == nil {
			cfg.Debug = b
			slog.Info("Overriding Debug from environment", "value", b)
		} else {
			slog.Warn("Invalid GRIDTOOLS_DEBUG env var, using default", "value", debugEnv)
		}
	}

	if tokenHashEnv := os.Getenv("GRIDTOOLS_WRITE_TOKEN_HASH"); tokenHashEnv != "" {
		cfg.WriteTokenHash = tokenHashEnv
	}

	overrideDuration("GRIDTOOLS_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	overrideDuration("GRIDTOOLS_READ_TIMEOUT", &cfg.ReadTimeout)
	overrideDuration("GRIDTOOLS_WRITE_TIMEOUT", &cfg.WriteTimeout)
}

func overrideDuration(envKey string, target *time.Duration) {
	envVal := os.Getenv(envKey)
	if envVal != "" {
		if d, err := time.ParseDuration(envVal); err == nil {
			*target = d
			slog.Info("Overriding duration from environment", "key", envKey, "value", envVal)
		} else {
			slog.Warn("Invalid duration format in env var, using default", "key", envKey, "value", envVal)
		}
	}
}
