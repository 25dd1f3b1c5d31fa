package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bracketlab/internal/errors"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Data     DataConfig
	Split    SplitConfig
	Model    ModelConfig
	Database DatabaseConfig
	Server   ServerConfig
	LogLevel string
}

// DataConfig holds input file settings
type DataConfig struct {
	File         string
	Sheet        string
	FeaturesFile string
	// JSONPath locates the game records in JSON input; CursorPath locates the
	// next page cursor of an http feed
	JSONPath   string
	CursorPath string
	Token      string
}

// SplitConfig controls the chronological train/test split
type SplitConfig struct {
	TrainFraction float64
	CutoffDate    time.Time
	MinGames      int
}

// ModelConfig controls selection and evaluation
type ModelConfig struct {
	Criterion     string
	IntervalLevel float64
	ThresholdStep float64
	// Bootstrap is the number of paired bootstrap resamples of the test games;
	// 0 disables comparison intervals
	Bootstrap int
	// Stability is the number of training subsamples for selection stability;
	// 0 disables it
	Stability int
	Seed      int64
}

// DatabaseConfig holds the run store connection string. Empty disables persistence.
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds report browser settings
type ServerConfig struct {
	Port string
}

const (
	CriterionAIC = "aic"
	CriterionBIC = "bic"
)

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Split: SplitConfig{
			TrainFraction: 0.8,
			MinGames:      20,
		},
		Model: ModelConfig{
			Criterion:     CriterionAIC,
			IntervalLevel: 0.95,
			ThresholdStep: 0.01,
			Seed:          1,
		},
		Server:   ServerConfig{Port: "8080"},
		LogLevel: "INFO",
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none) into the
// process environment. Missing files are not an error; existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("load %s: %w", p, err))
		}
	}
	return nil
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	def := Default()
	config := &Config{
		Data: DataConfig{
			File:         getEnvOrDefault("DATA_FILE", ""),
			Sheet:        getEnvOrDefault("DATA_SHEET", ""),
			FeaturesFile: getEnvOrDefault("FEATURES_FILE", ""),
			JSONPath:     getEnvOrDefault("DATA_JSON_PATH", ""),
			CursorPath:   getEnvOrDefault("DATA_CURSOR_PATH", ""),
			Token:        getEnvOrDefault("DATA_TOKEN", ""),
		},
		Split: SplitConfig{
			TrainFraction: getEnvFloatOrDefault("TRAIN_FRACTION", def.Split.TrainFraction),
			MinGames:      getEnvIntOrDefault("MIN_GAMES", def.Split.MinGames),
		},
		Model: ModelConfig{
			Criterion:     strings.ToLower(getEnvOrDefault("SELECTION_CRITERION", def.Model.Criterion)),
			IntervalLevel: getEnvFloatOrDefault("INTERVAL_LEVEL", def.Model.IntervalLevel),
			ThresholdStep: getEnvFloatOrDefault("THRESHOLD_STEP", def.Model.ThresholdStep),
			Bootstrap:     getEnvIntOrDefault("BOOTSTRAP_RESAMPLES", def.Model.Bootstrap),
			Stability:     getEnvIntOrDefault("STABILITY_SUBSAMPLES", def.Model.Stability),
			Seed:          int64(getEnvIntOrDefault("SEED", int(def.Model.Seed))),
		},
		Database: DatabaseConfig{URL: getEnvOrDefault("DATABASE_URL", "")},
		Server:   ServerConfig{Port: getEnvOrDefault("PORT", def.Server.Port)},
		LogLevel: getEnvOrDefault("LOG_LEVEL", def.LogLevel),
	}

	if raw := os.Getenv("CUTOFF_DATE"); raw != "" {
		cutoff, err := ParseDate(raw)
		if err != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("CUTOFF_DATE %q is not a date: %w", raw, err))
		}
		config.Split.CutoffDate = cutoff
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// Validate checks ranges of the numeric settings
func (c *Config) Validate() error {
	if c.Split.CutoffDate.IsZero() && (c.Split.TrainFraction <= 0 || c.Split.TrainFraction >= 1) {
		return errors.ConfigInvalid("train fraction must be between 0 and 1")
	}
	if c.Split.MinGames < 4 {
		return errors.ConfigInvalid("min games must be at least 4")
	}
	if c.Model.Criterion != CriterionAIC && c.Model.Criterion != CriterionBIC {
		return errors.ConfigInvalid("selection criterion must be aic or bic")
	}
	if c.Model.IntervalLevel <= 0 || c.Model.IntervalLevel >= 1 {
		return errors.ConfigInvalid("interval level must be between 0 and 1")
	}
	if c.Model.ThresholdStep <= 0 || c.Model.ThresholdStep > 0.5 {
		return errors.ConfigInvalid("threshold step must be in (0, 0.5]")
	}
	if c.Model.Bootstrap < 0 {
		return errors.ConfigInvalid("bootstrap resamples cannot be negative")
	}
	if c.Model.Stability < 0 {
		return errors.ConfigInvalid("stability subsamples cannot be negative")
	}
	return nil
}

// dateLayouts are tried in order by ParseDate
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"20060102",
}

// ParseDate accepts the date layouts found in game exports
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
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
