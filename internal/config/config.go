// ABOUTME: Centralized configuration for the beadloom pipeline
// ABOUTME: Loads from environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SkipPolicy decides what happens to sections downstream of a skipped one
type SkipPolicy string

const (
	// SkipWarn lets dependents proceed with a warning on their run state
	SkipWarn SkipPolicy = "warn"
	// SkipCascade propagates skipped to all transitive dependents
	SkipCascade SkipPolicy = "cascade"
)

// DefaultSourcePriority ranks source origins for conflict resolution,
// highest priority first.
var DefaultSourcePriority = []string{
	"sec_filing", "transcript", "market_data", "fundamental", "news", "third_party",
}

// Config holds all configuration for a beadloom run
type Config struct {
	// Storage
	DBPath string

	// OpenAI capability settings
	OpenAIKey  string
	ChatModel  string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// Scheduler settings
	Workers    int
	SkipPolicy SkipPolicy

	// Pipeline settings
	MaxIterations   int     // optimization passes per unit
	LengthTolerance float64 // fraction of target_length allowed either way
	PartialData     bool    // let critical sections run below min_beads
	MinConfidence   float64 // gather floor for bead confidence
	MinQuality      float64 // gather floor for bead quality

	// Conflict detection
	VarianceThreshold float64  // relative spread that triggers a conflict
	SourcePriority    []string // highest priority first
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:            getEnv("LOOM_DB", ""),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		ChatModel:         getEnv("LOOM_OPENAI_MODEL", "gpt-4o-mini"),
		Timeout:           getEnvDuration("LOOM_CAPABILITY_TIMEOUT", 60*time.Second),
		MaxRetries:        getEnvInt("LOOM_MAX_RETRIES", 3),
		RetryDelay:        getEnvDuration("LOOM_RETRY_DELAY", 2*time.Second),
		Workers:           getEnvInt("LOOM_WORKERS", 2),
		SkipPolicy:        SkipPolicy(getEnv("LOOM_SKIP_POLICY", string(SkipWarn))),
		MaxIterations:     getEnvInt("LOOM_MAX_ITERATIONS", 1),
		LengthTolerance:   getEnvFloat("LOOM_LENGTH_TOLERANCE", 0.10),
		PartialData:       getEnvBool("LOOM_PARTIAL_DATA", false),
		MinConfidence:     getEnvFloat("LOOM_MIN_CONFIDENCE", 0.0),
		MinQuality:        getEnvFloat("LOOM_MIN_QUALITY", 0.0),
		VarianceThreshold: getEnvFloat("LOOM_VARIANCE_THRESHOLD", 0.20),
		SourcePriority:    getEnvList("LOOM_SOURCE_PRIORITY", DefaultSourcePriority),
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("LOOM_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.Workers < 1 || c.Workers > 64 {
		return fmt.Errorf("LOOM_WORKERS must be 1-64, got %d", c.Workers)
	}
	if c.SkipPolicy != SkipWarn && c.SkipPolicy != SkipCascade {
		return fmt.Errorf("LOOM_SKIP_POLICY must be warn or cascade, got %q", c.SkipPolicy)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("LOOM_MAX_ITERATIONS must be >= 1, got %d", c.MaxIterations)
	}
	if c.LengthTolerance < 0 || c.LengthTolerance > 1 {
		return fmt.Errorf("LOOM_LENGTH_TOLERANCE must be 0-1, got %f", c.LengthTolerance)
	}
	if c.VarianceThreshold <= 0 {
		return fmt.Errorf("LOOM_VARIANCE_THRESHOLD must be positive, got %f", c.VarianceThreshold)
	}
	for _, bound := range []struct {
		name string
		v    float64
	}{{"LOOM_MIN_CONFIDENCE", c.MinConfidence}, {"LOOM_MIN_QUALITY", c.MinQuality}} {
		if bound.v < 0 || bound.v > 1 {
			return fmt.Errorf("%s must be 0-1, got %f", bound.name, bound.v)
		}
	}
	if len(c.SourcePriority) == 0 {
		return fmt.Errorf("LOOM_SOURCE_PRIORITY must name at least one origin")
	}
	return nil
}

// SourceRank returns the priority rank for a source origin; lower ranks win.
// Unknown origins rank after every configured one.
func (c *Config) SourceRank(origin string) int {
	for i, o := range c.SourcePriority {
		if o == origin {
			return i
		}
	}
	return len(c.SourcePriority)
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
