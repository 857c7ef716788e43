package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	applog "moneymanager/internal/log"
)

// MemoryStorePath keeps the local store in process memory.
const MemoryStorePath = ":memory:"

type Config struct {
	// Remote store
	APIURL         string
	RequestTimeout time.Duration

	// Local store
	LocalStorePath     string
	SeedCategoriesFile string
	LocalTokenSecret   string
	LocalTokenTTL      time.Duration

	// Category cache
	CategoryCacheTTL  time.Duration
	CategoryCacheSize int

	DashboardRecentLimit int

	// AMQP; an empty URL disables ledger events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	JournalLimit int

	LogLevel string
}

func Load() *Config {
	return &Config{
		APIURL:         getEnv("MONEYMANAGER_API_URL", "http://localhost:8080/api"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),

		LocalStorePath:     getEnv("LOCAL_STORE_PATH", "./data/moneymanager.db"),
		SeedCategoriesFile: getEnv("SEED_CATEGORIES_FILE", ""),
		LocalTokenSecret:   getEnv("LOCAL_TOKEN_SECRET", "moneymanager-local-dev-secret"),
		LocalTokenTTL:      getEnvDuration("LOCAL_TOKEN_TTL", 30*24*time.Hour),

		CategoryCacheTTL:  getEnvDuration("CATEGORY_CACHE_TTL", 5*time.Minute),
		CategoryCacheSize: getEnvInt("CATEGORY_CACHE_SIZE", 64),

		DashboardRecentLimit: getEnvInt("DASHBOARD_RECENT_LIMIT", 10),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "moneymanager"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		JournalLimit: getEnvInt("JOURNAL_LIMIT", 200),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// EventsEnabled reports whether ledger events should be published.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if parsedURL, err := url.Parse(c.APIURL); err != nil || c.APIURL == "" {
		errors = append(errors, fmt.Sprintf("invalid API URL '%s': must be an absolute http(s) URL", c.APIURL))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	} else if parsedURL.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid API URL '%s': missing host", c.APIURL))
	}

	if c.RequestTimeout < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be at least 100ms", c.RequestTimeout))
	} else if c.RequestTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be at most 5 minutes", c.RequestTimeout))
	}

	if c.LocalStorePath == "" {
		errors = append(errors, "local store path cannot be empty")
	} else if c.LocalStorePath != MemoryStorePath {
		dir := filepath.Dir(c.LocalStorePath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create local store directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.SeedCategoriesFile != "" {
		if _, err := os.Stat(c.SeedCategoriesFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("seed categories file does not exist: %s", c.SeedCategoriesFile))
		}
	}

	if len(c.LocalTokenSecret) < 16 {
		errors = append(errors, "local token secret must be at least 16 characters")
	}
	if c.LocalTokenTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid local token TTL %v: must be at least 1 minute", c.LocalTokenTTL))
	}

	if c.CategoryCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid category cache TTL %v: must be at least 1 second", c.CategoryCacheTTL))
	} else if c.CategoryCacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid category cache TTL %v: must be at most 24 hours", c.CategoryCacheTTL))
	}
	if c.CategoryCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid category cache size %d: must be at least 1", c.CategoryCacheSize))
	} else if c.CategoryCacheSize > 10000 {
		errors = append(errors, fmt.Sprintf("invalid category cache size %d: must be at most 10000", c.CategoryCacheSize))
	}

	if c.DashboardRecentLimit < 1 || c.DashboardRecentLimit > 100 {
		errors = append(errors, fmt.Sprintf("invalid dashboard recent limit %d: must be between 1 and 100", c.DashboardRecentLimit))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.JournalLimit < 1 || c.JournalLimit > 10000 {
		errors = append(errors, fmt.Sprintf("invalid journal limit %d: must be between 1 and 10000", c.JournalLimit))
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
