// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	PrivateKey  string   `mapstructure:"privatekey"`

	// File paths
	DatabasePath string `mapstructure:"storagepath"`
	DatabaseName string `mapstructure:"-"` // Derived from other settings
	GeoDBPath    string `mapstructure:"geodbpath"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns"`

	// Redis settings (dedup slots, rate limiting, session state, live windows)
	RedisAddr     string `mapstructure:"redisaddr"`
	RedisPassword string `mapstructure:"redispassword"`
	RedisDB       int    `mapstructure:"redisdb"`

	// Ingestion settings
	RateLimitPerMinute int `mapstructure:"ratelimitperminute"`
	RecentEventsLimit  int `mapstructure:"recenteventslimit"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`

	// Data retention settings
	EventRetentionDays int `mapstructure:"eventretentiondays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		// Set defaults
		v.SetDefault("appname", "pagesense")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", "88888888888888888888888888888888")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-Country.mmdb")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("redisaddr", "localhost:6379")
		v.SetDefault("redispassword", "")
		v.SetDefault("redisdb", 0)
		v.SetDefault("ratelimitperminute", 600)
		v.SetDefault("recenteventslimit", 20)
		v.SetDefault("jobintervalseconds", 60)
		v.SetDefault("eventretentiondays", 90)

		// Bind environment variables
		v.BindEnv("appname", "PAGESENSE_APP_NAME")
		v.BindEnv("appport", "PAGESENSE_APP_PORT")
		v.BindEnv("environment", "PAGESENSE_ENV")
		v.BindEnv("loglevel", "PAGESENSE_LOG_LEVEL")
		v.BindEnv("privatekey", "PAGESENSE_PRIVATE_KEY")
		v.BindEnv("storagepath", "PAGESENSE_STORAGE_PATH")
		v.BindEnv("geodbpath", "PAGESENSE_GEO_DB_PATH")
		v.BindEnv("logsdir", "PAGESENSE_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "PAGESENSE_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "PAGESENSE_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "PAGESENSE_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbmaxopenconns", "PAGESENSE_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "PAGESENSE_DB_MAX_IDLE_CONNS")
		v.BindEnv("redisaddr", "PAGESENSE_REDIS_ADDR")
		v.BindEnv("redispassword", "PAGESENSE_REDIS_PASSWORD")
		v.BindEnv("redisdb", "PAGESENSE_REDIS_DB")
		v.BindEnv("ratelimitperminute", "PAGESENSE_RATE_LIMIT_PER_MINUTE")
		v.BindEnv("recenteventslimit", "PAGESENSE_RECENT_EVENTS_LIMIT")
		v.BindEnv("jobintervalseconds", "PAGESENSE_JOB_INTERVAL_SECONDS")
		v.BindEnv("eventretentiondays", "PAGESENSE_EVENT_RETENTION_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		// Set derived values
		cfg.DatabaseName = cfg.GetDatabasePath()

		// Validate private key - in production, must be explicitly set (not empty, not default)
		defaultKey := "88888888888888888888888888888888"
		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultKey {
			log.Fatal("Production requires a unique PAGESENSE_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("invalid rate limit: %d", c.RateLimitPerMinute)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1 // Required for test stability
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
