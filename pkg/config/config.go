// Package config defines the regressoor configuration and its loader.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultSQLitePath is the default history database location.
	DefaultSQLitePath = "./regressoor.db"

	// DefaultThreshold is the default regression threshold ratio
	// (1.05 = a 5% change in the worse direction).
	DefaultThreshold = 1.05

	// DefaultWindow is the default rolling-baseline window width.
	DefaultWindow = 1

	// DefaultAggregation compares against the immediately preceding
	// value.
	DefaultAggregation = "last"

	// DefaultDirection treats lower values as better, appropriate for
	// latency/time metrics.
	DefaultDirection = "lower_is_better"

	// DefaultListen is the default API listen address.
	DefaultListen = ":8080"
)

// Config is the root configuration for regressoor.
type Config struct {
	Global   GlobalConfig    `yaml:"global" mapstructure:"global"`
	History  HistoryConfig   `yaml:"history" mapstructure:"history"`
	Analysis AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	API      *APIConfig      `yaml:"api,omitempty" mapstructure:"api"`
	Snapshot *SnapshotConfig `yaml:"snapshot,omitempty" mapstructure:"snapshot"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level" mapstructure:"log_level"`
	SourceRef string `yaml:"source_ref,omitempty" mapstructure:"source_ref"`
}

// HistoryConfig contains history store settings.
type HistoryConfig struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// AnalysisConfig contains regression analysis settings. Threshold is
// a ratio: 1.05 means a 5% change in the worse direction counts as a
// regression. Directions maps canonical benchmark names to a
// per-benchmark direction override.
type AnalysisConfig struct {
	Threshold        float64           `yaml:"threshold" mapstructure:"threshold"`
	Window           int               `yaml:"window" mapstructure:"window"`
	Aggregation      string            `yaml:"aggregation" mapstructure:"aggregation"`
	DefaultDirection string            `yaml:"default_direction" mapstructure:"default_direction"`
	Directions       map[string]string `yaml:"directions,omitempty" mapstructure:"directions"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
	Auth        BasicAuthConfig `yaml:"auth,omitempty" mapstructure:"auth"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// BasicAuthConfig configures username/password authentication for
// mutating API endpoints.
type BasicAuthConfig struct {
	Enabled bool            `yaml:"enabled" mapstructure:"enabled"`
	Users   []BasicAuthUser `yaml:"users,omitempty" mapstructure:"users"`
}

// BasicAuthUser defines a basic auth user. PasswordHash is a bcrypt
// hash of the password.
type BasicAuthUser struct {
	Username     string `yaml:"username" mapstructure:"username"`
	PasswordHash string `yaml:"password_hash" mapstructure:"password_hash"`
}

// SnapshotConfig configures history document exports.
type SnapshotConfig struct {
	Local *LocalSnapshotConfig `yaml:"local,omitempty" mapstructure:"local"`
	S3    *S3SnapshotConfig    `yaml:"s3,omitempty" mapstructure:"s3"`
}

// LocalSnapshotConfig writes exported documents to the local
// filesystem.
type LocalSnapshotConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// S3SnapshotConfig uploads exported documents to S3-compatible
// storage.
type S3SnapshotConfig struct {
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
}

// Load reads one or more configuration files, merges them in order,
// applies REGRESSOOR_* environment overrides and fills in defaults.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("REGRESSOOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for i, path := range paths {
		v.SetConfigFile(path)

		var err error
		if i == 0 {
			err = v.ReadInConfig()
		} else {
			err = v.MergeInConfig()
		}

		if err != nil {
			return nil, fmt.Errorf("reading config file %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for unspecified configuration
// options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.History.Database.Driver == "" {
		c.History.Database.Driver = "sqlite"
	}

	if c.History.Database.Driver == "sqlite" &&
		c.History.Database.SQLite.Path == "" {
		c.History.Database.SQLite.Path = DefaultSQLitePath
	}

	if c.Analysis.Threshold == 0 {
		c.Analysis.Threshold = DefaultThreshold
	}

	if c.Analysis.Window == 0 {
		c.Analysis.Window = DefaultWindow
	}

	if c.Analysis.Aggregation == "" {
		c.Analysis.Aggregation = DefaultAggregation
	}

	if c.Analysis.DefaultDirection == "" {
		c.Analysis.DefaultDirection = DefaultDirection
	}

	if c.API != nil && c.API.Listen == "" {
		c.API.Listen = DefaultListen
	}
}

// validDirections is the set of accepted benchmark directions.
var validDirections = map[string]struct{}{
	"lower_is_better":  {},
	"higher_is_better": {},
}

// validAggregations is the set of accepted baseline aggregations.
var validAggregations = map[string]struct{}{
	"last": {},
	"mean": {},
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.History.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf(
			"unsupported database driver %q", c.History.Database.Driver,
		)
	}

	if c.Analysis.Threshold <= 1.0 {
		return fmt.Errorf(
			"analysis threshold must be greater than 1.0, got %v",
			c.Analysis.Threshold,
		)
	}

	if c.Analysis.Window < 1 {
		return fmt.Errorf(
			"analysis window must be at least 1, got %d", c.Analysis.Window,
		)
	}

	if _, ok := validAggregations[c.Analysis.Aggregation]; !ok {
		return fmt.Errorf(
			"unknown aggregation %q", c.Analysis.Aggregation,
		)
	}

	if _, ok := validDirections[c.Analysis.DefaultDirection]; !ok {
		return fmt.Errorf(
			"unknown direction %q", c.Analysis.DefaultDirection,
		)
	}

	for name, dir := range c.Analysis.Directions {
		if _, ok := validDirections[dir]; !ok {
			return fmt.Errorf(
				"unknown direction %q for benchmark %q", dir, name,
			)
		}
	}

	if c.API != nil && c.API.Auth.Enabled {
		seen := make(map[string]struct{}, len(c.API.Auth.Users))

		for i, user := range c.API.Auth.Users {
			if user.Username == "" {
				return fmt.Errorf("auth user %d: username is required", i)
			}

			if user.PasswordHash == "" {
				return fmt.Errorf(
					"auth user %q: password_hash is required", user.Username,
				)
			}

			if _, exists := seen[user.Username]; exists {
				return fmt.Errorf(
					"auth user %d: duplicate username %q", i, user.Username,
				)
			}

			seen[user.Username] = struct{}{}
		}
	}

	if c.Snapshot != nil && c.Snapshot.S3 != nil &&
		c.Snapshot.S3.Bucket == "" {
		return fmt.Errorf("snapshot s3 bucket is required")
	}

	return nil
}
