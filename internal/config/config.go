package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

const (
	defaultListen         = "127.0.0.1:8080"
	defaultTimezone       = "America/New_York"
	defaultDriver         = "sqlite"
	defaultDSN            = "riftcal.db"
	defaultPublishCron    = "0 * * * *"
	defaultPublishDir     = "./var/feeds"
	defaultClosureCache   = "./var/closure-cache"
	defaultUpcomingLimit  = 5
	defaultMaxOccurrences = 20000
	defaultRatePerMinute  = 120
	defaultRateBurst      = 60
	defaultLogLevel       = "info"
)

// ClosureConfig describes an ICS calendar of program-wide closures
// (school holidays, weather days). Every day it covers is treated as a
// cancelled date for all sessions.
type ClosureConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for caching and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// DatabaseConfig selects the session store backend.
type DatabaseConfig struct {
	// Driver is "sqlite" or "pgx".
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// PublishConfig controls the periodic ICS feed writer.
type PublishConfig struct {
	// Cron is a standard 5-field cron expression evaluated in Timezone.
	// An empty string disables periodic publishing.
	Cron string `yaml:"cron" json:"cron"`
	Dir  string `yaml:"dir" json:"dir"`
	// CalendarName is the X-WR-CALNAME of the combined feed.
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`
}

// RateLimitConfig limits API requests per client address.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute" json:"per_minute"`
	Burst     int `yaml:"burst" json:"burst"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone occurrences are displayed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Database DatabaseConfig `yaml:"database" json:"database"`

	// UpcomingLimit is the default number of upcoming practices returned.
	UpcomingLimit int `yaml:"upcoming_limit" json:"upcoming_limit"`

	// MaxOccurrences caps a single session's expansion. A negative value
	// disables the cap.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`

	Publish PublishConfig `yaml:"publish" json:"publish"`

	// Closures lists closure calendars merged into every session's
	// cancelled dates.
	Closures        []ClosureConfig `yaml:"closures" json:"closures"`
	ClosureCacheDir string          `yaml:"closure_cache_dir" json:"closure_cache_dir"`

	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   defaultListen,
		Timezone: defaultTimezone,
		LogLevel: defaultLogLevel,
		Database: DatabaseConfig{
			Driver: defaultDriver,
			DSN:    defaultDSN,
		},
		UpcomingLimit:  defaultUpcomingLimit,
		MaxOccurrences: defaultMaxOccurrences,
		Publish: PublishConfig{
			Cron:         defaultPublishCron,
			Dir:          defaultPublishDir,
			CalendarName: "DisciplineRift Practices",
		},
		Closures:        []ClosureConfig{},
		ClosureCacheDir: defaultClosureCache,
		RateLimit: RateLimitConfig{
			PerMinute: defaultRatePerMinute,
			Burst:     defaultRateBurst,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	switch c.Database.Driver {
	case "sqlite", "pgx":
		// ok
	case "postgres":
		c.Database.Driver = "pgx"
	default:
		c.Database.Driver = defaultDriver
	}
	if c.Database.DSN == "" && c.Database.Driver == defaultDriver {
		c.Database.DSN = defaultDSN
	}
	if c.UpcomingLimit <= 0 {
		c.UpcomingLimit = defaultUpcomingLimit
	}
	if c.MaxOccurrences == 0 {
		c.MaxOccurrences = defaultMaxOccurrences
	}
	if c.Publish.Dir == "" {
		c.Publish.Dir = defaultPublishDir
	}
	if c.Publish.CalendarName == "" {
		c.Publish.CalendarName = "DisciplineRift Practices"
	}
	if c.Closures == nil {
		c.Closures = []ClosureConfig{}
	}
	if c.ClosureCacheDir == "" {
		c.ClosureCacheDir = defaultClosureCache
	}
	if c.RateLimit.PerMinute <= 0 {
		c.RateLimit.PerMinute = defaultRatePerMinute
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaultRateBurst
	}
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	if c.Publish.Cron != "" {
		if _, err := cron.ParseStandard(c.Publish.Cron); err != nil {
			return fmt.Errorf("publish.cron %q: %w", c.Publish.Cron, err)
		}
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required for driver " + c.Database.Driver)
	}
	for i, cl := range c.Closures {
		if cl.URL == "" {
			return fmt.Errorf("closures[%d]: url is empty", i)
		}
	}
	return nil
}

// Location returns the configured display timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o600)
}

// WriteFileAtomic writes data to a temp file in path's directory and
// renames it over path, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".riftcal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
