package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/farsilandtv/farsihub/internal/models"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Storage
	DataDir      string // catalog + user-state database files live here
	SeedDir      string // bundled seed catalog databases (optional)
	LegacyDBFile string // pre-split database to transplant user state from (optional)

	// Sync
	DefaultSource    models.SourceID
	SyncInterval     time.Duration // default: 15m
	SyncRecentWindow int           // index entries considered per cycle (default: 50)
	SyncMaxRetries   int           // cycle retry ceiling (default: 5)

	// Scraping
	ScrapeDelay      time.Duration // minimum gap between fetches to one source (default: 500ms)
	MaxResponseBytes int64         // fetch body ceiling (default: 5MiB)
	FetchTimeout     time.Duration // per-request timeout (default: 30s)

	// Cache
	CacheTTL  time.Duration // page cache entry lifetime (default: 30s)
	CacheSize int           // LRU capacity per content type (default: 50)

	// Server
	ServerPort string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Setup viper FIRST to load .env file
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	// Set defaults
	viper.SetDefault("DEFAULT_SOURCE", string(models.SourceFarsiland))
	viper.SetDefault("SYNC_INTERVAL_MINUTES", 15)
	viper.SetDefault("SYNC_RECENT_WINDOW", 50)
	viper.SetDefault("SYNC_MAX_RETRIES", 5)
	viper.SetDefault("SCRAPE_DELAY_MS", 500)
	viper.SetDefault("MAX_RESPONSE_BYTES", 5*1024*1024)
	viper.SetDefault("FETCH_TIMEOUT_SECONDS", 30)
	viper.SetDefault("CACHE_TTL_SECONDS", 30)
	viper.SetDefault("CACHE_SIZE", 50)
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")

	dataDir := viper.GetString("DATA_DIR")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".config", "farsihub")
	} else {
		absPath, err := filepath.Abs(dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for DATA_DIR: %w", err)
		}
		dataDir = absPath
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	config := &Config{
		DataDir:      dataDir,
		SeedDir:      viper.GetString("SEED_DIR"),
		LegacyDBFile: viper.GetString("LEGACY_DB_FILE"),

		DefaultSource:    models.SourceID(viper.GetString("DEFAULT_SOURCE")),
		SyncInterval:     time.Duration(viper.GetInt("SYNC_INTERVAL_MINUTES")) * time.Minute,
		SyncRecentWindow: viper.GetInt("SYNC_RECENT_WINDOW"),
		SyncMaxRetries:   viper.GetInt("SYNC_MAX_RETRIES"),

		ScrapeDelay:      time.Duration(viper.GetInt("SCRAPE_DELAY_MS")) * time.Millisecond,
		MaxResponseBytes: viper.GetInt64("MAX_RESPONSE_BYTES"),
		FetchTimeout:     time.Duration(viper.GetInt("FETCH_TIMEOUT_SECONDS")) * time.Second,

		CacheTTL:  time.Duration(viper.GetInt("CACHE_TTL_SECONDS")) * time.Second,
		CacheSize: viper.GetInt("CACHE_SIZE"),

		ServerPort: viper.GetString("SERVER_PORT"),
		LogLevel:   viper.GetString("LOG_LEVEL"),
	}

	// Validate
	if !config.DefaultSource.Valid() {
		return nil, fmt.Errorf("DEFAULT_SOURCE %q is not a known source", config.DefaultSource)
	}
	if config.SyncRecentWindow <= 0 {
		return nil, fmt.Errorf("SYNC_RECENT_WINDOW must be positive")
	}
	if config.MaxResponseBytes <= 0 {
		return nil, fmt.Errorf("MAX_RESPONSE_BYTES must be positive")
	}

	return config, nil
}

// CatalogDBPath returns the deterministic database file path for a source.
func (c *Config) CatalogDBPath(source models.SourceID) string {
	return filepath.Join(c.DataDir, fmt.Sprintf("%s_content.db", source))
}

// UserStateDBPath returns the single user-state database file path.
func (c *Config) UserStateDBPath() string {
	return filepath.Join(c.DataDir, "user_state.db")
}

// SeedDBPath returns the bundled seed database path for a source, or "" when
// no seed directory is configured.
func (c *Config) SeedDBPath(source models.SourceID) string {
	if c.SeedDir == "" {
		return ""
	}
	return filepath.Join(c.SeedDir, fmt.Sprintf("%s_content.db", source))
}
