package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Load loads the configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".ptseed"))
		}

		// Check /etc
		v.AddConfigPath("/etc/ptseed/")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Registry database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.name", "ptseed.db")
	v.SetDefault("database.pool_size", 5)
	v.SetDefault("database.max_overflow", 10)
	v.SetDefault("database.echo", false)

	// Site defaults
	v.SetDefault("site.url", "https://example.com")
	v.SetDefault("site.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("site.login_retry", 3)
	v.SetDefault("site.timeout", 30*time.Second)
	v.SetDefault("site.auto_login", true)

	// Downloader defaults
	v.SetDefault("downloader.type", "qbittorrent")
	v.SetDefault("downloader.host", "127.0.0.1")
	v.SetDefault("downloader.port", 8080)
	v.SetDefault("downloader.username", "admin")
	v.SetDefault("downloader.download_dir", "downloads")
	v.SetDefault("downloader.https", false)
	v.SetDefault("downloader.timeout", 30*time.Second)
	v.SetDefault("downloader.auto_start", true)
	v.SetDefault("downloader.category", "pt-auto")

	// Torrent creation defaults
	v.SetDefault("make_torrent.tracker", "https://example.com/announce")
	v.SetDefault("make_torrent.private", true)
	v.SetDefault("make_torrent.piece_size", 0) // 0 = pick by content size
	v.SetDefault("make_torrent.tool", "builtin")
	v.SetDefault("make_torrent.include_md5", false)

	// Seeding defaults
	v.SetDefault("seeding.min_ratio", 1.0)
	v.SetDefault("seeding.min_time", 259200*time.Second) // 3 days
	v.SetDefault("seeding.max_torrents", 0)              // unbounded
	v.SetDefault("seeding.max_disk_usage", 0)            // unbounded
	v.SetDefault("seeding.auto_delete", false)
	v.SetDefault("seeding.reserved_space", 10)
	v.SetDefault("seeding.priority", map[string]int{
		"default":   0,
		"free":      1,
		"half_free": 0,
		"double_up": 2,
	})
	v.SetDefault("seeding.interval", 5*time.Minute)
	v.SetDefault("seeding.pending_timeout", 30*time.Minute)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9713")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
}

// secondsToDurationHookFunc decodes bare numeric values into time.Duration
// as whole seconds, the unit every duration option is documented in. Values
// written in Go duration syntax ("5m", "72h") take the string hook instead.
func secondsToDurationHookFunc() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType || from == durationType {
			return data, nil
		}
		switch from.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.Duration(reflect.ValueOf(data).Uint()) * time.Second, nil
		case reflect.Float32, reflect.Float64:
			return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
		default:
			return data, nil
		}
	}
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Site.URL == "" {
		return fmt.Errorf("site.url is required")
	}

	if cfg.Site.Cookie == "" && (cfg.Site.Username == "" || cfg.Site.Password == "") {
		return fmt.Errorf("site requires either a cookie or username/password credentials")
	}

	if cfg.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database.type: %s (only sqlite is supported)", cfg.Database.Type)
	}

	if cfg.Downloader.Type == "" {
		return fmt.Errorf("downloader.type is required")
	}

	switch cfg.MakeTorrent.Tool {
	case "", "builtin", "mktorrent":
	default:
		return fmt.Errorf("unsupported make_torrent.tool: %s (builtin or mktorrent)", cfg.MakeTorrent.Tool)
	}

	if cfg.MakeTorrent.IncludeMD5 {
		return fmt.Errorf("make_torrent.include_md5 is not supported: the embedded builder does not emit per-file MD5 digests")
	}

	if cfg.Seeding.MinRatio < 0 {
		return fmt.Errorf("seeding.min_ratio must not be negative")
	}

	if cfg.Seeding.MaxTorrents < 0 {
		return fmt.Errorf("seeding.max_torrents must not be negative (0 = unbounded)")
	}

	if cfg.Seeding.MaxDiskUsageGB < 0 {
		return fmt.Errorf("seeding.max_disk_usage must not be negative (0 = unbounded)")
	}

	if cfg.Seeding.Interval <= 0 {
		return fmt.Errorf("seeding.interval must be positive")
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}
