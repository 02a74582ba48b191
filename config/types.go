package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Site        SiteConfig        `mapstructure:"site"`
	Downloader  DownloaderConfig  `mapstructure:"downloader"`
	MakeTorrent MakeTorrentConfig `mapstructure:"make_torrent"`
	Seeding     SeedingConfig     `mapstructure:"seeding"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// DatabaseConfig holds the registry database connection details
type DatabaseConfig struct {
	Type        string `mapstructure:"type"`
	Name        string `mapstructure:"name"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	PoolSize    int    `mapstructure:"pool_size"`
	MaxOverflow int    `mapstructure:"max_overflow"`
	Echo        bool   `mapstructure:"echo"`
}

// SiteConfig holds tracker site connection and session details
type SiteConfig struct {
	URL        string        `mapstructure:"url"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	Cookie     string        `mapstructure:"cookie"`
	UserAgent  string        `mapstructure:"user_agent"`
	LoginRetry int           `mapstructure:"login_retry"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Proxy      string        `mapstructure:"proxy"`
	AutoLogin  bool          `mapstructure:"auto_login"`
}

// DownloaderConfig holds download client connection details
type DownloaderConfig struct {
	Type        string        `mapstructure:"type"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DownloadDir string        `mapstructure:"download_dir"`
	HTTPS       bool          `mapstructure:"https"`
	Timeout     time.Duration `mapstructure:"timeout"`
	AutoStart   bool          `mapstructure:"auto_start"`
	Category    string        `mapstructure:"category"`
}

// MakeTorrentConfig holds torrent file creation settings
type MakeTorrentConfig struct {
	Tracker   string `mapstructure:"tracker"`
	Private   bool   `mapstructure:"private"`
	Source    string `mapstructure:"source"`
	PieceSize int64  `mapstructure:"piece_size"` // bytes, 0 = auto
	Comment   string `mapstructure:"comment"`
	// Tool selects the torrent builder. "mktorrent" is accepted as an
	// alias of the embedded builder; the output is identical.
	Tool       string `mapstructure:"tool"`
	IncludeMD5 bool   `mapstructure:"include_md5"`
}

// SeedingConfig holds the seeding lifecycle policy thresholds
type SeedingConfig struct {
	MinRatio       float64        `mapstructure:"min_ratio"`
	MinTime        time.Duration  `mapstructure:"min_time"`
	MaxTorrents    int            `mapstructure:"max_torrents"`   // 0 = unbounded
	MaxDiskUsageGB float64        `mapstructure:"max_disk_usage"` // GB, 0 = unbounded
	AutoDelete     bool           `mapstructure:"auto_delete"`
	ReservedGB     float64        `mapstructure:"reserved_space"` // GB
	Priority       map[string]int `mapstructure:"priority"`       // weight per classification
	Interval       time.Duration  `mapstructure:"interval"`
	PendingTimeout time.Duration  `mapstructure:"pending_timeout"`
	RemoveFilter   string         `mapstructure:"remove_filter"` // optional expr expression
}

// MetricsConfig controls the optional Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

// MaxDiskUsageBytes converts the configured GB bound to bytes.
func (s SeedingConfig) MaxDiskUsageBytes() int64 {
	return int64(s.MaxDiskUsageGB * 1024 * 1024 * 1024)
}

// ReservedBytes converts the configured reserved space to bytes.
func (s SeedingConfig) ReservedBytes() int64 {
	return int64(s.ReservedGB * 1024 * 1024 * 1024)
}
