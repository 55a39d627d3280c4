package config

import "time"

// Config is the root configuration shared by every hodwatch process.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Polygon  PolygonConfig  `yaml:"polygon"`
	Database DatabaseConfig `yaml:"database"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Metadata MetadataConfig `yaml:"metadata"`
	Stream   StreamConfig   `yaml:"stream"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// InstanceConfig identifies this process.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// PolygonConfig holds market-data provider settings.
type PolygonConfig struct {
	APIKey     string        `yaml:"api_key"`
	RestURL    string        `yaml:"rest_url"` // Empty = SDK default
	WSURL      string        `yaml:"ws_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// DatabaseConfig selects and configures the relational store.
type DatabaseConfig struct {
	Driver   string       `yaml:"driver"` // "postgres" or "sqlite"
	Postgres DBConfig     `yaml:"postgres"`
	SQLite   SQLiteConfig `yaml:"sqlite"`
	Migrate  bool         `yaml:"migrate"` // Apply embedded schema on startup
}

// DBConfig holds a single PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`

	ApplicationName string `yaml:"application_name"` // Defaults to instance.id
}

// SQLiteConfig holds the local database file location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// SnapshotConfig holds Snapshot Ingestor settings.
type SnapshotConfig struct {
	Interval time.Duration `yaml:"interval"`
	PageSize int           `yaml:"page_size"` // Universe page size

	MetricsPort int `yaml:"metrics_port"` // 0 = metrics.port
}

// MetadataConfig holds Metadata Ingestor settings.
type MetadataConfig struct {
	Source       string        `yaml:"source"` // "store" or "snapshot"
	PageSize     int           `yaml:"page_size"`
	BatchSize    int           `yaml:"batch_size"`
	RequestDelay time.Duration `yaml:"request_delay"`
	BatchDelay   time.Duration `yaml:"batch_delay"`

	AvgVolumeDays int `yaml:"avg_volume_days"` // Trading days averaged into avg_10d_volume, negative disables
}

// StreamConfig holds Live Trade Streamer settings.
type StreamConfig struct {
	Subscription       string        `yaml:"subscription"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	StaleAfter         time.Duration `yaml:"stale_after"`
	WatchdogInterval   time.Duration `yaml:"watchdog_interval"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	BufferSize         int           `yaml:"buffer_size"`

	MetricsPort int `yaml:"metrics_port"` // 0 = metrics.port
}

// ScannerConfig holds HOD Scanner settings.
type ScannerConfig struct {
	Interval      time.Duration `yaml:"interval"`
	PageSize      int           `yaml:"page_size"`
	ChunkSize     int           `yaml:"chunk_size"`
	RestartPolicy string        `yaml:"restart_policy"` // "fresh" or "resume"
	Timezone      string        `yaml:"timezone"`

	MetricsPort int `yaml:"metrics_port"` // 0 = metrics.port
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// MetricsConfig holds health and Prometheus endpoint settings. Components
// that share a host set their own metrics_port.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
