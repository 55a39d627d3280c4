package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultWSURL              = "wss://socket.polygon.io/stocks"
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultDriver             = "postgres"
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultSQLitePath         = "hodwatch.db"
	DefaultSnapshotInterval   = 15 * time.Second
	DefaultMetadataSource     = "store"
	DefaultPageSize           = 1000
	DefaultMetadataBatchSize  = 100
	DefaultRequestDelay       = 100 * time.Millisecond
	DefaultBatchDelay         = 2 * time.Second
	DefaultAvgVolumeDays      = 10
	DefaultSubscription       = "T.*"
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 10 * time.Second
	DefaultStaleAfter         = 30 * time.Second
	DefaultWatchdogInterval   = 5 * time.Second
	DefaultPingInterval       = 30 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultStreamBufferSize   = 10000
	DefaultScanInterval       = 5 * time.Second
	DefaultChunkSize          = 1000
	DefaultRestartPolicy      = "fresh"
	DefaultTimezone           = "America/New_York"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
)

func (c *Config) applyDefaults() {
	// Polygon defaults
	if c.Polygon.WSURL == "" {
		c.Polygon.WSURL = DefaultWSURL
	}
	if c.Polygon.Timeout == 0 {
		c.Polygon.Timeout = DefaultAPITimeout
	}
	if c.Polygon.MaxRetries == 0 {
		c.Polygon.MaxRetries = DefaultMaxRetries
	}

	// Database defaults
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	applyDBDefaults(&c.Database.Postgres)
	if c.Database.Postgres.ApplicationName == "" {
		c.Database.Postgres.ApplicationName = c.Instance.ID
	}
	if c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = DefaultSQLitePath
	}

	// Snapshot defaults
	if c.Snapshot.Interval == 0 {
		c.Snapshot.Interval = DefaultSnapshotInterval
	}
	if c.Snapshot.PageSize == 0 {
		c.Snapshot.PageSize = DefaultPageSize
	}

	// Metadata defaults
	if c.Metadata.Source == "" {
		c.Metadata.Source = DefaultMetadataSource
	}
	if c.Metadata.PageSize == 0 {
		c.Metadata.PageSize = DefaultPageSize
	}
	if c.Metadata.BatchSize == 0 {
		c.Metadata.BatchSize = DefaultMetadataBatchSize
	}
	if c.Metadata.RequestDelay == 0 {
		c.Metadata.RequestDelay = DefaultRequestDelay
	}
	if c.Metadata.BatchDelay == 0 {
		c.Metadata.BatchDelay = DefaultBatchDelay
	}
	if c.Metadata.AvgVolumeDays == 0 {
		c.Metadata.AvgVolumeDays = DefaultAvgVolumeDays
	}

	// Stream defaults
	if c.Stream.Subscription == "" {
		c.Stream.Subscription = DefaultSubscription
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.StaleAfter == 0 {
		c.Stream.StaleAfter = DefaultStaleAfter
	}
	if c.Stream.WatchdogInterval == 0 {
		c.Stream.WatchdogInterval = DefaultWatchdogInterval
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultStreamBufferSize
	}

	// Scanner defaults
	if c.Scanner.Interval == 0 {
		c.Scanner.Interval = DefaultScanInterval
	}
	if c.Scanner.PageSize == 0 {
		c.Scanner.PageSize = DefaultPageSize
	}
	if c.Scanner.ChunkSize == 0 {
		c.Scanner.ChunkSize = DefaultChunkSize
	}
	if c.Scanner.RestartPolicy == "" {
		c.Scanner.RestartPolicy = DefaultRestartPolicy
	}
	if c.Scanner.Timezone == "" {
		c.Scanner.Timezone = DefaultTimezone
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
