package config

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata" // scanner.timezone must resolve on hosts without zoneinfo
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Polygon.APIKey == "" {
		return errors.New("polygon.api_key is required")
	}
	if c.Polygon.WSURL == "" {
		return errors.New("polygon.ws_url is required")
	}

	switch c.Database.Driver {
	case "postgres":
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return errors.New("database.sqlite.path is required")
		}
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}

	if c.Snapshot.Interval <= 0 {
		return errors.New("snapshot.interval must be > 0")
	}
	if c.Snapshot.PageSize < 1 {
		return errors.New("snapshot.page_size must be >= 1")
	}

	if c.Metadata.Source != "store" && c.Metadata.Source != "snapshot" {
		return fmt.Errorf("metadata.source must be store or snapshot, got %q", c.Metadata.Source)
	}
	if c.Metadata.PageSize < 1 {
		return errors.New("metadata.page_size must be >= 1")
	}
	if c.Metadata.BatchSize < 1 {
		return errors.New("metadata.batch_size must be >= 1")
	}

	if c.Stream.ReconnectBaseDelay > c.Stream.ReconnectMaxDelay {
		return fmt.Errorf("stream.reconnect_base_delay (%s) cannot exceed reconnect_max_delay (%s)",
			c.Stream.ReconnectBaseDelay, c.Stream.ReconnectMaxDelay)
	}
	if c.Stream.BufferSize < 1 {
		return errors.New("stream.buffer_size must be >= 1")
	}

	if c.Scanner.Interval <= 0 {
		return errors.New("scanner.interval must be > 0")
	}
	if c.Scanner.PageSize < 1 {
		return errors.New("scanner.page_size must be >= 1")
	}
	if c.Scanner.ChunkSize < 1 || c.Scanner.ChunkSize > 1000 {
		return fmt.Errorf("scanner.chunk_size must be between 1 and 1000, got %d", c.Scanner.ChunkSize)
	}
	if c.Scanner.RestartPolicy != "fresh" && c.Scanner.RestartPolicy != "resume" {
		return fmt.Errorf("scanner.restart_policy must be fresh or resume, got %q", c.Scanner.RestartPolicy)
	}
	if _, err := time.LoadLocation(c.Scanner.Timezone); err != nil {
		return fmt.Errorf("scanner.timezone: %w", err)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	for name, port := range map[string]int{
		"snapshot.metrics_port": c.Snapshot.MetricsPort,
		"stream.metrics_port":   c.Stream.MetricsPort,
		"scanner.metrics_port":  c.Scanner.MetricsPort,
	} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("%s must be between 0 and 65535, got %d", name, port)
		}
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
