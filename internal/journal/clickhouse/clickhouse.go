// Package clickhouse implements the tick and execution journals on
// ClickHouse, which absorbs high-rate append-only writes cheaply.
package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"token-sniper/internal/config"
)

// Conn wraps clickhouse driver.Conn for dependency injection.
type Conn struct {
	driver.Conn
}

// NewConn opens a native-protocol connection with dial and pool settings
// from the journal config, and pings it before handing it out.
func NewConn(ctx context.Context, cfg config.JournalConfig) (*Conn, error) {
	opts, err := clickhouse.ParseDSN(cfg.ClickhouseDSN)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	if cfg.ClickhouseMaxConns > 0 {
		opts.MaxOpenConns = cfg.ClickhouseMaxConns
		opts.MaxIdleConns = cfg.ClickhouseMaxConns
	}
	if cfg.ConnectTimeoutSeconds > 0 {
		opts.DialTimeout = cfg.ConnectTimeout()
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &Conn{Conn: conn}, nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.Conn.Close()
}
