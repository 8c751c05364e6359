package analytics

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/spbu-ds-practicum-2025/payments-engine/internal/config"
)

// clientName identifies the engine in ClickHouse's system.query_log.
const clientName = "payments-engine"

// ClickHouseClient is the snapshot store connection.
// A run sends one insert batch, so the pool stays small and batches are LZ4 compressed.
type ClickHouseClient struct {
	conn driver.Conn
}

// NewClickHouseClient opens a connection and pings it within cfg.DialTimeout.
func NewClickHouseClient(ctx context.Context, cfg config.ClickHouseConfig) (*ClickHouseClient, error) {
	conn, err := clickhouse.Open(clientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse at %s: %w", cfg.Host, err)
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse at %s: %w", cfg.Host, err)
	}

	return &ClickHouseClient{conn: conn}, nil
}

func clientOptions(cfg config.ClickHouseConfig) *clickhouse.Options {
	return &clickhouse.Options{
		Addr: []string{cfg.Host},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout:  cfg.DialTimeout,
		MaxOpenConns: 2,
		MaxIdleConns: 1,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{
				{Name: clientName, Version: "1"},
			},
		},
	}
}

// Conn returns the underlying ClickHouse connection
func (c *ClickHouseClient) Conn() driver.Conn {
	return c.conn
}

// Close closes the ClickHouse connection
func (c *ClickHouseClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
