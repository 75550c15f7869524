// Package clickhouse implements the statistics warehouse sink.
package clickhouse

import (
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/wotmesh/wotmesh-node/internal/wot/model"
)

type (
	// Metrics observes warehouse operations.
	Metrics interface {
		Observe(operation string, currency string, err error, started time.Time)
	}
)

// Repository lands block statistics in ClickHouse.
type Repository struct {
	conn     clickhouse.Conn
	currency string
	metrics  Metrics
}

// New opens a connection from the DSN.
func New(dsn, currency string, metrics Metrics) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("clickhouse dsn is required")
	}
	if metrics == nil {
		return nil, errors.New("clickhouse metrics is required")
	}

	options, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	return &Repository{conn: conn, currency: currency, metrics: metrics}, nil
}

// Close closes the connection.
func (r *Repository) Close() error {
	return r.conn.Close()
}

func statRow(currency string, bs model.BlockStat) []any {
	return []any{
		currency,
		string(bs.Stat),
		bs.BlockNumber,
		bs.MedianTime,
	}
}
