// Package postgres opens the indexer's connection to PostgreSQL. A run uses
// exactly one pinned connection so that session state (advisory locks,
// transactions) stays on the same backend for the whole batch.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/errors"
)

type Client struct {
	DB   *sql.DB
	conn *sql.Conn
	cfg  config.PostgresConfig
}

// New opens the pool, verifies it with a ping and pins a single connection.
// TLS is negotiated by lib/pq according to the sslmode in the URL.
func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrConnect, "opening postgres connection: %v", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, apperrors.Newf(apperrors.ErrConnect, "pinging postgres: %v", err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, apperrors.Newf(apperrors.ErrConnect, "acquiring postgres connection: %v", err)
	}
	return &Client{DB: db, conn: conn, cfg: cfg}, nil
}

// Conn returns the pinned connection.
func (c *Client) Conn() *sql.Conn {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

func (c *Client) Close() error {
	connErr := c.conn.Close()
	if err := c.DB.Close(); err != nil {
		return fmt.Errorf("closing postgres pool: %w", err)
	}
	if connErr != nil {
		return fmt.Errorf("releasing postgres connection: %w", connErr)
	}
	return nil
}

// InTx runs fn inside a transaction on the pinned connection, rolling back
// when fn fails.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
