// Package store implements the indexer's document source, index writer and
// status updater against PostgreSQL, plus an in-memory equivalent used by
// tests.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/search-indexer/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/postgres"
)

const (
	fetchPendingSQL = `SELECT id, url, title, content FROM documents WHERE status = $1 LIMIT $2`

	upsertEntrySQL = `INSERT INTO search_index (word, document_id, frequency, positions)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (word, document_id)
		DO UPDATE SET frequency = EXCLUDED.frequency, positions = EXCLUDED.positions`

	setStatusSQL = `UPDATE documents SET status = $1 WHERE id = $2`

	deleteEntriesSQL = `DELETE FROM search_index WHERE document_id = $1`

	// SQLSTATE query_canceled, raised when lib/pq cancels a statement whose
	// context expired or when the server's statement_timeout fires.
	queryCanceled = pq.ErrorCode("57014")
)

// execer is satisfied by both *sql.Conn and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Postgres reads pending documents and writes index entries over the
// client's pinned connection.
//
// It expects the tables created by the search platform's migrations:
//
//	documents    (id SERIAL PRIMARY KEY, url TEXT, title TEXT, content TEXT, status TEXT, ...)
//	search_index (word TEXT, document_id INTEGER REFERENCES documents(id),
//	              frequency INTEGER, positions INTEGER[], PRIMARY KEY (word, document_id))
type Postgres struct {
	client  *postgres.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewPostgres creates a store. A positive statementTimeout bounds every
// statement; exceeding it fails the operation with ErrTimeout.
func NewPostgres(client *postgres.Client, statementTimeout time.Duration) *Postgres {
	return &Postgres{
		client:  client,
		timeout: statementTimeout,
		logger:  logger.WithComponent("postgres-store"),
	}
}

// FetchPending returns up to limit documents whose status is pending.
func (s *Postgres) FetchPending(ctx context.Context, limit int) ([]index.Document, error) {
	ctx, cancel := s.statementContext(ctx)
	defer cancel()

	rows, err := s.client.Conn().QueryContext(ctx, fetchPendingSQL, string(index.StatusPending), limit)
	if err != nil {
		return nil, storeError(ctx, "querying pending documents", err)
	}
	defer rows.Close()

	docs := make([]index.Document, 0, limit)
	for rows.Next() {
		var (
			id                  int64
			url, title, content sql.NullString
		)
		if err := rows.Scan(&id, &url, &title, &content); err != nil {
			return nil, storeError(ctx, "scanning document row", err)
		}
		if !content.Valid {
			return nil, fmt.Errorf("%w: %w: document %d has NULL content",
				apperrors.ErrStore, apperrors.ErrInvalidDocument, id)
		}
		docs = append(docs, index.Document{
			ID:      id,
			URL:     url.String,
			Title:   title.String,
			Content: content.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(ctx, "iterating document rows", err)
	}
	s.logger.Debug("fetched pending documents", "count", len(docs), "limit", limit)
	return docs, nil
}

// UpsertEntry inserts the entry or overwrites frequency and positions of the
// existing (word, document_id) row.
func (s *Postgres) UpsertEntry(ctx context.Context, e index.Entry) error {
	ctx, cancel := s.statementContext(ctx)
	defer cancel()
	return upsertEntry(ctx, s.client.Conn(), e)
}

// SetStatus overwrites the document's status.
func (s *Postgres) SetStatus(ctx context.Context, documentID int64, status index.Status) error {
	ctx, cancel := s.statementContext(ctx)
	defer cancel()
	return setStatus(ctx, s.client.Conn(), documentID, status)
}

// ReplaceDocument deletes the document's existing entries, writes entries
// and marks the document indexed in a single transaction.
func (s *Postgres) ReplaceDocument(ctx context.Context, documentID int64, entries []index.Entry) error {
	ctx, cancel := s.statementContext(ctx)
	defer cancel()
	err := s.client.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, deleteEntriesSQL, documentID)
		if err != nil {
			return storeError(ctx, fmt.Sprintf("deleting entries of document %d", documentID), err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			s.logger.Debug("removed previous entries", "doc_id", documentID, "count", n)
		}
		for _, e := range entries {
			if err := upsertEntry(ctx, tx, e); err != nil {
				return err
			}
		}
		return setStatus(ctx, tx, documentID, index.StatusIndexed)
	})
	// Begin and commit failures come back from InTx untagged.
	if err != nil && !errors.Is(err, apperrors.ErrStore) {
		return storeError(ctx, fmt.Sprintf("replacing document %d", documentID), err)
	}
	return err
}

func upsertEntry(ctx context.Context, db execer, e index.Entry) error {
	_, err := db.ExecContext(ctx, upsertEntrySQL, e.Term, e.DocumentID, e.Frequency, pq.Array(e.Positions))
	if err != nil {
		return storeError(ctx, fmt.Sprintf("upserting %q for document %d", e.Term, e.DocumentID), err)
	}
	return nil
}

func setStatus(ctx context.Context, db execer, documentID int64, status index.Status) error {
	if _, err := db.ExecContext(ctx, setStatusSQL, string(status), documentID); err != nil {
		return storeError(ctx, fmt.Sprintf("setting status of document %d to %s", documentID, status), err)
	}
	return nil
}

func (s *Postgres) statementContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// storeError tags err with ErrStore, and ErrTimeout when the statement ran
// out of time, keeping the driver error in the chain. ctx is the statement
// context the failing call ran under.
func storeError(ctx context.Context, what string, err error) error {
	if isTimeout(ctx, err) {
		return fmt.Errorf("%s: %w: %w: %w", what, apperrors.ErrStore, apperrors.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", what, apperrors.ErrStore, err)
}

// isTimeout reports whether err came from an expired deadline. lib/pq
// surfaces a cancelled statement as a server error rather than the context
// error, so the context itself is consulted too. A query_canceled error under
// a live context comes from the server's own statement_timeout.
func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == queryCanceled && ctx.Err() == nil
}
