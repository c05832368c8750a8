//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/Adithya-Monish-Kumar-K/search-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/postgres"
)

// startPostgres runs a throwaway PostgreSQL with the schema loaded and
// returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithInitScripts("testdata/schema.sql"),
		tcpostgres.WithDatabase("search"),
		tcpostgres.WithUsername("indexer"),
		tcpostgres.WithPassword("indexer"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func connect(t *testing.T, dsn string) *postgres.Client {
	t.Helper()
	client, err := postgres.New(context.Background(), config.PostgresConfig{URL: dsn, ConnectTimeout: 10 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func insertDocument(t *testing.T, client *postgres.Client, url, content string) int64 {
	t.Helper()
	var id int64
	err := client.Conn().QueryRowContext(context.Background(),
		`INSERT INTO documents (url, title, content) VALUES ($1, $2, $3) RETURNING id`,
		url, "title", content).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestPostgres_RoundTrip(t *testing.T) {
	client := connect(t, startPostgres(t))
	s := NewPostgres(client, 5*time.Second)
	ctx := context.Background()

	id := insertDocument(t, client, "https://example.com/a", "the quick brown fox")
	docs, err := s.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID)
	assert.Equal(t, "https://example.com/a", docs[0].URL)

	entry := index.Entry{Term: "quick", DocumentID: id, Frequency: 2, Positions: []int32{1, 7}}
	require.NoError(t, s.UpsertEntry(ctx, entry))
	require.NoError(t, s.UpsertEntry(ctx, entry))
	require.NoError(t, s.SetStatus(ctx, id, index.StatusIndexed))

	var (
		count     int
		frequency int32
		positions []int64
	)
	require.NoError(t, client.Conn().QueryRowContext(ctx,
		`SELECT count(*) FROM search_index WHERE document_id = $1`, id).Scan(&count))
	assert.Equal(t, 1, count)

	row := client.Conn().QueryRowContext(ctx,
		`SELECT frequency, positions FROM search_index WHERE word = 'quick' AND document_id = $1`, id)
	require.NoError(t, row.Scan(&frequency, pq.Array(&positions)))
	assert.Equal(t, int32(2), frequency)
	assert.Equal(t, []int64{1, 7}, positions)

	docs, err = s.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestPostgres_NullContentIsInvalid(t *testing.T) {
	client := connect(t, startPostgres(t))
	_, err := client.Conn().ExecContext(context.Background(),
		`INSERT INTO documents (url) VALUES ('https://example.com/null')`)
	require.NoError(t, err)

	_, err = NewPostgres(client, 0).FetchPending(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NULL content")
}

func TestPostgres_ReplaceDocument(t *testing.T) {
	client := connect(t, startPostgres(t))
	s := NewPostgres(client, 5*time.Second)
	ctx := context.Background()
	id := insertDocument(t, client, "https://example.com/b", "fresh words")

	require.NoError(t, s.UpsertEntry(ctx, index.Entry{Term: "stale", DocumentID: id, Frequency: 1, Positions: []int32{0}}))
	require.NoError(t, s.ReplaceDocument(ctx, id, []index.Entry{
		{Term: "fresh", DocumentID: id, Frequency: 1, Positions: []int32{0}},
		{Term: "words", DocumentID: id, Frequency: 1, Positions: []int32{1}},
	}))

	rows, err := client.Conn().QueryContext(ctx, `SELECT word FROM search_index WHERE document_id = $1 ORDER BY word`, id)
	require.NoError(t, err)
	defer rows.Close()
	var words []string
	for rows.Next() {
		var w string
		require.NoError(t, rows.Scan(&w))
		words = append(words, w)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"fresh", "words"}, words)

	var status string
	require.NoError(t, client.Conn().QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&status))
	assert.Equal(t, string(index.StatusIndexed), status)
}

func TestAdvisoryLock_ExclusiveAcrossSessions(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()
	first := NewAdvisoryLock(connect(t, dsn))
	second := NewAdvisoryLock(connect(t, dsn))

	ok, err := first.Acquire(ctx, "batch", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx, "batch", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Release(ctx, "batch"))
	ok, err = second.Acquire(ctx, "batch", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPostgres_StatementTimeoutIsErrTimeout(t *testing.T) {
	dsn := startPostgres(t)
	client := connect(t, dsn)
	blocker := connect(t, dsn)
	ctx := context.Background()
	id := insertDocument(t, client, "https://example.com/slow", "blocked words")

	// Hold exclusive locks from another session so every statement waits
	// until its deadline.
	tx, err := blocker.Conn().BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `LOCK TABLE documents, search_index IN ACCESS EXCLUSIVE MODE`)
	require.NoError(t, err)

	s := NewPostgres(client, 50*time.Millisecond)

	_, err = s.FetchPending(ctx, 10)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.ErrorIs(t, err, apperrors.ErrStore)

	err = s.UpsertEntry(ctx, index.Entry{Term: "blocked", DocumentID: id, Frequency: 1, Positions: []int32{0}})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)

	err = s.SetStatus(ctx, id, index.StatusIndexed)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)

	err = s.ReplaceDocument(ctx, id, nil)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}
