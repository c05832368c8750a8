// Package indexer drives a batch: it pulls pending documents, turns each into
// index entries and marks it indexed, strictly one document at a time.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/metrics"
)

// DefaultBatchSize caps the documents fetched by one run.
const DefaultBatchSize = 100

type DocumentSource interface {
	FetchPending(ctx context.Context, limit int) ([]index.Document, error)
}

type IndexWriter interface {
	UpsertEntry(ctx context.Context, e index.Entry) error
}

type StatusUpdater interface {
	SetStatus(ctx context.Context, documentID int64, status index.Status) error
}

// Store is the full set of store operations a batch needs.
type Store interface {
	DocumentSource
	IndexWriter
	StatusUpdater
}

// DocumentReplacer swaps all entries of a document and marks it indexed as
// one atomic step.
type DocumentReplacer interface {
	ReplaceDocument(ctx context.Context, documentID int64, entries []index.Entry) error
}

// Locker keeps two runs from working the same backlog at once.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// lockExtender is implemented by lockers whose locks expire. The engine
// renews the TTL after every document so long batches keep the lock.
type lockExtender interface {
	Extend(ctx context.Context, name string, ttl time.Duration) error
}

type Notifier interface {
	DocumentIndexed(ctx context.Context, event index.IndexedEvent) error
}

// BatchResult summarises a run.
type BatchResult struct {
	Fetched  int
	Indexed  int
	Entries  int
	Duration time.Duration
}

type Engine struct {
	store     Store
	replacer  DocumentReplacer
	batchSize int
	replace   bool
	locker    Locker
	lockName  string
	lockTTL   time.Duration
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Engine)

// WithBatchSize sets the maximum number of documents per run.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		e.batchSize = n
	}
}

// WithReplaceEntries makes each document's previous entries disappear when
// it is re-indexed. The store must implement DocumentReplacer.
func WithReplaceEntries(replace bool) Option {
	return func(e *Engine) {
		e.replace = replace
	}
}

// WithLock guards each run with locker under name.
func WithLock(locker Locker, name string, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockName = name
		e.lockTTL = ttl
	}
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func NewEngine(store Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, apperrors.New(apperrors.ErrConfig, "store is required")
	}
	e := &Engine{
		store:     store,
		batchSize: DefaultBatchSize,
		logger:    logger.WithComponent("indexer"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.batchSize <= 0 {
		return nil, apperrors.Newf(apperrors.ErrConfig, "batch size must be positive, got %d", e.batchSize)
	}
	if e.replace {
		r, ok := store.(DocumentReplacer)
		if !ok {
			return nil, apperrors.New(apperrors.ErrConfig, "replace mode needs a store that can replace documents")
		}
		e.replacer = r
	}
	if e.locker != nil && e.lockName == "" {
		return nil, apperrors.New(apperrors.ErrConfig, "lock name is required")
	}
	return e, nil
}

// RunBatch indexes up to the batch size of pending documents in source
// order. The first failure aborts the run; documents already marked indexed
// stay indexed and the rest stay pending for the next run.
func (e *Engine) RunBatch(ctx context.Context) (result BatchResult, err error) {
	start := e.now()
	defer func() {
		result.Duration = e.now().Sub(start)
		e.metrics.BatchFinished(result.Duration, apperrors.FailedOperation(err))
	}()

	if e.locker != nil {
		acquired, lockErr := e.locker.Acquire(ctx, e.lockName, e.lockTTL)
		if lockErr != nil {
			return result, apperrors.Op(index.OpAcquireLock, 0, lockErr)
		}
		if !acquired {
			return result, apperrors.Op(index.OpAcquireLock, 0,
				fmt.Errorf("%w: %s", apperrors.ErrBatchLocked, e.lockName))
		}
		defer e.releaseLock(ctx)
	}

	docs, err := e.store.FetchPending(ctx, e.batchSize)
	if err != nil {
		return result, apperrors.Op(index.OpFetchPending, 0, err)
	}
	result.Fetched = len(docs)
	e.metrics.BatchFetched(len(docs))
	e.logger.Info("found documents to index", "count", len(docs), "limit", e.batchSize)

	for _, doc := range docs {
		entries, err := e.IndexDocument(ctx, doc)
		if err != nil {
			if apperrors.FailedOperation(err) == index.OpNotify {
				// Already marked indexed before the event failed.
				result.Indexed++
				result.Entries += entries
			}
			return result, err
		}
		result.Indexed++
		result.Entries += entries

		if ext, ok := e.locker.(lockExtender); ok {
			if err := ext.Extend(ctx, e.lockName, e.lockTTL); err != nil {
				return result, apperrors.Op(index.OpExtendLock, doc.ID, err)
			}
		}
	}

	e.logger.Info("indexing complete",
		"indexed", result.Indexed,
		"entries", result.Entries,
		"duration", e.now().Sub(start).Round(time.Millisecond),
	)
	return result, nil
}

// IndexDocument writes every entry of doc and then marks it indexed. It
// returns the number of entries written, also when only the notification
// failed.
func (e *Engine) IndexDocument(ctx context.Context, doc index.Document) (int, error) {
	e.logger.Info("indexing document", "doc_id", doc.ID, "url", doc.URL)

	tokens := tokenizer.Tokenize(doc.Content)
	postings, err := index.Aggregate(tokens)
	if err != nil {
		return 0, apperrors.Op(index.OpAggregate, doc.ID, err)
	}
	entries := index.Entries(doc.ID, postings)

	if e.replace {
		if err := e.replacer.ReplaceDocument(ctx, doc.ID, entries); err != nil {
			return 0, apperrors.Op(index.OpReplaceDocument, doc.ID, err)
		}
	} else {
		for _, entry := range entries {
			if err := e.store.UpsertEntry(ctx, entry); err != nil {
				return 0, apperrors.Op(index.OpUpsertEntry, doc.ID, err)
			}
		}
		// Only after every entry is accepted.
		if err := e.store.SetStatus(ctx, doc.ID, index.StatusIndexed); err != nil {
			return 0, apperrors.Op(index.OpSetStatus, doc.ID, err)
		}
	}
	e.metrics.DocumentIndexed(len(entries))

	if e.notifier != nil {
		event := index.IndexedEvent{
			DocumentID: doc.ID,
			URL:        doc.URL,
			Terms:      len(entries),
			Tokens:     len(tokens),
			IndexedAt:  e.now().UTC(),
		}
		if err := e.notifier.DocumentIndexed(ctx, event); err != nil {
			return len(entries), apperrors.Op(index.OpNotify, doc.ID, err)
		}
	}

	e.logger.Info("document indexed successfully",
		"doc_id", doc.ID,
		"terms", len(entries),
		"tokens", len(tokens),
	)
	return len(entries), nil
}

func (e *Engine) releaseLock(ctx context.Context) {
	// The run context may already be cancelled; the release must still go out.
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.locker.Release(releaseCtx, e.lockName); err != nil {
		e.logger.Warn("releasing run lock failed", "lock", e.lockName, "error", err)
	}
}
