package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/search-indexer/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/errors"
)

// Operation is one call recorded by Memory, in call order.
type Operation struct {
	Op         string
	DocumentID int64
	Term       string
	Status     index.Status
}

type memoryDoc struct {
	doc    index.Document
	status index.Status
}

type failureKey struct {
	op         string
	documentID int64
}

// Memory implements the same contracts as Postgres over in-process maps.
// Failures can be injected per operation and document to exercise abort
// paths.
type Memory struct {
	mu       sync.Mutex
	docs     map[int64]*memoryDoc
	order    []int64
	index    *index.MemoryIndex
	failures map[failureKey]error
	ops      []Operation
}

func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[int64]*memoryDoc),
		index:    index.NewMemoryIndex(),
		failures: make(map[failureKey]error),
	}
}

// AddDocument inserts or replaces a document with the given status.
func (m *Memory) AddDocument(doc index.Document, status index.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[doc.ID]; !exists {
		m.order = append(m.order, doc.ID)
	}
	m.docs[doc.ID] = &memoryDoc{doc: doc, status: status}
}

// Status returns a document's current status.
func (m *Memory) Status(documentID int64) (index.Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[documentID]
	if !ok {
		return "", false
	}
	return d.status, true
}

// CountByStatus returns how many documents carry status.
func (m *Memory) CountByStatus(status index.Status) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.docs {
		if d.status == status {
			n++
		}
	}
	return n
}

// Index exposes the stored entries.
func (m *Memory) Index() *index.MemoryIndex {
	return m.index
}

// FailOn makes op fail with err for documentID. Use 0 for batch-level
// operations such as fetch-pending-batch.
func (m *Memory) FailOn(op string, documentID int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[failureKey{op: op, documentID: documentID}] = err
}

func (m *Memory) ClearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = make(map[failureKey]error)
}

// Operations returns the recorded successful calls in order.
func (m *Memory) Operations() []Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Operation, len(m.ops))
	copy(out, m.ops)
	return out
}

func (m *Memory) FetchPending(ctx context.Context, limit int) ([]index.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure(index.OpFetchPending, 0); err != nil {
		return nil, err
	}
	docs := make([]index.Document, 0, limit)
	for _, id := range m.order {
		if len(docs) == limit {
			break
		}
		if d := m.docs[id]; d.status == index.StatusPending {
			docs = append(docs, d.doc)
		}
	}
	m.ops = append(m.ops, Operation{Op: index.OpFetchPending})
	return docs, nil
}

func (m *Memory) UpsertEntry(ctx context.Context, e index.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure(index.OpUpsertEntry, e.DocumentID); err != nil {
		return err
	}
	if _, ok := m.docs[e.DocumentID]; !ok {
		return fmt.Errorf("%w: document %d does not exist", apperrors.ErrStore, e.DocumentID)
	}
	m.index.Upsert(e)
	m.ops = append(m.ops, Operation{Op: index.OpUpsertEntry, DocumentID: e.DocumentID, Term: e.Term})
	return nil
}

func (m *Memory) SetStatus(ctx context.Context, documentID int64, status index.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure(index.OpSetStatus, documentID); err != nil {
		return err
	}
	// UPDATE on a missing row affects nothing and is not an error.
	if d, ok := m.docs[documentID]; ok {
		d.status = status
	}
	m.ops = append(m.ops, Operation{Op: index.OpSetStatus, DocumentID: documentID, Status: status})
	return nil
}

// ReplaceDocument applies delete, upserts and the status change atomically:
// an injected failure leaves the document untouched.
func (m *Memory) ReplaceDocument(ctx context.Context, documentID int64, entries []index.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure(index.OpReplaceDocument, documentID); err != nil {
		return err
	}
	d, ok := m.docs[documentID]
	if !ok {
		return fmt.Errorf("%w: document %d does not exist", apperrors.ErrStore, documentID)
	}
	m.index.DeleteDocument(documentID)
	for _, e := range entries {
		m.index.Upsert(e)
	}
	d.status = index.StatusIndexed
	m.ops = append(m.ops, Operation{Op: index.OpReplaceDocument, DocumentID: documentID, Status: index.StatusIndexed})
	return nil
}

// PendingIDs returns the IDs of pending documents in insertion order.
func (m *Memory) PendingIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for _, id := range m.order {
		if m.docs[id].status == index.StatusPending {
			ids = append(ids, id)
		}
	}
	return ids
}

func (m *Memory) failure(op string, documentID int64) error {
	if err, ok := m.failures[failureKey{op: op, documentID: documentID}]; ok {
		return fmt.Errorf("%w: %w", apperrors.ErrStore, err)
	}
	return nil
}
