package index

import (
	"sort"
	"sync"
)

// MemoryIndex is an in-memory inverted index with the same upsert semantics
// as the search_index table: one posting per (term, document), overwritten
// in full on every write.
type MemoryIndex struct {
	mu    sync.RWMutex
	index map[string]map[int64]*Posting
	size  int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index: make(map[string]map[int64]*Posting),
	}
}

// Upsert inserts or replaces the posting for (e.Term, e.DocumentID).
func (m *MemoryIndex) Upsert(e Entry) {
	positions := make([]int32, len(e.Positions))
	copy(positions, e.Positions)

	m.mu.Lock()
	defer m.mu.Unlock()
	docs, exists := m.index[e.Term]
	if !exists {
		docs = make(map[int64]*Posting)
		m.index[e.Term] = docs
	}
	if _, exists := docs[e.DocumentID]; !exists {
		m.size++
	}
	docs[e.DocumentID] = &Posting{Frequency: e.Frequency, Positions: positions}
}

// Get returns the stored posting for (term, documentID).
func (m *MemoryIndex) Get(term string, documentID int64) (Posting, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.index[term][documentID]
	if !ok {
		return Posting{}, false
	}
	positions := make([]int32, len(p.Positions))
	copy(positions, p.Positions)
	return Posting{Frequency: p.Frequency, Positions: positions}, true
}

// DocumentEntries returns every entry of one document ordered by term.
func (m *MemoryIndex) DocumentEntries(documentID int64) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []Entry
	for term, docs := range m.index {
		if p, ok := docs[documentID]; ok {
			result = append(result, Entry{Term: term, DocumentID: documentID, Frequency: p.Frequency, Positions: p.Positions})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Term < result[j].Term
	})
	return result
}

// DeleteDocument removes every entry of documentID and reports how many
// were removed.
func (m *MemoryIndex) DeleteDocument(documentID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for term, docs := range m.index {
		if _, ok := docs[documentID]; ok {
			delete(docs, documentID)
			removed++
			if len(docs) == 0 {
				delete(m.index, term)
			}
		}
	}
	m.size -= removed
	return removed
}

// Snapshot returns all entries ordered by term, then document ID.
func (m *MemoryIndex) Snapshot() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]Entry, 0, m.size)
	for term, docs := range m.index {
		for docID, p := range docs {
			entries = append(entries, Entry{Term: term, DocumentID: docID, Frequency: p.Frequency, Positions: p.Positions})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Term != entries[j].Term {
			return entries[i].Term < entries[j].Term
		}
		return entries[i].DocumentID < entries[j].DocumentID
	})
	return entries
}

// Size is the number of (term, document) entries.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}
