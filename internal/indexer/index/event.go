package index

import "time"

// IndexedEvent announces that a document's entries are written and its
// status is indexed.
type IndexedEvent struct {
	DocumentID int64     `json:"document_id"`
	URL        string    `json:"url"`
	Terms      int       `json:"terms"`
	Tokens     int       `json:"tokens"`
	IndexedAt  time.Time `json:"indexed_at"`
}
