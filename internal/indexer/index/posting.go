package index

// Status is a document's lifecycle marker in the documents table.
type Status string

const (
	StatusPending Status = "pending"
	StatusIndexed Status = "indexed"
)

// Document is a row of the documents table awaiting indexing.
type Document struct {
	ID      int64
	URL     string
	Title   string
	Content string
}

// Posting holds one term's statistics within one document. Positions are
// strictly increasing and len(Positions) == Frequency.
type Posting struct {
	Frequency int32
	Positions []int32
}

// Entry is one row of the inverted index, keyed by (Term, DocumentID).
type Entry struct {
	Term       string
	DocumentID int64
	Frequency  int32
	Positions  []int32
}

// Key identifies an index entry.
type Key struct {
	Term       string
	DocumentID int64
}

func (e Entry) Key() Key {
	return Key{Term: e.Term, DocumentID: e.DocumentID}
}
