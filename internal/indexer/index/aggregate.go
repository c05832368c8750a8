// Package index folds a document's token stream into per-term statistics and
// holds the in-memory form of the inverted index.
package index

import (
	"fmt"
	"math"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/errors"
)

// maxTokens is the longest token stream whose positions fit in an int32.
// Tests lower it to exercise the overflow path.
var maxTokens = math.MaxInt32

// Aggregate folds tokens into term -> Posting in a single pass. The key set
// is exactly the set of distinct tokens.
func Aggregate(tokens []string) (map[string]*Posting, error) {
	if len(tokens) > maxTokens {
		return nil, fmt.Errorf("%w: %d tokens", apperrors.ErrPositionOverflow, len(tokens))
	}
	termData := make(map[string]*Posting)
	for i, term := range tokens {
		p, exists := termData[term]
		if !exists {
			p = &Posting{
				Positions: make([]int32, 0, 4),
			}
			termData[term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, int32(i))
	}
	return termData, nil
}

// Entries converts postings for one document into index entries sorted by
// term.
func Entries(documentID int64, postings map[string]*Posting) []Entry {
	entries := make([]Entry, 0, len(postings))
	for term, p := range postings {
		entries = append(entries, Entry{
			Term:       term,
			DocumentID: documentID,
			Frequency:  p.Frequency,
			Positions:  p.Positions,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}
