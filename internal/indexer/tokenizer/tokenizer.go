// Package tokenizer turns document text into the ordered term stream that
// the index is built from. Words are found with the Unicode default word
// boundary rules (UAX #29), lower-cased, and kept only when longer than two
// code points. There is no stemming and no stop-word list.
package tokenizer

import (
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/segment"
)

// MinTermLength is the shortest term kept, in Unicode code points.
const MinTermLength = 3

// Tokenize returns the normalised terms of text in document order.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	// Invalid byte sequences become U+FFFD so segmentation never stops early.
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}
	seg := segment.NewWordSegmenterDirect([]byte(text))
	tokens := make([]string, 0, len(text)/6)
	for seg.Segment() {
		if seg.Type() == segment.None {
			continue
		}
		term := strings.ToLower(string(seg.Bytes()))
		if utf8.RuneCountInString(term) < MinTermLength {
			continue
		}
		tokens = append(tokens, term)
	}
	return tokens
}
