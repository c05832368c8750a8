package index

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/errors"
)

func TestAggregate_SimpleDocument(t *testing.T) {
	tokens := []string{"the", "quick", "brown", "fox", "jumps", "over", "the", "quick", "fox"}

	got, err := Aggregate(tokens)
	require.NoError(t, err)

	assert.Equal(t, map[string]*Posting{
		"the":   {Frequency: 2, Positions: []int32{0, 6}},
		"quick": {Frequency: 2, Positions: []int32{1, 7}},
		"brown": {Frequency: 1, Positions: []int32{2}},
		"fox":   {Frequency: 2, Positions: []int32{3, 8}},
		"jumps": {Frequency: 1, Positions: []int32{4}},
		"over":  {Frequency: 1, Positions: []int32{5}},
	}, got)
}

func TestAggregate_Empty(t *testing.T) {
	got, err := Aggregate(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAggregate_RepeatedWord(t *testing.T) {
	got, err := Aggregate([]string{"ant", "ant", "ant"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int32(3), got["ant"].Frequency)
	assert.Equal(t, []int32{0, 1, 2}, got["ant"].Positions)
}

func TestAggregate_PositionOverflow(t *testing.T) {
	saved := maxTokens
	maxTokens = 4
	defer func() { maxTokens = saved }()

	_, err := Aggregate([]string{"one", "two", "three", "four", "five"})
	assert.ErrorIs(t, err, apperrors.ErrPositionOverflow)

	_, err = Aggregate([]string{"one", "two", "three", "four"})
	assert.NoError(t, err)
}

// TestAggregate_Soundness checks frequency == len(positions), strictly
// increasing positions that index back to the term, and that the key set is
// the set of distinct tokens, over random streams.
func TestAggregate_Soundness(t *testing.T) {
	vocabulary := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta"}
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 200; round++ {
		tokens := make([]string, rng.Intn(300))
		distinct := make(map[string]struct{})
		for i := range tokens {
			tokens[i] = vocabulary[rng.Intn(len(vocabulary))]
			distinct[tokens[i]] = struct{}{}
		}

		got, err := Aggregate(tokens)
		require.NoError(t, err)
		require.Len(t, got, len(distinct))

		total := 0
		for term, p := range got {
			require.Equal(t, int(p.Frequency), len(p.Positions), "term %q", term)
			for i, pos := range p.Positions {
				require.GreaterOrEqual(t, pos, int32(0))
				require.Less(t, int(pos), len(tokens))
				require.Equal(t, term, tokens[pos])
				if i > 0 {
					require.Greater(t, pos, p.Positions[i-1])
				}
			}
			total += int(p.Frequency)
		}
		require.Equal(t, len(tokens), total)
	}
}

func TestEntries_SortedByTerm(t *testing.T) {
	postings, err := Aggregate([]string{"quick", "brown", "quick", "apple"})
	require.NoError(t, err)

	entries := Entries(9, postings)

	require.Len(t, entries, 3)
	assert.Equal(t, Entry{Term: "apple", DocumentID: 9, Frequency: 1, Positions: []int32{3}}, entries[0])
	assert.Equal(t, Entry{Term: "brown", DocumentID: 9, Frequency: 1, Positions: []int32{1}}, entries[1])
	assert.Equal(t, Entry{Term: "quick", DocumentID: 9, Frequency: 2, Positions: []int32{0, 2}}, entries[2])
	assert.Equal(t, Key{Term: "quick", DocumentID: 9}, entries[2].Key())
}
