package analysis

import (
	"strings"

	"github.com/selivandex/marketmood/pkg/models"
)

// DefaultMaxWords bounds the word cloud histogram
const DefaultMaxWords = 100

// WordFrequencies lowercases text, splits on whitespace and returns the
// top maxWords tokens by count, ties in first-seen order. Punctuation stays
// attached to tokens and no stop words are removed.
func WordFrequencies(text string, maxWords int) []models.WordFrequencyEntry {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}

	counter := newOrderedCounter()
	for _, word := range strings.Fields(strings.ToLower(text)) {
		counter.add(word)
	}

	ranked := counter.ranked(maxWords)
	entries := make([]models.WordFrequencyEntry, len(ranked))
	for i, entry := range ranked {
		entries[i] = models.WordFrequencyEntry{Word: entry.key, Frequency: entry.count}
	}

	return entries
}
