package analysis

import (
	"regexp"
	"sort"
	"strings"

	"github.com/selivandex/marketmood/pkg/models"
)

// symbolPattern is one surface form a ticker mention can take
type symbolPattern struct {
	name string
	re   *regexp.Regexp
	// skipAfterDollar drops matches directly preceded by '$' so the
	// bare form does not re-count what the cashtag form already saw
	skipAfterDollar bool
}

// SymbolExtractor finds candidate ticker mentions in free text.
//
// Patterns overlap on purpose: a token matched by more than one pattern is
// counted once per pattern (e.g. the "A" and "I" inside "Apple Inc." are
// counted by the bare pattern while "Apple Inc" is counted by the company
// pattern). Mentions are not validated against a real ticker list.
type SymbolExtractor struct {
	patterns []symbolPattern
}

// NewSymbolExtractor creates extractor with the default pattern set
func NewSymbolExtractor() *SymbolExtractor {
	return &SymbolExtractor{
		patterns: []symbolPattern{
			{name: "cashtag", re: regexp.MustCompile(`\$[A-Z]{1,5}`)},
			{name: "bare", re: regexp.MustCompile(`[A-Z]{1,5}`), skipAfterDollar: true},
			{name: "inc", re: regexp.MustCompile(`[A-Za-z]+ Inc\.`)},
			{name: "corp", re: regexp.MustCompile(`[A-Za-z]+ Corp\.`)},
		},
	}
}

// Extract returns mentions ranked by count desc, ties in first-seen order.
// Scan order is pattern by pattern, left to right within a pattern.
func (e *SymbolExtractor) Extract(text string) []models.StockMention {
	counter := newOrderedCounter()

	for _, p := range e.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			if p.skipAfterDollar && loc[0] > 0 && text[loc[0]-1] == '$' {
				continue
			}
			counter.add(normalizeSymbol(text[loc[0]:loc[1]]))
		}
	}

	ranked := counter.ranked(0)
	mentions := make([]models.StockMention, len(ranked))
	for i, entry := range ranked {
		mentions[i] = models.StockMention{Symbol: entry.key, Count: entry.count}
	}

	return mentions
}

// normalizeSymbol strips '$' and then '.' from both ends
func normalizeSymbol(match string) string {
	return strings.Trim(strings.Trim(match, "$"), ".")
}

// orderedCounter tallies keys remembering first-seen order
type orderedCounter struct {
	index  map[string]int
	counts []counted
}

type counted struct {
	key   string
	count int
}

func newOrderedCounter() *orderedCounter {
	return &orderedCounter{index: make(map[string]int)}
}

func (c *orderedCounter) add(key string) {
	if i, ok := c.index[key]; ok {
		c.counts[i].count++
		return
	}
	c.index[key] = len(c.counts)
	c.counts = append(c.counts, counted{key: key, count: 1})
}

// ranked returns entries by count desc, stable on insertion order.
// limit <= 0 means no limit.
func (c *orderedCounter) ranked(limit int) []counted {
	out := make([]counted, len(c.counts))
	copy(out, c.counts)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].count > out[j].count
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
