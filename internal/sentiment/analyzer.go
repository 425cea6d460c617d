package sentiment

import (
	"strings"
)

// Analyzer performs keyword-weighted polarity scoring tuned for retail
// stock-market chatter
type Analyzer struct {
	positiveWords map[string]float64
	negativeWords map[string]float64
	intensifiers  map[string]float64
	negators      map[string]bool
}

const (
	negationWindow  = 3
	intensityWindow = 2
)

// NewAnalyzer creates new sentiment analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		positiveWords: buildPositiveWords(),
		negativeWords: buildNegativeWords(),
		intensifiers:  buildIntensifiers(),
		negators:      buildNegators(),
	}
}

// AnalyzeSentiment analyzes text and returns sentiment score (-1.0 to 1.0)
func (a *Analyzer) AnalyzeSentiment(text string) float64 {
	if text == "" {
		return 0.0
	}

	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0.0
	}

	var score float64
	matchCount := 0

	for i := range words {
		words[i] = strings.Trim(words[i], ".,!?;:\"'()[]*$")
	}

	for i, word := range words {
		weight := a.positiveWords[word] - a.negativeWords[word]
		if weight == 0 {
			continue
		}

		// "not bullish" counts as bearish, "very bullish" counts more
		if a.negated(words, i) {
			weight = -weight
		}
		score += weight * a.intensity(words, i)
		matchCount++
	}

	if matchCount == 0 {
		return 0.0
	}

	// Weighted hits dominate short posts, diluted by length in long ones
	normalizedScore := score / float64(matchCount) * densityFactor(matchCount, len(words))

	if normalizedScore > 1.0 {
		normalizedScore = 1.0
	} else if normalizedScore < -1.0 {
		normalizedScore = -1.0
	}

	return normalizedScore
}

// negated reports whether a negator appears in the few words before i
func (a *Analyzer) negated(words []string, i int) bool {
	for j := max(0, i-negationWindow); j < i; j++ {
		if a.negators[words[j]] {
			return true
		}
	}
	return false
}

// intensity returns the multiplier of the nearest preceding intensifier
func (a *Analyzer) intensity(words []string, i int) float64 {
	for j := i - 1; j >= max(0, i-intensityWindow); j-- {
		if mult, ok := a.intensifiers[words[j]]; ok {
			return mult
		}
	}
	return 1.0
}

// densityFactor scales from 0.5 (one hit in a long text) up to 1.0
func densityFactor(matches, words int) float64 {
	density := float64(matches) / float64(words)
	if density > 0.5 {
		density = 0.5
	}
	return 0.5 + density
}

// buildPositiveWords returns bullish keywords
func buildPositiveWords() map[string]float64 {
	return map[string]float64{
		// General positive
		"bullish":      1.0,
		"bull":         0.9,
		"bulls":        0.9,
		"rally":        0.9,
		"surge":        0.8,
		"soar":         0.8,
		"soaring":      0.8,
		"breakout":     0.7,
		"beat":         0.6,
		"beats":        0.6,
		"gain":         0.6,
		"gains":        0.6,
		"profit":       0.6,
		"win":          0.6,
		"green":        0.6,
		"up":           0.4,
		"rise":         0.5,
		"growth":       0.5,
		"strong":       0.5,
		"undervalued":  0.6,
		"upgrade":      0.6,
		"buy":          0.5,
		"long":         0.4,
		"positive":     0.5,
		"optimistic":   0.5,
		"momentum":     0.4,
		"outperform":   0.6,
		"record":       0.5,
		"dividend":     0.3,
		"breakthrough": 0.6,

		// Retail / WSB slang
		"moon":     0.8,
		"mooning":  0.8,
		"rocket":   0.7,
		"🚀":        0.7,
		"tendies":  0.7,
		"calls":    0.5,
		"yolo":     0.4,
		"squeeze":  0.6,
		"diamond":  0.5,
		"hodl":     0.5,
		"stonks":   0.4,
		"lambo":    0.6,
		"printing": 0.5,
	}
}

// buildNegativeWords returns bearish keywords
func buildNegativeWords() map[string]float64 {
	return map[string]float64{
		// General negative
		"bearish":     1.0,
		"bear":        0.9,
		"bears":       0.9,
		"crash":       1.0,
		"dump":        0.9,
		"plunge":      0.8,
		"tank":        0.8,
		"tanking":     0.8,
		"fall":        0.6,
		"drop":        0.6,
		"decline":     0.6,
		"miss":        0.6,
		"missed":      0.6,
		"loss":        0.7,
		"losses":      0.7,
		"red":         0.6,
		"down":        0.4,
		"weak":        0.5,
		"negative":    0.5,
		"pessimistic": 0.5,
		"fear":        0.6,
		"panic":       0.8,
		"sell":        0.5,
		"selloff":     0.7,
		"short":       0.4,
		"correction":  0.6,
		"recession":   0.8,
		"downgrade":   0.6,
		"overvalued":  0.6,
		"bubble":      0.6,
		"bankruptcy":  1.0,
		"fraud":       1.0,
		"lawsuit":     0.7,
		"layoffs":     0.6,
		"inflation":   0.4,

		// Retail / WSB slang
		"puts":       0.5,
		"bagholder":  0.7,
		"bagholding": 0.7,
		"rekt":       0.8,
		"guh":        0.8,
		"drilling":   0.6,
		"fud":        0.6,
		"capitulate": 0.8,
		"margin":     0.3,
	}
}

func buildIntensifiers() map[string]float64 {
	return map[string]float64{
		"very":         1.5,
		"extremely":    2.0,
		"super":        1.5,
		"massively":    2.0,
		"hugely":       1.8,
		"sharply":      1.5,
		"strongly":     1.3,
		"absolutely":   1.5,
		"totally":      1.5,
		"huge":         1.5,
		"massive":      1.8,
		"insanely":     1.8,
		"mega":         1.5,
		"literally":    1.2,
		"seriously":    1.3,
		"ridiculously": 1.5,
	}
}

func buildNegators() map[string]bool {
	return map[string]bool{
		"not":     true,
		"no":      true,
		"never":   true,
		"nothing": true,
		"hardly":  true,
		"barely":  true,
		"without": true,
		"dont":    true,
		"don't":   true,
		"doesnt":  true,
		"doesn't": true,
		"isnt":    true,
		"isn't":   true,
		"wont":    true,
		"won't":   true,
		"aint":    true,
		"ain't":   true,
		"cant":    true,
		"can't":   true,
	}
}
