package analysis

import (
	"math"
	"math/rand"
	"testing"

	"github.com/selivandex/marketmood/pkg/models"
)

func TestSymbolExtractor_Extract(t *testing.T) {
	extractor := NewSymbolExtractor()

	tests := []struct {
		name string
		text string
		want []models.StockMention
	}{
		{
			name: "cashtag and bare forms",
			text: "TSLA and $TSLA are bullish, $AAPL too.",
			want: []models.StockMention{
				{Symbol: "TSLA", Count: 2},
				{Symbol: "AAPL", Count: 1},
			},
		},
		{
			name: "company suffixes overlap with bare capitals",
			text: "Apple Inc. and Microsoft Corp. rallied",
			want: []models.StockMention{
				{Symbol: "A", Count: 1},
				{Symbol: "I", Count: 1},
				{Symbol: "M", Count: 1},
				{Symbol: "C", Count: 1},
				{Symbol: "Apple Inc", Count: 1},
				{Symbol: "Microsoft Corp", Count: 1},
			},
		},
		{
			name: "long capital runs split at five letters",
			text: "NVIDIA",
			want: []models.StockMention{
				{Symbol: "NVIDI", Count: 1},
				{Symbol: "A", Count: 1},
			},
		},
		{
			name: "ties keep first-seen order",
			text: "GME AMC GME AMC BB",
			want: []models.StockMention{
				{Symbol: "GME", Count: 2},
				{Symbol: "AMC", Count: 2},
				{Symbol: "BB", Count: 1},
			},
		},
		{
			name: "no capitals",
			text: "the market is quiet today",
			want: []models.StockMention{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractor.Extract(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("Extract() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("mention %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestWordFrequencies(t *testing.T) {
	got := WordFrequencies("the Market is UP the market is up", 5)

	want := []models.WordFrequencyEntry{
		{Word: "the", Frequency: 2},
		{Word: "market", Frequency: 2},
		{Word: "is", Frequency: 2},
		{Word: "up", Frequency: 2},
	}

	if len(got) != len(want) {
		t.Fatalf("WordFrequencies() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestWordFrequencies_Bounds(t *testing.T) {
	t.Run("truncates to max words", func(t *testing.T) {
		got := WordFrequencies("a a a b b c d e", 2)
		if len(got) != 2 || got[0].Word != "a" || got[1].Word != "b" {
			t.Errorf("unexpected top-2: %v", got)
		}
	})

	t.Run("keeps punctuation attached", func(t *testing.T) {
		got := WordFrequencies("moon! moon", 10)
		if len(got) != 2 {
			t.Fatalf("expected 'moon!' and 'moon' to be distinct tokens, got %v", got)
		}
	})

	t.Run("non-positive max uses default", func(t *testing.T) {
		text := ""
		for i := 0; i < 150; i++ {
			text += string(rune('a'+i%26)) + string(rune('a'+i/26)) + " "
		}
		if got := WordFrequencies(text, 0); len(got) != DefaultMaxWords {
			t.Errorf("expected %d entries, got %d", DefaultMaxWords, len(got))
		}
	})

	t.Run("empty text", func(t *testing.T) {
		if got := WordFrequencies("   ", 10); len(got) != 0 {
			t.Errorf("expected no entries, got %v", got)
		}
	})
}

func TestFearGreedIndex_Single(t *testing.T) {
	for _, s := range []float64{-1, -0.73, -0.1, 0, 0.3, 0.999, 1} {
		want := (s + 1) * 50
		if got := FearGreedIndex([]float64{s}); got != want {
			t.Errorf("FearGreedIndex([%v]) = %v, want exactly %v", s, got, want)
		}
	}
}

func TestFearGreedIndex_Empty(t *testing.T) {
	if got := FearGreedIndex(nil); got != 50.0 {
		t.Errorf("FearGreedIndex(nil) = %v, want 50.0", got)
	}
	if got := FearGreedIndex([]float64{}); got != 50.0 {
		t.Errorf("FearGreedIndex([]) = %v, want 50.0", got)
	}
}

func TestFearGreedIndex_OrderInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	scores := make([]float64, 257)
	for i := range scores {
		scores[i] = rng.Float64()*2 - 1
	}

	want := FearGreedIndex(scores)

	for round := 0; round < 20; round++ {
		shuffled := make([]float64, len(scores))
		copy(shuffled, scores)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		if got := FearGreedIndex(shuffled); got != want {
			t.Fatalf("round %d: FearGreedIndex changed with order: %v != %v", round, got, want)
		}
	}

	if want < 0 || want > 100 {
		t.Errorf("index out of range: %v", want)
	}
}

func TestFearGreedIndex_Mean(t *testing.T) {
	got := FearGreedIndex([]float64{-1, 1, 0.5})
	want := (0.0 + 100.0 + 75.0) / 3
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("FearGreedIndex = %v, want %v", got, want)
	}
}

func TestVolatility(t *testing.T) {
	if v := Volatility([]float64{0.5}); v != 0 {
		t.Errorf("single score volatility = %v, want 0", v)
	}
	if v := Volatility([]float64{-1, 1}); math.Abs(v-1) > 1e-12 {
		t.Errorf("Volatility([-1,1]) = %v, want 1", v)
	}
}
