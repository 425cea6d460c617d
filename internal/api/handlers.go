package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/selivandex/marketmood/internal/adapters/corpus"
	"github.com/selivandex/marketmood/pkg/apperr"
	"github.com/selivandex/marketmood/pkg/models"
)

const (
	defaultHistoryDays = 30
	maxHistoryDays     = 365
	defaultStrategy    = "local"
)

type handlers struct {
	deps Deps
}

func (h *handlers) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to MarketMood API",
		"status":  "operational",
		"version": version,
	})
}

// marketView serves one projection of the latest (or ?date=) analysis
func (h *handlers) marketView(c *gin.Context) {
	project, ok := marketViews[c.Param("view")]
	if !ok {
		respondError(c, apperr.New(apperr.KindNotFound, "unknown market view %q", c.Param("view")))
		return
	}

	var (
		analysis *models.DailyAnalysis
		err      error
	)
	if date := c.Query("date"); date != "" {
		if _, parseErr := time.Parse(models.DateLayout, date); parseErr != nil {
			respondError(c, apperr.New(apperr.KindInvalidInput, "date must be YYYY-MM-DD"))
			return
		}
		analysis, err = h.deps.Analyses.GetAnalysisByDate(c.Request.Context(), date)
	} else {
		analysis, err = h.deps.Analyses.GetLatestAnalysis(c.Request.Context())
	}

	if err != nil {
		respondError(c, apperr.Wrap(apperr.KindPersistence, err, "failed to load market analysis"))
		return
	}
	if analysis == nil {
		respondError(c, apperr.New(apperr.KindNotFound, noAnalysisMessage))
		return
	}

	c.JSON(http.StatusOK, project(analysis))
}

var marketViews = map[string]func(a *models.DailyAnalysis) any{
	"overview": func(a *models.DailyAnalysis) any {
		return a
	},
	"sentiment": func(a *models.DailyAnalysis) any {
		return gin.H{
			"fear_greed_index": a.FearGreedIndex,
			"market_sentiment": a.MarketSentiment,
			"risk_indicators":  a.RiskIndicators,
			"date":             a.Date,
			"last_updated":     a.CreatedAt,
		}
	},
	"wordcloud": func(a *models.DailyAnalysis) any {
		return gin.H{
			"word_frequencies": a.WordFrequencies,
			"timestamp":        a.CreatedAt,
		}
	},
	"stocks": func(a *models.DailyAnalysis) any {
		return gin.H{
			"stock_mentions": a.StockMentions,
			"date":           a.Date,
			"last_updated":   a.CreatedAt,
		}
	},
	"trends": func(a *models.DailyAnalysis) any {
		return gin.H{
			"trending_topics": a.TrendingTopics,
			"date":            a.Date,
			"last_updated":    a.CreatedAt,
		}
	},
}

// content lists corpus items in [start, end]; the default range is the
// trailing 24 hours
func (h *handlers) content(c *gin.Context) {
	end := h.deps.Clock().UTC()
	start := end.Add(-24 * time.Hour)

	var err error
	if v := c.Query("end"); v != "" {
		if end, err = time.Parse(time.RFC3339, v); err != nil {
			respondError(c, apperr.New(apperr.KindInvalidInput, "end must be RFC3339"))
			return
		}
		if c.Query("start") == "" {
			start = end.Add(-24 * time.Hour)
		}
	}
	if v := c.Query("start"); v != "" {
		if start, err = time.Parse(time.RFC3339, v); err != nil {
			respondError(c, apperr.New(apperr.KindInvalidInput, "start must be RFC3339"))
			return
		}
	}
	if start.After(end) {
		respondError(c, apperr.New(apperr.KindInvalidInput, "start must not be after end"))
		return
	}

	page, pageSize := corpus.NormalizePage(queryInt(c, "page", 1), queryInt(c, "page_size", corpus.DefaultPageSize))

	result, err := h.deps.Content.GetContentInRange(c.Request.Context(), start, end, page, pageSize)
	if err != nil {
		respondError(c, apperr.Wrap(apperr.KindPersistence, err, "failed to load content"))
		return
	}

	c.JSON(http.StatusOK, result)
}

// runPipeline triggers the daily pipeline synchronously
func (h *handlers) runPipeline(c *gin.Context) {
	result, err := h.deps.Pipeline.RunDaily(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":      result.RunID,
		"date":        result.Date,
		"status":      result.Status,
		"items":       result.Items,
		"duration_ms": result.Duration.Milliseconds(),
		"analysis":    result.Analysis,
	})
}

type scoreRequest struct {
	Text     string `json:"text" binding:"required"`
	Strategy string `json:"strategy" binding:"omitempty,oneof=local remote"`
}

type scoreResponse struct {
	Strategy   string                `json:"strategy"`
	Text       string                `json:"text"`
	Score      float64               `json:"sentiment_score"`
	Label      models.SentimentLabel `json:"sentiment_label"`
	Confidence *float64              `json:"confidence"`
}

// scoreSentiment scores ad-hoc text with the chosen strategy
func (h *handlers) scoreSentiment(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.New(apperr.KindInvalidInput, "text is required and strategy must be local or remote"))
		return
	}
	if req.Strategy == "" {
		req.Strategy = defaultStrategy
	}

	scorer, ok := h.deps.Scorers[req.Strategy]
	if !ok {
		respondError(c, apperr.New(apperr.KindInvalidInput, "strategy %q is not configured", req.Strategy))
		return
	}

	score, err := scorer.Score(c.Request.Context(), req.Text)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			err = apperr.Wrap(apperr.KindScoring, err, "sentiment scoring failed")
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, scoreResponse{
		Strategy:   req.Strategy,
		Text:       req.Text,
		Score:      score.Score,
		Label:      score.ResolvedLabel(),
		Confidence: score.Confidence,
	})
}

// mentionHistory returns per-date mention counts for one symbol
func (h *handlers) mentionHistory(c *gin.Context) {
	symbol := strings.TrimSpace(strings.TrimPrefix(c.Param("symbol"), "$"))
	if symbol == "" {
		respondError(c, apperr.New(apperr.KindInvalidInput, "symbol is required"))
		return
	}

	days := queryInt(c, "days", defaultHistoryDays)
	if days < 1 || days > maxHistoryDays {
		respondError(c, apperr.New(apperr.KindInvalidInput, "days must be between 1 and %d", maxHistoryDays))
		return
	}

	since := h.deps.Clock().UTC().AddDate(0, 0, -days)
	history, err := h.deps.Mentions.GetSymbolHistory(c.Request.Context(), symbol, since)
	if err != nil {
		respondError(c, apperr.Wrap(apperr.KindPersistence, err, "failed to load mention history"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":  symbol,
		"days":    days,
		"history": history,
	})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
