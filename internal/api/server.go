package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/selivandex/marketmood/internal/adapters/corpus"
	"github.com/selivandex/marketmood/internal/pipeline"
	"github.com/selivandex/marketmood/internal/sentiment"
	"github.com/selivandex/marketmood/pkg/logger"
	"github.com/selivandex/marketmood/pkg/models"
)

const version = "1.0.0"

// AnalysisReader serves persisted daily analyses
type AnalysisReader interface {
	GetLatestAnalysis(ctx context.Context) (*models.DailyAnalysis, error)
	GetAnalysisByDate(ctx context.Context, date string) (*models.DailyAnalysis, error)
}

// ContentBrowser pages through the stored corpus
type ContentBrowser interface {
	GetContentInRange(ctx context.Context, start, end time.Time, page, pageSize int) (*corpus.Page, error)
}

// PipelineRunner triggers an on-demand daily run
type PipelineRunner interface {
	RunDaily(ctx context.Context) (*pipeline.Result, error)
}

// MentionHistory serves per-symbol mention history
type MentionHistory interface {
	GetSymbolHistory(ctx context.Context, symbol string, since time.Time) ([]models.MentionSnapshot, error)
}

// Deps wires the handlers. Mentions, Scorers["remote"] and Gatherer are optional.
type Deps struct {
	Analyses AnalysisReader
	Content  ContentBrowser
	Pipeline PipelineRunner
	Mentions MentionHistory
	Scorers  map[string]sentiment.Scorer
	Gatherer prometheus.Gatherer
	Clock    func() time.Time
}

// Server is the public HTTP API
type Server struct {
	engine *gin.Engine
	server *http.Server
}

// NewServer builds the router and HTTP server for port
func NewServer(port string, deps Deps) *Server {
	engine := NewRouter(deps)

	return &Server{
		engine: engine,
		server: &http.Server{
			Addr:              ":" + port,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
			// on-demand runs wait for the narrative request
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// NewRouter registers every route on a fresh gin engine
func NewRouter(deps Deps) *gin.Engine {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	engine := gin.New()
	engine.Use(recovery(), requestLogger(), permissiveCORS())

	h := &handlers{deps: deps}

	engine.GET("/", h.root)

	api := engine.Group("/api")
	api.GET("/market/:view", h.marketView)
	api.GET("/content", h.content)
	api.POST("/pipeline/run", h.runPipeline)
	api.POST("/sentiment/score", h.scoreSentiment)
	if deps.Mentions != nil {
		api.GET("/mentions/:symbol", h.mentionHistory)
	}

	if deps.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	return engine
}

// Start serves until Stop is called
func (s *Server) Start() error {
	logger.Info("api server starting",
		zap.String("addr", s.server.Addr),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("stopping api server...")
	return s.server.Shutdown(ctx)
}
