// Package api exposes the prediction service over HTTP.
package api

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"placement-predictor/internal/common/config"
	"placement-predictor/internal/common/errors"
	"placement-predictor/internal/common/logger"
	"placement-predictor/internal/features"
	"placement-predictor/internal/pipeline"
	"placement-predictor/internal/prediction"
	"placement-predictor/internal/results"
)

// Predictor is the subset of the prediction service the handlers use.
type Predictor interface {
	PredictUpload(ctx context.Context, src io.Reader, req prediction.Request) (*prediction.BatchResponse, error)
	PredictRecord(ctx context.Context, record pipeline.FeatureRecord, req prediction.Request) (*prediction.SingleResponse, error)
	Models() []prediction.ModelInfo
	Features() []features.Column
	DefaultModel() string
	RecentRuns(ctx context.Context, limit int) ([]results.Run, error)
}

// Server owns the gin engine and the underlying http.Server.
type Server struct {
	engine         *gin.Engine
	httpServer     *http.Server
	svc            Predictor
	errs           *errors.ErrorHandler
	log            logger.Logger
	maxUpload      int64
	requestTimeout time.Duration
}

func NewServer(cfg config.ServerConfig, svc Predictor, log logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		engine:         engine,
		svc:            svc,
		errs:           errors.NewErrorHandler(log),
		log:            log.WithFields(map[string]interface{}{"component": "http"}),
		maxUpload:      cfg.MaxUploadBytes,
		requestTimeout: config.GetDuration(cfg.RequestTimeout),
	}
	engine.Use(gin.Recovery(), RequestID(), Logging(s.log))
	s.routes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      engine,
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/", s.index)
	s.engine.GET("/health", s.health)
	s.engine.GET("/ready", s.ready)
	s.engine.GET("/models", s.models)
	s.engine.GET("/runs", s.runs)
	s.engine.POST("/predict", s.predictBatch)
	s.engine.POST("/predict/one", s.predictOne)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler returns the routed engine, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", map[string]interface{}{"addr": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) fail(c *gin.Context, operation string, err error) {
	status, body := s.errs.Handle(operation, err)
	c.AbortWithStatusJSON(status, body)
}
