// Package prediction is the entry point shared by the HTTP and CLI surfaces:
// it parses input, runs the pipeline, persists results and records the run.
package prediction

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"placement-predictor/internal/common/errors"
	"placement-predictor/internal/common/logger"
	"placement-predictor/internal/common/metrics"
	"placement-predictor/internal/common/observability"
	"placement-predictor/internal/features"
	"placement-predictor/internal/pipeline"
	"placement-predictor/internal/results"
	"placement-predictor/internal/tabular"
	"placement-predictor/pkg/registry"
)

// Request selects the backend and threshold. Zero values fall back to the
// service defaults.
type Request struct {
	Model     string
	Threshold *float64
}

// BatchResponse mirrors the JSON returned by POST /predict.
type BatchResponse struct {
	Success     bool                        `json:"success"`
	Message     string                      `json:"message"`
	Model       string                      `json:"model"`
	RunID       string                      `json:"runId"`
	OutputPath  string                      `json:"outputPath,omitempty"`
	Predictions []pipeline.PredictionResult `json:"predictions"`
}

// SingleResponse is returned for one-record predictions.
type SingleResponse struct {
	Success    bool                      `json:"success"`
	Message    string                    `json:"message"`
	Model      string                    `json:"model"`
	Cached     bool                      `json:"cached"`
	Prediction pipeline.PredictionResult `json:"prediction"`
}

// ModelInfo describes a registered backend.
type ModelInfo struct {
	Name string        `json:"name"`
	Kind registry.Kind `json:"kind"`
}

// Config holds the service defaults.
type Config struct {
	DefaultModel     string
	DefaultThreshold *float64
	UploadDir        string
}

// Service wires the pipeline to persistence. Ledger, cache and obs are
// optional.
type Service struct {
	pipeline *pipeline.Pipeline
	writer   *results.Writer
	ledger   results.Ledger
	cache    *Cache
	obs      *observability.Observability
	cfg      Config
	log      logger.Logger
}

// Option configures optional collaborators.
type Option func(*Service)

func WithLedger(l results.Ledger) Option { return func(s *Service) { s.ledger = l } }
func WithCache(c *Cache) Option         { return func(s *Service) { s.cache = c } }

func WithObservability(o *observability.Observability) Option {
	return func(s *Service) { s.obs = o }
}

func NewService(p *pipeline.Pipeline, w *results.Writer, cfg Config, log logger.Logger, opts ...Option) *Service {
	if cfg.DefaultThreshold == nil {
		t := pipeline.DefaultThreshold
		cfg.DefaultThreshold = &t
	}
	s := &Service{
		pipeline: p,
		writer:   w,
		ledger:   results.NopLedger{},
		cfg:      cfg,
		log:      log.WithFields(map[string]interface{}{"component": "prediction_service"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultModel is the backend used when a request names none.
func (s *Service) DefaultModel() string { return s.cfg.DefaultModel }

// Models lists registered backends sorted by name.
func (s *Service) Models() []ModelInfo {
	entries := s.pipeline.Registry().Entries()
	out := make([]ModelInfo, len(entries))
	for i, e := range entries {
		out[i] = ModelInfo{Name: e.Name, Kind: e.Kind}
	}
	return out
}

// Features lists the schema's feature columns in model order.
func (s *Service) Features() []features.Column {
	return append([]features.Column(nil), s.pipeline.Schema().Features...)
}

func (s *Service) resolve(req Request) (string, float64) {
	model := req.Model
	if model == "" {
		model = s.cfg.DefaultModel
	}
	threshold := *s.cfg.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	return model, threshold
}

// PredictUpload spools an uploaded CSV to a temporary file that is removed
// whatever happens, then scores it.
func (s *Service) PredictUpload(ctx context.Context, src io.Reader, req Request) (*BatchResponse, error) {
	var resp *BatchResponse
	err := tabular.WithTempFile(s.cfg.UploadDir, src, func(path string) error {
		var err error
		resp, err = s.PredictFile(ctx, path, req)
		return err
	})
	if err != nil {
		return nil, errors.Normalize(err)
	}
	return resp, nil
}

// PredictFile scores the CSV file at path.
func (s *Service) PredictFile(ctx context.Context, path string, req Request) (*BatchResponse, error) {
	table, err := tabular.ReadFile(path)
	if err != nil {
		s.fail(ctx, "predict_batch", req.Model, err)
		return nil, errors.Normalize(err)
	}
	return s.PredictTable(ctx, table, req)
}

// PredictTable scores a parsed table, writes the predictions file and
// records the run. A persistence failure still returns the predictions.
func (s *Service) PredictTable(ctx context.Context, table *tabular.Table, req Request) (*BatchResponse, error) {
	start := time.Now()
	model, threshold := s.resolve(req)
	runID := uuid.New()
	log := s.log.WithFields(map[string]interface{}{"runId": runID.String(), "model": model})

	if missing := s.pipeline.Schema().Missing(table.Header); len(missing) > 0 {
		err := errors.NewMissingColumnsError(missing)
		s.recordRun(ctx, runID, model, threshold, table.Len(), nil, "", err, start)
		s.fail(ctx, "predict_batch", model, err)
		return nil, err
	}

	rs, err := s.pipeline.PredictBatch(ctx, table.Records(), model, pipeline.WithThreshold(threshold))
	if err != nil {
		s.recordRun(ctx, runID, model, threshold, table.Len(), nil, "", err, start)
		s.fail(ctx, "predict_batch", model, err)
		return nil, err
	}

	resp := &BatchResponse{
		Success:     true,
		Model:       model,
		RunID:       runID.String(),
		Predictions: rs.Results,
	}
	path, werr := s.writer.Write(ctx, table, rs)
	if werr != nil {
		resp.Message = fmt.Sprintf("Predictions generated but could not be saved: %s", errors.UserMessage(werr))
		log.Warn("Returning unsaved predictions", map[string]interface{}{"error": werr.Error()})
	} else {
		resp.OutputPath = path
		resp.Message = fmt.Sprintf("Predictions saved to %s", path)
	}

	s.recordRun(ctx, runID, model, threshold, table.Len(), rs, path, werr, start)
	s.succeed(ctx, "predict_batch", model, rs.Len(), start)
	log.Info("Batch prediction completed", map[string]interface{}{
		"rows":       rs.Len(),
		"placed":     rs.PlacedCount(),
		"saved":      werr == nil,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return resp, nil
}

// PredictRecord scores one record, consulting the cache when configured.
func (s *Service) PredictRecord(ctx context.Context, record pipeline.FeatureRecord, req Request) (*SingleResponse, error) {
	start := time.Now()
	model, threshold := s.resolve(req)

	var key string
	if s.cache != nil {
		if vecs, err := s.pipeline.Schema().Vectorize([]pipeline.FeatureRecord{record}); err == nil {
			if _, rerr := s.pipeline.Registry().Resolve(model); rerr == nil {
				key = s.cache.Key(s.pipeline.Schema().Fingerprint(), model, threshold, vecs[0])
				if hit, ok := s.cache.Get(ctx, key); ok {
					hit.Identifier = pipeline.IdentifierOf(record, s.pipeline.Schema().Identifier)
					s.succeed(ctx, "predict_one", model, 1, start)
					return &SingleResponse{Success: true, Message: "Prediction served from cache", Model: model, Cached: true, Prediction: *hit}, nil
				}
			}
		}
	}

	res, err := s.pipeline.PredictOne(ctx, record, model, pipeline.WithThreshold(threshold))
	if err != nil {
		s.fail(ctx, "predict_one", model, err)
		return nil, err
	}
	if key != "" {
		s.cache.Set(ctx, key, res)
	}
	s.succeed(ctx, "predict_one", model, 1, start)
	return &SingleResponse{Success: true, Message: "Prediction generated", Model: model, Prediction: *res}, nil
}


func (s *Service) succeed(ctx context.Context, operation, model string, rows int, start time.Time) {
	elapsed := time.Since(start)
	metrics.PredictionsTotal.WithLabelValues(model).Inc()
	metrics.PredictionRowsTotal.WithLabelValues(model).Add(float64(rows))
	metrics.PredictionDuration.WithLabelValues(model).Observe(elapsed.Seconds())
	s.obs.RecordRequest(ctx, operation, "success")
	s.obs.RecordDuration(ctx, operation, elapsed, "success")
}

func (s *Service) fail(ctx context.Context, operation, model string, err error) {
	code := errors.CodeOf(err)
	label := model
	if code == errors.ErrCodeUnknownModel || model == "" {
		label = "unknown"
	}
	metrics.PredictionFailures.WithLabelValues(label, string(code)).Inc()
	s.obs.RecordRequest(ctx, operation, "error")
	s.log.Warn("Prediction failed", map[string]interface{}{
		"operation": operation,
		"model":     model,
		"errorCode": string(code),
		"error":     err.Error(),
	})
}

func (s *Service) recordRun(ctx context.Context, id uuid.UUID, model string, threshold float64, rows int, rs *pipeline.ResultSet, path string, runErr error, start time.Time) {
	run := results.Run{
		ID:         id,
		Backend:    model,
		Threshold:  threshold,
		Rows:       rows,
		OutputPath: path,
		Status:     results.RunSucceeded,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if rs != nil {
		run.Placed = rs.PlacedCount()
	}
	if runErr != nil {
		run.ErrorCode = string(errors.CodeOf(runErr))
		if rs == nil {
			run.Status = results.RunFailed
		}
	}
	// The ledger is an audit trail; losing an entry never fails the request.
	if err := s.ledger.Record(context.WithoutCancel(ctx), run); err != nil {
		s.log.Warn("Run not recorded", map[string]interface{}{"runId": id.String(), "error": err.Error()})
	}
}

// RecentRuns returns the latest ledger entries.
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]results.Run, error) {
	return s.ledger.Recent(ctx, limit)
}
