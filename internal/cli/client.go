package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"placement-predictor/internal/common/errors"
	apihttp "placement-predictor/internal/common/http"
	"placement-predictor/internal/features"
	"placement-predictor/internal/pipeline"
	"placement-predictor/internal/prediction"
	"placement-predictor/internal/results"
)

// Catalog describes what a predictor can serve.
type Catalog struct {
	Models   []prediction.ModelInfo `json:"models"`
	Default  string                 `json:"default"`
	Features []features.Column      `json:"features"`
}

// Predictor is what the commands drive: the in-process service or a
// remote server.
type Predictor interface {
	Catalog(ctx context.Context) (*Catalog, error)
	PredictRecord(ctx context.Context, record pipeline.FeatureRecord, req prediction.Request) (*prediction.SingleResponse, error)
	PredictFile(ctx context.Context, path string, req prediction.Request) (*prediction.BatchResponse, error)
	RecentRuns(ctx context.Context, limit int) ([]results.Run, error)
}

// LocalPredictor runs predictions in process.
type LocalPredictor struct {
	svc *prediction.Service
}

func NewLocalPredictor(svc *prediction.Service) *LocalPredictor {
	return &LocalPredictor{svc: svc}
}

func (l *LocalPredictor) Catalog(context.Context) (*Catalog, error) {
	return &Catalog{Models: l.svc.Models(), Default: l.svc.DefaultModel(), Features: l.svc.Features()}, nil
}

func (l *LocalPredictor) PredictRecord(ctx context.Context, record pipeline.FeatureRecord, req prediction.Request) (*prediction.SingleResponse, error) {
	return l.svc.PredictRecord(ctx, record, req)
}

func (l *LocalPredictor) PredictFile(ctx context.Context, path string, req prediction.Request) (*prediction.BatchResponse, error) {
	return l.svc.PredictFile(ctx, path, req)
}

func (l *LocalPredictor) RecentRuns(ctx context.Context, limit int) ([]results.Run, error) {
	return l.svc.RecentRuns(ctx, limit)
}

// RemotePredictor calls a running predictor server.
type RemotePredictor struct {
	client *apihttp.Client
}

func NewRemotePredictor(client *apihttp.Client) *RemotePredictor {
	return &RemotePredictor{client: client}
}

func (r *RemotePredictor) Catalog(ctx context.Context) (*Catalog, error) {
	var c Catalog
	if err := r.client.GetJSON(ctx, "/models", nil, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *RemotePredictor) PredictRecord(ctx context.Context, record pipeline.FeatureRecord, req prediction.Request) (*prediction.SingleResponse, error) {
	body := map[string]interface{}{"model": req.Model, "record": record}
	if req.Threshold != nil {
		body["threshold"] = *req.Threshold
	}
	var resp prediction.SingleResponse
	if err := r.client.PostJSON(ctx, "/predict/one", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *RemotePredictor) PredictFile(ctx context.Context, path string, req prediction.Request) (*prediction.BatchResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("open input file", err)
	}
	defer f.Close()

	fields := map[string]string{"model": req.Model}
	if req.Threshold != nil {
		fields["threshold"] = strconv.FormatFloat(*req.Threshold, 'f', -1, 64)
	}
	var resp prediction.BatchResponse
	if err := r.client.PostFile(ctx, "/predict", filepath.Base(path), f, fields, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *RemotePredictor) RecentRuns(ctx context.Context, limit int) ([]results.Run, error) {
	var out struct {
		Runs []results.Run `json:"runs"`
	}
	if err := r.client.GetJSON(ctx, "/runs", url.Values{"limit": {strconv.Itoa(limit)}}, &out); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out.Runs, nil
}
