// Package pipeline turns raw records into placement predictions: validate,
// encode and normalize against the feature schema, dispatch to a registered
// backend, threshold, and reassemble in input order.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"placement-predictor/internal/common/errors"
	"placement-predictor/internal/common/logger"
	"placement-predictor/internal/features"
	"placement-predictor/pkg/registry"
)

// DefaultThreshold converts probabilistic scores to labels unless overridden.
const DefaultThreshold = 0.5

type options struct {
	threshold float64
}

// Option customises a single prediction call.
type Option func(*options)

// WithThreshold sets the cutoff for probabilistic backends. It has no effect
// on discrete backends.
func WithThreshold(t float64) Option {
	return func(o *options) { o.threshold = t }
}

// Pipeline is safe for concurrent use. Schema and registry are read-only.
type Pipeline struct {
	schema   *features.Schema
	registry *registry.Registry
	log      logger.Logger
}

func New(schema *features.Schema, reg *registry.Registry, log logger.Logger) *Pipeline {
	return &Pipeline{
		schema:   schema,
		registry: reg,
		log:      log.WithFields(map[string]interface{}{"component": "pipeline"}),
	}
}

// Schema returns the feature schema the pipeline validates against.
func (p *Pipeline) Schema() *features.Schema { return p.schema }

// Registry returns the backend registry.
func (p *Pipeline) Registry() *registry.Registry { return p.registry }

// PredictOne scores a single record.
func (p *Pipeline) PredictOne(ctx context.Context, record FeatureRecord, backend string, opts ...Option) (*PredictionResult, error) {
	rs, err := p.PredictBatch(ctx, []FeatureRecord{record}, backend, opts...)
	if err != nil {
		return nil, err
	}
	return &rs.Results[0], nil
}

// PredictBatch scores records in one backend call. It either returns one
// result per record in input order or a single *errors.StandardError.
func (p *Pipeline) PredictBatch(ctx context.Context, records []FeatureRecord, backend string, opts ...Option) (*ResultSet, error) {
	o := options{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(&o)
	}
	if math.IsNaN(o.threshold) || o.threshold < 0 || o.threshold > 1 {
		return nil, errors.NewSchemaError(fmt.Sprintf("threshold %v must be within [0,1]", o.threshold))
	}

	vectors, err := p.schema.Vectorize(records)
	if err != nil {
		return nil, err
	}
	ids := p.identifiers(records)

	entry, err := p.registry.Resolve(backend)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	scores, err := invoke(ctx, entry, vectors)
	if err != nil {
		p.log.Warn("Backend invocation failed", map[string]interface{}{
			"backend": backend,
			"rows":    len(records),
			"error":   err.Error(),
		})
		return nil, err
	}

	rs := &ResultSet{
		Backend:   entry.Name,
		Kind:      entry.Kind,
		Threshold: o.threshold,
		Results:   make([]PredictionResult, len(scores)),
	}
	for i, score := range scores {
		res := PredictionResult{Identifier: ids[i]}
		switch entry.Kind {
		case registry.Probabilistic:
			if math.IsNaN(score) || score < 0 || score > 1 {
				return nil, errors.NewInferenceError(backend, fmt.Errorf("row %d: score %v outside [0,1]", i+1, score))
			}
			prob := score
			res.Probability = &prob
			if score >= o.threshold {
				res.Label = Placed
			}
		default:
			switch score {
			case 1:
				res.Label = Placed
			case 0:
				res.Label = NotPlaced
			default:
				return nil, errors.NewInferenceError(backend, fmt.Errorf("row %d: discrete backend returned %v", i+1, score))
			}
		}
		rs.Results[i] = res
	}

	p.log.Debug("Batch scored", map[string]interface{}{
		"backend":    backend,
		"rows":       len(records),
		"placed":     rs.PlacedCount(),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return rs, nil
}

// identifiers pulls the identifier column, if the schema declares one.
func (p *Pipeline) identifiers(records []FeatureRecord) []*string {
	ids := make([]*string, len(records))
	if p.schema.Identifier == "" {
		return ids
	}
	for i, rec := range records {
		ids[i] = IdentifierOf(rec, p.schema.Identifier)
	}
	return ids
}

// invoke calls the backend once on the whole batch, converting panics,
// errors, cancellation and malformed output into INFERENCE_ERROR.
func invoke(ctx context.Context, entry registry.Entry, batch [][]float64) (scores []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			scores = nil
			err = errors.NewInferenceError(entry.Name, fmt.Errorf("backend panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, errors.NewInferenceError(entry.Name, err)
	}
	scores, err = entry.Backend.Predict(ctx, batch)
	if err != nil {
		return nil, errors.NewInferenceError(entry.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewInferenceError(entry.Name, err)
	}
	if len(scores) != len(batch) {
		return nil, errors.NewInferenceError(entry.Name, fmt.Errorf("backend returned %d scores for %d rows", len(scores), len(batch)))
	}
	return scores, nil
}
