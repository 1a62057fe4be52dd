package backend

import (
	"context"
	"fmt"

	"placement-predictor/pkg/registry"
)

// Linear is a fitted linear decision function: label = w·x + b >= 0.
// Logistic regression and a linear-kernel SVC both reduce to this at
// inference time.
type Linear struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

func loadLinear(raw []byte) (registry.Backend, registry.Kind, int, error) {
	var a struct {
		header
		Linear
	}
	if err := decode(raw, &a); err != nil {
		return nil, "", 0, err
	}
	if len(a.Weights) == 0 {
		return nil, "", 0, fmt.Errorf("linear artifact has no weights")
	}
	if len(a.Weights) != a.NFeatures {
		return nil, "", 0, fmt.Errorf("linear artifact declares %d features but has %d weights", a.NFeatures, len(a.Weights))
	}
	l := a.Linear
	return &l, registry.Discrete, a.NFeatures, nil
}

// Decision returns the signed distance w·x + b.
func (l *Linear) Decision(x []float64) float64 {
	z := l.Bias
	for i, w := range l.Weights {
		z += w * x[i]
	}
	return z
}

func (l *Linear) Predict(ctx context.Context, batch [][]float64) ([]float64, error) {
	if err := checkBatch(ctx, batch, len(l.Weights)); err != nil {
		return nil, err
	}
	out := make([]float64, len(batch))
	for i, x := range batch {
		if l.Decision(x) >= 0 {
			out[i] = 1
		}
	}
	return out, nil
}
