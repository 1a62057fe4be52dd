package backend

import (
	"context"
	"fmt"
	"math"

	"placement-predictor/pkg/registry"
)

// Activation is applied elementwise after a dense layer.
type Activation string

const (
	ReLU     Activation = "relu"
	Sigmoid  Activation = "sigmoid"
	Tanh     Activation = "tanh"
	Identity Activation = "linear"
)

func (a Activation) apply(z float64) float64 {
	switch a {
	case ReLU:
		return math.Max(0, z)
	case Sigmoid:
		return 1 / (1 + math.Exp(-z))
	case Tanh:
		return math.Tanh(z)
	default:
		return z
	}
}

func (a Activation) valid() bool {
	switch a {
	case ReLU, Sigmoid, Tanh, Identity:
		return true
	}
	return false
}

// Layer is a dense layer; Weights is [out][in].
type Layer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation Activation  `json:"activation"`
}

// MLP is a feed-forward network with a single output unit. With a sigmoid
// output it scores the probability of placement.
type MLP struct {
	Layers    []Layer
	nFeatures int
}

func loadMLP(raw []byte) (registry.Backend, registry.Kind, int, error) {
	var a struct {
		header
		Layers []Layer `json:"layers"`
	}
	if err := decode(raw, &a); err != nil {
		return nil, "", 0, err
	}
	m, err := NewMLP(a.Layers, a.NFeatures)
	if err != nil {
		return nil, "", 0, err
	}
	return m, registry.Probabilistic, a.NFeatures, nil
}

// NewMLP checks layer shapes chain from nFeatures down to one output.
func NewMLP(layers []Layer, nFeatures int) (*MLP, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("mlp artifact has no layers")
	}
	in := nFeatures
	for li, l := range layers {
		if len(l.Weights) == 0 || len(l.Weights) != len(l.Bias) {
			return nil, fmt.Errorf("layer %d: %d weight rows, %d biases", li, len(l.Weights), len(l.Bias))
		}
		for r, row := range l.Weights {
			if len(row) != in {
				return nil, fmt.Errorf("layer %d row %d: %d inputs, want %d", li, r, len(row), in)
			}
		}
		if !l.Activation.valid() {
			return nil, fmt.Errorf("layer %d: unknown activation %q", li, l.Activation)
		}
		in = len(l.Weights)
	}
	if in != 1 {
		return nil, fmt.Errorf("mlp must end in one output unit, got %d", in)
	}
	return &MLP{Layers: layers, nFeatures: nFeatures}, nil
}

func (m *MLP) forward(x []float64) float64 {
	act := x
	for _, l := range m.Layers {
		next := make([]float64, len(l.Weights))
		for o, row := range l.Weights {
			z := l.Bias[o]
			for i, w := range row {
				z += w * act[i]
			}
			next[o] = l.Activation.apply(z)
		}
		act = next
	}
	return act[0]
}

func (m *MLP) Predict(ctx context.Context, batch [][]float64) ([]float64, error) {
	if err := checkBatch(ctx, batch, m.nFeatures); err != nil {
		return nil, err
	}
	out := make([]float64, len(batch))
	for i, x := range batch {
		out[i] = m.forward(x)
	}
	return out, nil
}
