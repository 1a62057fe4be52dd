package backend

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placement-predictor/internal/common/logger"
	"placement-predictor/pkg/registry"
)

func writeArtifact(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLinearPredict(t *testing.T) {
	l := &Linear{Weights: []float64{2, -1}, Bias: -0.5}

	scores, err := l.Predict(context.Background(), [][]float64{
		{1, 0},
		{0, 1},
		{0.5, 0.5},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1}, scores)

	_, err = l.Predict(context.Background(), [][]float64{{1}})
	assert.ErrorIs(t, err, ErrVectorLength)
}

func TestForestVoting(t *testing.T) {
	stump := func(threshold float64) Tree {
		return Tree{
			{Feature: 0, Threshold: threshold, Left: 1, Right: 2},
			{Leaf: true, Label: 0},
			{Leaf: true, Label: 1},
		}
	}
	always := func(label int) Tree { return Tree{{Leaf: true, Label: label}} }

	f, err := NewForest([]Tree{stump(0.3), stump(0.6), stump(0.9)}, 1)
	require.NoError(t, err)

	scores, err := f.Predict(context.Background(), [][]float64{{0.1}, {0.5}, {0.7}, {1.0}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 1}, scores)

	tied, err := NewForest([]Tree{always(0), always(1)}, 1)
	require.NoError(t, err)
	scores, err = tied.Predict(context.Background(), [][]float64{{0}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, scores)
}

func TestForestValidation(t *testing.T) {
	tests := []struct {
		name  string
		trees []Tree
	}{
		{"no trees", nil},
		{"empty tree", []Tree{{}}},
		{"feature out of range", []Tree{{{Feature: 3, Left: 1, Right: 2}, {Leaf: true}, {Leaf: true}}}},
		{"backwards child", []Tree{{{Feature: 0, Left: 0, Right: 1}, {Leaf: true}}}},
		{"bad label", []Tree{{{Leaf: true, Label: 2}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewForest(tt.trees, 1)
			assert.Error(t, err)
		})
	}
}

func TestMLPForward(t *testing.T) {
	m, err := NewMLP([]Layer{
		{Weights: [][]float64{{1, 0}, {0, 1}}, Bias: []float64{0, 0}, Activation: ReLU},
		{Weights: [][]float64{{1, 1}}, Bias: []float64{0}, Activation: Sigmoid},
	}, 2)
	require.NoError(t, err)

	scores, err := m.Predict(context.Background(), [][]float64{{0, 0}, {1, -5}})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, scores[0], 1e-12)
	assert.InDelta(t, 1/(1+math.Exp(-1)), scores[1], 1e-12)
}

func TestMLPShapeChecks(t *testing.T) {
	_, err := NewMLP([]Layer{{Weights: [][]float64{{1, 1}}, Bias: []float64{0}, Activation: Sigmoid}}, 3)
	assert.Error(t, err)

	_, err = NewMLP([]Layer{{Weights: [][]float64{{1}, {1}}, Bias: []float64{0, 0}, Activation: Sigmoid}}, 1)
	assert.Error(t, err, "two output units")

	_, err = NewMLP([]Layer{{Weights: [][]float64{{1}}, Bias: []float64{0}, Activation: "softplus"}}, 1)
	assert.Error(t, err)
}

func TestPredictHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := &Linear{Weights: []float64{1}}
	_, err := l.Predict(ctx, [][]float64{{1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "lr.json", `{"n_features":2,"weights":[1,1],"bias":-1}`)
	writeArtifact(t, dir, "rf.json", `{"n_features":2,"trees":[[{"leaf":true,"label":1}]]}`)
	writeArtifact(t, dir, "dl.json", `{"n_features":2,"layers":[{"weights":[[1,1]],"bias":[0],"activation":"sigmoid"}]}`)

	m := &registry.Manifest{Models: []registry.ModelSpec{
		{Name: "logistic_regression", Type: "linear", Path: filepath.Join(dir, "lr.json")},
		{Name: "random_forest", Type: "forest", Path: filepath.Join(dir, "rf.json")},
		{Name: "deep_learning", Type: "mlp", Path: filepath.Join(dir, "dl.json")},
	}}
	reg := registry.New()
	require.NoError(t, LoadAll(m, reg, 2, logger.NewTestLogger(t)))

	assert.Equal(t, []string{"deep_learning", "logistic_regression", "random_forest"}, reg.Names())
	entry, err := reg.Resolve("deep_learning")
	require.NoError(t, err)
	assert.Equal(t, registry.Probabilistic, entry.Kind)
	entry, err = reg.Resolve("random_forest")
	require.NoError(t, err)
	assert.Equal(t, registry.Discrete, entry.Kind)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	lr := writeArtifact(t, dir, "lr.json", `{"n_features":2,"weights":[1,1],"bias":0}`)
	broken := writeArtifact(t, dir, "broken.json", `{"n_features":`)
	mismatch := writeArtifact(t, dir, "mismatch.json", `{"n_features":3,"weights":[1,1],"bias":0}`)

	_, _, err := Load(registry.ModelSpec{Name: "x", Type: "linear", Path: lr}, 10)
	assert.ErrorIs(t, err, ErrFeatureCount)

	_, _, err = Load(registry.ModelSpec{Name: "x", Type: "gbm", Path: lr}, 2)
	assert.ErrorIs(t, err, ErrUnknownType)

	_, _, err = Load(registry.ModelSpec{Name: "x", Type: "linear", Path: broken}, 2)
	assert.Error(t, err)

	_, _, err = Load(registry.ModelSpec{Name: "x", Type: "linear", Path: mismatch}, 3)
	assert.Error(t, err)

	_, _, err = Load(registry.ModelSpec{Name: "x", Type: "linear", Path: filepath.Join(dir, "absent.json")}, 2)
	assert.Error(t, err)

	_, kind, err := Load(registry.ModelSpec{Name: "x", Type: "linear", Kind: registry.Probabilistic, Path: lr}, 2)
	require.NoError(t, err)
	assert.Equal(t, registry.Probabilistic, kind)
}
