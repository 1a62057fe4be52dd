// Package backend loads trained classifiers from JSON artifacts and
// registers them with the model registry.
package backend

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"

	"placement-predictor/internal/common/logger"
	"placement-predictor/pkg/registry"
)

var (
	ErrFeatureCount = stderrors.New("artifact feature count does not match schema")
	ErrUnknownType  = stderrors.New("unknown artifact type")
	ErrVectorLength = stderrors.New("input vector has wrong length")
)

// Loader decodes one artifact type. It returns the backend and the kind the
// artifact scores as by default.
type Loader func(raw []byte) (registry.Backend, registry.Kind, int, error)

// Loaders maps manifest type names to decoders.
var Loaders = map[string]Loader{
	"linear": loadLinear,
	"forest": loadForest,
	"mlp":    loadMLP,
}

// header is the part every artifact shares.
type header struct {
	NFeatures int `json:"n_features"`
}

// Load decodes a single artifact file.
func Load(spec registry.ModelSpec, nFeatures int) (registry.Backend, registry.Kind, error) {
	loader, ok := Loaders[spec.Type]
	if !ok {
		return nil, "", fmt.Errorf("%s: %w %q", spec.Name, ErrUnknownType, spec.Type)
	}
	raw, err := os.ReadFile(spec.Path)
	if err != nil {
		return nil, "", fmt.Errorf("%s: read artifact: %w", spec.Name, err)
	}
	b, kind, n, err := loader(raw)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", spec.Name, err)
	}
	if n != nFeatures {
		return nil, "", fmt.Errorf("%s: %w: artifact has %d, schema has %d", spec.Name, ErrFeatureCount, n, nFeatures)
	}
	if spec.Kind != "" {
		kind = spec.Kind
	}
	return b, kind, nil
}

// LoadAll loads every manifest entry into reg. Any failure aborts startup.
func LoadAll(m *registry.Manifest, reg *registry.Registry, nFeatures int, log logger.Logger) error {
	for _, spec := range m.Models {
		b, kind, err := Load(spec, nFeatures)
		if err != nil {
			return err
		}
		if err := reg.Register(spec.Name, b, kind); err != nil {
			return fmt.Errorf("register %s: %w", spec.Name, err)
		}
		log.Info("Backend loaded", map[string]interface{}{
			"model": spec.Name,
			"type":  spec.Type,
			"kind":  string(kind),
		})
	}
	return nil
}

func decode(raw []byte, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}

func checkBatch(ctx context.Context, batch [][]float64, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, vec := range batch {
		if len(vec) != n {
			return fmt.Errorf("row %d: %w: got %d, want %d", i, ErrVectorLength, len(vec), n)
		}
	}
	return nil
}
