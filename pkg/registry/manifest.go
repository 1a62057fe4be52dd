// pkg/registry/manifest.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"placement-predictor/internal/common/validation"
)

// LoadManifest reads a manifest file and resolves artifact paths against
// its directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i := range m.Models {
		if !filepath.IsAbs(m.Models[i].Path) {
			m.Models[i].Path = filepath.Join(base, m.Models[i].Path)
		}
	}
	return &m, nil
}

// Validate checks names are unique and safe, and every entry names a type
// and an artifact path.
func (m *Manifest) Validate() error {
	if len(m.Models) == 0 {
		return fmt.Errorf("manifest lists no models")
	}
	seen := make(map[string]struct{}, len(m.Models))
	for i, spec := range m.Models {
		if err := validation.ValidateModelName(spec.Name); err != nil {
			return fmt.Errorf("models[%d]: %w", i, err)
		}
		if _, dup := seen[spec.Name]; dup {
			return fmt.Errorf("models[%d]: duplicate name %q", i, spec.Name)
		}
		seen[spec.Name] = struct{}{}
		if spec.Type == "" {
			return fmt.Errorf("models[%d] %s: type is required", i, spec.Name)
		}
		if spec.Path == "" {
			return fmt.Errorf("models[%d] %s: path is required", i, spec.Name)
		}
		if spec.Kind != "" && !spec.Kind.Valid() {
			return fmt.Errorf("models[%d] %s: %w: %q", i, spec.Name, ErrInvalidKind, spec.Kind)
		}
	}
	return nil
}
