// pkg/registry/schema.go
package registry

// Manifest lists the model artifacts loaded at startup.
type Manifest struct {
	Version string      `json:"version"`
	Models  []ModelSpec `json:"models"`
}

// ModelSpec describes one artifact. Type selects the loader (linear, forest,
// mlp); Kind overrides the loader's default score interpretation. Path is
// resolved relative to the manifest file.
type ModelSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Kind        Kind   `json:"kind,omitempty"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
}
