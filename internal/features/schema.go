// Package features holds the feature schema and the stateless transforms
// (categorical encoding, min-max normalization) that turn raw records into
// the vectors backends consume.
package features

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"placement-predictor/internal/common/errors"
	"placement-predictor/internal/common/validation"
)

//go:embed schema.json
var schemaDocument []byte

// Kind is the semantic type of a feature column.
type Kind string

const (
	KindContinuous Kind = "continuous"
	KindBinary     Kind = "binary"
)

// Column describes one model input. Min and Max are training-time
// statistics and are only meaningful for continuous columns.
type Column struct {
	Name string  `json:"name"`
	Kind Kind    `json:"kind"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Schema is the ordered list of model inputs plus the identifier and label
// columns that must never reach a backend. It is immutable after loading.
type Schema struct {
	Version    string   `json:"version"`
	Identifier string   `json:"identifier,omitempty"`
	Label      string   `json:"label,omitempty"`
	Features   []Column `json:"features"`

	fingerprint string
	index       map[string]int
}

// LoadSchema reads and validates a schema file.
func LoadSchema(path string) (*Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("read feature schema", err)
	}
	return ParseSchema(raw)
}

// ParseSchema validates raw against the embedded JSON Schema, then checks
// the constraints JSON Schema cannot express.
func ParseSchema(raw []byte) (*Schema, error) {
	validator, err := validation.NewValidator(schemaDocument)
	if err != nil {
		return nil, err
	}
	result, err := validator.ValidateBytes(raw)
	if err != nil {
		return nil, errors.NewSchemaError(fmt.Sprintf("feature schema is not valid JSON: %v", err))
	}
	if !result.Valid {
		return nil, errors.NewSchemaError("invalid feature schema: " + strings.Join(result.GetErrorMessages(), "; "))
	}

	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.NewSchemaError(fmt.Sprintf("decode feature schema: %v", err))
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	s.fingerprint = uuid.NewSHA1(uuid.NameSpaceOID, raw).String()
	return &s, nil
}

// NewSchema builds a schema in code. Used by tests and the schema builder.
func NewSchema(version, identifier, label string, cols ...Column) (*Schema, error) {
	s := &Schema{Version: version, Identifier: identifier, Label: label, Features: cols}
	if err := s.init(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, errors.NewSchemaError(err.Error())
	}
	s.fingerprint = uuid.NewSHA1(uuid.NameSpaceOID, raw).String()
	return s, nil
}

func (s *Schema) init() error {
	if len(s.Features) == 0 {
		return errors.NewSchemaError("feature schema declares no features")
	}
	s.index = make(map[string]int, len(s.Features))
	for i, c := range s.Features {
		if c.Name == "" {
			return errors.NewSchemaError(fmt.Sprintf("feature %d has no name", i))
		}
		if _, dup := s.index[c.Name]; dup {
			return errors.NewSchemaError(fmt.Sprintf("duplicate feature %q", c.Name))
		}
		if c.Name == s.Identifier || c.Name == s.Label {
			return errors.NewSchemaError(fmt.Sprintf("column %q cannot be both a feature and the identifier or label", c.Name))
		}
		switch c.Kind {
		case KindContinuous:
			if c.Min > c.Max {
				return errors.NewSchemaError(fmt.Sprintf("feature %q has min %v greater than max %v", c.Name, c.Min, c.Max))
			}
		case KindBinary:
		default:
			return errors.NewSchemaError(fmt.Sprintf("feature %q has unknown kind %q", c.Name, c.Kind))
		}
		s.index[c.Name] = i
	}
	if s.Identifier != "" && s.Identifier == s.Label {
		return errors.NewSchemaError("identifier and label columns must differ")
	}
	return nil
}

// Names returns feature names in model input order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Features))
	for i, c := range s.Features {
		names[i] = c.Name
	}
	return names
}

// NumFeatures is the length of every vector produced under this schema.
func (s *Schema) NumFeatures() int { return len(s.Features) }

// Column looks up a feature by name.
func (s *Schema) Column(name string) (Column, bool) {
	i, ok := s.index[name]
	if !ok {
		return Column{}, false
	}
	return s.Features[i], true
}

// Fingerprint identifies the exact schema content. Cache keys include it so
// a schema change never serves stale predictions.
func (s *Schema) Fingerprint() string { return s.fingerprint }

// Missing returns the feature columns absent from header, in schema order.
func (s *Schema) Missing(header []string) []string {
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[h] = struct{}{}
	}
	var missing []string
	for _, c := range s.Features {
		if _, ok := present[c.Name]; !ok {
			missing = append(missing, c.Name)
		}
	}
	return missing
}
