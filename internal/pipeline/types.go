package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"

	"placement-predictor/internal/features"
	"placement-predictor/pkg/registry"
)

// FeatureRecord is one student's raw input keyed by column name.
type FeatureRecord = features.Record

// Label is the binary placement outcome.
type Label int

const (
	NotPlaced Label = 0
	Placed    Label = 1
)

func (l Label) String() string {
	if l == Placed {
		return "Placed"
	}
	return "Not Placed"
}

func (l Label) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Label) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("label must be a string: %w", err)
	}
	switch s {
	case "Placed":
		*l = Placed
	case "Not Placed", "NotPlaced":
		*l = NotPlaced
	default:
		return fmt.Errorf("unknown label %q", s)
	}
	return nil
}

// PredictionResult is the outcome for one record. Probability is set only
// for probabilistic backends.
type PredictionResult struct {
	Identifier  *string  `json:"identifier,omitempty"`
	Label       Label    `json:"label"`
	Probability *float64 `json:"probability,omitempty"`
}

// ResultSet holds one result per input record, in input order.
type ResultSet struct {
	Backend   string             `json:"backend"`
	Kind      registry.Kind      `json:"kind"`
	Threshold float64            `json:"threshold"`
	Results   []PredictionResult `json:"predictions"`
}

// Len is the number of results.
func (rs *ResultSet) Len() int { return len(rs.Results) }

// PlacedCount is the number of results labelled Placed.
func (rs *ResultSet) PlacedCount() int {
	n := 0
	for _, r := range rs.Results {
		if r.Label == Placed {
			n++
		}
	}
	return n
}

// HasProbability reports whether any result carries a probability.
func (rs *ResultSet) HasProbability() bool {
	for _, r := range rs.Results {
		if r.Probability != nil {
			return true
		}
	}
	return false
}

// IdentifierOf returns the record's identifier as text, or nil when the
// column is unset. Numbers keep their plain decimal form so JSON-decoded
// ids such as 12345678 do not come back in exponent notation.
func IdentifierOf(record FeatureRecord, column string) *string {
	if column == "" {
		return nil
	}
	v, ok := record[column]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case json.Number:
		s = x.String()
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		s = fmt.Sprint(v)
	}
	return &s
}
