package features

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placement-predictor/internal/common/errors"
)

const testSchemaJSON = `{
  "version": "test-1",
  "identifier": "StudentID",
  "label": "PlacementStatus",
  "features": [
    {"name": "CGPA", "kind": "continuous", "min": 0, "max": 10},
    {"name": "Internships", "kind": "continuous", "min": 0, "max": 2},
    {"name": "PlacementTraining", "kind": "binary"},
    {"name": "Workshops", "kind": "continuous", "min": 3, "max": 3}
  ]
}`

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := ParseSchema([]byte(testSchemaJSON))
	require.NoError(t, err)
	return s
}

func TestParseSchema(t *testing.T) {
	s := testSchema(t)

	assert.Equal(t, []string{"CGPA", "Internships", "PlacementTraining", "Workshops"}, s.Names())
	assert.Equal(t, 4, s.NumFeatures())
	assert.Equal(t, "StudentID", s.Identifier)
	assert.NotEmpty(t, s.Fingerprint())

	col, ok := s.Column("CGPA")
	require.True(t, ok)
	assert.Equal(t, KindContinuous, col.Kind)
	_, ok = s.Column("PlacementStatus")
	assert.False(t, ok)

	again, err := ParseSchema([]byte(testSchemaJSON))
	require.NoError(t, err)
	assert.Equal(t, s.Fingerprint(), again.Fingerprint())
}

func TestParseSchema_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"version":`},
		{"no features", `{"version":"v","features":[]}`},
		{"continuous without stats", `{"version":"v","features":[{"name":"CGPA","kind":"continuous"}]}`},
		{"unknown kind", `{"version":"v","features":[{"name":"CGPA","kind":"ordinal"}]}`},
		{"min above max", `{"version":"v","features":[{"name":"CGPA","kind":"continuous","min":5,"max":1}]}`},
		{"duplicate feature", `{"version":"v","features":[{"name":"A","kind":"binary"},{"name":"A","kind":"binary"}]}`},
		{"label as feature", `{"version":"v","label":"PlacementStatus","features":[{"name":"PlacementStatus","kind":"binary"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchema([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeSchema), "got %v", err)
		})
	}
}

func TestLoadSchema_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(testSchemaJSON), 0o600))

	s, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, "test-1", s.Version)

	_, err = LoadSchema(filepath.Join(t.TempDir(), "absent.json"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeIO))
}

func TestSchemaRoundTripsThroughJSON(t *testing.T) {
	s, err := NewSchema("v2", "StudentID", "PlacementStatus",
		Column{Name: "CGPA", Kind: KindContinuous, Min: 0, Max: 10},
		Column{Name: "PlacementTraining", Kind: KindBinary},
	)
	require.NoError(t, err)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	parsed, err := ParseSchema(raw)
	require.NoError(t, err)
	assert.Equal(t, s.Features, parsed.Features)
}

func TestEncodeBinary(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{"Yes", 1, true},
		{"yes", 1, true},
		{"  NO ", 0, true},
		{"No", 0, true},
		{"1", 1, true},
		{"0", 0, true},
		{true, 1, true},
		{false, 0, true},
		{1, 1, true},
		{0.0, 0, true},
		{json.Number("1"), 1, true},
		{"Maybe", 0, false},
		{"", 0, false},
		{2, 0, false},
		{0.5, 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := EncodeBinary(tt.in)
		assert.Equal(t, tt.ok, ok, "input %#v", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, "input %#v", tt.in)
		}
	}
}

func TestEncodeBinary_Deterministic(t *testing.T) {
	s := testSchema(t)
	values := []string{"Yes", "No", "yes", "NO"}

	single := map[string]float64{}
	for _, v := range values {
		vecs, err := s.Vectorize([]Record{{"CGPA": 5, "Internships": 1, "PlacementTraining": v, "Workshops": 3}})
		require.NoError(t, err)
		single[v] = vecs[0][2]
	}

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		perm := rng.Perm(len(values))
		batch := make([]Record, len(perm))
		for i, p := range perm {
			batch[i] = Record{"CGPA": 5, "Internships": 1, "PlacementTraining": values[p], "Workshops": 3}
		}
		vecs, err := s.Vectorize(batch)
		require.NoError(t, err)
		for i, p := range perm {
			assert.Equal(t, single[values[p]], vecs[i][2])
		}
	}
}

func TestNormalize_ScenarioA(t *testing.T) {
	col := Column{Name: "CGPA", Kind: KindContinuous, Min: 0, Max: 10}
	assert.InDelta(t, 0.85, Normalize(col, 8.5), 1e-12)
}

func TestNormalize_Bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		lo := rng.Float64()*100 - 50
		hi := lo + rng.Float64()*100 + 1e-6
		col := Column{Name: "x", Kind: KindContinuous, Min: lo, Max: hi}
		v := lo + rng.Float64()*(hi-lo)
		got := Normalize(col, v)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}

	flat := Column{Name: "flat", Kind: KindContinuous, Min: 3, Max: 3}
	for _, v := range []float64{-10, 0, 3, 99} {
		assert.Equal(t, 0.0, Normalize(flat, v))
	}
}

func TestVectorize(t *testing.T) {
	s := testSchema(t)

	vecs, err := s.Vectorize([]Record{
		{"StudentID": "S123", "CGPA": "8.5", "Internships": 1, "PlacementTraining": "Yes", "Workshops": 7, "PlacementStatus": "Placed"},
		{"CGPA": 10.0, "Internships": "0", "PlacementTraining": "no", "Workshops": "3"},
	})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.InDeltaSlice(t, []float64{0.85, 0.5, 1, 0}, vecs[0], 1e-12)
	assert.InDeltaSlice(t, []float64{1, 0, 0, 0}, vecs[1], 1e-12)
}

func TestVectorize_SameRecordSameVectorAcrossBatchSizes(t *testing.T) {
	s := testSchema(t)
	rec := Record{"CGPA": 7.2, "Internships": 2, "PlacementTraining": "Yes", "Workshops": 3}

	alone, err := s.Vectorize([]Record{rec})
	require.NoError(t, err)

	batch := []Record{
		{"CGPA": 1.0, "Internships": 0, "PlacementTraining": "No", "Workshops": 3},
		rec,
		{"CGPA": 9.9, "Internships": 1, "PlacementTraining": "No", "Workshops": 3},
	}
	inBatch, err := s.Vectorize(batch)
	require.NoError(t, err)
	assert.Equal(t, alone[0], inBatch[1])
}

func TestVectorize_Errors(t *testing.T) {
	s := testSchema(t)

	t.Run("empty batch", func(t *testing.T) {
		_, err := s.Vectorize(nil)
		assert.True(t, errors.IsCode(err, errors.ErrCodeSchema))
	})

	t.Run("missing columns listed", func(t *testing.T) {
		_, err := s.Vectorize([]Record{{"CGPA": 5}})
		require.Error(t, err)
		stdErr := errors.Normalize(err)
		assert.Equal(t, errors.ErrCodeSchema, stdErr.Code)
		assert.Equal(t, []string{"Internships", "PlacementTraining", "Workshops"}, stdErr.Metadata["missingColumns"])
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := s.Vectorize([]Record{{"CGPA": 5, "Internships": 1, "PlacementTraining": "Sometimes", "Workshops": 3}})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeSchema))
		assert.Contains(t, err.Error(), "PlacementTraining")
	})

	t.Run("non numeric continuous", func(t *testing.T) {
		_, err := s.Vectorize([]Record{{"CGPA": "high", "Internships": 1, "PlacementTraining": "Yes", "Workshops": 3}})
		assert.True(t, errors.IsCode(err, errors.ErrCodeSchema))
	})

	t.Run("nan rejected", func(t *testing.T) {
		_, err := s.Vectorize([]Record{{"CGPA": "NaN", "Internships": 1, "PlacementTraining": "Yes", "Workshops": 3}})
		assert.True(t, errors.IsCode(err, errors.ErrCodeSchema))
	})
}

func TestMissing(t *testing.T) {
	s := testSchema(t)
	assert.Empty(t, s.Missing([]string{"StudentID", "CGPA", "Internships", "PlacementTraining", "Workshops"}))
	assert.Equal(t, []string{"Internships", "Workshops"}, s.Missing([]string{"CGPA", "PlacementTraining"}))
}
