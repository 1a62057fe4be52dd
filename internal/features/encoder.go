package features

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"placement-predictor/internal/common/errors"
)

// Record is one input row keyed by column name. Values are float64, int,
// bool or string as produced by CSV parsing, JSON decoding or the CLI.
type Record map[string]any

// binaryCodes is the fixed categorical mapping. It is never fitted from data.
var binaryCodes = map[string]float64{
	"yes": 1,
	"no":  0,
	"1":   1,
	"0":   0,
}

// EncodeBinary maps a binary-categorical value to 0 or 1. Accepted inputs are
// "Yes"/"No" in any case with surrounding whitespace ignored, the strings
// "1"/"0", booleans, and numeric 0/1.
func EncodeBinary(v any) (float64, bool) {
	switch val := v.(type) {
	case string:
		code, ok := binaryCodes[strings.ToLower(strings.TrimSpace(val))]
		return code, ok
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		f, ok := numeric(v)
		if !ok || (f != 0 && f != 1) {
			return 0, false
		}
		return f, true
	}
}

// ParseContinuous converts a continuous cell to float64. Empty, non-numeric
// and non-finite values are rejected.
func ParseContinuous(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		parsed, ok := numeric(v)
		if !ok {
			return 0, false
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func numeric(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func cellError(row int, column string, v any, want string) error {
	return errors.NewSchemaError(fmt.Sprintf("row %d, column %q: value %v is not %s", row+1, column, v, want)).
		WithMetadata("row", row+1).
		WithMetadata("column", column)
}
