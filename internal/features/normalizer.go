package features

import (
	"placement-predictor/internal/common/errors"
)

// Normalize scales v with the column's persisted min/max. A column whose
// range collapsed at training time maps every value to 0. Values outside
// the training range are not clipped.
func Normalize(c Column, v float64) float64 {
	if c.Max == c.Min {
		return 0
	}
	return (v - c.Min) / (c.Max - c.Min)
}

// Vectorize validates records against the schema and turns each one into a
// model input vector in schema order. Only schema features are read, so the
// identifier and label columns can never leak into a vector. The whole batch
// fails on the first bad cell.
func (s *Schema) Vectorize(records []Record) ([][]float64, error) {
	if len(records) == 0 {
		return nil, errors.NewSchemaError("no records to score")
	}

	out := make([][]float64, len(records))
	for row, rec := range records {
		var missing []string
		for _, c := range s.Features {
			if _, ok := rec[c.Name]; !ok {
				missing = append(missing, c.Name)
			}
		}
		if len(missing) > 0 {
			return nil, errors.NewMissingColumnsError(missing).WithMetadata("row", row+1)
		}

		vec := make([]float64, len(s.Features))
		for i, c := range s.Features {
			raw := rec[c.Name]
			switch c.Kind {
			case KindBinary:
				code, ok := EncodeBinary(raw)
				if !ok {
					return nil, cellError(row, c.Name, raw, "Yes or No")
				}
				vec[i] = code
			case KindContinuous:
				f, ok := ParseContinuous(raw)
				if !ok {
					return nil, cellError(row, c.Name, raw, "a number")
				}
				vec[i] = Normalize(c, f)
			}
		}
		out[row] = vec
	}
	return out, nil
}
