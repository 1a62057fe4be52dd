package features

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"placement-predictor/internal/common/errors"
)

// InferOptions controls schema inference from a training table.
type InferOptions struct {
	Version    string
	Identifier string
	Label      string
	// Binary forces columns to be treated as yes/no even when their values
	// look numeric.
	Binary []string
	// Exclude drops columns entirely.
	Exclude []string
}

// Infer derives a schema from training data: yes/no columns become binary
// and every other column continuous with its observed min and max. This is
// the only place min/max statistics are computed.
func Infer(header []string, rows [][]string, opts InferOptions) (*Schema, error) {
	if len(rows) == 0 {
		return nil, errors.NewSchemaError("training data has no rows")
	}
	forced := toSet(opts.Binary)
	skip := toSet(opts.Exclude)
	skip[opts.Identifier] = struct{}{}
	skip[opts.Label] = struct{}{}

	var cols []Column
	for j, name := range header {
		if _, ok := skip[name]; ok {
			continue
		}
		_, isForced := forced[name]
		if isForced || allYesNo(rows, j) {
			for i, row := range rows {
				if _, ok := EncodeBinary(row[j]); !ok {
					return nil, cellError(i, name, row[j], "yes/no")
				}
			}
			cols = append(cols, Column{Name: name, Kind: KindBinary})
			continue
		}

		lo, hi := math.Inf(1), math.Inf(-1)
		for i, row := range rows {
			f, ok := ParseContinuous(row[j])
			if !ok {
				return nil, cellError(i, name, row[j], "numeric")
			}
			lo = math.Min(lo, f)
			hi = math.Max(hi, f)
		}
		cols = append(cols, Column{Name: name, Kind: KindContinuous, Min: lo, Max: hi})
	}

	version := opts.Version
	if version == "" {
		version = "1"
	}
	return NewSchema(version, opts.Identifier, opts.Label, cols...)
}

func allYesNo(rows [][]string, j int) bool {
	for _, row := range rows {
		switch strings.ToLower(strings.TrimSpace(row[j])) {
		case "yes", "no":
		default:
			return false
		}
	}
	return true
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Summary renders one line per feature for tooling output.
func (s *Schema) Summary() []string {
	lines := make([]string, len(s.Features))
	for i, c := range s.Features {
		if c.Kind == KindBinary {
			lines[i] = fmt.Sprintf("%-28s binary", c.Name)
			continue
		}
		lines[i] = fmt.Sprintf("%-28s continuous [%s, %s]", c.Name,
			strconv.FormatFloat(c.Min, 'f', -1, 64), strconv.FormatFloat(c.Max, 'f', -1, 64))
	}
	return lines
}
