// Package results persists scored batches: the predictions CSV and the
// optional run ledger.
package results

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"placement-predictor/internal/common/errors"
	"placement-predictor/internal/common/logger"
	"placement-predictor/internal/common/metrics"
	"placement-predictor/internal/pipeline"
	"placement-predictor/internal/tabular"
)

const (
	PredictionsColumn = "Predictions"
	ProbabilityColumn = "Probability"
)

// Writer writes result files under a single directory.
type Writer struct {
	dir string
	log logger.Logger
	now func() time.Time
}

func NewWriter(dir string, log logger.Logger) *Writer {
	return &Writer{
		dir: dir,
		log: log.WithFields(map[string]interface{}{"component": "result_writer"}),
		now: time.Now,
	}
}

// Dir is the output directory.
func (w *Writer) Dir() string { return w.dir }

// FileName builds predictions_<backend>_<UTC timestamp>_<token>.csv. The
// random token keeps concurrent writes in the same second apart.
func (w *Writer) FileName(backend string) string {
	token := uuid.NewString()[:8]
	return fmt.Sprintf("predictions_%s_%s_%s.csv", backend, w.now().UTC().Format("20060102T150405"), token)
}

// Write persists the original table with Predictions (and Probability when
// available) appended. It writes a temp file in the target directory and
// renames it into place, so a failed write never leaves a partial file.
func (w *Writer) Write(ctx context.Context, table *tabular.Table, rs *pipeline.ResultSet) (string, error) {
	path, err := w.write(ctx, table, rs)
	if err != nil {
		metrics.ResultWrites.WithLabelValues("failure").Inc()
		w.log.Error("Failed to write predictions", map[string]interface{}{
			"backend": rs.Backend,
			"error":   err.Error(),
		})
		return "", err
	}
	metrics.ResultWrites.WithLabelValues("success").Inc()
	w.log.Info("Predictions written", map[string]interface{}{
		"backend": rs.Backend,
		"rows":    rs.Len(),
		"path":    path,
	})
	return path, nil
}

func (w *Writer) write(ctx context.Context, table *tabular.Table, rs *pipeline.ResultSet) (string, error) {
	if table.Len() != rs.Len() {
		return "", errors.NewIOError("write predictions", fmt.Errorf("table has %d rows but %d results", table.Len(), rs.Len()))
	}
	if err := ctx.Err(); err != nil {
		return "", errors.NewIOError("write predictions", err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", errors.NewIOError("create predictions directory", err)
	}

	final := filepath.Join(w.dir, w.FileName(rs.Backend))
	tmp, err := os.CreateTemp(w.dir, ".predictions-*.tmp")
	if err != nil {
		return "", errors.NewIOError("create temporary predictions file", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	withProb := rs.HasProbability()
	cw := csv.NewWriter(tmp)

	// Stale result columns from a re-uploaded output file are replaced.
	keep := make([]int, 0, len(table.Header))
	header := make([]string, 0, len(table.Header)+2)
	for j, h := range table.Header {
		if h == PredictionsColumn || h == ProbabilityColumn {
			continue
		}
		keep = append(keep, j)
		header = append(header, h)
	}
	header = append(header, PredictionsColumn)
	if withProb {
		header = append(header, ProbabilityColumn)
	}
	if err := cw.Write(header); err != nil {
		return "", errors.NewIOError("write predictions header", err)
	}
	for i, row := range table.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return "", errors.NewIOError("write predictions", err)
			}
		}
		res := rs.Results[i]
		out := make([]string, 0, len(header))
		for _, j := range keep {
			out = append(out, row[j])
		}
		out = append(out, res.Label.String())
		if withProb {
			prob := ""
			if res.Probability != nil {
				prob = strconv.FormatFloat(*res.Probability, 'f', -1, 64)
			}
			out = append(out, prob)
		}
		if err := cw.Write(out); err != nil {
			return "", errors.NewIOError("write predictions row", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", errors.NewIOError("flush predictions", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", errors.NewIOError("sync predictions", err)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.NewIOError("close predictions", err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return "", errors.NewIOError("rename predictions", err)
	}
	committed = true
	return final, nil
}
