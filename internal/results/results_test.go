package results

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "placement-predictor/internal/common/errors"
	"placement-predictor/internal/common/logger"
	"placement-predictor/internal/pipeline"
	"placement-predictor/internal/tabular"
	"placement-predictor/pkg/registry"
)

func sampleTable() *tabular.Table {
	return &tabular.Table{
		Header: []string{"StudentID", "CGPA", "PlacementTraining"},
		Rows: [][]string{
			{"S1", "8.5", "Yes"},
			{"S2", "6.0", "No"},
		},
	}
}

func discreteResults() *pipeline.ResultSet {
	return &pipeline.ResultSet{
		Backend: "svc",
		Kind:    registry.Discrete,
		Results: []pipeline.PredictionResult{{Label: pipeline.Placed}, {Label: pipeline.NotPlaced}},
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(raw)
}

func TestWriter_Discrete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "predictions")
	w := NewWriter(dir, logger.NewTestLogger(t))
	w.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 45, 0, time.FixedZone("X", 3600)) }

	path, err := w.Write(context.Background(), sampleTable(), discreteResults())
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.Regexp(t, regexp.MustCompile(`^predictions_svc_20260301T113045_[0-9a-f]{8}\.csv$`), filepath.Base(path))
	assert.Equal(t, "StudentID,CGPA,PlacementTraining,Predictions\nS1,8.5,Yes,Placed\nS2,6.0,No,Not Placed\n", readFile(t, path))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriter_ProbabilityAndStaleColumns(t *testing.T) {
	w := NewWriter(t.TempDir(), logger.NewTestLogger(t))
	p1, p2 := 0.7, 0.25
	rs := &pipeline.ResultSet{
		Backend: "deep_learning",
		Kind:    registry.Probabilistic,
		Results: []pipeline.PredictionResult{
			{Label: pipeline.Placed, Probability: &p1},
			{Label: pipeline.NotPlaced, Probability: &p2},
		},
	}
	tbl := &tabular.Table{
		Header: []string{"StudentID", "Predictions"},
		Rows:   [][]string{{"S1", "old"}, {"S2", "old"}},
	}

	path, err := w.Write(context.Background(), tbl, rs)
	require.NoError(t, err)
	assert.Equal(t, "StudentID,Predictions,Probability\nS1,Placed,0.7\nS2,Not Placed,0.25\n", readFile(t, path))
}

func TestWriter_UniqueNames(t *testing.T) {
	w := NewWriter(t.TempDir(), logger.NewNoOpLogger())
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		path, err := w.Write(context.Background(), sampleTable(), discreteResults())
		require.NoError(t, err)
		assert.False(t, seen[path], "duplicate path %s", path)
		seen[path] = true
	}
}

func TestWriter_FailuresLeaveNoFiles(t *testing.T) {
	t.Run("directory is a file", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "predictions")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

		_, err := NewWriter(blocker, logger.NewNoOpLogger()).Write(context.Background(), sampleTable(), discreteResults())
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeIO))
	})

	t.Run("row count mismatch", func(t *testing.T) {
		dir := t.TempDir()
		rs := discreteResults()
		rs.Results = rs.Results[:1]

		_, err := NewWriter(dir, logger.NewNoOpLogger()).Write(context.Background(), sampleTable(), rs)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeIO))
		entries, _ := os.ReadDir(dir)
		assert.Empty(t, entries)
	})

	t.Run("context cancelled", func(t *testing.T) {
		dir := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewWriter(dir, logger.NewNoOpLogger()).Write(ctx, sampleTable(), discreteResults())
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeIO))
		assert.ErrorIs(t, err, context.Canceled)
		entries, _ := os.ReadDir(dir)
		assert.Empty(t, entries)
	})
}

func TestPostgresLedger_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec("INSERT INTO prediction_runs").
		WithArgs(id.String(), "svc", 0.5, 3, 2, "predictions/x.csv", RunSucceeded, nil, int64(12), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ledger := NewPostgresLedger(db, logger.NewTestLogger(t))
	err = ledger.Record(context.Background(), Run{
		ID:         id,
		Backend:    "svc",
		Threshold:  0.5,
		Rows:       3,
		Placed:     2,
		OutputPath: "predictions/x.csv",
		Status:     RunSucceeded,
		DurationMs: 12,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_RecordFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO prediction_runs").WillReturnError(errors.New("connection reset"))

	err = NewPostgresLedger(db, logger.NewTestLogger(t)).Record(context.Background(), Run{Backend: "svc", Status: RunFailed, ErrorCode: "UNKNOWN_MODEL"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "connection reset"))
}

func TestPostgresLedger_Recent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	created := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "backend", "threshold", "row_count", "placed_count", "output_path", "status", "error_code", "duration_ms", "created_at"}).
		AddRow(id.String(), "deep_learning", 0.6, 10, 4, "predictions/a.csv", RunSucceeded, nil, int64(40), created).
		AddRow(uuid.New().String(), "svc", 0.5, 3, 0, nil, RunFailed, "INFERENCE_ERROR", int64(5), created.Add(-time.Hour))
	mock.ExpectQuery("SELECT (.+) FROM prediction_runs").WithArgs(5).WillReturnRows(rows)

	runs, err := NewPostgresLedger(db, logger.NewTestLogger(t)).Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, "predictions/a.csv", runs[0].OutputPath)
	assert.Equal(t, int64(40), runs[0].DurationMs)
	assert.Equal(t, "", runs[1].OutputPath)
	assert.Equal(t, "INFERENCE_ERROR", runs[1].ErrorCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNopLedger(t *testing.T) {
	var l Ledger = NopLedger{}
	assert.NoError(t, l.Record(context.Background(), Run{}))
	runs, err := l.Recent(context.Background(), 1)
	assert.NoError(t, err)
	assert.Empty(t, runs)
}
