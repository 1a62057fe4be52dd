package results

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"placement-predictor/internal/common/logger"
)

// Run status values stored in the ledger.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run is one audited batch prediction.
type Run struct {
	ID         uuid.UUID `json:"id"`
	Backend    string    `json:"backend"`
	Threshold  float64   `json:"threshold"`
	Rows       int       `json:"rows"`
	Placed     int       `json:"placed"`
	OutputPath string    `json:"outputPath,omitempty"`
	Status     string    `json:"status"`
	ErrorCode  string    `json:"errorCode,omitempty"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Ledger records batch runs.
type Ledger interface {
	Record(ctx context.Context, run Run) error
	Recent(ctx context.Context, limit int) ([]Run, error)
}

// PostgresLedger stores runs in the prediction_runs table.
type PostgresLedger struct {
	db  *sql.DB
	log logger.Logger
}

func NewPostgresLedger(db *sql.DB, log logger.Logger) *PostgresLedger {
	return &PostgresLedger{db: db, log: log.WithFields(map[string]interface{}{"component": "run_ledger"})}
}

const insertRunQuery = `
	INSERT INTO prediction_runs
		(id, backend, threshold, row_count, placed_count, output_path, status, error_code, duration_ms, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const recentRunsQuery = `
	SELECT id, backend, threshold, row_count, placed_count, output_path, status, error_code, duration_ms, created_at
	FROM prediction_runs
	ORDER BY created_at DESC
	LIMIT $1`

func (l *PostgresLedger) Record(ctx context.Context, run Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, insertRunQuery,
		run.ID.String(),
		run.Backend,
		run.Threshold,
		run.Rows,
		run.Placed,
		nullString(run.OutputPath),
		run.Status,
		nullString(run.ErrorCode),
		run.DurationMs,
		run.CreatedAt,
	)
	if err != nil {
		l.log.Error("Failed to record prediction run", map[string]interface{}{
			"runId": run.ID.String(),
			"error": err.Error(),
		})
		return fmt.Errorf("record prediction run: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, recentRunsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("query prediction runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			id         string
			outputPath sql.NullString
			errorCode  sql.NullString
		)
		if err := rows.Scan(&id, &r.Backend, &r.Threshold, &r.Rows, &r.Placed, &outputPath, &r.Status, &errorCode, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prediction run: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("scan prediction run id: %w", err)
		}
		r.ID = parsed
		r.OutputPath = outputPath.String
		r.ErrorCode = errorCode.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NopLedger discards runs. Used when postgres is disabled.
type NopLedger struct{}

func (NopLedger) Record(context.Context, Run) error { return nil }
func (NopLedger) Recent(context.Context, int) ([]Run, error) { return nil, nil }
