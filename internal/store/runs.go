package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/tfsage/internal/feature"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("run not found")

// Run describes one stored extraction run.
type Run struct {
	ID        string
	CreatedAt time.Time
	Decay     float64
	// Reference identifies the reference region set (usually its path).
	Reference string
	// Source is the merged peak file of a named-subset run, if any.
	Source  FileFingerprint
	Regions int
	Inputs  int
}

// WriteMatrix stores m as a new run and returns the run with its ID and
// creation time filled in. A run ID is generated when run.ID is empty.
// Only non-zero scores are written to the features table.
func (s *Store) WriteMatrix(run Run, m *feature.Matrix) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.CreatedAt = time.Now().UTC()
	run.Regions, run.Inputs = m.Dims()

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt, run.Decay, run.Reference,
		run.Source.Path, run.Source.Size, nullTime(run.Source.ModTime),
		run.Regions, run.Inputs,
	); err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	for i, label := range m.RowNames() {
		if _, err := tx.Exec(`INSERT INTO run_regions VALUES (?, ?, ?)`, run.ID, i, label); err != nil {
			return Run{}, fmt.Errorf("insert run region: %w", err)
		}
	}
	for j, label := range m.ColNames() {
		if _, err := tx.Exec(`INSERT INTO run_inputs VALUES (?, ?, ?)`, run.ID, j, label); err != nil {
			return Run{}, fmt.Errorf("insert run input: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("commit run: %w", err)
	}

	if err := s.appendFeatures(ctx, run.ID, m); err != nil {
		s.DeleteRun(run.ID)
		return Run{}, err
	}
	return run, nil
}

// appendFeatures bulk-inserts the non-zero cells of m using the Appender API.
func (s *Store) appendFeatures(ctx context.Context, runID string, m *feature.Matrix) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "features")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	rows, cols := m.Dims()
	for i := range rows {
		for j := range cols {
			v := m.At(i, j)
			if v == 0 {
				continue
			}
			if err := appender.AppendRow(runID, int32(i), int32(j), v); err != nil {
				return fmt.Errorf("append feature: %w", err)
			}
		}
	}

	return appender.Flush()
}

// LoadMatrix rebuilds the feature matrix of a stored run.
func (s *Store) LoadMatrix(runID string) (*feature.Matrix, error) {
	if _, err := s.GetRun(runID); err != nil {
		return nil, err
	}

	regions, err := s.labels(`SELECT label FROM run_regions WHERE run_id=? ORDER BY row_idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("load run regions: %w", err)
	}
	inputs, err := s.labels(`SELECT label FROM run_inputs WHERE run_id=? ORDER BY col_idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("load run inputs: %w", err)
	}

	columns := make([]feature.Vector, len(inputs))
	for j := range columns {
		columns[j] = feature.Zeros(len(regions))
	}

	rows, err := s.db.Query(`SELECT row_idx, col_idx, score FROM features WHERE run_id=?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var i, j int
		var v float64
		if err := rows.Scan(&i, &j, &v); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		if i < 0 || i >= len(regions) || j < 0 || j >= len(inputs) {
			return nil, fmt.Errorf("feature (%d, %d) outside run %s", i, j, runID)
		}
		columns[j][i] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate features: %w", err)
	}

	return feature.FromColumns(regions, inputs, columns)
}

func (s *Store) labels(query, runID string) ([]string, error) {
	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	labels := []string{}
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// GetRun returns the metadata of one run.
func (s *Store) GetRun(runID string) (Run, error) {
	rows, err := s.db.Query(runColumns+` WHERE run_id=?`, runID)
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return runs[0], nil
}

// ListRuns returns all runs, oldest first.
func (s *Store) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(runColumns + ` ORDER BY created_at, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// DeleteRun removes a run and all of its rows.
func (s *Store) DeleteRun(runID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM runs WHERE run_id=?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	for _, table := range []string{"run_regions", "run_inputs", "features"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE run_id=?`, runID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return tx.Commit()
}

const runColumns = `SELECT
	run_id, created_at, decay, reference,
	source_path, source_size, source_modtime,
	n_regions, n_inputs
	FROM runs`

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		var modTime sql.NullTime
		if err := rows.Scan(
			&r.ID, &r.CreatedAt, &r.Decay, &r.Reference,
			&r.Source.Path, &r.Source.Size, &modTime,
			&r.Regions, &r.Inputs,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if modTime.Valid {
			r.Source.ModTime = modTime.Time
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
