package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kelcyno/tobac/internal/features"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run describes one stored feature table.
type Run struct {
	RunID     string    `json:"run_id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	Features  int       `json:"features"`
	Columns   []string  `json:"columns"`
}

// FeatureStore persists feature tables with their statistic columns.
// Scalars are stored as REAL with NULL for NaN; vectors as JSON arrays with
// null for NaN elements.
type FeatureStore struct {
	db *DB
}

// NewFeatureStore creates a FeatureStore on a migrated database.
func NewFeatureStore(db *DB) *FeatureStore {
	return &FeatureStore{db: db}
}

// InsertRun registers a new, empty run and returns it.
func (s *FeatureStore) InsertRun(label string) (*Run, error) {
	run := &Run{
		RunID:     uuid.New().String(),
		Label:     label,
		CreatedAt: time.Now().UTC(),
		Columns:   []string{},
	}
	_, err := s.db.Exec(
		`INSERT INTO stat_runs (run_id, label, created_ns) VALUES (?, ?, ?)`,
		run.RunID, run.Label, run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// SaveTable stores t under runID, replacing anything stored there before.
func (s *FeatureStore) SaveTable(runID string, t *features.Table) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var extra []string
	for _, name := range t.Columns() {
		if !features.IsReserved(name) {
			extra = append(extra, name)
		}
	}
	colsJSON, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}
	res, err := tx.Exec(`UPDATE stat_runs SET columns_json = ? WHERE run_id = ?`, string(colsJSON), runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if _, err = tx.Exec(`DELETE FROM stat_features WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("clear run: %w", err)
	}

	featStmt, err := tx.Prepare(`INSERT INTO stat_features (run_id, row_index, feature, frame, time_ns) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare features: %w", err)
	}
	defer featStmt.Close()
	valStmt, err := tx.Prepare(`INSERT INTO stat_values (run_id, row_index, column_name, kind, value, vector_json) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare values: %w", err)
	}
	defer valStmt.Close()

	for r := 0; r < t.Len(); r++ {
		var ts sql.NullInt64
		if tm := t.Time(r); !tm.IsZero() {
			ts = sql.NullInt64{Int64: tm.UnixNano(), Valid: true}
		}
		if _, err = featStmt.Exec(runID, r, t.Feature(r), t.Frame(r), ts); err != nil {
			return fmt.Errorf("insert feature %d: %w", t.Feature(r), err)
		}
	}
	for _, name := range extra {
		col, _ := t.Column(name)
		for r, v := range col.Values {
			var value sql.NullFloat64
			var vector sql.NullString
			if v.Kind() == features.KindVector {
				b, err := json.Marshal(encodeVector(v.Floats()))
				if err != nil {
					return fmt.Errorf("encode %s row %d: %w", name, r, err)
				}
				vector = sql.NullString{String: string(b), Valid: true}
			} else if f := v.Float(); !math.IsNaN(f) {
				value = sql.NullFloat64{Float64: f, Valid: true}
			}
			if _, err = valStmt.Exec(runID, r, name, v.Kind().String(), value, vector); err != nil {
				return fmt.Errorf("insert %s row %d: %w", name, r, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// LoadTable reads the table stored under runID.
func (s *FeatureStore) LoadTable(runID string) (*features.Table, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT feature, frame, time_ns FROM stat_features WHERE run_id = ? ORDER BY row_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	var featRows []features.Row
	for rows.Next() {
		var fr features.Row
		var ts sql.NullInt64
		if err := rows.Scan(&fr.Feature, &fr.Frame, &ts); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		if ts.Valid {
			fr.Time = time.Unix(0, ts.Int64).UTC()
		}
		featRows = append(featRows, fr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate features: %w", err)
	}

	table, err := features.NewTable(featRows)
	if err != nil {
		return nil, err
	}
	cols := make([]features.Column, len(run.Columns))
	for i, name := range run.Columns {
		cols[i] = features.Column{Name: name, Values: make([]features.Value, len(featRows))}
		for r := range cols[i].Values {
			cols[i].Values[r] = features.NaN()
		}
	}
	index := make(map[string]int, len(run.Columns))
	for i, name := range run.Columns {
		index[name] = i
	}

	vrows, err := s.db.Query(`SELECT row_index, column_name, kind, value, vector_json FROM stat_values WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query values: %w", err)
	}
	defer vrows.Close()
	for vrows.Next() {
		var r int
		var name, kind string
		var value sql.NullFloat64
		var vector sql.NullString
		if err := vrows.Scan(&r, &name, &kind, &value, &vector); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		ci, ok := index[name]
		if !ok || r < 0 || r >= len(featRows) {
			return nil, fmt.Errorf("stored value %s row %d does not belong to run %s", name, r, runID)
		}
		switch kind {
		case features.KindVector.String():
			var enc []*float64
			if err := json.Unmarshal([]byte(vector.String), &enc); err != nil {
				return nil, fmt.Errorf("decode %s row %d: %w", name, r, err)
			}
			cols[ci].Values[r] = features.Vector(decodeVector(enc))
		default:
			if value.Valid {
				cols[ci].Values[r] = features.Scalar(value.Float64)
			}
		}
	}
	if err := vrows.Err(); err != nil {
		return nil, fmt.Errorf("iterate values: %w", err)
	}
	if len(cols) == 0 {
		return table, nil
	}
	return table.Merge(cols...)
}

// GetRun returns the metadata of one run.
func (s *FeatureStore) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT r.run_id, r.label, r.created_ns, r.columns_json,
		       (SELECT COUNT(*) FROM stat_features f WHERE f.run_id = r.run_id)
		FROM stat_runs r WHERE r.run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// ListRuns returns all runs, newest first.
func (s *FeatureStore) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT r.run_id, r.label, r.created_ns, r.columns_json,
		       (SELECT COUNT(*) FROM stat_features f WHERE f.run_id = r.run_id)
		FROM stat_runs r
		ORDER BY r.created_ns DESC, r.run_id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and everything stored under it.
func (s *FeatureStore) DeleteRun(runID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM stat_values WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete values: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM stat_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	run := &Run{}
	var createdNs int64
	var colsJSON string
	if err := sc.Scan(&run.RunID, &run.Label, &createdNs, &colsJSON, &run.Features); err != nil {
		return nil, err
	}
	run.CreatedAt = time.Unix(0, createdNs).UTC()
	if err := json.Unmarshal([]byte(colsJSON), &run.Columns); err != nil {
		return nil, fmt.Errorf("decode columns of run %s: %w", run.RunID, err)
	}
	if run.Columns == nil {
		run.Columns = []string{}
	}
	return run, nil
}

func encodeVector(v []float64) []*float64 {
	out := make([]*float64, len(v))
	for i := range v {
		if !math.IsNaN(v[i]) {
			out[i] = &v[i]
		}
	}
	return out
}

func decodeVector(enc []*float64) []float64 {
	out := make([]float64, len(enc))
	for i, p := range enc {
		if p == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *p
		}
	}
	return out
}
