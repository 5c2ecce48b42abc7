package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/sensor-fusion/internal/timeutil"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run is one replay of a measurement log through the estimator.
type Run struct {
	RunID            string          `json:"run_id"`
	InputPath        string          `json:"input_path"`
	ToolVersion      string          `json:"tool_version"`
	GitSHA           string          `json:"git_sha"`
	ConfigJSON       json.RawMessage `json:"config"`
	MeasurementCount int             `json:"measurement_count"`
	ErrorCount       int             `json:"error_count"`
	// RMSE is (px, py, vx, vy); nil when the log carried no ground truth.
	RMSE      []float64       `json:"rmse,omitempty"`
	NISJSON   json.RawMessage `json:"nis,omitempty"`
	CreatedAt int64           `json:"created_at"` // unix nanoseconds
}

// Estimate is the filter output after one measurement.
type Estimate struct {
	Seq         int      `json:"seq"`
	TimestampUS int64    `json:"timestamp_us"`
	Sensor      string   `json:"sensor"`
	Corrected   bool     `json:"corrected"`
	PX          float64  `json:"px"`
	PY          float64  `json:"py"`
	V           float64  `json:"v"`
	Yaw         float64  `json:"yaw"`
	YawRate     float64  `json:"yaw_rate"`
	NIS         *float64 `json:"nis,omitempty"`
	// Ground truth (px, py, vx, vy) when the input carried it.
	GroundTruth []float64 `json:"ground_truth,omitempty"`
}

// RunStore provides persistence for runs and their estimates.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore creates a RunStore. A nil clock uses the wall clock.
func NewRunStore(db *sql.DB, clock timeutil.Clock) *RunStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RunStore{db: db, clock: clock}
}

// InsertRun persists a run. If RunID is empty a UUID is generated; if
// CreatedAt is zero it is stamped from the store's clock.
func (s *RunStore) InsertRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}
	if len(run.RMSE) != 0 && len(run.RMSE) != 4 {
		return fmt.Errorf("run %s: rmse has %d components, want 4", run.RunID, len(run.RMSE))
	}

	cfg := string(run.ConfigJSON)
	if cfg == "" {
		cfg = "{}"
	}
	var nis interface{}
	if len(run.NISJSON) > 0 {
		nis = string(run.NISJSON)
	}
	rmse := make([]interface{}, 4)
	for i := range rmse {
		if len(run.RMSE) == 4 {
			rmse[i] = run.RMSE[i]
		}
	}

	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO fusion_runs (
				run_id, input_path, tool_version, git_sha, config_json,
				measurement_count, error_count,
				rmse_px, rmse_py, rmse_vx, rmse_vy,
				nis_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.InputPath, run.ToolVersion, run.GitSHA, cfg,
			run.MeasurementCount, run.ErrorCount,
			rmse[0], rmse[1], rmse[2], rmse[3],
			nis, run.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.RunID, err)
	}
	return nil
}

// InsertEstimates appends estimates to a run in a single transaction.
func (s *RunStore) InsertEstimates(runID string, estimates []Estimate) error {
	if len(estimates) == 0 {
		return nil
	}
	err := retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		stmt, err := tx.Prepare(`
			INSERT INTO fusion_estimates (
				run_id, seq, timestamp_us, sensor, corrected,
				px, py, v, yaw, yaw_rate, nis,
				gt_px, gt_py, gt_vx, gt_vy
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			tx.Rollback()
			return err
		}
		defer stmt.Close()

		for _, e := range estimates {
			gt := make([]interface{}, 4)
			if len(e.GroundTruth) == 4 {
				for i := range gt {
					gt[i] = e.GroundTruth[i]
				}
			}
			var nis interface{}
			if e.NIS != nil {
				nis = *e.NIS
			}
			if _, err := stmt.Exec(
				runID, e.Seq, e.TimestampUS, e.Sensor, e.Corrected,
				e.PX, e.PY, e.V, e.Yaw, e.YawRate, nis,
				gt[0], gt[1], gt[2], gt[3],
			); err != nil {
				tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("inserting %d estimates for run %s: %w", len(estimates), runID, err)
	}
	return nil
}

const runColumns = `run_id, input_path, tool_version, git_sha, config_json,
		       measurement_count, error_count,
		       rmse_px, rmse_py, rmse_vx, rmse_vy,
		       nis_json, created_at`

// GetRun returns a single run by ID.
func (s *RunStore) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM fusion_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

// ListRuns returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *RunStore) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM fusion_runs ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListEstimates returns the estimates of a run in sequence order.
func (s *RunStore) ListEstimates(runID string) ([]Estimate, error) {
	rows, err := s.db.Query(`
		SELECT seq, timestamp_us, sensor, corrected,
		       px, py, v, yaw, yaw_rate, nis,
		       gt_px, gt_py, gt_vx, gt_vy
		FROM fusion_estimates
		WHERE run_id = ?
		ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query estimates: %w", err)
	}
	defer rows.Close()

	var out []Estimate
	for rows.Next() {
		var e Estimate
		var nis sql.NullFloat64
		var gt [4]sql.NullFloat64
		if err := rows.Scan(
			&e.Seq, &e.TimestampUS, &e.Sensor, &e.Corrected,
			&e.PX, &e.PY, &e.V, &e.Yaw, &e.YawRate, &nis,
			&gt[0], &gt[1], &gt[2], &gt[3],
		); err != nil {
			return nil, fmt.Errorf("scan estimate row: %w", err)
		}
		if nis.Valid {
			v := nis.Float64
			e.NIS = &v
		}
		if gt[0].Valid {
			e.GroundTruth = []float64{gt[0].Float64, gt[1].Float64, gt[2].Float64, gt[3].Float64}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and, by cascade, its estimates.
func (s *RunStore) DeleteRun(runID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM fusion_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var cfg string
	var nis sql.NullString
	var rmse [4]sql.NullFloat64
	err := row.Scan(
		&r.RunID, &r.InputPath, &r.ToolVersion, &r.GitSHA, &cfg,
		&r.MeasurementCount, &r.ErrorCount,
		&rmse[0], &rmse[1], &rmse[2], &rmse[3],
		&nis, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run row: %w", err)
	}
	r.ConfigJSON = json.RawMessage(cfg)
	if nis.Valid {
		r.NISJSON = json.RawMessage(nis.String)
	}
	if rmse[0].Valid {
		r.RMSE = []float64{rmse[0].Float64, rmse[1].Float64, rmse[2].Float64, rmse[3].Float64}
	}
	return &r, nil
}
