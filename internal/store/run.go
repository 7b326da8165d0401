package store

import (
	"database/sql"
	"errors"
	"time"
)

// Run is the audit record of one detection run.
type Run struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Frames    int64      `json:"frames"`
	Error     string     `json:"error,omitempty"`
}

// Active reports whether the run has not been finished yet.
func (r *Run) Active() bool {
	return r.EndedAt == nil
}

// RunRepository records detection runs.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Create inserts a new, unfinished run.
func (r *RunRepository) Create(run *Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		run.ID, run.StartedAt,
	)
	return err
}

// Finish marks a run ended with the given reason, frame count and error text.
func (r *RunRepository) Finish(id, reason string, frames int64, errText string) error {
	result, err := r.db.Exec(
		`UPDATE runs SET ended_at = ?, reason = ?, frames = ?, error = ? WHERE id = ?`,
		time.Now(), reason, frames, errText, id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRow(
		`SELECT id, started_at, ended_at, reason, frames, error FROM runs WHERE id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// List returns the most recent runs first. A limit <= 0 returns all runs.
func (r *RunRepository) List(limit int) ([]*Run, error) {
	query := `SELECT id, started_at, ended_at, reason, frames, error FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// CloseDangling finishes runs left open by a previous process that exited
// without recording an end. It returns how many were closed.
func (r *RunRepository) CloseDangling(reason string) (int64, error) {
	result, err := r.db.Exec(
		`UPDATE runs SET ended_at = ?, reason = ? WHERE ended_at IS NULL`,
		time.Now(), reason,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var ended sql.NullTime
	if err := row.Scan(&run.ID, &run.StartedAt, &ended, &run.Reason, &run.Frames, &run.Error); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		run.EndedAt = &t
	}
	return run, nil
}
