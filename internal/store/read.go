package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run is the summary row of a stored run.
type Run struct {
	ID         string    `json:"id"`
	Workflow   string    `json:"workflow"`
	Terminal   string    `json:"terminal"`
	Status     string    `json:"status"`
	Rounds     int       `json:"rounds"`
	Error      string    `json:"error,omitempty"`
	Digest     string    `json:"digest"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Execution is one stored execution log entry.
type Execution struct {
	Seq      int64         `json:"seq"`
	Round    int           `json:"round"`
	NodeID   string        `json:"node_id"`
	Index    int           `json:"index"`
	HasIndex bool          `json:"has_index"`
	Duration time.Duration `json:"duration_ns"`
	Outputs  []string      `json:"outputs"`
	Error    string        `json:"error,omitempty"`
}

// Label renders the invocation as node or node[i].
func (e Execution) Label() string {
	if e.HasIndex {
		return fmt.Sprintf("%s[%d]", e.NodeID, e.Index)
	}
	return e.NodeID
}

// Parcel is one stored binding of a run's final state.
type Parcel struct {
	Name      string    `json:"name"`
	Value     any       `json:"value"`
	Producer  string    `json:"producer,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const runColumns = `id, workflow, terminal, status, rounds, error, digest, started_at, finished_at`

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns stored runs, most recent first. An empty workflow lists
// every workflow; limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, workflow string, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if workflow != "" {
		query += ` WHERE workflow = ?`
		args = append(args, workflow)
	}
	query += ` ORDER BY started_at DESC, id COLLATE BINARY DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadExecutions returns the execution log of a run ordered by seq.
//
// Returns an empty slice (not nil) if the run has no executions.
func (s *Store) ReadExecutions(ctx context.Context, runID string) ([]Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, round, node_id, idx, duration_ns, outputs, error
		FROM executions
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	execs := []Execution{}
	for rows.Next() {
		var (
			e        Execution
			idx      sql.NullInt64
			duration int64
			outputs  string
		)
		if err := rows.Scan(&e.Seq, &e.Round, &e.NodeID, &idx, &duration, &outputs, &e.Error); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		if idx.Valid {
			e.Index = int(idx.Int64)
			e.HasIndex = true
		}
		e.Duration = time.Duration(duration)
		if e.Outputs, err = unmarshalOutputs(outputs); err != nil {
			return nil, err
		}
		execs = append(execs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return execs, nil
}

// ReadParcels returns the final state of a run ordered by name.
//
// Returns an empty slice (not nil) if the run has no parcels.
func (s *Store) ReadParcels(ctx context.Context, runID string) ([]Parcel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value, producer, created_at
		FROM parcels
		WHERE run_id = ?
		ORDER BY name COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query parcels: %w", err)
	}
	defer rows.Close()

	parcels := []Parcel{}
	for rows.Next() {
		var (
			p       Parcel
			value   string
			created int64
		)
		if err := rows.Scan(&p.Name, &value, &p.Producer, &created); err != nil {
			return nil, fmt.Errorf("scan parcel: %w", err)
		}
		if p.Value, err = unmarshalValue(value); err != nil {
			return nil, fmt.Errorf("parcel %s: %w", p.Name, err)
		}
		p.CreatedAt = time.Unix(0, created).UTC()
		parcels = append(parcels, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parcels: %w", err)
	}
	return parcels, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r                 Run
		started, finished int64
	)
	if err := row.Scan(&r.ID, &r.Workflow, &r.Terminal, &r.Status, &r.Rounds,
		&r.Error, &r.Digest, &started, &finished); err != nil {
		return Run{}, err
	}
	r.StartedAt = time.Unix(0, started).UTC()
	r.FinishedAt = time.Unix(0, finished).UTC()
	return r, nil
}
