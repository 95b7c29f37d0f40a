package store

import (
	"context"
	"fmt"

	"github.com/roach88/parcelflow/internal/engine"
)

// WriteResult stores a finished run: its summary row, execution log and
// final state, in one transaction.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency. Writing the same run ID
// twice keeps the first write and returns inserted=false.
func (s *Store) WriteResult(ctx context.Context, workflow string, res *engine.Result) (inserted bool, err error) {
	digest, err := res.Digest()
	if err != nil {
		return false, fmt.Errorf("write result: %w", err)
	}
	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write result: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	r, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, workflow, terminal, status, rounds, error, digest, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		res.RunID,
		workflow,
		res.Terminal,
		string(res.Status),
		res.RoundsExecuted,
		errText,
		digest,
		res.StartedAt.UnixNano(),
		res.FinishedAt.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("write result: insert run: %w", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write result: rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	for _, e := range res.ExecutionLog {
		outputs, err := marshalOutputs(e.Outputs)
		if err != nil {
			return false, fmt.Errorf("write result: %w", err)
		}
		var idx any
		if e.HasIndex {
			idx = e.Index
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO executions
			(run_id, seq, round, node_id, idx, duration_ns, outputs, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			res.RunID, e.Seq, e.Round, e.NodeID, idx, int64(e.Duration), outputs, e.Err,
		); err != nil {
			return false, fmt.Errorf("write result: insert execution %d: %w", e.Seq, err)
		}
	}

	if res.Parcels != nil {
		for _, p := range res.Parcels.Parcels() {
			value, err := marshalValue(p.Value())
			if err != nil {
				return false, fmt.Errorf("write result: parcel %s: %w", p.Name(), err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO parcels (run_id, name, value, producer, created_at)
				VALUES (?, ?, ?, ?, ?)
			`,
				res.RunID, p.Name().String(), value, p.Producer(), p.CreatedAt().UnixNano(),
			); err != nil {
				return false, fmt.Errorf("write result: insert parcel %s: %w", p.Name(), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write result: commit: %w", err)
	}
	return true, nil
}
