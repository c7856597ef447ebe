package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chaostheorist/chaos/internal/domain"
)

// ─── Simulation Runs ────────────────────────────────────────────────────────

// SaveRun inserts or replaces a simulation run.
func (d *DB) SaveRun(ctx context.Context, run domain.SimulationRun) error {
	doc, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO simulation_runs (id, system_id, status, start_time, end_time, doc)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			end_time=excluded.end_time,
			doc=excluded.doc`,
		run.ID, run.SystemID, string(run.Status), run.StartTime.UnixMilli(),
		nullableUnixMilli(run.EndTime), string(doc),
	)
	return err
}

// GetRun retrieves a simulation run by id.
func (d *DB) GetRun(ctx context.Context, id string) (domain.SimulationRun, error) {
	var doc string
	err := d.db.QueryRowContext(ctx, `SELECT doc FROM simulation_runs WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SimulationRun{}, domain.NotFound("simulation run", id)
	}
	if err != nil {
		return domain.SimulationRun{}, err
	}
	return decodeRun(doc)
}

// ListRuns returns the runs of a system, newest first. An empty systemID
// lists every run.
func (d *DB) ListRuns(ctx context.Context, systemID string, limit int) ([]domain.SimulationRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT doc FROM simulation_runs
		 WHERE ? = '' OR system_id = ?
		 ORDER BY start_time DESC LIMIT ?`,
		systemID, systemID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []domain.SimulationRun{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		run, err := decodeRun(doc)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func decodeRun(doc string) (domain.SimulationRun, error) {
	var run domain.SimulationRun
	if err := json.Unmarshal([]byte(doc), &run); err != nil {
		return domain.SimulationRun{}, fmt.Errorf("decode run: %w", err)
	}
	return run, nil
}

// ─── Intervention Proposals ─────────────────────────────────────────────────

// InsertProposal appends an intervention proposal to the log.
func (d *DB) InsertProposal(ctx context.Context, p domain.InterventionProposal) (int64, error) {
	result, err := d.db.ExecContext(ctx,
		`INSERT INTO intervention_proposals (leverage_point_id, system_id, proposed_by, proposed_at)
		 VALUES (?, ?, ?, ?)`,
		p.LeveragePointID, p.SystemID, p.ProposedBy, p.ProposedAt.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListProposals returns the proposals recorded for a system, oldest first.
func (d *DB) ListProposals(ctx context.Context, systemID string) ([]domain.InterventionProposal, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT leverage_point_id, system_id, proposed_by, proposed_at
		 FROM intervention_proposals WHERE system_id = ? ORDER BY id`, systemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.InterventionProposal
	for rows.Next() {
		var p domain.InterventionProposal
		var at int64
		if err := rows.Scan(&p.LeveragePointID, &p.SystemID, &p.ProposedBy, &at); err != nil {
			return nil, err
		}
		p.ProposedAt = time.UnixMilli(at).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}
