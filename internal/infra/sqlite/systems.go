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

// ─── System Repository ──────────────────────────────────────────────────────

// UpsertSystem inserts or replaces a system document. New systems are
// appended to the end of the catalog; existing ones keep their position.
func (d *DB) UpsertSystem(ctx context.Context, sys domain.ChaoticSystemDefinition) error {
	if err := domain.ValidateSystem(sys); err != nil {
		return err
	}
	doc, err := json.Marshal(sys)
	if err != nil {
		return fmt.Errorf("encode system %s: %w", sys.ID, err)
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO systems (id, position, name, status, content_hash, last_modified, doc)
		 VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM systems), ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			status=excluded.status,
			content_hash=excluded.content_hash,
			last_modified=excluded.last_modified,
			doc=excluded.doc`,
		sys.ID, sys.Name, string(sys.Status), sys.ContentHash, sys.LastModified.UnixMilli(), string(doc),
	)
	return err
}

// GetSystem retrieves a single system by id.
func (d *DB) GetSystem(ctx context.Context, id string) (domain.ChaoticSystemDefinition, error) {
	row := d.db.QueryRowContext(ctx, `SELECT doc FROM systems WHERE id = ?`, id)
	sys, err := scanSystem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ChaoticSystemDefinition{}, domain.NotFound("system", id)
	}
	return sys, err
}

// ListSystems returns the whole catalog in catalog order.
func (d *DB) ListSystems(ctx context.Context) ([]domain.ChaoticSystemDefinition, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT doc FROM systems ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	systems := []domain.ChaoticSystemDefinition{}
	for rows.Next() {
		sys, err := scanSystem(rows)
		if err != nil {
			return nil, err
		}
		systems = append(systems, sys)
	}
	return systems, rows.Err()
}

// CountSystems returns the catalog size.
func (d *DB) CountSystems(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM systems`).Scan(&n)
	return n, err
}

// UpdateParameter validates and writes one parameter value inside a
// transaction, then recomputes the system's content hash and stamps
// lastModified with at.
func (d *DB) UpdateParameter(ctx context.Context, systemID, parameterID string, value domain.Value, at time.Time) (domain.SystemParameter, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.SystemParameter{}, err
	}
	defer tx.Rollback()

	sys, err := scanSystem(tx.QueryRowContext(ctx, `SELECT doc FROM systems WHERE id = ?`, systemID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SystemParameter{}, domain.NotFound("system", systemID)
	}
	if err != nil {
		return domain.SystemParameter{}, err
	}

	p, ok := sys.Parameter(parameterID)
	if !ok {
		return domain.SystemParameter{}, domain.NotFound("parameter", parameterID)
	}
	v, err := p.ValidateValue(value)
	if err != nil {
		return domain.SystemParameter{}, err
	}
	p.CurrentValue = v
	updated := *p

	sys.LastModified = at
	sys.ContentHash = domain.ComputeContentHash(sys)
	doc, err := json.Marshal(sys)
	if err != nil {
		return domain.SystemParameter{}, fmt.Errorf("encode system %s: %w", sys.ID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE systems SET content_hash = ?, last_modified = ?, doc = ? WHERE id = ?`,
		sys.ContentHash, at.UnixMilli(), string(doc), sys.ID,
	); err != nil {
		return domain.SystemParameter{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.SystemParameter{}, err
	}
	return updated, nil
}

// ─── Leverage Points ────────────────────────────────────────────────────────

// ReplaceLeveragePoints stores the catalogued leverage points of a system,
// replacing any previous set.
func (d *DB) ReplaceLeveragePoints(ctx context.Context, systemID string, points []domain.LeveragePoint) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM leverage_points WHERE system_id = ?`, systemID); err != nil {
		return err
	}
	for i, lp := range points {
		lp.SystemID = systemID
		doc, err := json.Marshal(lp)
		if err != nil {
			return fmt.Errorf("encode leverage point %s: %w", lp.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO leverage_points (system_id, id, position, doc) VALUES (?, ?, ?, ?)`,
			systemID, lp.ID, i, string(doc),
		); err != nil {
			return fmt.Errorf("insert leverage point %s: %w", lp.ID, err)
		}
	}
	return tx.Commit()
}

// ListLeveragePoints returns the catalogued leverage points of a system.
func (d *DB) ListLeveragePoints(ctx context.Context, systemID string) ([]domain.LeveragePoint, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT doc FROM leverage_points WHERE system_id = ? ORDER BY position`, systemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []domain.LeveragePoint{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var lp domain.LeveragePoint
		if err := json.Unmarshal([]byte(doc), &lp); err != nil {
			return nil, fmt.Errorf("decode leverage point: %w", err)
		}
		points = append(points, lp)
	}
	return points, rows.Err()
}

func scanSystem(s scanner) (domain.ChaoticSystemDefinition, error) {
	var doc string
	if err := s.Scan(&doc); err != nil {
		return domain.ChaoticSystemDefinition{}, err
	}
	var sys domain.ChaoticSystemDefinition
	if err := json.Unmarshal([]byte(doc), &sys); err != nil {
		return domain.ChaoticSystemDefinition{}, fmt.Errorf("decode system: %w", err)
	}
	domain.Normalize(&sys)
	return sys, nil
}
