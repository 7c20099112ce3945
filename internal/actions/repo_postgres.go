package actions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/lshmam/neucler-inbox-sub002/pkg/utils"
)

// PostgresRepo persists the action set.
//
// NOTE: This repository assumes an `actions` table with one row per Action and
// a partial unique index upholding the dedup invariant at the storage layer:
//
//	CREATE UNIQUE INDEX actions_one_pending
//	ON actions (workspace_id, person_id, type)
//	WHERE status = 'pending';
//
// Rows are never deleted; status transitions only.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const actionColumns = `
id, workspace_id, person_id, person_name, person_phone, person_tags,
type, priority, status, reason, last_interaction, due_at, created_at, updated_at
`

func (r *PostgresRepo) Insert(ctx context.Context, a Action) error {
	const q = `
INSERT INTO actions (` + actionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`
	tags, err := json.Marshal(a.Person.Tags)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q,
		a.ID, a.WorkspaceID, a.Person.ID, a.Person.Name, a.Person.Phone, string(tags),
		a.Type, a.Priority, a.Status, a.Reason, a.LastInteraction, a.DueAt, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

// Update rewrites the action row inside a transaction, taking the row lock
// first. The engine's slot mutex only serializes within one process;
// concurrent API instances serialize on this lock instead.
func (r *PostgresRepo) Update(ctx context.Context, a Action) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM actions WHERE workspace_id = $1 AND id = $2 FOR UPDATE`,
			a.WorkspaceID, a.ID,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		const q = `
UPDATE actions
SET priority = $3, status = $4, reason = $5, last_interaction = $6, due_at = $7, updated_at = $8
WHERE workspace_id = $1 AND id = $2
`
		_, err = tx.ExecContext(ctx, q,
			a.WorkspaceID, a.ID,
			a.Priority, a.Status, a.Reason, a.LastInteraction, a.DueAt, a.UpdatedAt,
		)
		return err
	})
}

func (r *PostgresRepo) Get(ctx context.Context, workspaceID, id string) (Action, error) {
	const q = `
SELECT ` + actionColumns + `
FROM actions
WHERE workspace_id = $1 AND id = $2
`
	return scanAction(r.db.QueryRowContext(ctx, q, workspaceID, id))
}

func (r *PostgresRepo) FindPending(ctx context.Context, workspaceID, personID string, t ActionType) (Action, bool, error) {
	const q = `
SELECT ` + actionColumns + `
FROM actions
WHERE workspace_id = $1 AND person_id = $2 AND type = $3 AND status = 'pending'
`
	a, err := scanAction(r.db.QueryRowContext(ctx, q, workspaceID, personID, t))
	if errors.Is(err, ErrNotFound) {
		return Action{}, false, nil
	}
	if err != nil {
		return Action{}, false, err
	}
	return a, true, nil
}

func (r *PostgresRepo) List(ctx context.Context, workspaceID string, f Filter) ([]Action, error) {
	// Ranking is applied by the engine; the ORDER BY here just keeps result
	// pages stable.
	q := `
SELECT ` + actionColumns + `
FROM actions
WHERE workspace_id = $1
`
	args := []any{workspaceID}
	if f.Status != "" {
		args = append(args, f.Status)
		q += ` AND status = $` + strconv.Itoa(len(args))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		q += ` AND type = $` + strconv.Itoa(len(args))
	}
	if f.PersonID != "" {
		args = append(args, f.PersonID)
		q += ` AND person_id = $` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY priority ASC, due_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListPendingCreatedBefore(ctx context.Context, workspaceID string, t ActionType, cutoff time.Time) ([]Action, error) {
	const q = `
SELECT ` + actionColumns + `
FROM actions
WHERE workspace_id = $1 AND type = $2 AND status = 'pending' AND created_at < $3
`
	rows, err := r.db.QueryContext(ctx, q, workspaceID, t, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (Action, error) {
	var a Action
	var tags string
	err := row.Scan(
		&a.ID, &a.WorkspaceID, &a.Person.ID, &a.Person.Name, &a.Person.Phone, &tags,
		&a.Type, &a.Priority, &a.Status, &a.Reason, &a.LastInteraction, &a.DueAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Action{}, ErrNotFound
	}
	if err != nil {
		return Action{}, err
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &a.Person.Tags); err != nil {
			return Action{}, err
		}
	}
	return a, nil
}
