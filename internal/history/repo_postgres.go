package history

import (
	"context"
	"database/sql"
	"strconv"
	"time"
)

// PostgresRepo persists the interaction timeline.
//
// The interaction_history table is INSERT-only; no UPDATE/DELETE statements
// exist in this repository.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO interaction_history (
  id, workspace_id, kind, person_id, counterparty, operator_id,
  session_id, direction, outcome, system_closed,
  intent, destination, auto_replied, summary,
  started_at, ended_at, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.WorkspaceID, e.Kind, e.PersonID, e.Counterparty, e.OperatorID,
		e.SessionID, e.Direction, e.Outcome, e.SystemClosed,
		e.Intent, e.Destination, e.AutoReplied, e.Summary,
		nullTime(e.StartedAt), nullTime(e.EndedAt), e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, workspaceID string, f Query) ([]Entry, error) {
	q := `
SELECT id, workspace_id, kind, person_id, counterparty, operator_id,
       session_id, direction, outcome, system_closed,
       intent, destination, auto_replied, summary,
       started_at, ended_at, created_at
FROM interaction_history
WHERE workspace_id = $1
`
	args := []any{workspaceID}
	if f.PersonID != "" {
		args = append(args, f.PersonID)
		q += ` AND person_id = $` + strconv.Itoa(len(args))
	}
	if f.Kind != "" {
		args = append(args, f.Kind)
		q += ` AND kind = $` + strconv.Itoa(len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		q += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		q += ` AND created_at < $` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var started, ended sql.NullTime
		if err := rows.Scan(
			&e.ID, &e.WorkspaceID, &e.Kind, &e.PersonID, &e.Counterparty, &e.OperatorID,
			&e.SessionID, &e.Direction, &e.Outcome, &e.SystemClosed,
			&e.Intent, &e.Destination, &e.AutoReplied, &e.Summary,
			&started, &ended, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		if started.Valid {
			e.StartedAt = started.Time
		}
		if ended.Valid {
			e.EndedAt = ended.Time
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
