package contacts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) FindByPhone(ctx context.Context, workspaceID, phone string) (Contact, error) {
	const q = `
SELECT id, workspace_id, name, phone, tags
FROM contacts
WHERE workspace_id = $1 AND phone = $2
`
	var c Contact
	var tags string
	err := r.db.QueryRowContext(ctx, q, workspaceID, phone).Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Phone, &tags)
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, err
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
			return Contact{}, err
		}
	}
	return c, nil
}
