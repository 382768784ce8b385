package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jacksonlee411/registry-console/modules/activity/domain/types"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PGStore struct {
	pool pgBeginner
}

func NewPGStore(pool pgBeginner) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Append(ctx context.Context, e types.Entry) error {
	details := []byte(`{}`)
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		details = b
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `
INSERT INTO activity.logs (id, user_id, user_email, user_name, action, module, description, details, target_id, target_name, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11)
`, e.ID, e.UserID, e.UserEmail, e.UserName, string(e.Action), e.Module, e.Description, details, e.TargetID, e.TargetName, e.CreatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) List(ctx context.Context, q types.ListQuery) ([]types.Entry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if q.Module != "" {
		add("module = $%d", q.Module)
	}
	if q.Action != "" {
		add("action = $%d", string(q.Action))
	}
	if q.UserID != "" {
		add("user_id = $%d", q.UserID)
	}
	if q.Before != "" {
		add("(created_at, id) < (SELECT created_at, id FROM activity.logs WHERE id = $%d)", q.Before)
	}

	sql := `SELECT id, user_id, user_email, user_name, action, module, description, details, target_id, target_name, created_at FROM activity.logs`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY created_at DESC, id DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Entry
	for rows.Next() {
		var (
			e       types.Entry
			action  string
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserEmail, &e.UserName, &action, &e.Module, &e.Description, &details, &e.TargetID, &e.TargetName, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = types.Action(action)
		if len(details) > 0 && string(details) != "{}" {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
