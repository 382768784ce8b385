package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jacksonlee411/registry-console/modules/registry/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/registry/domain/types"
	"github.com/jacksonlee411/registry-console/pkg/uuidv7"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStore keeps every registry collection in registry.documents as JSONB.
type PGStore struct {
	pool  pgBeginner
	newID func() (string, error)
}

func NewPGStore(pool pgBeginner) *PGStore {
	return &PGStore{pool: pool, newID: uuidv7.NewString}
}

const pgSelectColumns = `id, fields, created_at, updated_at`

func (s *PGStore) Get(ctx context.Context, collection string, id string) (ports.Document, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ports.Document{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	d, err := scanDocument(tx.QueryRow(ctx, `
SELECT `+pgSelectColumns+`
FROM registry.documents
WHERE collection = $1 AND id = $2
`, collection, id))
	if err != nil {
		return ports.Document{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ports.Document{}, err
	}
	return d, nil
}

func (s *PGStore) Insert(ctx context.Context, collection string, fields map[string]any) (ports.Document, error) {
	id, err := s.newID()
	if err != nil {
		return ports.Document{}, err
	}
	payload, err := json.Marshal(stripSystemFields(fields))
	if err != nil {
		return ports.Document{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ports.Document{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	d, err := scanDocument(tx.QueryRow(ctx, `
INSERT INTO registry.documents (collection, id, fields)
VALUES ($1, $2, $3::jsonb)
RETURNING `+pgSelectColumns+`
`, collection, id, payload))
	if err != nil {
		return ports.Document{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ports.Document{}, err
	}
	return d, nil
}

func (s *PGStore) Update(ctx context.Context, collection string, id string, fields map[string]any) (ports.Document, error) {
	payload, err := json.Marshal(stripSystemFields(fields))
	if err != nil {
		return ports.Document{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ports.Document{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	d, err := scanDocument(tx.QueryRow(ctx, `
UPDATE registry.documents
SET fields = fields || $3::jsonb, updated_at = now()
WHERE collection = $1 AND id = $2
RETURNING `+pgSelectColumns+`
`, collection, id, payload))
	if err != nil {
		return ports.Document{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ports.Document{}, err
	}
	return d, nil
}

func (s *PGStore) Delete(ctx context.Context, collection string, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `DELETE FROM registry.documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (s *PGStore) Query(ctx context.Context, collection string, q ports.Query) ([]ports.Hit, error) {
	field := q.Order.Field
	after, hasAfter, err := cursorFor(q.After, field)
	if err != nil {
		return nil, err
	}

	args := []any{collection}
	where := []string{"collection = $1"}
	where = append(where, pgConstraints(q.Constraints, &args)...)

	dir := "DESC"
	cmp := "<"
	if q.Order.Direction == ports.Asc {
		dir, cmp = "ASC", ">"
	}
	orderExpr := pgFieldExpr(field, &args)
	if hasAfter {
		args = append(args, after.value, after.id)
		where = append(where, fmt.Sprintf("(%s, id) %s ($%d, $%d)", orderExpr, cmp, len(args)-1, len(args)))
	}
	sql := `SELECT ` + pgSelectColumns + ` FROM registry.documents WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(" ORDER BY %s %s, id %s", orderExpr, dir, dir)
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

	var hits []ports.Hit
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		hits = append(hits, ports.Hit{Document: d, Cursor: newCursor(d, field)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return hits, nil
}

func (s *PGStore) Count(ctx context.Context, collection string, constraints []ports.Constraint) (int, error) {
	args := []any{collection}
	where := append([]string{"collection = $1"}, pgConstraints(constraints, &args)...)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var n int64
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM registry.documents WHERE `+strings.Join(where, " AND "), args...).Scan(&n); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *PGStore) CommitBatch(ctx context.Context, collection string, ops []ports.BatchOp) error {
	if err := validateBatch(ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, op := range ops {
		switch op.Kind {
		case ports.BatchInsert:
			id := op.ID
			if id == "" {
				var err error
				if id, err = s.newID(); err != nil {
					return err
				}
			}
			payload, err := json.Marshal(stripSystemFields(op.Fields))
			if err != nil {
				return err
			}
			batch.Queue(`INSERT INTO registry.documents (collection, id, fields) VALUES ($1, $2, $3::jsonb)`, collection, id, payload)
		case ports.BatchDelete:
			batch.Queue(`DELETE FROM registry.documents WHERE collection = $1 AND id = $2`, collection, op.ID)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	br := tx.SendBatch(ctx, batch)
	for range ops {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) ParseCursor(token string) (ports.Cursor, error) {
	return parsePositionCursor(token)
}

func pgFieldExpr(field string, args *[]any) string {
	switch field {
	case types.FieldCreatedAt:
		return "created_at"
	case types.FieldUpdatedAt:
		return "updated_at"
	case types.FieldID:
		return "id"
	}
	*args = append(*args, field)
	return fmt.Sprintf(`(fields->>$%d) COLLATE "C"`, len(*args))
}

func pgConstraints(cs []ports.Constraint, args *[]any) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		expr := pgFieldExpr(c.Field, args)
		v := c.Value
		if f, ok := v.(float64); ok && !types.IsSystemField(c.Field) {
			v = fmt.Sprint(f)
		}
		*args = append(*args, v)
		out = append(out, fmt.Sprintf("%s %s $%d", expr, pgOp(c.Op), len(*args)))
	}
	return out
}

func pgOp(op ports.Op) string {
	switch op {
	case ports.OpGte:
		return ">="
	case ports.OpLt:
		return "<"
	}
	return "="
}

func scanDocument(row pgx.Row) (ports.Document, error) {
	var (
		d      ports.Document
		raw    []byte
		create time.Time
		update time.Time
	)
	if err := row.Scan(&d.ID, &raw, &create, &update); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.Document{}, ports.ErrNotFound
		}
		return ports.Document{}, err
	}
	d.Fields = map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &d.Fields); err != nil {
			return ports.Document{}, err
		}
	}
	d.CreatedAt = create.UTC()
	d.UpdatedAt = update.UTC()
	return d, nil
}
