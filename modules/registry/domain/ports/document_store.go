package ports

import (
	"context"
	"errors"
	"time"
)

// MaxBatchOps is the storage-imposed ceiling for one atomic batch.
const MaxBatchOps = 500

var (
	ErrNotFound      = errors.New("document not found")
	ErrBatchTooLarge = errors.New("batch exceeds 500 operations")
	ErrInvalidCursor = errors.New("invalid cursor")
)

type Document struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cursor marks the position after a document in a query's order. Only the
// adapter that produced it can interpret it.
type Cursor interface {
	Token() string
}

type Op string

const (
	OpEq  Op = "=="
	OpGte Op = ">="
	OpLt  Op = "<"
)

type Constraint struct {
	Field string
	Op    Op
	Value any
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Order is the primary sort; adapters tie-break on document id in the
// same direction.
type Order struct {
	Field     string
	Direction Direction
}

type Query struct {
	Constraints []Constraint
	Order       Order
	Limit       int
	After       Cursor
}

type Hit struct {
	Document Document
	Cursor   Cursor
}

type BatchKind string

const (
	BatchInsert BatchKind = "insert"
	BatchDelete BatchKind = "delete"
)

type BatchOp struct {
	Kind   BatchKind
	ID     string
	Fields map[string]any
}

type DocumentStore interface {
	Get(ctx context.Context, collection string, id string) (Document, error)
	// Insert assigns id and server timestamps.
	Insert(ctx context.Context, collection string, fields map[string]any) (Document, error)
	// Update merges fields into an existing document and bumps updatedAt.
	Update(ctx context.Context, collection string, id string, fields map[string]any) (Document, error)
	Delete(ctx context.Context, collection string, id string) error
	Query(ctx context.Context, collection string, q Query) ([]Hit, error)
	// Count is a metadata-only count honoring constraints.
	Count(ctx context.Context, collection string, constraints []Constraint) (int, error)
	// CommitBatch applies ops atomically; more than MaxBatchOps fails with
	// ErrBatchTooLarge before touching storage.
	CommitBatch(ctx context.Context, collection string, ops []BatchOp) error
	ParseCursor(token string) (Cursor, error)
}
