package persistence

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jacksonlee411/registry-console/modules/registry/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/registry/domain/types"
)

// positionCursor is shared by every adapter: the order field, its value on
// the last returned document and that document's id.
type positionCursor struct {
	field string
	value any
	id    string
}

type cursorWire struct {
	F  string `json:"f"`
	K  string `json:"k"`
	V  string `json:"v"`
	ID string `json:"id"`
}

func (c positionCursor) Token() string {
	w := cursorWire{F: c.field, ID: c.id}
	switch v := c.value.(type) {
	case time.Time:
		w.K, w.V = "t", v.UTC().Format(time.RFC3339Nano)
	case float64:
		w.K, w.V = "n", strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		w.K, w.V = "s", v
	default:
		w.K, w.V = "s", fmt.Sprint(v)
	}
	raw, _ := json.Marshal(w)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func parsePositionCursor(token string) (ports.Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ports.ErrInvalidCursor
	}
	var w cursorWire
	if err := json.Unmarshal(raw, &w); err != nil || w.F == "" || w.ID == "" {
		return nil, ports.ErrInvalidCursor
	}
	c := positionCursor{field: w.F, id: w.ID}
	switch w.K {
	case "t":
		ts, err := time.Parse(time.RFC3339Nano, w.V)
		if err != nil {
			return nil, ports.ErrInvalidCursor
		}
		c.value = ts
	case "n":
		n, err := strconv.ParseFloat(w.V, 64)
		if err != nil {
			return nil, ports.ErrInvalidCursor
		}
		c.value = n
	case "s":
		c.value = w.V
	default:
		return nil, ports.ErrInvalidCursor
	}
	return c, nil
}

// cursorFor checks that after was produced for the given order field.
func cursorFor(after ports.Cursor, field string) (positionCursor, bool, error) {
	if after == nil {
		return positionCursor{}, false, nil
	}
	c, ok := after.(positionCursor)
	if !ok || c.field != field {
		return positionCursor{}, false, ports.ErrInvalidCursor
	}
	return c, true, nil
}

func docValue(d ports.Document, field string) any {
	switch field {
	case types.FieldCreatedAt:
		return d.CreatedAt
	case types.FieldUpdatedAt:
		return d.UpdatedAt
	case types.FieldID:
		return d.ID
	}
	return d.Fields[field]
}

func newCursor(d ports.Document, field string) ports.Cursor {
	return positionCursor{field: field, value: docValue(d, field), id: d.ID}
}

func validateBatch(ops []ports.BatchOp) error {
	if len(ops) > ports.MaxBatchOps {
		return ports.ErrBatchTooLarge
	}
	for _, op := range ops {
		switch op.Kind {
		case ports.BatchInsert:
		case ports.BatchDelete:
			if op.ID == "" {
				return fmt.Errorf("delete op without id")
			}
		default:
			return fmt.Errorf("unknown batch op %q", op.Kind)
		}
	}
	return nil
}

func stripSystemFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if types.IsSystemField(k) {
			continue
		}
		out[k] = v
	}
	return out
}
