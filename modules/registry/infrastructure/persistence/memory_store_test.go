package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jacksonlee411/registry-console/modules/registry/domain/ports"
)

func tickingClock() func() time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func seed(t *testing.T, s *MemoryStore, coll string, docs ...map[string]any) []ports.Document {
	t.Helper()
	out := make([]ports.Document, 0, len(docs))
	for _, f := range docs {
		d, err := s.Insert(context.Background(), coll, f)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, d)
	}
	return out
}

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore().WithClock(tickingClock())

	d, err := s.Insert(ctx, "c", map[string]any{"a": "1", "id": "forged", "createdAt": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if d.ID == "" || d.ID == "forged" || d.CreatedAt.IsZero() {
		t.Fatalf("doc=%+v", d)
	}
	if _, ok := d.Fields["createdAt"]; ok {
		t.Fatal("system field stored in fields")
	}

	got, err := s.Get(ctx, "c", d.ID)
	if err != nil || got.Fields["a"] != "1" {
		t.Fatalf("got=%+v err=%v", got, err)
	}

	up, err := s.Update(ctx, "c", d.ID, map[string]any{"b": "2", "id": "other"})
	if err != nil {
		t.Fatal(err)
	}
	if up.ID != d.ID || up.Fields["a"] != "1" || up.Fields["b"] != "2" {
		t.Fatalf("up=%+v", up)
	}
	if !up.CreatedAt.Equal(d.CreatedAt) || !up.UpdatedAt.After(d.UpdatedAt) {
		t.Fatalf("timestamps created=%s updated=%s", up.CreatedAt, up.UpdatedAt)
	}

	if err := s.Delete(ctx, "c", d.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "c", d.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
	if err := s.Delete(ctx, "c", d.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
	if _, err := s.Update(ctx, "c", d.ID, nil); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d := seed(t, s, "c", map[string]any{"a": "1"})[0]
	got, _ := s.Get(ctx, "c", d.ID)
	got.Fields["a"] = "mutated"
	again, _ := s.Get(ctx, "c", d.ID)
	if again.Fields["a"] != "1" {
		t.Fatal("store state leaked")
	}
}

func TestMemoryStore_QueryOrderAndCursor(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore().WithClock(tickingClock())
	var docs []map[string]any
	for i := 0; i < 5; i++ {
		docs = append(docs, map[string]any{"n": fmt.Sprint(i), "kind": "x"})
	}
	seed(t, s, "c", docs...)

	q := ports.Query{Order: ports.Order{Field: "createdAt", Direction: ports.Desc}, Limit: 2}
	page1, err := s.Query(ctx, "c", q)
	if err != nil || len(page1) != 2 {
		t.Fatalf("len=%d err=%v", len(page1), err)
	}
	if page1[0].Document.Fields["n"] != "4" || page1[1].Document.Fields["n"] != "3" {
		t.Fatalf("page1=%v,%v", page1[0].Document.Fields, page1[1].Document.Fields)
	}

	tok := page1[1].Cursor.Token()
	cur, err := s.ParseCursor(tok)
	if err != nil {
		t.Fatal(err)
	}
	q.After = cur
	page2, err := s.Query(ctx, "c", q)
	if err != nil || len(page2) != 2 || page2[0].Document.Fields["n"] != "2" {
		t.Fatalf("page2=%v err=%v", page2, err)
	}

	q.After = page1[0].Cursor
	q.Order.Field = "n"
	if _, err := s.Query(ctx, "c", q); !errors.Is(err, ports.ErrInvalidCursor) {
		t.Fatalf("err=%v", err)
	}
}

func TestMemoryStore_RangeQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore().WithClock(tickingClock())
	seed(t, s, "ips",
		map[string]any{"nomIps": "CLINICA B"},
		map[string]any{"nomIps": "HOSPITAL"},
		map[string]any{"nomIps": "CLINICA A"},
		map[string]any{"nomIps": "CLIN"},
	)
	cs := []ports.Constraint{
		{Field: "nomIps", Op: ports.OpGte, Value: "CLIN"},
		{Field: "nomIps", Op: ports.OpLt, Value: "CLIN\uf8ff"},
	}
	hits, err := s.Query(ctx, "ips", ports.Query{Constraints: cs, Order: ports.Order{Field: "nomIps", Direction: ports.Asc}})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, h := range hits {
		names = append(names, h.Document.Fields["nomIps"].(string))
	}
	if fmt.Sprint(names) != "[CLIN CLINICA A CLINICA B]" {
		t.Fatalf("names=%v", names)
	}
	n, err := s.Count(ctx, "ips", cs)
	if err != nil || n != 3 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestMemoryStore_CommitBatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.CommitBatch(ctx, "c", nil); err != nil {
		t.Fatal(err)
	}
	if s.Commits() != 0 {
		t.Fatalf("commits=%d", s.Commits())
	}

	big := make([]ports.BatchOp, ports.MaxBatchOps+1)
	for i := range big {
		big[i] = ports.BatchOp{Kind: ports.BatchInsert, Fields: map[string]any{}}
	}
	if err := s.CommitBatch(ctx, "c", big); !errors.Is(err, ports.ErrBatchTooLarge) {
		t.Fatalf("err=%v", err)
	}

	ops := []ports.BatchOp{
		{Kind: ports.BatchInsert, Fields: map[string]any{"a": "1"}},
		{Kind: ports.BatchInsert, Fields: map[string]any{"a": "2"}},
	}
	if err := s.CommitBatch(ctx, "c", ops); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Count(ctx, "c", nil); n != 2 {
		t.Fatalf("n=%d", n)
	}

	s.FailBatchWith(func(string, []ports.BatchOp) error { return errors.New("quota") })
	if err := s.CommitBatch(ctx, "c", ops); err == nil {
		t.Fatal("expected error")
	}
	if n, _ := s.Count(ctx, "c", nil); n != 2 {
		t.Fatalf("partial batch applied: n=%d", n)
	}
	if s.Commits() != 1 {
		t.Fatalf("commits=%d", s.Commits())
	}

	if err := s.CommitBatch(ctx, "c", []ports.BatchOp{{Kind: ports.BatchDelete}}); err == nil {
		t.Fatal("expected delete without id error")
	}
	if err := s.CommitBatch(ctx, "c", []ports.BatchOp{{Kind: "upsert"}}); err == nil {
		t.Fatal("expected unknown op error")
	}
}

func TestParseCursor_Invalid(t *testing.T) {
	s := NewMemoryStore()
	for _, tok := range []string{"%%%", "bm90LWpzb24", positionCursor{field: "f", value: "v"}.Token()} {
		if _, err := s.ParseCursor(tok); !errors.Is(err, ports.ErrInvalidCursor) {
			t.Fatalf("tok=%q err=%v", tok, err)
		}
	}
}

func TestCursorRoundTrip_Kinds(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 123, time.UTC)
	for _, v := range []any{ts, 3.5, "abc"} {
		c := positionCursor{field: "f", value: v, id: "id1"}
		got, err := parsePositionCursor(c.Token())
		if err != nil {
			t.Fatal(err)
		}
		pc := got.(positionCursor)
		if compareValues(pc.value, v) != 0 || pc.id != "id1" || pc.field != "f" {
			t.Fatalf("got=%+v want=%v", pc, v)
		}
	}
}

func TestCompareValues(t *testing.T) {
	cases := []struct {
		a, b any
		want int
	}{
		{nil, "a", -1},
		{1.0, "a", -1},
		{"b", "a", 1},
		{int64(2), 2.0, 0},
		{time.Unix(1, 0), time.Unix(2, 0), -1},
		{nil, nil, 0},
	}
	for _, tc := range cases {
		if got := compareValues(tc.a, tc.b); got != tc.want {
			t.Fatalf("compare(%v,%v)=%d want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
