package uuidv7

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestNew(t *testing.T) {
	u, err := New()
	if err != nil {
		t.Fatalf("expected nil err, got %v", err)
	}
	if u.Version() != 7 {
		t.Fatalf("expected version 7, got %d", u.Version())
	}
	if u.Variant() != uuid.RFC4122 {
		t.Fatalf("expected RFC4122 variant, got %v", u.Variant())
	}
}

func TestNewString(t *testing.T) {
	got, err := NewString()
	if err != nil {
		t.Fatalf("expected nil err, got %v", err)
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("expected parseable uuid, got %v", err)
	}
}

func TestGenerator_ReadError(t *testing.T) {
	g := Generator{Random: errReader{}}
	if _, err := g.New(); err == nil {
		t.Fatal("expected error")
	}
	if _, err := g.NewString(); err == nil {
		t.Fatal("expected error")
	}
}

func TestGenerator_TimeOrdered(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	g1 := Generator{Now: func() time.Time { return base }, Random: bytes.NewReader(bytes.Repeat([]byte{0xff}, 16))}
	g2 := Generator{Now: func() time.Time { return base.Add(time.Millisecond) }, Random: bytes.NewReader(make([]byte, 16))}

	a, err := g1.NewString()
	if err != nil {
		t.Fatal(err)
	}
	b, err := g2.NewString()
	if err != nil {
		t.Fatal(err)
	}
	if !(a < b) {
		t.Fatalf("expected %s < %s", a, b)
	}

	ts, err := Timestamp(a)
	if err != nil {
		t.Fatal(err)
	}
	if !ts.Equal(base) {
		t.Fatalf("ts=%s", ts)
	}
}

func TestTimestamp_Errors(t *testing.T) {
	if _, err := Timestamp("nope"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := Timestamp(uuid.NewString()); err == nil {
		t.Fatal("expected version error")
	}
}
