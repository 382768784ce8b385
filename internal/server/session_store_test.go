package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestNewSID_HashesToken(t *testing.T) {
	sid, sum, err := newSID()
	if err != nil {
		t.Fatal(err)
	}
	want := sha256.Sum256([]byte(sid))
	if !bytes.Equal(sum, want[:]) {
		t.Fatal("hash mismatch")
	}
	other, _, _ := newSID()
	if other == sid {
		t.Fatal("sids must differ")
	}
}

func TestNewSID_RandFailure(t *testing.T) {
	old := sidRandReader
	sidRandReader = errReader{}
	t.Cleanup(func() { sidRandReader = old })

	if _, _, err := newSID(); err == nil {
		t.Fatal("expected error")
	}
	if _, err := NewMemorySessionStore().Create(context.Background(), "u", time.Now().Add(time.Hour), "", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestReadSID(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if _, ok := readSID(r); ok {
		t.Fatal("no cookie")
	}
	r.Header.Set("Cookie", "sid=")
	if _, ok := readSID(r); ok {
		t.Fatal("empty cookie")
	}
	r.Header.Set("Cookie", "sid=abc")
	if v, ok := readSID(r); !ok || v != "abc" {
		t.Fatalf("v=%q ok=%v", v, ok)
	}
}

func TestSIDCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	setSIDCookie(rec, "abc", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	if c := rec.Header().Get("Set-Cookie"); !strings.Contains(c, "sid=abc") || !strings.Contains(c, "HttpOnly") {
		t.Fatalf("cookie=%q", c)
	}
	rec = httptest.NewRecorder()
	clearSIDCookie(rec)
	if c := rec.Header().Get("Set-Cookie"); !strings.Contains(c, "Max-Age=0") {
		t.Fatalf("cookie=%q", c)
	}
}

func TestMemorySessionStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	sid, err := s.Create(ctx, "u1", now.Add(time.Hour), "127.0.0.1", "test")
	if err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Lookup(ctx, sid)
	if err != nil || !ok || got.UID != "u1" {
		t.Fatalf("got=%+v ok=%v err=%v", got, ok, err)
	}

	now = now.Add(2 * time.Hour)
	if _, ok, _ := s.Lookup(ctx, sid); ok {
		t.Fatal("expired session must not resolve")
	}

	now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sid, _ = s.Create(ctx, "u1", now.Add(time.Hour), "", "")
	if err := s.Revoke(ctx, sid); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Lookup(ctx, sid); ok {
		t.Fatal("revoked session must not resolve")
	}
}

type rowStub struct {
	scan func(dest ...any) error
}

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

type execStub struct {
	row      pgx.Row
	execErr  error
	execSQL  []string
	execArgs [][]any
	rowArgs  []any
}

func (s *execStub) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	s.rowArgs = args
	return s.row
}

func (s *execStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execSQL = append(s.execSQL, sql)
	s.execArgs = append(s.execArgs, args)
	return pgconn.NewCommandTag("INSERT 0 1"), s.execErr
}

func TestPGSessionStore_CreateStoresHash(t *testing.T) {
	q := &execStub{}
	s := NewPGSessionStore(q)
	sid, err := s.Create(context.Background(), "u1", time.Now().Add(time.Hour), "10.0.0.1", "ua")
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256([]byte(sid))
	if !bytes.Equal(q.execArgs[0][0].([]byte), sum[:]) {
		t.Fatal("token hash not stored")
	}
	if q.execArgs[0][1] != "u1" {
		t.Fatalf("args=%v", q.execArgs[0])
	}

	q.execErr = errors.New("boom")
	if _, err := s.Create(context.Background(), "u1", time.Now(), "", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestPGSessionStore_Lookup(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	revoked := now

	cases := []struct {
		name    string
		scan    func(dest ...any) error
		wantOK  bool
		wantErr bool
	}{
		{name: "active", scan: func(dest ...any) error {
			*dest[0].(*string) = "u1"
			*dest[1].(*time.Time) = now.Add(time.Hour)
			return nil
		}, wantOK: true},
		{name: "expired", scan: func(dest ...any) error {
			*dest[0].(*string) = "u1"
			*dest[1].(*time.Time) = now.Add(-time.Hour)
			return nil
		}},
		{name: "revoked", scan: func(dest ...any) error {
			*dest[0].(*string) = "u1"
			*dest[1].(*time.Time) = now.Add(time.Hour)
			*dest[2].(**time.Time) = &revoked
			return nil
		}},
		{name: "missing", scan: func(...any) error { return pgx.ErrNoRows }},
		{name: "error", scan: func(...any) error { return errors.New("boom") }, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := &execStub{row: rowStub{scan: tc.scan}}
			s := NewPGSessionStore(q)
			s.now = func() time.Time { return now }
			got, ok, err := s.Lookup(ctx, "token")
			if (err != nil) != tc.wantErr || ok != tc.wantOK {
				t.Fatalf("got=%+v ok=%v err=%v", got, ok, err)
			}
			sum := sha256.Sum256([]byte("token"))
			if !bytes.Equal(q.rowArgs[0].([]byte), sum[:]) {
				t.Fatal("lookup must use the token hash")
			}
		})
	}
}

func TestPGSessionStore_Revoke(t *testing.T) {
	q := &execStub{}
	s := NewPGSessionStore(q)
	if err := s.Revoke(context.Background(), ""); err != nil || len(q.execSQL) != 0 {
		t.Fatalf("empty sid err=%v calls=%d", err, len(q.execSQL))
	}
	if err := s.Revoke(context.Background(), "token"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(q.execSQL[0], "DELETE FROM iam.sessions") {
		t.Fatalf("sql=%q", q.execSQL[0])
	}
}
