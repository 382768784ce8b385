package server

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const sidCookieName = "sid"

var sidRandReader io.Reader = rand.Reader

type Session struct {
	UID       string
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// SessionStore keeps console sessions keyed by the sid cookie. Only the
// sha256 of the token is persisted.
type SessionStore interface {
	Create(ctx context.Context, uid string, expiresAt time.Time, ip string, userAgent string) (sid string, err error)
	Lookup(ctx context.Context, sid string) (Session, bool, error)
	Revoke(ctx context.Context, sid string) error
}

func newSID() (sid string, tokenSha256 []byte, err error) {
	var b [32]byte
	if _, err := io.ReadFull(sidRandReader, b[:]); err != nil {
		return "", nil, err
	}
	sid = base64.RawURLEncoding.EncodeToString(b[:])
	sum := sha256.Sum256([]byte(sid))
	return sid, sum[:], nil
}

func readSID(r *http.Request) (string, bool) {
	c, err := r.Cookie(sidCookieName)
	if err != nil {
		return "", false
	}
	if c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func setSIDCookie(w http.ResponseWriter, sid string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sidCookieName,
		Value:    sid,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSIDCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sidCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

type MemorySessionStore struct {
	mu    sync.Mutex
	bySID map[string]Session
	now   func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		bySID: map[string]Session{},
		now:   time.Now,
	}
}

func (s *MemorySessionStore) Create(_ context.Context, uid string, expiresAt time.Time, _ string, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sid, _, err := newSID()
	if err != nil {
		return "", err
	}
	s.bySID[sid] = Session{UID: uid, ExpiresAt: expiresAt}
	return sid, nil
}

func (s *MemorySessionStore) Lookup(_ context.Context, sid string) (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.bySID[sid]
	if !ok || v.RevokedAt != nil {
		return Session{}, false, nil
	}
	if s.now().After(v.ExpiresAt) {
		delete(s.bySID, sid)
		return Session{}, false, nil
	}
	return v, true, nil
}

func (s *MemorySessionStore) Revoke(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.bySID, sid)
	return nil
}

type queryExecer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PGSessionStore struct {
	q   queryExecer
	now func() time.Time
}

func NewPGSessionStore(q queryExecer) *PGSessionStore {
	return &PGSessionStore{q: q, now: time.Now}
}

func (s *PGSessionStore) Create(ctx context.Context, uid string, expiresAt time.Time, ip string, userAgent string) (string, error) {
	sid, tokenSha256, err := newSID()
	if err != nil {
		return "", err
	}
	_, err = s.q.Exec(ctx, `
INSERT INTO iam.sessions (token_sha256, uid, expires_at, ip, user_agent)
VALUES ($1, $2, $3, $4, $5);
`, tokenSha256, uid, expiresAt, ip, userAgent)
	if err != nil {
		return "", err
	}
	return sid, nil
}

func (s *PGSessionStore) Lookup(ctx context.Context, sid string) (Session, bool, error) {
	sum := sha256.Sum256([]byte(sid))
	var out Session
	err := s.q.QueryRow(ctx, `
SELECT uid, expires_at, revoked_at
FROM iam.sessions
WHERE token_sha256 = $1;
`, sum[:]).Scan(&out.UID, &out.ExpiresAt, &out.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, false, nil
		}
		return Session{}, false, err
	}
	if out.RevokedAt != nil || s.now().After(out.ExpiresAt) {
		return Session{}, false, nil
	}
	return out, true, nil
}

func (s *PGSessionStore) Revoke(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(sid))
	_, err := s.q.Exec(ctx, `DELETE FROM iam.sessions WHERE token_sha256 = $1;`, sum[:])
	return err
}
