package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jacksonlee411/registry-console/modules/iam/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/iam/infrastructure/kratos"
)

func newProvider(t *testing.T, s *store) *kratos.IdentityProvider {
	t.Helper()
	srv := httptest.NewServer(s.publicMux())
	t.Cleanup(srv.Close)
	c, err := kratos.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return kratos.NewIdentityProvider(c)
}

func TestStub_SignInThroughClient(t *testing.T) {
	s := newStore()
	n, err := s.seed("Ana@Example.org:pw:Ana Ruiz, root@example.org:secret")
	if err != nil || n != 2 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	p := newProvider(t, s)

	id, err := p.AuthenticatePassword(context.Background(), "ana@example.org", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if id.Email != "ana@example.org" || id.DisplayName != "Ana Ruiz" || id.UID == "" {
		t.Fatalf("id=%+v", id)
	}
	again, err := p.AuthenticatePassword(context.Background(), "ana@example.org", "pw")
	if err != nil || again.UID != id.UID {
		t.Fatalf("uid changed: %q vs %q err=%v", again.UID, id.UID, err)
	}
	if len(s.sessions) != 0 {
		t.Fatalf("sessions not revoked: %d", len(s.sessions))
	}

	_, err = p.AuthenticatePassword(context.Background(), "ana@example.org", "wrong")
	if !errors.Is(err, ports.ErrInvalidCredentials) {
		t.Fatalf("err=%v", err)
	}
}

func TestStub_SeedRejectsMalformed(t *testing.T) {
	if _, err := newStore().seed("nopassword"); err == nil {
		t.Fatal("expected error")
	}
	if n, err := newStore().seed(""); err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestStub_AdminCreateIdentity(t *testing.T) {
	s := newStore()
	h := s.adminMux()
	body := `{"schema_id":"default","traits":{"email":"eva@example.org","name":"Eva"},"credentials":{"password":{"config":{"password":"pw"}}}}`

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/identities", bytes.NewBufferString(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/identities", bytes.NewBufferString(body)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status=%d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/identities", bytes.NewBufferString(`{"traits":{}}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
}
