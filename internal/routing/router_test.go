package routing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouter_PathParams(t *testing.T) {
	t.Parallel()

	r := NewRouter(serverClassifier(t))
	var got string
	r.Handle(RouteClassInternalAPI, http.MethodGet, "/registry/api/{registry}/records", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got = req.PathValue("registry")
		WriteJSON(w, http.StatusOK, map[string]string{"ok": "1"})
	}))
	r.Handle(RouteClassInternalAPI, http.MethodPost, "/registry/api/{registry}/records", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	r.Handle(RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/registry/api/ips/records", nil))
	if rec.Code != http.StatusOK || got != "ips" {
		t.Fatalf("status=%d registry=%q", rec.Code, got)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/registry/api/ips/records", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	t.Parallel()

	r := NewRouter(serverClassifier(t))
	r.Handle(RouteClassInternalAPI, http.MethodGet, "/registry/api/{registry}/records", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/registry/api/cancer/records", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rec.Code)
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Code != "method_not_allowed" || env.Meta.Class != string(RouteClassInternalAPI) {
		t.Fatalf("env=%+v", env)
	}
}

func TestRouter_PanicBecomes500JSON(t *testing.T) {
	t.Parallel()

	r := NewRouter(serverClassifier(t))
	r.Handle(RouteClassInternalAPI, http.MethodGet, "/x/api/panic", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x/api/panic", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("content-type=%q", ct)
	}
}

func TestEntrypointClass_Fallback(t *testing.T) {
	t.Parallel()

	if got := entrypointClass(map[string]routeEntry{}, RouteClassUnknown); got != RouteClassUnknown {
		t.Fatalf("got=%q", got)
	}
}
