package routing

import "testing"

func serverClassifier(t *testing.T) *Classifier {
	t.Helper()
	a, err := LoadAllowlist("")
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewClassifier(a, "server")
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestClassifier(t *testing.T) {
	t.Parallel()
	c := serverClassifier(t)

	cases := map[string]RouteClass{
		"/health":                         RouteClassOps,
		"/iam/api/sessions":               RouteClassAuthn,
		"/logout":                         RouteClassAuthn,
		"/registry/api/cancer/records":    RouteClassInternalAPI,
		"/registry/api/ips/records:get":   RouteClassInternalAPI,
		"/activity/api/logs":              RouteClassInternalAPI,
		"/org/api":                        RouteClassInternalAPI,
		"/org/apix":                       RouteClassUnknown,
		"orgunit/api":                     RouteClassUnknown,
		"/":                               RouteClassUnknown,
		"/registry/api//records":          RouteClassInternalAPI,
		"/registry/api/cancer/records/xx": RouteClassInternalAPI,
	}
	for path, want := range cases {
		if got := c.Classify(path); got != want {
			t.Fatalf("%s: got=%q want %q", path, got, want)
		}
	}
}

func TestNewClassifier_Errors(t *testing.T) {
	t.Parallel()

	if _, err := NewClassifier(Allowlist{Version: 1, Entrypoints: map[string]Entrypoint{}}, "server"); err == nil {
		t.Fatal("expected missing entrypoint error")
	}
	if _, err := NewClassifier(Allowlist{Version: 1, Entrypoints: map[string]Entrypoint{"server": {Routes: nil}}}, "server"); err == nil {
		t.Fatal("expected empty routes error")
	}
	if _, err := NewClassifier(Allowlist{Version: 1, Entrypoints: map[string]Entrypoint{"server": {Routes: []Route{{}}}}}, "server"); err == nil {
		t.Fatal("expected invalid route error")
	}
}
