package services

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/require"

	activitytypes "github.com/jacksonlee411/registry-console/modules/activity/domain/types"
	"github.com/jacksonlee411/registry-console/modules/registry/domain/types"
	"github.com/jacksonlee411/registry-console/modules/registry/infrastructure/persistence"
)

// testingT is satisfied by *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
	Fatalf(format string, args ...any)
}

var testActor = activitytypes.Actor{UserID: "u1", Email: "ana@example.org", Name: "Ana"}

func builtin(t testingT, name string) types.Schema {
	t.Helper()
	schemas, err := types.BuiltinSchemas()
	require.NoError(t, err)
	for _, s := range schemas {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("schema %s not found", name)
	return types.Schema{}
}

type auditSpy struct {
	mu      sync.Mutex
	entries []activitytypes.Entry
}

func (a *auditSpy) Record(_ context.Context, e activitytypes.Entry) {
	a.mu.Lock()
	a.entries = append(a.entries, e)
	a.mu.Unlock()
}

func (a *auditSpy) actions() []activitytypes.Action {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]activitytypes.Action, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

func steppingClock() func() time.Time {
	var mu sync.Mutex
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return base.Add(time.Duration(n) * time.Millisecond)
	}
}

func newTestService(t testingT, name string) (*Service, *persistence.MemoryStore, *auditSpy) {
	t.Helper()
	store := persistence.NewMemoryStore().WithClock(steppingClock())
	spy := &auditSpy{}
	svc, err := NewService(builtin(t, name), store, WithAuditor(spy))
	require.NoError(t, err)
	return svc, store, spy
}

func cancerRow(radicado string) map[string]any {
	return map[string]any{
		"radicado":        radicado,
		"numeroDocumento": "CC" + radicado,
		"edad":            40,
		"municipio":       "PASTO",
		"eps":             "EPS1",
	}
}
