package server

import (
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jacksonlee411/registry-console/internal/logging"
	"github.com/jacksonlee411/registry-console/internal/routing"
	"github.com/jacksonlee411/registry-console/internal/tracing"
	activityservices "github.com/jacksonlee411/registry-console/modules/activity/services"
	iamports "github.com/jacksonlee411/registry-console/modules/iam/domain/ports"
	iamservices "github.com/jacksonlee411/registry-console/modules/iam/services"
	registryservices "github.com/jacksonlee411/registry-console/modules/registry/services"
	"github.com/jacksonlee411/registry-console/pkg/httperr"
)

const defaultSessionTTL = 14 * 24 * time.Hour

type HandlerOptions struct {
	// AllowlistPath overrides the embedded route allowlist.
	AllowlistPath string

	Catalog          *registryservices.Catalog
	Activity         *activityservices.Recorder
	Gate             *iamservices.AccessGate
	Roles            *iamservices.RoleService
	Profiles         *iamservices.ProfileService
	Provisioner      *iamservices.Provisioner
	IdentityProvider iamports.IdentityProvider

	// Sessions defaults to an in-memory store.
	Sessions   SessionStore
	SessionTTL time.Duration
}

type handler struct {
	catalog     *registryservices.Catalog
	activity    *activityservices.Recorder
	gate        *iamservices.AccessGate
	roles       *iamservices.RoleService
	profiles    *iamservices.ProfileService
	provisioner *iamservices.Provisioner
	idp         iamports.IdentityProvider
	sessions    SessionStore
	sessionTTL  time.Duration
	now         func() time.Time
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	switch {
	case opts.Catalog == nil:
		return nil, errors.New("server: catalog required")
	case opts.Activity == nil:
		return nil, errors.New("server: activity recorder required")
	case opts.Gate == nil || opts.Roles == nil || opts.Profiles == nil || opts.Provisioner == nil:
		return nil, errors.New("server: access services required")
	case opts.IdentityProvider == nil:
		return nil, errors.New("server: identity provider required")
	}

	a, err := routing.LoadAllowlist(opts.AllowlistPath)
	if err != nil {
		return nil, err
	}
	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		return nil, err
	}

	h := &handler{
		catalog:     opts.Catalog,
		activity:    opts.Activity,
		gate:        opts.Gate,
		roles:       opts.Roles,
		profiles:    opts.Profiles,
		provisioner: opts.Provisioner,
		idp:         opts.IdentityProvider,
		sessions:    opts.Sessions,
		sessionTTL:  opts.SessionTTL,
		now:         time.Now,
	}
	if h.sessions == nil {
		h.sessions = NewMemorySessionStore()
	}
	if h.sessionTTL <= 0 {
		h.sessionTTL = defaultSessionTTL
	}

	router := routing.NewRouter(classifier)

	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		routing.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))

	router.Handle(routing.RouteClassAuthn, http.MethodPost, "/iam/api/sessions", http.HandlerFunc(h.handleLogin))
	router.Handle(routing.RouteClassAuthn, http.MethodPost, "/logout", http.HandlerFunc(h.handleLogout))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/iam/api/me", http.HandlerFunc(h.handleMe))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/iam/api/permissions", http.HandlerFunc(h.handlePermissions))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/iam/api/roles", http.HandlerFunc(h.handleRolesList))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/iam/api/roles", http.HandlerFunc(h.handleRoleCreate))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/iam/api/roles:update", http.HandlerFunc(h.handleRoleUpdate))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/iam/api/roles:delete", http.HandlerFunc(h.handleRoleDelete))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/iam/api/profiles", http.HandlerFunc(h.handleProfilesList))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/iam/api/profiles:assign-role", http.HandlerFunc(h.handleProfileAssignRole))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/iam/api/profiles:set-active", http.HandlerFunc(h.handleProfileSetActive))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/iam/api/profiles:update-contact", http.HandlerFunc(h.handleProfileUpdateContact))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/activity/api/logs", http.HandlerFunc(h.handleActivityLogs))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/dashboard/api/summary", http.HandlerFunc(h.handleDashboardSummary))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/registry/api/{registry}/records", http.HandlerFunc(h.handleRecordsList))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/registry/api/{registry}/records", http.HandlerFunc(h.handleRecordCreate))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/registry/api/{registry}/records:get", http.HandlerFunc(h.handleRecordGet))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/registry/api/{registry}/records:update", http.HandlerFunc(h.handleRecordUpdate))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/registry/api/{registry}/records:delete", http.HandlerFunc(h.handleRecordDelete))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/registry/api/{registry}/records:count", http.HandlerFunc(h.handleRecordsCount))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/registry/api/{registry}/records:import", http.HandlerFunc(h.handleRecordsImport))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/registry/api/{registry}/records:export", http.HandlerFunc(h.handleRecordsExport))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/registry/api/{registry}/records:delete-all", http.HandlerFunc(h.handleRecordsDeleteAll))

	authzHandler := withAuthz(classifier, h.gate, router)
	return withTracing(classifier, h.withSession(classifier, authzHandler)), nil
}

func MustNewHandler(opts HandlerOptions) http.Handler {
	h, err := NewHandlerWithOptions(opts)
	if err != nil {
		panic(err)
	}
	return h
}

func isPublicRoute(method string, path string) bool {
	switch path {
	case "/health":
		return true
	case "/iam/api/sessions":
		return method == http.MethodPost
	}
	return false
}

// withSession resolves the sid cookie into a profile. Public routes pass
// through untouched.
func (h *handler) withSession(classifier *routing.Classifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicRoute(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		rc := classifier.Classify(r.URL.Path)

		sid, ok := readSID(r)
		if !ok {
			routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
			return
		}
		sess, ok, err := h.sessions.Lookup(r.Context(), sid)
		if err != nil {
			logging.ErrorErr(logging.CatHTTP, "session lookup failed", err)
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "session_lookup_failed", "session lookup failed")
			return
		}
		if !ok {
			clearSIDCookie(w)
			routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
			return
		}

		p, err := h.profiles.Get(r.Context(), sess.UID)
		if err != nil {
			if httperr.IsNotFound(err) {
				_ = h.sessions.Revoke(r.Context(), sid)
				clearSIDCookie(w)
				routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
				return
			}
			routing.WriteServiceError(w, r, rc, err)
			return
		}

		ctx := withSID(withPrincipal(r.Context(), p), sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func withTracing(classifier *routing.Classifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := classifier.Classify(r.URL.Path)
		ctx, span := tracing.Start(r.Context(), "http "+r.Method,
			attribute.String("http.path", r.URL.Path),
			attribute.String("route_class", string(rc)),
		)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.status", rec.status))
		tracing.End(span, nil)
		logging.Debug(logging.CatHTTP, "request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
