package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jacksonlee411/registry-console/internal/logging"
	"github.com/jacksonlee411/registry-console/internal/routing"
	iamtypes "github.com/jacksonlee411/registry-console/modules/iam/domain/types"
	"github.com/jacksonlee411/registry-console/pkg/authz"
)

type accessChecker interface {
	Can(ctx context.Context, p iamtypes.UserProfile, permissionID string) bool
	IsAdmin(p iamtypes.UserProfile) bool
}

type authzRequirement struct {
	Permission string
	// AdminOnly additionally requires an admin or superadmin role.
	AdminOnly bool
}

func withAuthz(classifier *routing.Classifier, gate accessChecker, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		req, shouldCheck := authzRequirementForRoute(r.Method, path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}

		rc := classifier.Classify(path)
		p, ok := currentPrincipal(r.Context())
		if !ok {
			routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
			return
		}
		if !p.IsActive {
			routing.WriteError(w, r, rc, http.StatusForbidden, "profile_inactive", "profile inactive")
			return
		}
		if !gate.Can(r.Context(), p, req.Permission) || (req.AdminOnly && !gate.IsAdmin(p)) {
			logging.Info(logging.CatAuthz, "denied", "uid", p.UID, "role", p.RoleName, "permission", req.Permission, "path", path)
			routing.WriteError(w, r, rc, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func authzRequirementForRoute(method string, path string) (authzRequirement, bool) {
	if registry, action, ok := splitRegistryRoute(path); ok {
		return registryRequirement(method, registry, action)
	}

	switch path {
	case "/iam/api/permissions":
		if method == http.MethodGet {
			return need(authz.ObjectRoles, authz.ActionView), true
		}
	case "/iam/api/roles":
		switch method {
		case http.MethodGet:
			return need(authz.ObjectRoles, authz.ActionView), true
		case http.MethodPost:
			return need(authz.ObjectRoles, authz.ActionCreate), true
		}
	case "/iam/api/roles:update":
		if method == http.MethodPost {
			return need(authz.ObjectRoles, authz.ActionEdit), true
		}
	case "/iam/api/roles:delete":
		if method == http.MethodPost {
			return need(authz.ObjectRoles, authz.ActionDelete), true
		}
	case "/iam/api/profiles":
		if method == http.MethodGet {
			return need(authz.ObjectUsers, authz.ActionView), true
		}
	case "/iam/api/profiles:assign-role", "/iam/api/profiles:set-active":
		if method == http.MethodPost {
			return need(authz.ObjectUsers, authz.ActionManage), true
		}
	case "/activity/api/logs":
		if method == http.MethodGet {
			return need(authz.ObjectActivity, authz.ActionView), true
		}
	case "/dashboard/api/summary":
		if method == http.MethodGet {
			return need(authz.ObjectDashboard, authz.ActionView), true
		}
	}
	return authzRequirement{}, false
}

func registryRequirement(method string, registry string, action string) (authzRequirement, bool) {
	switch {
	case action == "records" && method == http.MethodGet,
		action == "records:get" && method == http.MethodGet,
		action == "records:count" && method == http.MethodGet:
		return need(registry, authz.ActionView), true
	case action == "records" && method == http.MethodPost:
		return need(registry, authz.ActionCreate), true
	case action == "records:update" && method == http.MethodPost:
		return need(registry, authz.ActionEdit), true
	case action == "records:delete" && method == http.MethodPost:
		return need(registry, authz.ActionDelete), true
	case action == "records:import" && method == http.MethodPost:
		return need(registry, authz.ActionImport), true
	case action == "records:export" && method == http.MethodGet:
		return need(registry, authz.ActionExport), true
	case action == "records:delete-all" && method == http.MethodPost:
		req := need(registry, authz.ActionDelete)
		req.AdminOnly = true
		return req, true
	}
	return authzRequirement{}, false
}

// splitRegistryRoute parses /registry/api/{registry}/{action}.
func splitRegistryRoute(path string) (registry string, action string, ok bool) {
	rest, found := strings.CutPrefix(path, "/registry/api/")
	if !found {
		return "", "", false
	}
	registry, action, found = strings.Cut(rest, "/")
	if !found || registry == "" || action == "" || strings.Contains(action, "/") {
		return "", "", false
	}
	return registry, action, true
}

func need(object string, action string) authzRequirement {
	return authzRequirement{Permission: authz.Permission(object, action)}
}
