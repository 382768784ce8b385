package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/jacksonlee411/registry-console/internal/logging"
	"github.com/jacksonlee411/registry-console/internal/routing"
	activitytypes "github.com/jacksonlee411/registry-console/modules/activity/domain/types"
	iamports "github.com/jacksonlee411/registry-console/modules/iam/domain/ports"
	iamtypes "github.com/jacksonlee411/registry-console/modules/iam/domain/types"
	iamservices "github.com/jacksonlee411/registry-console/modules/iam/services"
	"github.com/jacksonlee411/registry-console/pkg/authz"
)

const (
	maxJSONBody = 1 << 20
	moduleAuth  = "auth"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "bad_json", "bad json")
		return false
	}
	return true
}

type meResponse struct {
	Profile     iamtypes.UserProfile `json:"profile"`
	Permissions []string             `json:"permissions"`
	IsAdmin     bool                 `json:"isAdmin"`
}

func (h *handler) meFor(r *http.Request, p iamtypes.UserProfile) (meResponse, error) {
	perms, err := h.gate.Permissions(r.Context(), p)
	if err != nil {
		return meResponse{}, err
	}
	if perms == nil {
		perms = []string{}
	}
	return meResponse{Profile: p, Permissions: perms, IsAdmin: h.gate.IsAdmin(p)}, nil
}

func (h *handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		routing.WriteError(w, r, routing.RouteClassAuthn, http.StatusBadRequest, "invalid_request", "email and password required")
		return
	}

	ident, err := h.idp.AuthenticatePassword(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, iamports.ErrInvalidCredentials) {
			routing.WriteError(w, r, routing.RouteClassAuthn, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		logging.ErrorErr(logging.CatHTTP, "identity provider failed", err)
		routing.WriteError(w, r, routing.RouteClassAuthn, http.StatusBadGateway, "identity_provider_error", "identity provider error")
		return
	}

	p, _, err := h.provisioner.EnsureProfile(r.Context(), ident)
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassAuthn, err)
		return
	}
	if !p.IsActive {
		routing.WriteError(w, r, routing.RouteClassAuthn, http.StatusForbidden, "profile_inactive", "profile inactive")
		return
	}

	expiresAt := h.now().Add(h.sessionTTL)
	sid, err := h.sessions.Create(r.Context(), p.UID, expiresAt, clientIP(r), r.UserAgent())
	if err != nil {
		logging.ErrorErr(logging.CatHTTP, "session create failed", err, "uid", p.UID)
		routing.WriteError(w, r, routing.RouteClassAuthn, http.StatusInternalServerError, "session_create_failed", "session create failed")
		return
	}
	setSIDCookie(w, sid, expiresAt)

	h.activity.Record(r.Context(), activitytypes.Entry{
		Action:      activitytypes.ActionLogin,
		Module:      moduleAuth,
		Description: "Inicio de sesión",
		TargetID:    p.UID,
		TargetName:  p.Email,
	}.WithActor(actorOf(p)))

	resp, err := h.meFor(r, p)
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassAuthn, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, resp)
}

func (h *handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sid := currentSID(r.Context()); sid != "" {
		if err := h.sessions.Revoke(r.Context(), sid); err != nil {
			logging.ErrorErr(logging.CatHTTP, "session revoke failed", err)
		}
	}
	clearSIDCookie(w)
	if p, ok := currentPrincipal(r.Context()); ok {
		h.activity.Record(r.Context(), activitytypes.Entry{
			Action:      activitytypes.ActionLogout,
			Module:      moduleAuth,
			Description: "Cierre de sesión",
			TargetID:    p.UID,
			TargetName:  p.Email,
		}.WithActor(actorOf(p)))
	}
	routing.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := currentPrincipal(r.Context())
	resp, err := h.meFor(r, p)
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, resp)
}

func (h *handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	routing.WriteJSON(w, http.StatusOK, map[string]any{"groups": iamtypes.GroupedCatalog()})
}

func (h *handler) handleRolesList(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *handler) handleRoleCreate(w http.ResponseWriter, r *http.Request) {
	var in iamservices.RoleInput
	if !decodeJSON(w, r, &in) {
		return
	}
	role, err := h.roles.Create(r.Context(), currentActor(r.Context()), in)
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}
	routing.WriteJSON(w, http.StatusCreated, role)
}

func (h *handler) handleRoleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
		iamservices.RoleInput
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	role, err := h.roles.Update(r.Context(), currentActor(r.Context()), req.ID, req.RoleInput)
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, role)
}

func (h *handler) handleRoleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.roles.Delete(r.Context(), currentActor(r.Context()), req.ID); err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) handleProfilesList(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.List(r.Context())
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}

func (h *handler) handleProfileAssignRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID  string `json:"uid"`
		Role string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	by, _ := currentPrincipal(r.Context())
	p, err := h.profiles.AssignRole(r.Context(), by, req.UID, req.Role)
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) handleProfileSetActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID    string `json:"uid"`
		Active *bool  `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Active == nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "invalid_request", "active required")
		return
	}
	by, _ := currentPrincipal(r.Context())
	p, err := h.profiles.SetActive(r.Context(), by, req.UID, *req.Active)
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, p)
}

// handleProfileUpdateContact lets any active user edit their own contact
// data; editing someone else needs profiles.edit.
func (h *handler) handleProfileUpdateContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID string `json:"uid"`
		iamtypes.ContactUpdate
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	self, _ := currentPrincipal(r.Context())
	if !self.IsActive {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusForbidden, "profile_inactive", "profile inactive")
		return
	}
	uid := strings.TrimSpace(req.UID)
	if uid == "" {
		uid = self.UID
	}
	if uid != self.UID && !h.gate.Can(r.Context(), self, authz.Permission(authz.ObjectProfiles, authz.ActionEdit)) {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusForbidden, "forbidden", "forbidden")
		return
	}
	p, err := h.profiles.UpdateContact(r.Context(), actorOf(self), uid, req.ContactUpdate)
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, p)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
