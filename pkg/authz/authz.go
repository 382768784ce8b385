package authz

import (
	"errors"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Mode string

const (
	ModeEnforce  Mode = "enforce"
	ModeShadow   Mode = "shadow"
	ModeDisabled Mode = "disabled"
)

// DefaultModel grants role:superadmin everything and otherwise matches
// role permissions exactly.
const DefaultModel = `
[request_definition]
r = sub, dom, obj, act

[policy_definition]
p = sub, dom, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == "role:superadmin" || (r.sub == p.sub && r.dom == p.dom && r.obj == p.obj && r.act == p.act)
`

func ParseMode(raw string, allowDisabled bool) (Mode, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ModeEnforce, nil
	}
	switch Mode(raw) {
	case ModeEnforce, ModeShadow:
		return Mode(raw), nil
	case ModeDisabled:
		if !allowDisabled {
			return "", errors.New("authz: AUTHZ_MODE=disabled requires AUTHZ_UNSAFE_ALLOW_DISABLED=1")
		}
		return ModeDisabled, nil
	default:
		return "", errors.New("authz: invalid AUTHZ_MODE (expected enforce|shadow|disabled)")
	}
}

type Authorizer struct {
	mu       sync.Mutex
	enforcer *casbin.SyncedEnforcer
	mode     Mode
}

// NewInMemoryAuthorizer builds an authorizer whose policies are supplied at
// runtime through ReplaceRolePermissions. An empty modelText selects
// DefaultModel.
func NewInMemoryAuthorizer(modelText string, mode Mode) (*Authorizer, error) {
	if strings.TrimSpace(modelText) == "" {
		modelText = DefaultModel
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	return &Authorizer{enforcer: enforcer, mode: mode}, nil
}

func (a *Authorizer) Mode() Mode { return a.mode }

func SubjectFromRoleSlug(roleSlug string) string {
	roleSlug = strings.TrimSpace(strings.ToLower(roleSlug))
	if roleSlug == "" {
		roleSlug = RoleAnonymous
	}
	return "role:" + roleSlug
}

// SplitPermission turns "cancer.delete" into ("cancer", "delete").
func SplitPermission(permissionID string) (object string, action string, ok bool) {
	permissionID = strings.TrimSpace(strings.ToLower(permissionID))
	object, action, ok = strings.Cut(permissionID, ".")
	if !ok || object == "" || action == "" || strings.Contains(action, ".") {
		return "", "", false
	}
	return object, action, true
}

// ReplaceRolePermissions swaps every policy line of one role for the given
// permission set. Malformed permission ids are rejected before any change.
func (a *Authorizer) ReplaceRolePermissions(roleSlug string, permissionIDs []string) error {
	subject := SubjectFromRoleSlug(roleSlug)
	rules := make([][]string, 0, len(permissionIDs))
	seen := make(map[string]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		obj, act, ok := SplitPermission(id)
		if !ok {
			return errors.New("authz: invalid permission id " + id)
		}
		key := obj + "." + act
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rules = append(rules, []string{subject, DomainGlobal, obj, act})
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.enforcer.RemoveFilteredPolicy(0, subject); err != nil {
		return err
	}
	if len(rules) == 0 {
		return nil
	}
	_, err := a.enforcer.AddPolicies(rules)
	return err
}

func (a *Authorizer) DropRole(roleSlug string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.enforcer.RemoveFilteredPolicy(0, SubjectFromRoleSlug(roleSlug))
	return err
}

// Can checks a role against a permission id in the global domain.
func (a *Authorizer) Can(roleSlug string, permissionID string) (allowed bool, enforced bool, err error) {
	obj, act, ok := SplitPermission(permissionID)
	if !ok {
		return false, a.mode == ModeEnforce, errors.New("authz: invalid permission id " + permissionID)
	}
	return a.Authorize(SubjectFromRoleSlug(roleSlug), DomainGlobal, obj, act)
}

func (a *Authorizer) Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error) {
	switch a.mode {
	case ModeDisabled:
		return true, false, nil
	case ModeShadow:
		ok, err := a.enforcer.Enforce(subject, domain, object, action)
		if err != nil {
			return false, false, err
		}
		return ok, false, nil
	case ModeEnforce:
		ok, err := a.enforcer.Enforce(subject, domain, object, action)
		if err != nil {
			return false, true, err
		}
		return ok, true, nil
	default:
		return false, false, errors.New("authz: unknown mode")
	}
}
