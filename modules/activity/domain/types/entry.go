package types

import "time"

type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionImport    Action = "import"
	ActionExport    Action = "export"
	ActionDeleteAll Action = "delete_all"
	ActionLogin     Action = "login"
	ActionLogout    Action = "logout"
)

// Actor identifies who performed an action.
type Actor struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

type Entry struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	UserEmail   string         `json:"user_email"`
	UserName    string         `json:"user_name"`
	Action      Action         `json:"action"`
	Module      string         `json:"module"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details,omitempty"`
	TargetID    string         `json:"target_id,omitempty"`
	TargetName  string         `json:"target_name,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (e Entry) WithActor(a Actor) Entry {
	e.UserID, e.UserEmail, e.UserName = a.UserID, a.Email, a.Name
	return e
}

type ListQuery struct {
	Module string
	Action Action
	UserID string
	Limit  int
	// Before is the id of the last entry of the previous page.
	Before string
}
