package server

import (
	"net/http"
	"strconv"

	"github.com/jacksonlee411/registry-console/internal/routing"
	activitytypes "github.com/jacksonlee411/registry-console/modules/activity/domain/types"
)

func (h *handler) handleActivityLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lq := activitytypes.ListQuery{
		Module: q.Get("module"),
		Action: activitytypes.Action(q.Get("action")),
		UserID: q.Get("user_id"),
		Before: q.Get("before"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "bad_request", "limit must be a positive number")
			return
		}
		lq.Limit = n
	}

	entries, err := h.activity.List(r.Context(), lq)
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}
	if entries == nil {
		entries = []activitytypes.Entry{}
	}
	resp := map[string]any{"entries": entries}
	if len(entries) > 0 {
		resp["next"] = entries[len(entries)-1].ID
	}
	routing.WriteJSON(w, http.StatusOK, resp)
}
