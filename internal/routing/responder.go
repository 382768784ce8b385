package routing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jacksonlee411/registry-console/internal/logging"
	"github.com/jacksonlee411/registry-console/internal/tracing"
	"github.com/jacksonlee411/registry-console/pkg/httperr"
	"github.com/jacksonlee411/registry-console/pkg/pgerr"
)

type ErrorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	TraceID string            `json:"trace_id"`
	Meta    ErrorEnvelopeMeta `json:"meta"`
}

type ErrorEnvelopeMeta struct {
	Path   string `json:"path"`
	Method string `json:"method"`
	Class  string `json:"route_class,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, rc RouteClass, status int, code string, message string) {
	WriteJSON(w, status, ErrorEnvelope{
		Code:    code,
		Message: message,
		TraceID: traceID(r),
		Meta: ErrorEnvelopeMeta{
			Path:   r.URL.Path,
			Method: r.Method,
			Class:  string(rc),
		},
	})
}

// WriteServiceError maps a service error onto the envelope. Unclassified
// errors are logged and reported as internal without their message.
func WriteServiceError(w http.ResponseWriter, r *http.Request, rc RouteClass, err error) {
	status, code := ErrorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.ErrorErr(logging.CatHTTP, "request failed", err, "path", r.URL.Path, "method", r.Method)
		msg = "internal error"
	}
	WriteError(w, r, rc, status, code, msg)
}

func ErrorStatus(err error) (int, string) {
	switch {
	case httperr.IsBadRequest(err):
		return http.StatusBadRequest, "bad_request"
	case httperr.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case httperr.IsConflict(err):
		return http.StatusConflict, "conflict"
	case httperr.IsForbidden(err):
		return http.StatusForbidden, "forbidden"
	case pgerr.IsInvalidInput(err):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, context.Canceled):
		return 499, "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// traceID prefers the active span, then an inbound traceparent header.
func traceID(r *http.Request) string {
	if id := tracing.TraceID(r.Context()); id != "" {
		return id
	}
	return traceIDFromHeader(r)
}

func traceIDFromHeader(r *http.Request) string {
	traceparent := strings.TrimSpace(r.Header.Get("traceparent"))
	if traceparent == "" {
		return ""
	}
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return ""
	}
	traceID := strings.ToLower(parts[1])
	if len(traceID) != 32 || traceID == "00000000000000000000000000000000" {
		return ""
	}
	for _, ch := range traceID {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return ""
		}
	}
	return traceID
}
