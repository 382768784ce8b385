package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jacksonlee411/registry-console/internal/logging"
	"github.com/jacksonlee411/registry-console/internal/routing"
	registrytypes "github.com/jacksonlee411/registry-console/modules/registry/domain/types"
	"github.com/jacksonlee411/registry-console/modules/registry/infrastructure/spreadsheet"
	registryservices "github.com/jacksonlee411/registry-console/modules/registry/services"
	"github.com/jacksonlee411/registry-console/pkg/httperr"
)

const (
	maxImportBytes = 32 << 20
	filterPrefix   = "f."
	xlsxMediaType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type recordsPageResponse struct {
	Records    []registrytypes.Record `json:"records"`
	TotalCount int                    `json:"totalCount"`
	Cursor     string                 `json:"cursor,omitempty"`
	HasMore    bool                   `json:"hasMore"`
	PageSize   int                    `json:"pageSize"`
}

type summaryResponse struct {
	Registry string                        `json:"registry"`
	GroupBy  string                        `json:"groupBy"`
	Total    int                           `json:"total"`
	Buckets  []registrytypes.SummaryBucket `json:"buckets"`
}

type bulkResponse struct {
	Done     int    `json:"done"`
	Partial  bool   `json:"partial,omitempty"`
	Error    string `json:"error,omitempty"`
	Registry string `json:"registry"`
}

func (h *handler) registryService(w http.ResponseWriter, r *http.Request) (*registryservices.Service, bool) {
	name := r.PathValue("registry")
	svc, ok := h.catalog.Get(name)
	if !ok {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusNotFound, "unknown_registry", "unknown registry: "+name)
		return nil, false
	}
	return svc, true
}

// filterFromQuery collects f.<field>=value parameters.
func filterFromQuery(r *http.Request) registryservices.Filter {
	f := registryservices.Filter{}
	for k, vs := range r.URL.Query() {
		field, ok := strings.CutPrefix(k, filterPrefix)
		if !ok || field == "" || len(vs) == 0 {
			continue
		}
		f[field] = vs[0]
	}
	return f
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

func (h *handler) handleRecordsList(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.registryService(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	pageSize := 0
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "bad_request", "page_size must be a number")
			return
		}
		pageSize = n
	}
	after, err := svc.ParseCursor(q.Get("after"))
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}

	res, err := svc.FetchPage(r.Context(), registryservices.PageRequest{
		PageSize:  pageSize,
		After:     after,
		Filter:    filterFromQuery(r),
		SkipCount: queryBool(r, "skip_count"),
	})
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}
	size, _ := registryservices.NormalizePageSize(pageSize)
	out := recordsPageResponse{
		Records:    res.Records,
		TotalCount: res.TotalCount,
		HasMore:    res.HasMore,
		PageSize:   size,
	}
	if out.Records == nil {
		out.Records = []registrytypes.Record{}
	}
	if res.Cursor != nil {
		out.Cursor = res.Cursor.Token()
	}
	routing.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) handleRecordsCount(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.registryService(w, r)
	if !ok {
		return
	}
	n, err := svc.Count(r.Context(), filterFromQuery(r), queryBool(r, "refresh"))
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *handler) handleRecordGet(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.registryService(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "bad_request", "id required")
		return
	}
	rec, err := svc.Get(r.Context(), id)
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) handleRecordCreate(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.registryService(w, r)
	if !ok {
		return
	}
	var req struct {
		Fields map[string]any `json:"fields"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, err := svc.Create(r.Context(), currentActor(r.Context()), req.Fields)
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}
	routing.WriteJSON(w, http.StatusCreated, rec)
}

func (h *handler) handleRecordUpdate(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.registryService(w, r)
	if !ok {
		return
	}
	var req struct {
		ID     string         `json:"id"`
		Fields map[string]any `json:"fields"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "bad_request", "id required")
		return
	}
	rec, err := svc.Update(r.Context(), currentActor(r.Context()), req.ID, req.Fields)
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) handleRecordDelete(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.registryService(w, r)
	if !ok {
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "bad_request", "id required")
		return
	}
	if err := svc.Delete(r.Context(), currentActor(r.Context()), req.ID); err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}
	routing.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleRecordsImport reads the first sheet of the uploaded workbook and
// commits it in batches. A failure after some batches reports how many
// records were committed.
func (h *handler) handleRecordsImport(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.registryService(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "file_required", "file required")
		return
	}
	defer file.Close()

	sheetRows, err := spreadsheet.ReadRows(file)
	if err != nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "invalid_workbook", err.Error())
		return
	}
	schema := svc.Schema()
	rows := make([]map[string]any, 0, len(sheetRows))
	for _, row := range sheetRows {
		rows = append(rows, registryservices.FromSheetRow(schema, row))
	}

	done, err := svc.Import(r.Context(), currentActor(r.Context()), rows, func(done, total int) {
		logging.Debug(logging.CatBulk, "import progress", "registry", schema.Name, "done", done, "total", total)
	})
	h.writeBulkResult(w, r, schema.Name, done, err)
}

func (h *handler) handleRecordsDeleteAll(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.registryService(w, r)
	if !ok {
		return
	}
	name := svc.Schema().Name
	q := r.URL.Query()
	if q.Get("confirm") != name || !queryBool(r, "confirm_again") {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "confirmation_required",
			fmt.Sprintf("confirm=%s and confirm_again=true required", name))
		return
	}
	deleted, err := svc.DeleteAll(r.Context(), currentActor(r.Context()), func(deleted int) {
		logging.Debug(logging.CatBulk, "delete-all progress", "registry", name, "deleted", deleted)
	})
	h.writeBulkResult(w, r, name, deleted, err)
}

func (h *handler) writeBulkResult(w http.ResponseWriter, r *http.Request, registry string, done int, err error) {
	if err == nil {
		routing.WriteJSON(w, http.StatusOK, bulkResponse{Done: done, Registry: registry})
		return
	}
	if _, partial := registryservices.AsPartial(err); partial {
		status, _ := routing.ErrorStatus(err)
		if status == http.StatusInternalServerError {
			logging.ErrorErr(logging.CatBulk, "bulk operation failed", err, "registry", registry, "done", done)
		}
		routing.WriteJSON(w, status, bulkResponse{Done: done, Partial: true, Error: "bulk operation interrupted", Registry: registry})
		return
	}
	routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
}

func (h *handler) handleRecordsExport(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.registryService(w, r)
	if !ok {
		return
	}
	schema := svc.Schema()
	records, err := svc.Export(r.Context(), currentActor(r.Context()), filterFromQuery(r), func(loaded, total int) {
		logging.Debug(logging.CatBulk, "export progress", "registry", schema.Name, "loaded", loaded, "total", total)
	})
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, registryservices.ToSheetRow(schema, rec))
	}
	var buf bytes.Buffer
	if err := spreadsheet.WriteRows(&buf, schema.Title, schema.Headers(), rows); err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}

	filename := fmt.Sprintf("%s_%s.xlsx", schema.Name, h.now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *handler) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("registry")
	svc, ok := h.catalog.Get(name)
	if !ok {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "unknown_registry", "unknown registry: "+name)
		return
	}
	groupBy := strings.TrimSpace(q.Get("group_by"))
	if groupBy == "" {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, httperr.NewBadRequest("group_by required"))
		return
	}
	buckets, err := svc.Summary(r.Context(), groupBy)
	if err != nil {
		routing.WriteServiceError(w, r, routing.RouteClassInternalAPI, err)
		return
	}
	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	routing.WriteJSON(w, http.StatusOK, summaryResponse{Registry: name, GroupBy: groupBy, Total: total, Buckets: buckets})
}
