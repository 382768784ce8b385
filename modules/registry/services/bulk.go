package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jacksonlee411/registry-console/internal/logging"
	"github.com/jacksonlee411/registry-console/internal/tracing"
	activitytypes "github.com/jacksonlee411/registry-console/modules/activity/domain/types"
	"github.com/jacksonlee411/registry-console/modules/registry/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/registry/domain/types"
	"github.com/jacksonlee411/registry-console/pkg/httperr"
)

const (
	// ImportChunkSize and DeleteChunkSize stay under ports.MaxBatchOps.
	ImportChunkSize = 400
	DeleteChunkSize = 400
	ExportChunkSize = 500

	maxReportedViolations = 20
)

// Import validates every row, then inserts them in atomic chunks of
// ImportChunkSize, calling onProgress(done, total) after each commit. A
// failed chunk aborts the rest and the error is a *PartialError carrying
// the count already committed.
func (s *Service) Import(ctx context.Context, actor activitytypes.Actor, rows []map[string]any, onProgress func(done, total int)) (done int, err error) {
	ctx, span := tracing.Start(ctx, "registry.import",
		attribute.String("registry", s.schema.Name),
		attribute.Int("rows", len(rows)),
	)
	defer func() { tracing.End(span, err) }()

	encoded := make([]map[string]any, 0, len(rows))
	var violations []string
	for i, row := range rows {
		fields, unknown := Encode(s.schema, row, true)
		problems := s.rules.Check(fields)
		if len(unknown) > 0 {
			problems = append(problems, "campos desconocidos: "+strings.Join(unknown, ", "))
		}
		for _, p := range problems {
			if len(violations) < maxReportedViolations {
				violations = append(violations, fmt.Sprintf("fila %d: %s", i+1, p))
			}
		}
		encoded = append(encoded, fields)
	}
	if len(violations) > 0 {
		return 0, httperr.NewBadRequest(strings.Join(violations, "; "))
	}

	total := len(encoded)
	for start := 0; start < total; start += ImportChunkSize {
		end := min(start+ImportChunkSize, total)
		ops := make([]ports.BatchOp, 0, end-start)
		for _, fields := range encoded[start:end] {
			ops = append(ops, ports.BatchOp{Kind: ports.BatchInsert, Fields: fields})
		}
		if err := s.store.CommitBatch(ctx, s.schema.Collection, ops); err != nil {
			s.afterBulk(ctx, actor, activitytypes.ActionImport, done, total, err)
			return done, &PartialError{Op: "import", Done: done, Err: err}
		}
		done = end
		if onProgress != nil {
			onProgress(done, total)
		}
	}
	s.afterBulk(ctx, actor, activitytypes.ActionImport, done, total, nil)
	return done, nil
}

// DeleteAll removes every record in atomic chunks of DeleteChunkSize and
// stops once a fetch returns fewer than a full chunk.
func (s *Service) DeleteAll(ctx context.Context, actor activitytypes.Actor, onProgress func(deleted int)) (deleted int, err error) {
	ctx, span := tracing.Start(ctx, "registry.delete_all", attribute.String("registry", s.schema.Name))
	defer func() { tracing.End(span, err) }()

	q := ports.Query{
		Order: ports.Order{Field: types.FieldCreatedAt, Direction: ports.Desc},
		Limit: DeleteChunkSize,
	}
	for {
		hits, err := s.store.Query(ctx, s.schema.Collection, q)
		if err != nil {
			s.afterBulk(ctx, actor, activitytypes.ActionDeleteAll, deleted, -1, err)
			return deleted, &PartialError{Op: "delete-all", Done: deleted, Err: err}
		}
		if len(hits) == 0 {
			break
		}
		ops := make([]ports.BatchOp, 0, len(hits))
		for _, h := range hits {
			ops = append(ops, ports.BatchOp{Kind: ports.BatchDelete, ID: h.Document.ID})
		}
		if err := s.store.CommitBatch(ctx, s.schema.Collection, ops); err != nil {
			s.afterBulk(ctx, actor, activitytypes.ActionDeleteAll, deleted, -1, err)
			return deleted, &PartialError{Op: "delete-all", Done: deleted, Err: err}
		}
		deleted += len(hits)
		if onProgress != nil {
			onProgress(deleted)
		}
		if len(hits) < DeleteChunkSize {
			break
		}
	}
	s.afterBulk(ctx, actor, activitytypes.ActionDeleteAll, deleted, -1, nil)
	return deleted, nil
}

// Export pages through every record matching filter in chunks of
// ExportChunkSize, calling onProgress(loaded, total) after each chunk.
func (s *Service) Export(ctx context.Context, actor activitytypes.Actor, filter Filter, onProgress func(loaded, total int)) (out []types.Record, err error) {
	ctx, span := tracing.Start(ctx, "registry.export", attribute.String("registry", s.schema.Name))
	defer func() { tracing.End(span, err) }()

	total, err := s.Count(ctx, filter, false)
	if err != nil {
		return nil, err
	}
	var after ports.Cursor
	for {
		page, err := s.FetchPage(ctx, PageRequest{PageSize: ExportChunkSize, After: after, Filter: filter, noCount: true})
		if err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
		if onProgress != nil {
			onProgress(len(out), total)
		}
		if !page.HasMore {
			break
		}
		after = page.Cursor
	}
	s.record(ctx, actor, activitytypes.Entry{
		Action:      activitytypes.ActionExport,
		Description: fmt.Sprintf("%d registros exportados de %s", len(out), s.schema.Title),
		Details:     map[string]any{"count": len(out), "filter": filter.CacheKey()},
	})
	return out, nil
}

// afterBulk invalidates the cache (also after a partial failure) and writes
// the audit entry. total < 0 means unknown.
func (s *Service) afterBulk(ctx context.Context, actor activitytypes.Actor, action activitytypes.Action, done int, total int, cause error) {
	s.cache.Invalidate(ctx)

	details := map[string]any{"count": done}
	if total >= 0 {
		details["total"] = total
	}
	desc := fmt.Sprintf("%s en %s: %d registros", action, s.schema.Title, done)
	if cause != nil {
		details["error"] = cause.Error()
		desc += " (interrumpido)"
		logging.ErrorErr(logging.CatBulk, "bulk operation interrupted", cause,
			"registry", s.schema.Name, "action", string(action), "done", done)
	} else {
		logging.Info(logging.CatBulk, "bulk operation finished", "registry", s.schema.Name, "action", string(action), "done", done)
	}
	s.record(ctx, actor, activitytypes.Entry{Action: action, Description: desc, Details: details})
}
