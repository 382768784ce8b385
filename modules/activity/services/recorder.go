package services

import (
	"context"
	"time"

	"github.com/jacksonlee411/registry-console/internal/logging"
	"github.com/jacksonlee411/registry-console/modules/activity/domain/ports"
	"github.com/jacksonlee411/registry-console/modules/activity/domain/types"
	"github.com/jacksonlee411/registry-console/pkg/uuidv7"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Recorder appends audit entries. Failures are logged and swallowed so an
// audit problem never fails the action it describes.
type Recorder struct {
	store ports.EntryStore
	now   func() time.Time
}

func NewRecorder(store ports.EntryStore) *Recorder {
	return &Recorder{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (r *Recorder) Record(ctx context.Context, e types.Entry) {
	if r == nil || r.store == nil {
		return
	}
	if e.ID == "" {
		id, err := uuidv7.NewString()
		if err != nil {
			logging.ErrorErr(logging.CatAudit, "activity id", err, "module", e.Module, "action", string(e.Action))
			return
		}
		e.ID = id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	if err := r.store.Append(ctx, e); err != nil {
		logging.ErrorErr(logging.CatAudit, "activity append failed", err,
			"module", e.Module, "action", string(e.Action), "target_id", e.TargetID)
	}
}

func (r *Recorder) List(ctx context.Context, q types.ListQuery) ([]types.Entry, error) {
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	return r.store.List(ctx, q)
}
