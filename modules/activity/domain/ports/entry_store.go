package ports

import (
	"context"

	"github.com/jacksonlee411/registry-console/modules/activity/domain/types"
)

type EntryStore interface {
	Append(ctx context.Context, e types.Entry) error
	List(ctx context.Context, q types.ListQuery) ([]types.Entry, error)
}
