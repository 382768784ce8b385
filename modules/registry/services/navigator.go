package services

import (
	"context"

	"github.com/jacksonlee411/registry-console/modules/registry/domain/ports"
)

type PageFetcher interface {
	FetchPage(ctx context.Context, req PageRequest) (PageResult, error)
}

// Navigator holds one session's cursor history. history[i] is the cursor
// that starts page i, so history always begins with nil. Going back replays
// an earlier cursor and never queries backwards.
type Navigator struct {
	fetcher  PageFetcher
	pageSize int
	filter   Filter
	history  []ports.Cursor
	page     int
	last     *PageResult
}

func NewNavigator(fetcher PageFetcher, pageSize int, filter Filter) *Navigator {
	n := &Navigator{fetcher: fetcher}
	n.Reset(pageSize, filter)
	return n
}

// Reset returns to the first page. Call it after a filter, page size or data
// change.
func (n *Navigator) Reset(pageSize int, filter Filter) {
	n.pageSize = pageSize
	n.filter = filter.Normalized()
	n.history = []ports.Cursor{nil}
	n.page = 0
	n.last = nil
}

func (n *Navigator) Page() int { return n.page }

func (n *Navigator) History() []ports.Cursor {
	out := make([]ports.Cursor, len(n.history))
	copy(out, n.history)
	return out
}

// Current fetches the page at the current position.
func (n *Navigator) Current(ctx context.Context) (PageResult, error) {
	res, err := n.fetcher.FetchPage(ctx, PageRequest{
		PageSize:  n.pageSize,
		After:     n.history[n.page],
		Filter:    n.filter,
		SkipCount: n.last != nil,
	})
	if err != nil {
		return PageResult{}, err
	}
	n.history = n.history[:n.page+1]
	if res.Cursor != nil {
		n.history = append(n.history, res.Cursor)
	}
	n.last = &res
	return res, nil
}

// Next advances when the current page reported HasMore; otherwise it
// returns the current page unchanged.
func (n *Navigator) Next(ctx context.Context) (PageResult, error) {
	if n.last == nil {
		return n.Current(ctx)
	}
	if !n.last.HasMore || n.page+1 >= len(n.history) {
		return *n.last, nil
	}
	n.page++
	return n.Current(ctx)
}

// Prev steps back one page; on the first page it re-fetches page 0.
func (n *Navigator) Prev(ctx context.Context) (PageResult, error) {
	if n.page > 0 {
		n.page--
	}
	return n.Current(ctx)
}
