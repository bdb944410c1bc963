// Package pagination reads page, limit and sort parameters for message
// listings from a query string and turns them into an offset.
package pagination

import (
	"net/url"
	"strconv"
)

// Params is a validated page request.
type Params struct {
	Page   int32  // 1-based page number
	Limit  int32  // messages per page
	Offset int32  // messages to skip
	Sort   string // "oldest" (chronological) or "newest"
}

const (
	MaxLimit     int32 = 200
	DefaultPage  int32 = 1
	DefaultLimit int32 = 50

	SortOldest  = "oldest"
	SortNewest  = "newest"
	DefaultSort = SortOldest
)

func calculateOffset(page, limit int32) int32 {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}

// normalizeSort maps accepted spellings onto SortOldest or SortNewest.
func normalizeSort(sort string) (string, bool) {
	switch sort {
	case SortOldest, "asc":
		return SortOldest, true
	case SortNewest, "desc":
		return SortNewest, true
	default:
		return "", false
	}
}

type Option func(*Params)

func WithDefaultLimit(limit int32) Option {
	return func(p *Params) {
		if limit > 0 {
			p.Limit = limit
		}
	}
}

func WithDefaultSort(sort string) Option {
	normalized, ok := normalizeSort(sort)
	if !ok {
		return func(p *Params) {}
	}
	return func(p *Params) {
		p.Sort = normalized
	}
}

// FromQuery reads page, limit and sort from q. Invalid values fall back to
// the defaults and limit is capped at MaxLimit.
func FromQuery(q url.Values, opts ...Option) Params {
	params := Params{
		Page:  DefaultPage,
		Limit: DefaultLimit,
		Sort:  DefaultSort,
	}
	for _, opt := range opts {
		opt(&params)
	}

	if val, err := strconv.ParseInt(q.Get("page"), 10, 32); err == nil && val > 0 {
		params.Page = int32(val)
	}
	if val, err := strconv.ParseInt(q.Get("limit"), 10, 32); err == nil && val > 0 {
		params.Limit = int32(val)
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}
	if sort, ok := normalizeSort(q.Get("sort")); ok {
		params.Sort = sort
	}

	params.Offset = calculateOffset(params.Page, params.Limit)
	return params
}

// HasNext reports whether items remain after the page at offset.
func HasNext(offset, limit, count int32) bool {
	return (offset + limit) < count
}
