package app

import (
	"context"
	"strconv"
	"strings"

	"findit/pkg/domain"
)

var sortKeys = map[string]domain.SortKey{
	"":          domain.SortDefault,
	"date_asc":  domain.SortDateAsc,
	"date_desc": domain.SortDateDesc,
	"name_asc":  domain.SortNameAsc,
	"name_desc": domain.SortNameDesc,
}

// LostQuery holds the raw lost-items query parameters.
type LostQuery struct {
	Search   string
	Category string
	SortBy   string
	Page     string
	Limit    string
}

// LostPage is one page of approved lost items.
type LostPage struct {
	Items []domain.Concern `json:"items"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

// ListLost browses approved lost items. sortBy must be one of the known
// keys; page and limit default to 1 and 10 and limit is capped at 100.
func (a *App) ListLost(ctx context.Context, q LostQuery) (LostPage, error) {
	sortKey, ok := sortKeys[strings.TrimSpace(q.SortBy)]
	if !ok {
		return LostPage{}, ErrInvalidSort
	}
	page, err := positiveInt(q.Page, defaultLostPage, "page")
	if err != nil {
		return LostPage{}, err
	}
	limit, err := positiveInt(q.Limit, defaultLostLimit, "limit")
	if err != nil {
		return LostPage{}, err
	}
	if limit > maxLostLimit {
		limit = maxLostLimit
	}
	// Bound page so the offset cannot overflow.
	if page > (1<<31)/limit {
		return LostPage{}, invalid("page out of range")
	}
	items, err := a.store.ListLost(ctx, domain.LostFilter{
		Search:   strings.TrimSpace(q.Search),
		Category: strings.TrimSpace(q.Category),
		Sort:     sortKey,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		return LostPage{}, persistence("list lost items", err)
	}
	return LostPage{Items: items, Page: page, Limit: limit}, nil
}

func positiveInt(raw string, def int, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, invalid(field + " must be a positive integer")
	}
	return n, nil
}
