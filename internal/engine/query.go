// Package engine holds the CRUD services for clients, quotes, users and
// the company profile. Services return typed errors from the errors
// package and record every mutation in the change history.
package engine

import (
	"errors"
	"strings"

	apperrors "github.com/aethra/oficina/internal/errors"
	"gorm.io/gorm"
)

// Page size bounds
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	MaxExportRows   = 10000
)

// =============================================================================
// QUERY TYPES
// =============================================================================

// QueryParams represents parameters for listing and searching
type QueryParams struct {
	Page            int    `json:"page"`
	PageSize        int    `json:"page_size"`
	Search          string `json:"search"`
	Status          string `json:"status"`
	Sort            string `json:"sort"`
	SortDir         string `json:"sort_dir"`
	IncludeInactive bool   `json:"incluir_inativos"`
}

// Normalize applies the pagination defaults and bounds
func (p *QueryParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	p.Search = strings.TrimSpace(p.Search)
	p.Status = strings.TrimSpace(p.Status)
}

// QueryResult represents one page of a list query
type QueryResult[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// TotalPages returns the number of pages needed for total rows
func TotalPages(total int64, pageSize int) int {
	if pageSize < 1 || total <= 0 {
		return 0
	}
	pages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		pages++
	}
	return pages
}

// paginate counts query, then fetches the requested page in order.
// query must be built from a Model and be safe to reuse (see gorm.Session).
func paginate[T any](query *gorm.DB, params QueryParams, order string, preloads ...string) (*QueryResult[T], error) {
	params.Normalize()

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	rows := make([]T, 0, params.PageSize)
	find := query.Order(order).Offset((params.Page - 1) * params.PageSize).Limit(params.PageSize)
	for _, p := range preloads {
		find = find.Preload(p)
	}
	if err := find.Find(&rows).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	return &QueryResult[T]{
		Data:       rows,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: TotalPages(total, params.PageSize),
	}, nil
}

// all fetches up to MaxExportRows rows in order
func all[T any](query *gorm.DB, order string, preloads ...string) ([]T, error) {
	rows := []T{}
	find := query.Order(order).Limit(MaxExportRows)
	for _, p := range preloads {
		find = find.Preload(p)
	}
	if err := find.Find(&rows).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return rows, nil
}

// lookupError maps a single-row lookup failure onto the taxonomy
func lookupError(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NewNotFoundError(resource)
	}
	return apperrors.NewInternalError(err)
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
