package domain

import "time"

// AggregateFilter selects rows from the warehouse aggregates.
type AggregateFilter struct {
	Query        string
	Start        time.Time
	End          time.Time
	Page         int
	PageSize     int
	SortKey      string
	SortDir      string
	NoPagination bool
}

// Offset returns the row offset for the current page. Page is 1-based.
func (f AggregateFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// SegmentFilter selects rows of the segmentation table.
type SegmentFilter struct {
	Query          string
	DeliveryOption string
	Page           int
	PageSize       int
	SortKey        string
	SortDir        string
}

// Offset returns the row offset for the current page. Page is 1-based.
func (f SegmentFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// PageResponse wraps a page of items with its total count.
type PageResponse[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// NewPageResponse computes the page count for a total.
func NewPageResponse[T any](items []T, total, page, pageSize int) PageResponse[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return PageResponse[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
