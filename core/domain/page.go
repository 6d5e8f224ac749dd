package domain

import "strings"

const (
	DefaultPageSize = 50
	MaxPageSize     = 1000
	PreviewSize     = 10
)

// Record is one row or document keyed by column name.
type Record = map[string]any

// PageRequest asks for one page of a table, optionally projecting columns.
type PageRequest struct {
	Table    string
	Page     int
	PageSize int
	Columns  []string
}

// PageResult is one page plus the totals it was cut from.
type PageResult struct {
	Records    []Record `json:"records"`
	TotalCount int64    `json:"total_count"`
	TotalPages int64    `json:"total_pages"`
}

// WithDefaults fills in page 1 and the default page size.
func (r PageRequest) WithDefaults() PageRequest {
	if r.Page == 0 {
		r.Page = 1
	}
	if r.PageSize == 0 {
		r.PageSize = DefaultPageSize
	}
	return r
}

// Validate checks the page bounds.
func (r PageRequest) Validate() error {
	if strings.TrimSpace(r.Table) == "" {
		return ErrEmptyTable
	}
	if r.Page < 1 {
		return ErrInvalidPage
	}
	if r.PageSize < 1 || r.PageSize > MaxPageSize {
		return ErrInvalidPageSize
	}
	return nil
}

// Offset is the number of rows preceding the requested page.
func (r PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// Projected reports whether an explicit column projection was requested.
func (r PageRequest) Projected() bool {
	return len(r.Columns) > 0
}

// TotalPages is ceil(count/size), and zero for an empty table.
func TotalPages(count int64, size int) int64 {
	if count <= 0 || size <= 0 {
		return 0
	}
	return (count + int64(size) - 1) / int64(size)
}
