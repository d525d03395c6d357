package shared

import "strings"

// ListFilters carries the common list query knobs for master data screens.
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	SortDir string
}

// Offset converts page/limit into a SQL offset.
func (f ListFilters) Offset() int {
	n := f.Normalize()
	return (n.Page - 1) * n.Limit
}

// Normalize clamps paging values into a sane range.
func (f ListFilters) Normalize() ListFilters {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if strings.ToLower(f.SortDir) != "desc" {
		f.SortDir = "asc"
	}
	return f
}
