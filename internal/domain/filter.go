package domain

import "strings"

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// SessionSortColumns is the whitelist of sortable session columns.
var SessionSortColumns = []string{"id", "created_at", "updated_at", "product_name", "status"}

// SessionFilter selects a page of sessions.
type SessionFilter struct {
	Status      string
	Marketplace string
	Source      string
	Search      string
	Sort        string
	Order       string
	Limit       int
	Offset      int
}

// Normalize replaces unknown sort columns and clamps paging values.
func (f SessionFilter) Normalize() SessionFilter {
	out := f
	out.Status = strings.TrimSpace(out.Status)
	out.Marketplace = strings.TrimSpace(out.Marketplace)
	out.Source = strings.TrimSpace(out.Source)
	out.Search = strings.TrimSpace(out.Search)
	sort := "updated_at"
	for _, col := range SessionSortColumns {
		if out.Sort == col {
			sort = col
			break
		}
	}
	out.Sort = sort
	if strings.EqualFold(out.Order, "ASC") {
		out.Order = "ASC"
	} else {
		out.Order = "DESC"
	}
	out.Limit, out.Offset = clampPage(out.Limit, out.Offset)
	return out
}

// ErrorFilter selects a page of workflow errors.
type ErrorFilter struct {
	Workflow string
	Limit    int
	Offset   int
}

// Normalize clamps paging values.
func (f ErrorFilter) Normalize() ErrorFilter {
	out := f
	out.Workflow = strings.TrimSpace(out.Workflow)
	out.Limit, out.Offset = clampPage(out.Limit, out.Offset)
	return out
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
