package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Option applies a query refinement to a gorm statement.
type Option interface {
	Apply(stmt *gorm.DB) *gorm.DB
}

type sortBy struct {
	clause string
}

func (s sortBy) Apply(stmt *gorm.DB) *gorm.DB {
	if s.clause == "" {
		return stmt
	}
	return stmt.Order(s.clause)
}

// WithSortBy orders the query by the given clause; empty means no ordering.
func WithSortBy(clause string) Option {
	return sortBy{clause: clause}
}

// WithQuerySortBy builds an ORDER BY clause from user-supplied sort_by/order_by
// values, restricted to the allowed column set.
func WithQuerySortBy(field, order string, allowed map[string]bool) string {
	field = strings.TrimSpace(strings.ToLower(field))
	if field == "" || !allowed[field] {
		return ""
	}

	direction := "asc"
	if strings.EqualFold(strings.TrimSpace(order), "desc") {
		direction = "desc"
	}
	return fmt.Sprintf("%s %s", field, direction)
}
