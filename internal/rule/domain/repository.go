package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ConflictQuery selects active rules whose scope matches exactly and whose
// [EffectiveFrom, EffectiveTo) window overlaps the candidate's. A nil
// EffectiveTo is an open-ended window.
type ConflictQuery struct {
	Family        Family
	ScopeKey      *string
	CategoryID    *string
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	ExcludeID     snowflake.ID // 0 means no exclusion
}

// ScopeQuery selects active rules covering asOf for one exact scope.
type ScopeQuery struct {
	Family     Family
	ScopeKey   *string
	CategoryID *string
	AsOf       time.Time
}

// ListFilter narrows rule listings for the admin surface.
type ListFilter struct {
	Family     Family
	ScopeKey   *string
	CategoryID *string
	IsActive   *bool
	SortBy     string
	OrderBy    string
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, rule *Rule) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Rule, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Rule, error)

	// FindConflicts is scope-exact: it never widens to the specificity
	// fallback.
	FindConflicts(ctx context.Context, db *gorm.DB, q ConflictQuery) ([]Rule, error)

	// FindActiveByScope returns matches ordered best-first: priority desc,
	// then most recently created.
	FindActiveByScope(ctx context.Context, db *gorm.DB, q ScopeQuery) ([]Rule, error)

	// Update persists the rule conditioned on the version read at fetch time.
	// It reports false when another writer got there first.
	Update(ctx context.Context, db *gorm.DB, rule *Rule, expectedVersion int) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	AppendHistory(ctx context.Context, db *gorm.DB, entry *RuleHistory) error
	ListHistory(ctx context.Context, db *gorm.DB, ruleID snowflake.ID) ([]RuleHistory, error)
}
