package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Family identifies which rule family a record belongs to. Both families share
// one engine; family-specific behavior lives in FamilySpec.
type Family string

const (
	// FamilyCommission scopes rules by (seller, category); seller may be empty
	// for a marketplace-wide rule.
	FamilyCommission Family = "commission"

	// FamilyTax scopes rules by (country, category); country is mandatory.
	FamilyTax Family = "tax"
)

// ChangeType classifies a history entry.
type ChangeType string

const (
	ChangeTypeCreated ChangeType = "created"
	ChangeTypeUpdated ChangeType = "updated"
	ChangeTypeDeleted ChangeType = "deleted"
)

// Rule is a scoped, time-bounded rate override. The effective window is the
// half-open interval [EffectiveFrom, EffectiveTo); a nil EffectiveTo means the
// rule is open-ended.
type Rule struct {
	ID     snowflake.ID `gorm:"primaryKey"`
	Family Family       `gorm:"type:text;not null;index:ix_rules_scope,priority:1"`

	Name       string  `gorm:"type:text;not null"`
	ScopeKey   *string `gorm:"column:scope_key;type:text;index:ix_rules_scope,priority:2"`
	CategoryID *string `gorm:"column:category_id;type:text;index:ix_rules_scope,priority:3"`

	Rate     float64  `gorm:"type:numeric(6,3);not null"` // percent, 0..100
	FixedFee *float64 `gorm:"column:fixed_fee;type:numeric(12,2)"`
	MinRate  *float64 `gorm:"column:min_rate;type:numeric(6,3)"`
	MaxRate  *float64 `gorm:"column:max_rate;type:numeric(6,3)"`

	// Priority discriminates only among rules at the same specificity level;
	// a category-specific rule always outranks a general one.
	Priority int `gorm:"not null;default:0"`

	EffectiveFrom time.Time  `gorm:"column:effective_from;not null"`
	EffectiveTo   *time.Time `gorm:"column:effective_to"`

	IsActive bool `gorm:"column:is_active;not null;default:true"`
	Version  int  `gorm:"not null;default:1"`

	CreatedAt      time.Time `gorm:"not null"`
	CreatedBy      string    `gorm:"column:created_by;type:text;not null"`
	LastUpdatedAt  time.Time `gorm:"column:last_updated_at;not null"`
	LastModifiedBy string    `gorm:"column:last_modified_by;type:text;not null"`
}

func (Rule) TableName() string { return "rules" }

// IsGeneral reports whether the rule is the category-null fallback for its
// scope key.
func (r *Rule) IsGeneral() bool { return r.CategoryID == nil }

// CoversAt reports whether asOf falls inside the rule's effective window.
func (r *Rule) CoversAt(asOf time.Time) bool {
	if asOf.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo == nil || asOf.Before(*r.EffectiveTo)
}

type ruleSnapshot struct {
	ID             string     `json:"id"`
	Family         Family     `json:"family"`
	Name           string     `json:"name"`
	ScopeKey       *string    `json:"scope_key"`
	CategoryID     *string    `json:"category_id"`
	Rate           float64    `json:"rate"`
	FixedFee       *float64   `json:"fixed_fee,omitempty"`
	MinRate        *float64   `json:"min_rate,omitempty"`
	MaxRate        *float64   `json:"max_rate,omitempty"`
	Priority       int        `json:"priority"`
	EffectiveFrom  time.Time  `json:"effective_from"`
	EffectiveTo    *time.Time `json:"effective_to"`
	IsActive       bool       `json:"is_active"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	CreatedBy      string     `json:"created_by"`
	LastUpdatedAt  time.Time  `json:"last_updated_at"`
	LastModifiedBy string     `json:"last_modified_by"`
}

// Snapshot serializes the rule for a history entry.
func (r *Rule) Snapshot() datatypes.JSON {
	b, err := json.Marshal(ruleSnapshot{
		ID:             r.ID.String(),
		Family:         r.Family,
		Name:           r.Name,
		ScopeKey:       r.ScopeKey,
		CategoryID:     r.CategoryID,
		Rate:           r.Rate,
		FixedFee:       r.FixedFee,
		MinRate:        r.MinRate,
		MaxRate:        r.MaxRate,
		Priority:       r.Priority,
		EffectiveFrom:  r.EffectiveFrom,
		EffectiveTo:    r.EffectiveTo,
		IsActive:       r.IsActive,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		CreatedBy:      r.CreatedBy,
		LastUpdatedAt:  r.LastUpdatedAt,
		LastModifiedBy: r.LastModifiedBy,
	})
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}

// EmptySnapshot is the NewValues payload of a deleted entry.
func EmptySnapshot() datatypes.JSON { return datatypes.JSON("{}") }

// RuleHistory is one append-only record per rule mutation. It outlives the
// rule it references.
type RuleHistory struct {
	ID     snowflake.ID `gorm:"primaryKey"`
	RuleID snowflake.ID `gorm:"column:rule_id;not null;index"`

	ChangeType     ChangeType     `gorm:"column:change_type;type:text;not null"`
	PreviousValues datatypes.JSON `gorm:"column:previous_values"`
	NewValues      datatypes.JSON `gorm:"column:new_values;not null"`

	ChangedAt      time.Time `gorm:"column:changed_at;not null"`
	ChangedBy      string    `gorm:"column:changed_by;type:text;not null"`
	ChangedByEmail *string   `gorm:"column:changed_by_email;type:text"`
	Reason         *string   `gorm:"type:text"`
}

func (RuleHistory) TableName() string { return "rule_history" }
