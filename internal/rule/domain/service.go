package domain

import (
	"context"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, family Family, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, req DeleteRequest) (*Response, error)

	// Resolve returns the single governing rule for a context at asOf, or
	// (nil, nil) when no override is configured.
	Resolve(ctx context.Context, req ResolveRequest) (*Resolution, error)

	// History returns every history entry for the id, whether or not the
	// live rule still exists.
	History(ctx context.Context, family Family, id string) (*HistoryResponse, error)
}

type CreateRequest struct {
	Family        Family     `json:"family"`
	Name          string     `json:"name"`
	ScopeKey      *string    `json:"scope_key"`
	CategoryID    *string    `json:"category_id"`
	Rate          float64    `json:"rate"`
	FixedFee      *float64   `json:"fixed_fee,omitempty"`
	MinRate       *float64   `json:"min_rate,omitempty"`
	MaxRate       *float64   `json:"max_rate,omitempty"`
	Priority      int        `json:"priority"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	Reason        *string    `json:"reason,omitempty"`
}

type UpdateRequest struct {
	Family           Family     `json:"family"`
	ID               string     `json:"id"`
	Name             *string    `json:"name,omitempty"`
	ScopeKey         *string    `json:"scope_key,omitempty"` // empty string clears
	CategoryID       *string    `json:"category_id,omitempty"`
	Rate             *float64   `json:"rate,omitempty"`
	FixedFee         *float64   `json:"fixed_fee,omitempty"`
	MinRate          *float64   `json:"min_rate,omitempty"`
	MaxRate          *float64   `json:"max_rate,omitempty"`
	Priority         *int       `json:"priority,omitempty"`
	EffectiveFrom    *time.Time `json:"effective_from,omitempty"`
	EffectiveTo      *time.Time `json:"effective_to,omitempty"`
	ClearEffectiveTo bool       `json:"clear_effective_to,omitempty"`
	Reason           *string    `json:"reason,omitempty"`
}

type DeleteRequest struct {
	Family Family  `json:"family"`
	ID     string  `json:"id"`
	Reason *string `json:"reason,omitempty"`
}

type ListRequest struct {
	Family     Family
	ScopeKey   *string
	CategoryID *string
	IsActive   *bool
	SortBy     string
	OrderBy    string
}

type ResolveRequest struct {
	Family     Family
	ScopeKey   *string
	CategoryID *string
	AsOf       time.Time // zero means now
}

type Response struct {
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
	EffectiveTo    *time.Time `json:"effective_to,omitempty"`
	IsActive       bool       `json:"is_active"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	CreatedBy      string     `json:"created_by"`
	LastUpdatedAt  time.Time  `json:"last_updated_at"`
	LastModifiedBy string     `json:"last_modified_by"`
}

// Resolution is the read-path answer: the governing rate and the rule that
// produced it.
type Resolution struct {
	Rate        float64  `json:"rate"`
	AppliedRule Response `json:"applied_rule"`
}

type HistoryEntry struct {
	ID             string     `json:"id"`
	RuleID         string     `json:"rule_id"`
	ChangeType     ChangeType `json:"change_type"`
	PreviousValues any        `json:"previous_values,omitempty"`
	NewValues      any        `json:"new_values"`
	ChangedAt      time.Time  `json:"changed_at"`
	ChangedBy      string     `json:"changed_by"`
	ChangedByEmail *string    `json:"changed_by_email,omitempty"`
	Reason         *string    `json:"reason,omitempty"`
}

// HistoryResponse reports the audit trail plus the live rule, which is nil
// once the rule has been deleted.
type HistoryResponse struct {
	RuleID      string         `json:"rule_id"`
	CurrentRule *Response      `json:"current_rule"`
	Entries     []HistoryEntry `json:"entries"`
}
