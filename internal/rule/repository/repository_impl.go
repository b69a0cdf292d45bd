package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/marketlane/backoffice/internal/rule/domain"
	"github.com/marketlane/backoffice/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO rules (
			id, family, name, scope_key, category_id, rate, fixed_fee, min_rate, max_rate,
			priority, effective_from, effective_to, is_active, version,
			created_at, created_by, last_updated_at, last_modified_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.Family,
		rule.Name,
		rule.ScopeKey,
		rule.CategoryID,
		rule.Rate,
		rule.FixedFee,
		rule.MinRate,
		rule.MaxRate,
		rule.Priority,
		rule.EffectiveFrom,
		rule.EffectiveTo,
		rule.IsActive,
		rule.Version,
		rule.CreatedAt,
		rule.CreatedBy,
		rule.LastUpdatedAt,
		rule.LastModifiedBy,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Rule, error) {
	var rule domain.Rule
	err := db.WithContext(ctx).Raw(
		`SELECT id, family, name, scope_key, category_id, rate, fixed_fee, min_rate, max_rate,
			priority, effective_from, effective_to, is_active, version,
			created_at, created_by, last_updated_at, last_modified_by
		 FROM rules WHERE id = ?`,
		id,
	).Scan(&rule).Error
	if err != nil {
		return nil, err
	}
	if rule.ID == 0 {
		return nil, nil
	}
	return &rule, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Rule, error) {
	var items []domain.Rule
	stmt := db.WithContext(ctx).
		Model(&domain.Rule{}).
		Where("family = ?", filter.Family)

	stmt = whereScopePart(stmt, "scope_key", filter.ScopeKey)
	stmt = whereScopePart(stmt, "category_id", filter.CategoryID)
	if filter.IsActive != nil {
		stmt = stmt.Where("is_active = ?", *filter.IsActive)
	}

	stmt = option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, map[string]bool{
		"effective_from": true,
		"created_at":     true,
		"priority":       true,
		"name":           true,
	})).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindConflicts(ctx context.Context, db *gorm.DB, q domain.ConflictQuery) ([]domain.Rule, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Rule{}).
		Where("family = ?", q.Family).
		Where("is_active = ?", true)

	stmt = whereScopeExact(stmt, "scope_key", q.ScopeKey)
	stmt = whereScopeExact(stmt, "category_id", q.CategoryID)

	// Half-open overlap: [a,b) and [c,d) collide iff a < d and c < b, with an
	// absent bound standing in for +infinity.
	if q.EffectiveTo != nil {
		stmt = stmt.Where("effective_from < ?", *q.EffectiveTo)
	}
	stmt = stmt.Where("effective_to IS NULL OR effective_to > ?", q.EffectiveFrom)

	if q.ExcludeID != 0 {
		stmt = stmt.Where("id <> ?", q.ExcludeID)
	}

	var items []domain.Rule
	if err := stmt.Order("effective_from asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindActiveByScope(ctx context.Context, db *gorm.DB, q domain.ScopeQuery) ([]domain.Rule, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Rule{}).
		Where("family = ?", q.Family).
		Where("is_active = ?", true).
		Where("effective_from <= ?", q.AsOf).
		Where("effective_to IS NULL OR effective_to > ?", q.AsOf)

	stmt = whereScopeExact(stmt, "scope_key", q.ScopeKey)
	stmt = whereScopeExact(stmt, "category_id", q.CategoryID)

	var items []domain.Rule
	if err := stmt.Order("priority desc, created_at desc, id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, rule *domain.Rule, expectedVersion int) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE rules
		 SET name = ?, scope_key = ?, category_id = ?, rate = ?, fixed_fee = ?, min_rate = ?, max_rate = ?,
			 priority = ?, effective_from = ?, effective_to = ?, is_active = ?, version = ?,
			 last_updated_at = ?, last_modified_by = ?
		 WHERE id = ? AND version = ?`,
		rule.Name,
		rule.ScopeKey,
		rule.CategoryID,
		rule.Rate,
		rule.FixedFee,
		rule.MinRate,
		rule.MaxRate,
		rule.Priority,
		rule.EffectiveFrom,
		rule.EffectiveTo,
		rule.IsActive,
		rule.Version,
		rule.LastUpdatedAt,
		rule.LastModifiedBy,
		rule.ID,
		expectedVersion,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM rules WHERE id = ?`, id).Error
}

func (r *repo) AppendHistory(ctx context.Context, db *gorm.DB, entry *domain.RuleHistory) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO rule_history (
			id, rule_id, change_type, previous_values, new_values,
			changed_at, changed_by, changed_by_email, reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.RuleID,
		entry.ChangeType,
		entry.PreviousValues,
		entry.NewValues,
		entry.ChangedAt,
		entry.ChangedBy,
		entry.ChangedByEmail,
		entry.Reason,
	).Error
}

func (r *repo) ListHistory(ctx context.Context, db *gorm.DB, ruleID snowflake.ID) ([]domain.RuleHistory, error) {
	var items []domain.RuleHistory
	err := db.WithContext(ctx).Raw(
		`SELECT id, rule_id, change_type, previous_values, new_values,
			changed_at, changed_by, changed_by_email, reason
		 FROM rule_history WHERE rule_id = ?
		 ORDER BY changed_at asc, id asc`,
		ruleID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// whereScopeExact matches one scope column exactly, with nil meaning the
// column must be NULL.
func whereScopeExact(stmt *gorm.DB, column string, value *string) *gorm.DB {
	if value == nil {
		return stmt.Where(column + " IS NULL")
	}
	return stmt.Where(column+" = ?", *value)
}

// whereScopePart is the listing variant: nil means "no filter".
func whereScopePart(stmt *gorm.DB, column string, value *string) *gorm.DB {
	if value == nil {
		return stmt
	}
	if *value == "" {
		return stmt.Where(column + " IS NULL")
	}
	return stmt.Where(column+" = ?", *value)
}
