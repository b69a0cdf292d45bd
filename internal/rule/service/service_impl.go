package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/marketlane/backoffice/internal/actorcontext"
	"github.com/marketlane/backoffice/internal/clock"
	"github.com/marketlane/backoffice/internal/rule/domain"
	"github.com/marketlane/backoffice/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("rule.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	spec, ok := domain.SpecFor(req.Family)
	if !ok {
		return nil, domain.ErrInvalidFamily
	}

	actorID, actorEmail := actorcontext.ActorFromContext(ctx)
	now := s.clock.Now()

	record := &domain.Rule{
		ID:             s.genID.Generate(),
		Family:         spec.Family,
		Name:           strings.TrimSpace(req.Name),
		ScopeKey:       domain.NormalizeScopeKey(spec, req.ScopeKey),
		CategoryID:     domain.NormalizeCategoryID(req.CategoryID),
		Rate:           req.Rate,
		FixedFee:       req.FixedFee,
		MinRate:        req.MinRate,
		MaxRate:        req.MaxRate,
		Priority:       req.Priority,
		EffectiveFrom:  req.EffectiveFrom.UTC(),
		EffectiveTo:    utcPtr(req.EffectiveTo),
		IsActive:       true,
		Version:        1,
		CreatedAt:      now,
		CreatedBy:      actorID,
		LastUpdatedAt:  now,
		LastModifiedBy: actorID,
	}

	// Validation never touches the store.
	if err := domain.ValidateRule(spec, record, actorID); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conflicts, err := s.repo.FindConflicts(ctx, tx, domain.ConflictQuery{
			Family:        record.Family,
			ScopeKey:      record.ScopeKey,
			CategoryID:    record.CategoryID,
			EffectiveFrom: record.EffectiveFrom,
			EffectiveTo:   record.EffectiveTo,
		})
		if err != nil {
			return fmt.Errorf("find conflicts: %w", err)
		}
		if len(conflicts) > 0 {
			return &domain.ConflictError{Conflicts: conflicts}
		}

		if err := s.repo.Create(ctx, tx, record); err != nil {
			// The store-level exclusion constraint is the real safety net
			// against two writers passing the pre-check concurrently.
			if db.IsExclusionErr(err) || db.IsDuplicateKeyErr(err) {
				return &domain.ConflictError{}
			}
			return fmt.Errorf("insert rule: %w", err)
		}

		return s.repo.AppendHistory(ctx, tx, s.historyEntry(record.ID, domain.ChangeTypeCreated, nil, record.Snapshot(), now, actorID, actorEmail, req.Reason))
	})
	if err != nil {
		s.logFailure("create", record.ID, err)
		return nil, err
	}

	resp := toResponse(record)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, family domain.Family, id string) (*domain.Response, error) {
	if _, ok := domain.SpecFor(family); !ok {
		return nil, domain.ErrInvalidFamily
	}
	ruleID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	rule, err := s.repo.FindByID(ctx, s.db, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil || rule.Family != family {
		return nil, domain.ErrNotFound
	}

	resp := toResponse(rule)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	spec, ok := domain.SpecFor(req.Family)
	if !ok {
		return nil, domain.ErrInvalidFamily
	}

	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		Family:     spec.Family,
		ScopeKey:   req.ScopeKey,
		CategoryID: req.CategoryID,
		IsActive:   req.IsActive,
		SortBy:     strings.TrimSpace(req.SortBy),
		OrderBy:    strings.TrimSpace(req.OrderBy),
	})
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	spec, ok := domain.SpecFor(req.Family)
	if !ok {
		return nil, domain.ErrInvalidFamily
	}
	ruleID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	actorID, actorEmail := actorcontext.ActorFromContext(ctx)
	now := s.clock.Now()

	var updated *domain.Rule
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByID(ctx, tx, ruleID)
		if err != nil {
			return err
		}
		if existing == nil || existing.Family != spec.Family {
			return domain.ErrNotFound
		}
		previous := existing.Snapshot()
		fetchedVersion := existing.Version

		merged := *existing
		applyUpdate(spec, &merged, req)

		// Re-validate the merged state, not the patch.
		if err := domain.ValidateRule(spec, &merged, actorID); err != nil {
			return err
		}

		// Conflict check runs against the updated scope, excluding the rule
		// itself.
		conflicts, err := s.repo.FindConflicts(ctx, tx, domain.ConflictQuery{
			Family:        merged.Family,
			ScopeKey:      merged.ScopeKey,
			CategoryID:    merged.CategoryID,
			EffectiveFrom: merged.EffectiveFrom,
			EffectiveTo:   merged.EffectiveTo,
			ExcludeID:     merged.ID,
		})
		if err != nil {
			return fmt.Errorf("find conflicts: %w", err)
		}
		if len(conflicts) > 0 {
			return &domain.ConflictError{Conflicts: conflicts}
		}

		merged.Version = fetchedVersion + 1
		merged.LastUpdatedAt = now
		merged.LastModifiedBy = actorID

		ok, err := s.repo.Update(ctx, tx, &merged, fetchedVersion)
		if err != nil {
			if db.IsExclusionErr(err) {
				return &domain.ConflictError{}
			}
			return fmt.Errorf("update rule: %w", err)
		}
		if !ok {
			return domain.ErrVersionConflict
		}

		updated = &merged
		return s.repo.AppendHistory(ctx, tx, s.historyEntry(merged.ID, domain.ChangeTypeUpdated, previous, merged.Snapshot(), now, actorID, actorEmail, req.Reason))
	})
	if err != nil {
		s.logFailure("update", ruleID, err)
		return nil, err
	}

	resp := toResponse(updated)
	return &resp, nil
}

func (s *Service) Delete(ctx context.Context, req domain.DeleteRequest) (*domain.Response, error) {
	spec, ok := domain.SpecFor(req.Family)
	if !ok {
		return nil, domain.ErrInvalidFamily
	}
	ruleID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	actorID, actorEmail := actorcontext.ActorFromContext(ctx)
	if strings.TrimSpace(actorID) == "" {
		verrs := &domain.ValidationErrors{}
		verrs.Add("actor_id", "required", "acting user id is required")
		return nil, verrs
	}

	existing, err := s.repo.FindByID(ctx, s.db, ruleID)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.Family != spec.Family {
		return nil, domain.ErrNotFound
	}

	now := s.clock.Now()

	// The history entry lands before the physical delete. A crash in between
	// leaves a deleted-but-present row that a retry re-deletes; the reverse
	// order could lose the audit trail.
	entry := s.historyEntry(existing.ID, domain.ChangeTypeDeleted, existing.Snapshot(), domain.EmptySnapshot(), now, actorID, actorEmail, req.Reason)
	if err := s.repo.AppendHistory(ctx, s.db, entry); err != nil {
		s.logFailure("delete", ruleID, err)
		return nil, fmt.Errorf("append history: %w", err)
	}

	if err := s.repo.Delete(ctx, s.db, existing.ID); err != nil {
		s.logFailure("delete", ruleID, err)
		return nil, fmt.Errorf("delete rule: %w", err)
	}

	resp := toResponse(existing)
	return &resp, nil
}

func (s *Service) History(ctx context.Context, family domain.Family, id string) (*domain.HistoryResponse, error) {
	if _, ok := domain.SpecFor(family); !ok {
		return nil, domain.ErrInvalidFamily
	}
	ruleID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.ListHistory(ctx, s.db, ruleID)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.FindByID(ctx, s.db, ruleID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.Family != family {
		return nil, domain.ErrNotFound
	}
	if current == nil && len(entries) == 0 {
		return nil, domain.ErrNotFound
	}

	resp := &domain.HistoryResponse{
		RuleID:  ruleID.String(),
		Entries: make([]domain.HistoryEntry, 0, len(entries)),
	}
	if current != nil {
		currentResp := toResponse(current)
		resp.CurrentRule = &currentResp
	}
	for i := range entries {
		resp.Entries = append(resp.Entries, toHistoryEntry(&entries[i]))
	}
	return resp, nil
}

func applyUpdate(spec domain.FamilySpec, rule *domain.Rule, req domain.UpdateRequest) {
	if req.Name != nil {
		rule.Name = strings.TrimSpace(*req.Name)
	}
	if req.ScopeKey != nil {
		rule.ScopeKey = domain.NormalizeScopeKey(spec, req.ScopeKey)
	}
	if req.CategoryID != nil {
		rule.CategoryID = domain.NormalizeCategoryID(req.CategoryID)
	}
	if req.Rate != nil {
		rule.Rate = *req.Rate
	}
	if req.FixedFee != nil {
		rule.FixedFee = req.FixedFee
	}
	if req.MinRate != nil {
		rule.MinRate = req.MinRate
	}
	if req.MaxRate != nil {
		rule.MaxRate = req.MaxRate
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.EffectiveFrom != nil {
		rule.EffectiveFrom = req.EffectiveFrom.UTC()
	}
	if req.ClearEffectiveTo {
		rule.EffectiveTo = nil
	} else if req.EffectiveTo != nil {
		rule.EffectiveTo = utcPtr(req.EffectiveTo)
	}
}

func (s *Service) historyEntry(ruleID snowflake.ID, changeType domain.ChangeType, previous, next []byte, at time.Time, actorID, actorEmail string, reason *string) *domain.RuleHistory {
	entry := &domain.RuleHistory{
		ID:             s.genID.Generate(),
		RuleID:         ruleID,
		ChangeType:     changeType,
		PreviousValues: previous,
		NewValues:      next,
		ChangedAt:      at,
		ChangedBy:      actorID,
		Reason:         normalizePointer(reason),
	}
	if email := strings.TrimSpace(actorEmail); email != "" {
		entry.ChangedByEmail = &email
	}
	return entry
}

func (s *Service) logFailure(op string, ruleID snowflake.ID, err error) {
	var verrs *domain.ValidationErrors
	var conflict *domain.ConflictError
	switch {
	case errors.As(err, &verrs), errors.As(err, &conflict),
		errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrVersionConflict):
		// user-facing outcomes, not faults
		return
	default:
		s.log.Error("rule operation failed",
			zap.String("op", op),
			zap.String("rule_id", ruleID.String()),
			zap.Error(err),
		)
	}
}

func toResponse(r *domain.Rule) domain.Response {
	return domain.Response{
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
	}
}

func toHistoryEntry(h *domain.RuleHistory) domain.HistoryEntry {
	entry := domain.HistoryEntry{
		ID:             h.ID.String(),
		RuleID:         h.RuleID.String(),
		ChangeType:     h.ChangeType,
		ChangedAt:      h.ChangedAt,
		ChangedBy:      h.ChangedBy,
		ChangedByEmail: h.ChangedByEmail,
		Reason:         h.Reason,
	}
	if len(h.PreviousValues) > 0 {
		entry.PreviousValues = json.RawMessage(h.PreviousValues)
	}
	entry.NewValues = json.RawMessage(h.NewValues)
	return entry
}

func parseID(value string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || parsed == 0 {
		return 0, domain.ErrInvalidID
	}
	return parsed, nil
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
