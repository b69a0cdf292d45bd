package service

import (
	"context"

	"github.com/marketlane/backoffice/internal/rule/domain"
)

// Resolve answers "which single rule governs this context at this instant".
// Specificity is a two-step fallback: an active category-specific rule always
// outranks the general (category-null) rule for the same scope key. Priority
// discriminates only among rules at the same specificity level, which the
// conflict detector should already prevent; the resolver stays defensive and
// breaks remaining ties by most-recently-created.
func (s *Service) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.Resolution, error) {
	spec, ok := domain.SpecFor(req.Family)
	if !ok {
		return nil, domain.ErrInvalidFamily
	}

	scopeKey := domain.NormalizeScopeKey(spec, req.ScopeKey)
	if spec.ScopeKeyRequired && scopeKey == nil {
		verrs := &domain.ValidationErrors{}
		verrs.Add(spec.ScopeKeyField, "required", spec.ScopeKeyField+" is required")
		return nil, verrs
	}

	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}
	asOf = asOf.UTC()

	categoryID := domain.NormalizeCategoryID(req.CategoryID)
	if categoryID != nil {
		matches, err := s.repo.FindActiveByScope(ctx, s.db, domain.ScopeQuery{
			Family:     spec.Family,
			ScopeKey:   scopeKey,
			CategoryID: categoryID,
			AsOf:       asOf,
		})
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			return resolution(&matches[0]), nil
		}
	}

	// General fallback: the category-null rule for the same scope key.
	matches, err := s.repo.FindActiveByScope(ctx, s.db, domain.ScopeQuery{
		Family:   spec.Family,
		ScopeKey: scopeKey,
		AsOf:     asOf,
	})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		// No override configured; callers apply their own default.
		return nil, nil
	}
	return resolution(&matches[0]), nil
}

func resolution(r *domain.Rule) *domain.Resolution {
	return &domain.Resolution{
		Rate:        r.Rate,
		AppliedRule: toResponse(r),
	}
}
