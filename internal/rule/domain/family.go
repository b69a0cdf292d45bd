package domain

import (
	"regexp"
	"strings"
)

// FamilySpec captures the per-family differences the generic engine is
// parametrized over: whether the primary scope discriminator is mandatory,
// how it is validated, and whether fee fields apply.
type FamilySpec struct {
	Family           Family
	ScopeKeyField    string
	ScopeKeyRequired bool
	ScopeKeyPattern  *regexp.Regexp
	SupportsFees     bool
}

var countryCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)

var familySpecs = map[Family]FamilySpec{
	FamilyCommission: {
		Family:        FamilyCommission,
		ScopeKeyField: "seller_id",
		SupportsFees:  true,
	},
	FamilyTax: {
		Family:           FamilyTax,
		ScopeKeyField:    "country_code",
		ScopeKeyRequired: true,
		ScopeKeyPattern:  countryCodePattern,
	},
}

// SpecFor returns the spec for a family.
func SpecFor(f Family) (FamilySpec, bool) {
	spec, ok := familySpecs[Family(strings.ToLower(strings.TrimSpace(string(f))))]
	return spec, ok
}

const maxNameLength = 200

// ValidateRule checks a fully merged rule record against its family spec.
// It returns *ValidationErrors with every violation, or nil. Validation never
// touches the store.
func ValidateRule(spec FamilySpec, r *Rule, actorID string) error {
	verrs := &ValidationErrors{}

	if strings.TrimSpace(actorID) == "" {
		verrs.Add("actor_id", "required", "acting user id is required")
	}

	name := strings.TrimSpace(r.Name)
	if name == "" {
		verrs.Add("name", "required", "name is required")
	} else if len(name) > maxNameLength {
		verrs.Add("name", "too_long", "name must be at most 200 characters")
	}

	if r.ScopeKey == nil {
		if spec.ScopeKeyRequired {
			verrs.Add(spec.ScopeKeyField, "required", spec.ScopeKeyField+" is required")
		}
	} else if spec.ScopeKeyPattern != nil && !spec.ScopeKeyPattern.MatchString(*r.ScopeKey) {
		verrs.Add(spec.ScopeKeyField, "invalid", spec.ScopeKeyField+" must be a 2-letter code")
	}

	if r.Rate < 0 || r.Rate > 100 {
		verrs.Add("rate", "out_of_range", "rate must be between 0 and 100")
	}

	if !spec.SupportsFees {
		if r.FixedFee != nil || r.MinRate != nil || r.MaxRate != nil {
			verrs.Add("fixed_fee", "unsupported", "fee fields are not supported for this rule family")
		}
	} else {
		if r.FixedFee != nil && *r.FixedFee < 0 {
			verrs.Add("fixed_fee", "negative", "fixed fee must not be negative")
		}
		if r.MinRate != nil && (*r.MinRate < 0 || *r.MinRate > 100) {
			verrs.Add("min_rate", "out_of_range", "min rate must be between 0 and 100")
		}
		if r.MaxRate != nil && (*r.MaxRate < 0 || *r.MaxRate > 100) {
			verrs.Add("max_rate", "out_of_range", "max rate must be between 0 and 100")
		}
		if r.MinRate != nil && r.MaxRate != nil && *r.MinRate > *r.MaxRate {
			verrs.Add("min_rate", "min_above_max", "min rate must not exceed max rate")
		}
	}

	if r.EffectiveFrom.IsZero() {
		verrs.Add("effective_from", "required", "effective_from is required")
	} else if r.EffectiveTo != nil && !r.EffectiveTo.After(r.EffectiveFrom) {
		verrs.Add("effective_to", "invalid_range", "effective_to must be after effective_from")
	}

	if len(verrs.Errors) == 0 {
		return nil
	}
	return verrs
}

// NormalizeScopeKey trims the value and, for the tax family, upper-cases the
// country code. Empty becomes nil.
func NormalizeScopeKey(spec FamilySpec, value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	if spec.ScopeKeyPattern != nil {
		trimmed = strings.ToUpper(trimmed)
	}
	return &trimmed
}

// NormalizeCategoryID trims the value; empty becomes nil (the general rule).
func NormalizeCategoryID(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
