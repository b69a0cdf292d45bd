package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateRuleBoundaries(t *testing.T) {
	spec, _ := SpecFor(FamilyCommission)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	valid := func() *Rule {
		return &Rule{Name: "r", Rate: 0, EffectiveFrom: from}
	}

	// 0 and 100 are both legal rates.
	assert.NoError(t, ValidateRule(spec, valid(), "admin-1"))
	r := valid()
	r.Rate = 100
	assert.NoError(t, ValidateRule(spec, r, "admin-1"))

	r = valid()
	r.Name = strings.Repeat("x", 201)
	assert.Error(t, ValidateRule(spec, r, "admin-1"))

	r = valid()
	r.Name = strings.Repeat("x", 200)
	assert.NoError(t, ValidateRule(spec, r, "admin-1"))
}

func TestValidateRuleCollectsEveryViolation(t *testing.T) {
	spec, _ := SpecFor(FamilyTax)
	fee := 1.0

	err := ValidateRule(spec, &Rule{Rate: 120, FixedFee: &fee}, "")
	verrs, ok := err.(*ValidationErrors)
	if !ok {
		t.Fatalf("expected *ValidationErrors, got %T", err)
	}

	fields := map[string]bool{}
	for _, fieldErr := range verrs.Errors {
		fields[fieldErr.Field] = true
	}
	for _, want := range []string{"actor_id", "name", "country_code", "rate", "fixed_fee", "effective_from"} {
		assert.True(t, fields[want], "missing %s violation", want)
	}
}

func TestSpecForIsCaseInsensitive(t *testing.T) {
	spec, ok := SpecFor(Family(" Commission "))
	assert.True(t, ok)
	assert.Equal(t, FamilyCommission, spec.Family)

	_, ok = SpecFor(Family("royalty"))
	assert.False(t, ok)
}

func TestNormalizeScopeKey(t *testing.T) {
	taxSpec, _ := SpecFor(FamilyTax)
	commissionSpec, _ := SpecFor(FamilyCommission)

	lower := " de "
	got := NormalizeScopeKey(taxSpec, &lower)
	assert.Equal(t, "DE", *got)

	seller := " Seller-X "
	got = NormalizeScopeKey(commissionSpec, &seller)
	assert.Equal(t, "Seller-X", *got)

	empty := "   "
	assert.Nil(t, NormalizeScopeKey(taxSpec, &empty))
	assert.Nil(t, NormalizeScopeKey(taxSpec, nil))
}

func TestCoversAt(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	closed := Rule{IsActive: true, EffectiveFrom: from, EffectiveTo: &to}
	assert.False(t, closed.CoversAt(from.Add(-time.Second)))
	assert.True(t, closed.CoversAt(from))
	assert.True(t, closed.CoversAt(to.Add(-time.Second)))
	assert.False(t, closed.CoversAt(to))

	open := Rule{IsActive: true, EffectiveFrom: from}
	assert.True(t, open.CoversAt(from.AddDate(10, 0, 0)))
}
