package service

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/marketlane/backoffice/internal/clock"
	"github.com/marketlane/backoffice/internal/rule/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// insertRule writes a row directly, bypassing the lifecycle service. Used to
// stage states the service itself refuses to produce (inactive rules,
// overlapping same-scope rules).
func insertRule(t *testing.T, db *gorm.DB, node *snowflake.Node, r domain.Rule) domain.Rule {
	t.Helper()
	if r.ID == 0 {
		r.ID = node.Generate()
	}
	if r.Name == "" {
		r.Name = "staged rule"
	}
	if r.Version == 0 {
		r.Version = 1
	}
	if r.CreatedBy == "" {
		r.CreatedBy = "seed"
		r.LastModifiedBy = "seed"
	}
	if r.LastUpdatedAt.IsZero() {
		r.LastUpdatedAt = r.CreatedAt
	}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("insert rule: %v", err)
	}
	return r
}

func TestResolveFallsBackToGeneralRule(t *testing.T) {
	svc, _ := setupService(t, clock.NewFakeClock(mar1))
	ctx := actorCtx(t)

	general, err := svc.Create(ctx, commissionCreate(strPtr("seller-x"), nil, 8, jan1, nil))
	require.NoError(t, err)

	// Only the general rule exists: any category resolves to it.
	res, err := svc.Resolve(ctx, domain.ResolveRequest{
		Family:     domain.FamilyCommission,
		ScopeKey:   strPtr("seller-x"),
		CategoryID: strPtr("cat-electronics"),
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 8.0, res.Rate)
	assert.Equal(t, general.ID, res.AppliedRule.ID)

	specific, err := svc.Create(ctx, commissionCreate(strPtr("seller-x"), strPtr("cat-electronics"), 15, jan1, nil))
	require.NoError(t, err)

	// Category-specific now outranks the general rule for that category.
	res, err = svc.Resolve(ctx, domain.ResolveRequest{
		Family:     domain.FamilyCommission,
		ScopeKey:   strPtr("seller-x"),
		CategoryID: strPtr("cat-electronics"),
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 15.0, res.Rate)
	assert.Equal(t, specific.ID, res.AppliedRule.ID)

	// Other categories still fall back.
	res, err = svc.Resolve(ctx, domain.ResolveRequest{
		Family:     domain.FamilyCommission,
		ScopeKey:   strPtr("seller-x"),
		CategoryID: strPtr("cat-books"),
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, general.ID, res.AppliedRule.ID)
}

func TestResolveNoMatchIsNilNotError(t *testing.T) {
	svc, _ := setupService(t, clock.NewFakeClock(mar1))

	res, err := svc.Resolve(actorCtx(t), domain.ResolveRequest{
		Family:     domain.FamilyCommission,
		ScopeKey:   strPtr("seller-unknown"),
		CategoryID: strPtr("cat-y"),
	})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResolveHalfOpenWindowEdges(t *testing.T) {
	svc, _ := setupService(t, clock.NewFakeClock(jan1))
	ctx := actorCtx(t)

	_, err := svc.Create(ctx, commissionCreate(strPtr("seller-x"), nil, 10, jan1, timePtr(jun1)))
	require.NoError(t, err)

	cases := []struct {
		name    string
		asOf    time.Time
		matched bool
	}{
		{"before start", jan1.Add(-time.Second), false},
		{"at start", jan1, true},
		{"inside window", mar1, true},
		{"just before end", jun1.Add(-time.Second), true},
		{"at end", jun1, false},
		{"after end", jun1.Add(time.Second), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := svc.Resolve(ctx, domain.ResolveRequest{
				Family:   domain.FamilyCommission,
				ScopeKey: strPtr("seller-x"),
				AsOf:     tc.asOf,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.matched, res != nil)
		})
	}
}

func TestResolveIgnoresInactiveRules(t *testing.T) {
	svc, db := setupService(t, clock.NewFakeClock(mar1))
	node := mustNode(t)

	insertRule(t, db, node, domain.Rule{
		Family:        domain.FamilyCommission,
		ScopeKey:      strPtr("seller-x"),
		Rate:          50,
		EffectiveFrom: jan1,
		IsActive:      false,
		CreatedAt:     jan1,
	})

	res, err := svc.Resolve(actorCtx(t), domain.ResolveRequest{
		Family:   domain.FamilyCommission,
		ScopeKey: strPtr("seller-x"),
	})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResolvePriorityBreaksTies(t *testing.T) {
	svc, db := setupService(t, clock.NewFakeClock(mar1))
	node := mustNode(t)

	insertRule(t, db, node, domain.Rule{
		Family:        domain.FamilyCommission,
		ScopeKey:      strPtr("seller-x"),
		Rate:          10,
		Priority:      1,
		EffectiveFrom: jan1,
		IsActive:      true,
		CreatedAt:     jan1,
	})
	winner := insertRule(t, db, node, domain.Rule{
		Family:        domain.FamilyCommission,
		ScopeKey:      strPtr("seller-x"),
		Rate:          12,
		Priority:      5,
		EffectiveFrom: jan1,
		IsActive:      true,
		CreatedAt:     jan1,
	})

	res, err := svc.Resolve(actorCtx(t), domain.ResolveRequest{
		Family:   domain.FamilyCommission,
		ScopeKey: strPtr("seller-x"),
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, winner.ID.String(), res.AppliedRule.ID)
	assert.Equal(t, 12.0, res.Rate)
}

func TestResolveEqualPriorityPrefersNewest(t *testing.T) {
	svc, db := setupService(t, clock.NewFakeClock(mar1))
	node := mustNode(t)

	insertRule(t, db, node, domain.Rule{
		Family:        domain.FamilyCommission,
		ScopeKey:      strPtr("seller-x"),
		Rate:          10,
		EffectiveFrom: jan1,
		IsActive:      true,
		CreatedAt:     jan1,
	})
	newest := insertRule(t, db, node, domain.Rule{
		Family:        domain.FamilyCommission,
		ScopeKey:      strPtr("seller-x"),
		Rate:          11,
		EffectiveFrom: jan1,
		IsActive:      true,
		CreatedAt:     jan1.Add(time.Hour),
	})

	res, err := svc.Resolve(actorCtx(t), domain.ResolveRequest{
		Family:   domain.FamilyCommission,
		ScopeKey: strPtr("seller-x"),
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, newest.ID.String(), res.AppliedRule.ID)
}

func TestResolveTaxRequiresCountryCode(t *testing.T) {
	svc, _ := setupService(t, clock.NewFakeClock(mar1))

	_, err := svc.Resolve(actorCtx(t), domain.ResolveRequest{
		Family: domain.FamilyTax,
	})
	verrs := &domain.ValidationErrors{}
	assert.ErrorAs(t, err, &verrs)
}

func TestResolveTaxNormalizesCountryCase(t *testing.T) {
	svc, _ := setupService(t, clock.NewFakeClock(mar1))
	ctx := actorCtx(t)

	created, err := svc.Create(ctx, domain.CreateRequest{
		Family:        domain.FamilyTax,
		Name:          "german vat",
		ScopeKey:      strPtr("DE"),
		Rate:          19,
		EffectiveFrom: jan1,
	})
	require.NoError(t, err)

	res, err := svc.Resolve(ctx, domain.ResolveRequest{
		Family:   domain.FamilyTax,
		ScopeKey: strPtr("de"),
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, created.ID, res.AppliedRule.ID)
	assert.Equal(t, 19.0, res.Rate)
}

func TestResolveDefaultsAsOfToNow(t *testing.T) {
	clk := clock.NewFakeClock(jan1.Add(-time.Hour))
	svc, _ := setupService(t, clk)
	ctx := actorCtx(t)

	_, err := svc.Create(ctx, commissionCreate(strPtr("seller-x"), nil, 10, jan1, nil))
	require.NoError(t, err)

	// Clock sits before the window: nothing governs "now".
	res, err := svc.Resolve(ctx, domain.ResolveRequest{
		Family:   domain.FamilyCommission,
		ScopeKey: strPtr("seller-x"),
	})
	require.NoError(t, err)
	assert.Nil(t, res)

	clk.Set(mar1)
	res, err = svc.Resolve(ctx, domain.ResolveRequest{
		Family:   domain.FamilyCommission,
		ScopeKey: strPtr("seller-x"),
	})
	require.NoError(t, err)
	assert.NotNil(t, res)
}
