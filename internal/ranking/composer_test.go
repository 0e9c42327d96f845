package ranking

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/railexchange-backend/pkg/enums"
)

var now = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

func live(t enums.AddOnType) AddOn {
	exp := now.Add(24 * time.Hour)
	return AddOn{Type: t, Status: enums.AddOnStatusActive, ExpiresAt: &exp}
}

func tierPtr(t enums.VerificationTier) *enums.VerificationTier { return &t }

func TestScoreUsesHighestPlacementOnly(t *testing.T) {
	c := Candidate{AddOns: []AddOn{
		live(enums.AddOnPlacementBoost),
		live(enums.AddOnPlacementElite),
		live(enums.AddOnPlacementFeatured),
	}}
	score, tier := Score(c, now)
	assert.Equal(t, 1000, score)
	assert.Equal(t, PlacementElite, tier)
}

func TestScoreStacksBonusesAndVerification(t *testing.T) {
	c := Candidate{
		IsVerified:       true,
		VerificationTier: tierPtr(enums.VerificationTierPriority),
		AddOns: []AddOn{
			live(enums.AddOnPlacementPremium),
			live(enums.AddOnAIDescription),
			live(enums.AddOnSpecSheet),
			live(enums.AddOnVerifiedBadge),
		},
	}
	score, tier := Score(c, now)
	assert.Equal(t, 500+60+15+10+5, score)
	assert.Equal(t, PlacementPremium, tier)
}

func TestScoreIgnoresTierWhenUnverified(t *testing.T) {
	c := Candidate{VerificationTier: tierPtr(enums.VerificationTierStandard)}
	score, tier := Score(c, now)
	assert.Zero(t, score)
	assert.Equal(t, PlacementNone, tier)
}

func TestScoreExpiredAddOnsContributeNothing(t *testing.T) {
	past := now.Add(-time.Hour)
	c := Candidate{AddOns: []AddOn{
		{Type: enums.AddOnPlacementElite, Status: enums.AddOnStatusActive, ExpiresAt: &past},
		{Type: enums.AddOnPlacementPremium, Status: enums.AddOnStatusExpired},
		{Type: enums.AddOnSpecSheet, Status: enums.AddOnStatusCanceled},
		{Type: enums.AddOnAIDescription, Status: enums.AddOnStatusActive, ExpiresAt: &now},
		live(enums.AddOnPlacementBoost),
	}}
	score, tier := Score(c, now)
	assert.Equal(t, 100, score)
	assert.Equal(t, PlacementBoost, tier)
}

func TestScorePermanentBonus(t *testing.T) {
	c := Candidate{AddOns: []AddOn{{Type: enums.AddOnSpecSheet, Status: enums.AddOnStatusActive}}}
	score, _ := Score(c, now)
	assert.Equal(t, 10, score)
}

func TestComposeOrdering(t *testing.T) {
	older := now.Add(-48 * time.Hour)
	newer := now.Add(-time.Hour)
	elite := Candidate{ID: uuid.New(), CreatedAt: older, AddOns: []AddOn{live(enums.AddOnPlacementElite)}}
	boostOld := Candidate{ID: uuid.New(), CreatedAt: older, AddOns: []AddOn{live(enums.AddOnPlacementBoost)}}
	boostNew := Candidate{ID: uuid.New(), CreatedAt: newer, AddOns: []AddOn{live(enums.AddOnPlacementBoost)}}
	plain := Candidate{ID: uuid.New(), CreatedAt: newer}

	ranked := Compose([]Candidate{plain, boostOld, elite, boostNew}, now)
	require.Len(t, ranked, 4)
	assert.Equal(t, elite.ID, ranked[0].Candidate.ID)
	assert.Equal(t, boostNew.ID, ranked[1].Candidate.ID)
	assert.Equal(t, boostOld.ID, ranked[2].Candidate.ID)
	assert.Equal(t, plain.ID, ranked[3].Candidate.ID)
	assert.Equal(t, PlacementNone, ranked[3].Tier)
}

func TestComposeTiesAreReproducible(t *testing.T) {
	a := Candidate{ID: uuid.MustParse("00000000-0000-0000-0000-0000000000aa"), CreatedAt: now}
	b := Candidate{ID: uuid.MustParse("00000000-0000-0000-0000-0000000000bb"), CreatedAt: now}
	c := Candidate{ID: uuid.MustParse("00000000-0000-0000-0000-0000000000cc"), CreatedAt: now}

	orders := [][]Candidate{{a, b, c}, {c, b, a}, {b, c, a}}
	for _, input := range orders {
		ranked := Compose(input, now)
		require.Len(t, ranked, 3)
		assert.Equal(t, []uuid.UUID{a.ID, b.ID, c.ID}, []uuid.UUID{ranked[0].Candidate.ID, ranked[1].Candidate.ID, ranked[2].Candidate.ID})
	}
}

func TestComposeLeavesInputOrder(t *testing.T) {
	input := []Candidate{
		{ID: uuid.New(), CreatedAt: now},
		{ID: uuid.New(), CreatedAt: now, AddOns: []AddOn{live(enums.AddOnPlacementElite)}},
	}
	first := input[0].ID
	Compose(input, now)
	assert.Equal(t, first, input[0].ID)
}

func TestComposeEmpty(t *testing.T) {
	assert.Empty(t, Compose(nil, now))
}
