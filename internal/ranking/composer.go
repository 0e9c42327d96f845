package ranking

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/railexchange-backend/pkg/enums"
)

// PlacementTier is the single placement a candidate is scored on.
type PlacementTier string

const (
	PlacementElite    PlacementTier = "elite"
	PlacementPremium  PlacementTier = "premium"
	PlacementFeatured PlacementTier = "featured"
	PlacementBoost    PlacementTier = "boost"
	PlacementNone     PlacementTier = "none"
)

// placements is ordered highest first; the first live one wins.
var placements = []struct {
	addOn  enums.AddOnType
	tier   PlacementTier
	weight int
}{
	{enums.AddOnPlacementElite, PlacementElite, 1000},
	{enums.AddOnPlacementPremium, PlacementPremium, 500},
	{enums.AddOnPlacementFeatured, PlacementFeatured, 250},
	{enums.AddOnPlacementBoost, PlacementBoost, 100},
}

var verificationWeights = map[enums.VerificationTier]int{
	enums.VerificationTierPriority: 60,
	enums.VerificationTierStandard: 40,
}

var bonuses = map[enums.AddOnType]int{
	enums.AddOnAIDescription: 15,
	enums.AddOnSpecSheet:     10,
	enums.AddOnVerifiedBadge: 5,
}

// AddOn is one add-on held by a candidate.
type AddOn struct {
	Type      enums.AddOnType   `json:"type"`
	Status    enums.AddOnStatus `json:"status"`
	ExpiresAt *time.Time        `json:"expiresAt,omitempty"`
}

// LiveAt ignores a stored active status once ExpiresAt has passed.
func (a AddOn) LiveAt(now time.Time) bool {
	if a.Status != enums.AddOnStatusActive {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// Candidate is a listing or contractor profile to place.
type Candidate struct {
	ID               uuid.UUID               `json:"id"`
	CreatedAt        time.Time               `json:"createdAt"`
	VerificationTier *enums.VerificationTier `json:"verificationTier,omitempty"`
	IsVerified       bool                    `json:"isVerified"`
	AddOns           []AddOn                 `json:"addOns"`
}

// Ranked is a candidate annotated with its score.
type Ranked struct {
	Candidate  Candidate     `json:"candidate"`
	Score      int           `json:"score"`
	Tier       PlacementTier `json:"tier"`
	IsVerified bool          `json:"isVerified"`
}

// Score computes one candidate's score and placement at now.
func Score(c Candidate, now time.Time) (int, PlacementTier) {
	live := map[enums.AddOnType]bool{}
	for _, a := range c.AddOns {
		if a.LiveAt(now) {
			live[a.Type] = true
		}
	}

	score := 0
	tier := PlacementNone
	for _, p := range placements {
		if live[p.addOn] {
			score += p.weight
			tier = p.tier
			break
		}
	}
	if c.IsVerified && c.VerificationTier != nil {
		score += verificationWeights[*c.VerificationTier]
	}
	for addOnType, bonus := range bonuses {
		if live[addOnType] {
			score += bonus
		}
	}
	return score, tier
}

// Compose scores candidates and returns them ordered by score desc, then
// CreatedAt desc, then ID asc. The input slice is not reordered.
func Compose(candidates []Candidate, now time.Time) []Ranked {
	out := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		score, tier := Score(c, now)
		out = append(out, Ranked{Candidate: c, Score: score, Tier: tier, IsVerified: c.IsVerified})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Candidate.CreatedAt.Equal(b.Candidate.CreatedAt) {
			return a.Candidate.CreatedAt.After(b.Candidate.CreatedAt)
		}
		return bytes.Compare(a.Candidate.ID[:], b.Candidate.ID[:]) < 0
	})
	return out
}
