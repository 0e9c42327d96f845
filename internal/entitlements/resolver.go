package entitlements

import (
	"time"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
)

// AnalyticsSource names the rule that granted analytics.
type AnalyticsSource string

const (
	AnalyticsFromProfessionalTier AnalyticsSource = "professional_tier"
	AnalyticsFromAddOn            AnalyticsSource = "addon"
)

// Profile is the role part of a user.
type Profile struct {
	IsSeller     bool
	IsContractor bool
	IsCompany    bool
	AccountTier  enums.AccountTier
}

// BuyerOnly is true for accounts with no selling or contracting role on the buyer tier.
func (p Profile) BuyerOnly() bool {
	return !p.IsSeller && !p.IsContractor && !p.IsCompany && p.AccountTier == enums.AccountTierBuyer
}

func (p Profile) contracts() bool {
	return p.IsContractor || p.IsCompany
}

// VerificationState is the part of a verification record entitlements read.
type VerificationState struct {
	Path      enums.VerificationPath
	Status    enums.VerificationStatus
	ExpiresAt *time.Time
}

// LiveAt reports whether the verification is active and unexpired at now.
func (v VerificationState) LiveAt(now time.Time) bool {
	return v.Status == enums.VerificationStatusActive && v.ExpiresAt != nil && now.Before(*v.ExpiresAt)
}

// AddOn is the part of an add-on purchase entitlements read.
type AddOn struct {
	Type      enums.AddOnType
	Status    enums.AddOnStatus
	ExpiresAt *time.Time
}

// LiveAt ignores a stored active status once ExpiresAt has passed.
func (a AddOn) LiveAt(now time.Time) bool {
	if a.Status != enums.AddOnStatusActive {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// Capabilities is the derived capability set other components gate on.
type Capabilities struct {
	CanSell             bool            `json:"canSell"`
	CanListAsContractor bool            `json:"canListAsContractor"`
	HasAnalytics        bool            `json:"hasAnalytics"`
	AnalyticsDenied     bool            `json:"analyticsDenied"`
	VerifiedBadgeActive bool            `json:"verifiedBadgeActive"`
	AnalyticsSource     AnalyticsSource `json:"analyticsSource,omitempty"`
}

// Resolve evaluates capabilities at now. It reads its inputs only.
func Resolve(profile Profile, verifications []VerificationState, addons []AddOn, now time.Time) Capabilities {
	sellerVerified := verifiedFor(verifications, enums.VerificationPathSeller, now)
	contractorVerified := verifiedFor(verifications, enums.VerificationPathContractor, now)
	professional := profile.contracts() && profile.AccountTier == enums.AccountTierProfessional

	caps := Capabilities{
		CanSell:             profile.IsSeller && sellerVerified,
		CanListAsContractor: profile.contracts() && (contractorVerified || professional),
		VerifiedBadgeActive: sellerVerified || contractorVerified,
	}

	// First match wins.
	switch {
	case profile.BuyerOnly():
		caps.AnalyticsDenied = true
	case professional:
		caps.HasAnalytics = true
		caps.AnalyticsSource = AnalyticsFromProfessionalTier
	case profile.IsSeller && sellerVerified && hasLive(addons, enums.AddOnAnalytics, now):
		caps.HasAnalytics = true
		caps.AnalyticsSource = AnalyticsFromAddOn
	}
	return caps
}

func verifiedFor(states []VerificationState, path enums.VerificationPath, now time.Time) bool {
	for _, state := range states {
		if state.Path == path && state.LiveAt(now) {
			return true
		}
	}
	return false
}

func hasLive(addons []AddOn, addOnType enums.AddOnType, now time.Time) bool {
	for _, a := range addons {
		if a.Type == addOnType && a.LiveAt(now) {
			return true
		}
	}
	return false
}

// ProfileFromUser projects the role columns of u.
func ProfileFromUser(u *models.User) Profile {
	if u == nil {
		return Profile{AccountTier: enums.AccountTierBuyer}
	}
	return Profile{
		IsSeller:     u.IsSeller,
		IsContractor: u.IsContractor,
		IsCompany:    u.IsCompany,
		AccountTier:  u.AccountTier,
	}
}

func StatesFromRecords(recs []models.VerificationRecord) []VerificationState {
	out := make([]VerificationState, 0, len(recs))
	for _, rec := range recs {
		out = append(out, VerificationState{Path: rec.Path, Status: rec.Status, ExpiresAt: rec.ExpiresAt})
	}
	return out
}

func AddOnsFromPurchases(rows []models.AddOnPurchase) []AddOn {
	out := make([]AddOn, 0, len(rows))
	for _, row := range rows {
		out = append(out, AddOn{Type: row.AddOnType, Status: row.Status, ExpiresAt: row.ExpiresAt})
	}
	return out
}
