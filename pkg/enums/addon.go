package enums

// AddOnType maps to the addon_type enum in Postgres.
type AddOnType string

const (
	AddOnPlacementElite    AddOnType = "placement_elite"
	AddOnPlacementPremium  AddOnType = "placement_premium"
	AddOnPlacementFeatured AddOnType = "placement_featured"
	AddOnPlacementBoost    AddOnType = "placement_boost"
	AddOnAnalytics         AddOnType = "analytics"
	AddOnVerifiedBadge     AddOnType = "verified_badge"
	AddOnAIDescription     AddOnType = "ai_description"
	AddOnSpecSheet         AddOnType = "spec_sheet"
)

var validAddOnTypes = set[AddOnType]{
	AddOnPlacementElite,
	AddOnPlacementPremium,
	AddOnPlacementFeatured,
	AddOnPlacementBoost,
	AddOnAnalytics,
	AddOnVerifiedBadge,
	AddOnAIDescription,
	AddOnSpecSheet,
}

func (a AddOnType) String() string {
	return string(a)
}

func (a AddOnType) IsValid() bool {
	return validAddOnTypes.has(a)
}

// IsPlacement reports whether the add-on is a ranking placement tier.
func (a AddOnType) IsPlacement() bool {
	switch a {
	case AddOnPlacementElite, AddOnPlacementPremium, AddOnPlacementFeatured, AddOnPlacementBoost:
		return true
	default:
		return false
	}
}

// IsPermanent reports whether purchases of this type never lapse.
func (a AddOnType) IsPermanent() bool {
	return a == AddOnAIDescription || a == AddOnSpecSheet
}

// ParseAddOnType converts raw input into AddOnType.
func ParseAddOnType(value string) (AddOnType, error) {
	return validAddOnTypes.parse("add-on type", value)
}

// AddOnStatus maps to the addon_status enum in Postgres.
type AddOnStatus string

const (
	AddOnStatusActive   AddOnStatus = "active"
	AddOnStatusExpired  AddOnStatus = "expired"
	AddOnStatusCanceled AddOnStatus = "canceled"
)

func (s AddOnStatus) String() string {
	return string(s)
}

func (s AddOnStatus) IsValid() bool {
	switch s {
	case AddOnStatusActive, AddOnStatusExpired, AddOnStatusCanceled:
		return true
	default:
		return false
	}
}
