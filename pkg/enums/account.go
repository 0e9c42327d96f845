package enums

// AccountTier is the subscription tier stored on the user.
type AccountTier string

const (
	AccountTierBuyer        AccountTier = "buyer"
	AccountTierBasic        AccountTier = "basic"
	AccountTierProfessional AccountTier = "professional"
)

var validAccountTiers = set[AccountTier]{
	AccountTierBuyer,
	AccountTierBasic,
	AccountTierProfessional,
}

func (a AccountTier) String() string {
	return string(a)
}

func (a AccountTier) IsValid() bool {
	return validAccountTiers.has(a)
}

// ParseAccountTier converts raw input into AccountTier.
func ParseAccountTier(value string) (AccountTier, error) {
	return validAccountTiers.parse("account tier", value)
}

// Role is the coarse role embedded in access tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) String() string {
	return string(r)
}

var validRoles = set[Role]{RoleUser, RoleAdmin}

func (r Role) IsValid() bool { return validRoles.has(r) }
