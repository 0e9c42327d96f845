package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
)

// UserDTO is the transport shape of a user and its capability snapshot.
type UserDTO struct {
	ID                           uuid.UUID                 `json:"id"`
	Email                        string                    `json:"email"`
	DisplayName                  string                    `json:"display_name"`
	IsSeller                     bool                      `json:"is_seller"`
	IsContractor                 bool                      `json:"is_contractor"`
	IsCompany                    bool                      `json:"is_company"`
	AccountTier                  enums.AccountTier         `json:"account_tier"`
	SellerVerificationStatus     *enums.VerificationStatus `json:"seller_verification_status,omitempty"`
	SellerVerifiedExpiresAt      *time.Time                `json:"seller_verified_expires_at,omitempty"`
	ContractorVerificationStatus *enums.VerificationStatus `json:"contractor_verification_status,omitempty"`
	ContractorVerifiedExpiresAt  *time.Time                `json:"contractor_verified_expires_at,omitempty"`
	CreatedAt                    time.Time                 `json:"created_at"`
	UpdatedAt                    time.Time                 `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	DisplayName  string
	IsSeller     bool
	IsContractor bool
	IsCompany    bool
	IsAdmin      bool
	AccountTier  enums.AccountTier
}

// ToModel converts the DTO into a GORM model.
func (d CreateUserDTO) ToModel() *models.User {
	tier := d.AccountTier
	if tier == "" {
		tier = enums.AccountTierBuyer
	}
	return &models.User{
		Email:        strings.ToLower(strings.TrimSpace(d.Email)),
		DisplayName:  strings.TrimSpace(d.DisplayName),
		IsSeller:     d.IsSeller,
		IsContractor: d.IsContractor,
		IsCompany:    d.IsCompany,
		IsAdmin:      d.IsAdmin,
		AccountTier:  tier,
	}
}

// FromModel maps a user model to its DTO.
func FromModel(u *models.User) UserDTO {
	if u == nil {
		return UserDTO{}
	}
	return UserDTO{
		ID:                           u.ID,
		Email:                        u.Email,
		DisplayName:                  u.DisplayName,
		IsSeller:                     u.IsSeller,
		IsContractor:                 u.IsContractor,
		IsCompany:                    u.IsCompany,
		AccountTier:                  u.AccountTier,
		SellerVerificationStatus:     u.SellerVerificationStatus,
		SellerVerifiedExpiresAt:      u.SellerVerifiedExpiresAt,
		ContractorVerificationStatus: u.ContractorVerificationStatus,
		ContractorVerifiedExpiresAt:  u.ContractorVerifiedExpiresAt,
		CreatedAt:                    u.CreatedAt,
		UpdatedAt:                    u.UpdatedAt,
	}
}
