package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/pkg/enums"
)

// User carries role flags plus a denormalized mirror of verification state.
// The verification columns are a cache; verification_records is authoritative.
type User struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Email        string            `gorm:"column:email;type:text;not null;uniqueIndex"`
	DisplayName  string            `gorm:"column:display_name;not null"`
	IsSeller     bool              `gorm:"column:is_seller;not null;default:false"`
	IsContractor bool              `gorm:"column:is_contractor;not null;default:false"`
	IsCompany    bool              `gorm:"column:is_company;not null;default:false"`
	IsAdmin      bool              `gorm:"column:is_admin;not null;default:false"`
	AccountTier  enums.AccountTier `gorm:"column:account_tier;type:account_tier;not null;default:'buyer'"`

	SellerVerificationStatus     *enums.VerificationStatus `gorm:"column:seller_verification_status;type:verification_status"`
	SellerVerifiedExpiresAt      *time.Time                `gorm:"column:seller_verified_expires_at"`
	ContractorVerificationStatus *enums.VerificationStatus `gorm:"column:contractor_verification_status;type:verification_status"`
	ContractorVerifiedExpiresAt  *time.Time                `gorm:"column:contractor_verified_expires_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
