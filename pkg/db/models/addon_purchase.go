package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/pkg/enums"
)

// AddOnPurchase is one purchased add-on instance. Rows are never deleted.
type AddOnPurchase struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID     uuid.UUID         `gorm:"column:owner_id;type:uuid;not null;index"`
	TargetID    *uuid.UUID        `gorm:"column:target_id;type:uuid"`
	AddOnType   enums.AddOnType   `gorm:"column:addon_type;type:addon_type;not null"`
	Status      enums.AddOnStatus `gorm:"column:status;type:addon_status;not null;default:'active'"`
	PurchasedAt time.Time         `gorm:"column:purchased_at;not null"`
	ExpiresAt   *time.Time        `gorm:"column:expires_at"`
	CanceledAt  *time.Time        `gorm:"column:canceled_at"`
	PaymentRef  *string           `gorm:"column:payment_ref;uniqueIndex"`
	AmountPaid  decimal.Decimal   `gorm:"column:amount_paid;type:numeric(14,3);not null;default:0"`
	Currency    string            `gorm:"column:currency;not null;default:'usd'"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (AddOnPurchase) TableName() string {
	return "addon_purchases"
}

func (a *AddOnPurchase) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// LiveAt reports whether the purchase counts at instant now, regardless of
// whether a sweep has persisted its expiry yet.
func (a AddOnPurchase) LiveAt(now time.Time) bool {
	if a.Status != enums.AddOnStatusActive {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}
