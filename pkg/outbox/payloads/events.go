package payloads

import (
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	"github.com/google/uuid"
)

// VerificationStatusChangedEvent is emitted for every persisted transition.
type VerificationStatusChangedEvent struct {
	RecordID   uuid.UUID                `json:"record_id"`
	OwnerID    uuid.UUID                `json:"owner_id"`
	Path       enums.VerificationPath   `json:"path"`
	FromStatus enums.VerificationStatus `json:"from_status"`
	ToStatus   enums.VerificationStatus `json:"to_status"`
	Tier       *enums.VerificationTier  `json:"tier,omitempty"`
	ChangedBy  string                   `json:"changed_by"`
	Reason     string                   `json:"reason,omitempty"`
	ChangedAt  time.Time                `json:"changed_at"`
	ExpiresAt  *time.Time               `json:"expires_at,omitempty"`
}

// VerificationRenewalDueEvent warns the owner before an active record lapses.
type VerificationRenewalDueEvent struct {
	RecordID      uuid.UUID              `json:"record_id"`
	OwnerID       uuid.UUID              `json:"owner_id"`
	Path          enums.VerificationPath `json:"path"`
	ExpiresAt     time.Time              `json:"expires_at"`
	DaysRemaining int                    `json:"days_remaining"`
}

// AddOnPurchasedEvent is emitted once a paid add-on row is created.
type AddOnPurchasedEvent struct {
	PurchaseID uuid.UUID       `json:"purchase_id"`
	OwnerID    uuid.UUID       `json:"owner_id"`
	AddOnType  enums.AddOnType `json:"addon_type"`
	ExpiresAt  *time.Time      `json:"expires_at,omitempty"`
	PaymentRef string          `json:"payment_ref,omitempty"`
}

// AddOnExpiredEvent is emitted when the sweep persists an expiry.
type AddOnExpiredEvent struct {
	PurchaseID uuid.UUID       `json:"purchase_id"`
	OwnerID    uuid.UUID       `json:"owner_id"`
	AddOnType  enums.AddOnType `json:"addon_type"`
	ExpiredAt  time.Time       `json:"expired_at"`
}

// NotificationRequestedEvent asks the delivery collaborator to notify an owner.
type NotificationRequestedEvent struct {
	NotificationID uuid.UUID              `json:"notification_id"`
	OwnerID        uuid.UUID              `json:"owner_id"`
	Kind           enums.NotificationType `json:"kind"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Link           string                 `json:"link,omitempty"`
}

var errOwnerRequired = errors.New("owner_id is required")

func (e *VerificationStatusChangedEvent) Validate() error {
	switch {
	case e.RecordID == uuid.Nil:
		return errors.New("record_id is required")
	case e.OwnerID == uuid.Nil:
		return errOwnerRequired
	case !e.ToStatus.IsValid():
		return fmt.Errorf("invalid to_status %q", e.ToStatus)
	}
	return nil
}

func (e *VerificationRenewalDueEvent) Validate() error {
	if e.RecordID == uuid.Nil {
		return errors.New("record_id is required")
	}
	if e.OwnerID == uuid.Nil {
		return errOwnerRequired
	}
	return nil
}

func (e *AddOnPurchasedEvent) Validate() error {
	if e.PurchaseID == uuid.Nil {
		return errors.New("purchase_id is required")
	}
	if e.OwnerID == uuid.Nil {
		return errOwnerRequired
	}
	return nil
}

func (e *AddOnExpiredEvent) Validate() error {
	if e.PurchaseID == uuid.Nil {
		return errors.New("purchase_id is required")
	}
	if e.OwnerID == uuid.Nil {
		return errOwnerRequired
	}
	return nil
}

func (e *NotificationRequestedEvent) Validate() error {
	if e.OwnerID == uuid.Nil {
		return errOwnerRequired
	}
	if e.Kind == "" {
		return errors.New("kind is required")
	}
	return nil
}
