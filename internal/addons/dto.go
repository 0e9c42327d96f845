package addons

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	stripeclient "github.com/angelmondragon/railexchange-backend/pkg/stripe"
)

// PurchaseDTO is the API view of an add-on purchase.
type PurchaseDTO struct {
	ID          uuid.UUID         `json:"id"`
	AddOnType   enums.AddOnType   `json:"addOnType"`
	Label       string            `json:"label"`
	Status      enums.AddOnStatus `json:"status"`
	TargetID    *uuid.UUID        `json:"targetId,omitempty"`
	PurchasedAt time.Time         `json:"purchasedAt"`
	ExpiresAt   *time.Time        `json:"expiresAt,omitempty"`
	CanceledAt  *time.Time        `json:"canceledAt,omitempty"`
	Permanent   bool              `json:"permanent"`
	AmountPaid  string            `json:"amountPaid"`
	Currency    string            `json:"currency"`
}

func ToDTO(row models.AddOnPurchase) PurchaseDTO {
	return PurchaseDTO{
		ID:          row.ID,
		AddOnType:   row.AddOnType,
		Label:       Label(row.AddOnType),
		Status:      row.Status,
		TargetID:    row.TargetID,
		PurchasedAt: row.PurchasedAt,
		ExpiresAt:   row.ExpiresAt,
		CanceledAt:  row.CanceledAt,
		Permanent:   row.ExpiresAt == nil,
		AmountPaid:  row.AmountPaid.StringFixed(stripeclient.MinorUnitExponent(row.Currency)),
		Currency:    row.Currency,
	}
}

func ToDTOs(rows []models.AddOnPurchase) []PurchaseDTO {
	out := make([]PurchaseDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToDTO(row))
	}
	return out
}
