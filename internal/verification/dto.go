package verification

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
)

// DocumentDTO is a stored document reference.
type DocumentDTO struct {
	Type       enums.DocumentType `json:"type"`
	StorageKey string             `json:"storageKey"`
	FileName   string             `json:"fileName"`
	MimeType   string             `json:"mimeType"`
	SizeBytes  int64              `json:"sizeBytes"`
	UploadedAt time.Time          `json:"uploadedAt"`
}

// AutomatedReviewDTO exposes screening evidence.
type AutomatedReviewDTO struct {
	Status          enums.AutomatedReviewStatus `json:"status"`
	ConfidenceScore int                         `json:"confidenceScore"`
	Flags           []string                    `json:"flags"`
	FraudSignals    []string                    `json:"fraudSignals"`
	ExtractedFields map[string]any              `json:"extractedFields,omitempty"`
	ScreenedAt      *time.Time                  `json:"screenedAt,omitempty"`
}

// HumanReviewDTO exposes the admin decision.
type HumanReviewDTO struct {
	Status          enums.HumanReviewStatus `json:"status"`
	ReviewerID      *uuid.UUID              `json:"reviewerId,omitempty"`
	ReviewedAt      *time.Time              `json:"reviewedAt,omitempty"`
	Notes           *string                 `json:"notes,omitempty"`
	RejectionReason *string                 `json:"rejectionReason,omitempty"`
}

// RecordDTO is the transport shape of a verification record.
type RecordDTO struct {
	ID              uuid.UUID                `json:"id"`
	OwnerID         uuid.UUID                `json:"ownerId"`
	Path            enums.VerificationPath   `json:"path"`
	Status          enums.VerificationStatus `json:"status"`
	Documents       []DocumentDTO            `json:"documents"`
	AutomatedReview AutomatedReviewDTO       `json:"automatedReview"`
	HumanReview     HumanReviewDTO           `json:"humanReview"`
	Tier            *enums.VerificationTier  `json:"tier,omitempty"`
	ApprovedAt      *time.Time               `json:"approvedAt,omitempty"`
	ExpiresAt       *time.Time               `json:"expiresAt,omitempty"`
	CreatedAt       time.Time                `json:"createdAt"`
	UpdatedAt       time.Time                `json:"updatedAt"`
}

// HistoryDTO is one audit row.
type HistoryDTO struct {
	FromStatus *enums.VerificationStatus `json:"fromStatus,omitempty"`
	Status     enums.VerificationStatus  `json:"status"`
	ChangedAt  time.Time                 `json:"changedAt"`
	ChangedBy  string                    `json:"changedBy"`
	Reason     *string                   `json:"reason,omitempty"`
}

// ToDTO maps a record for transport. The payment reference stays internal.
func ToDTO(rec *models.VerificationRecord) RecordDTO {
	docs := make([]DocumentDTO, 0, len(rec.Documents))
	for _, doc := range rec.Documents {
		docs = append(docs, DocumentDTO{
			Type:       doc.Type,
			StorageKey: doc.StorageKey,
			FileName:   doc.FileName,
			MimeType:   doc.MimeType,
			SizeBytes:  doc.SizeBytes,
			UploadedAt: doc.UploadedAt,
		})
	}
	flags := []string(rec.Flags)
	if flags == nil {
		flags = []string{}
	}
	fraud := []string(rec.FraudSignals)
	if fraud == nil {
		fraud = []string{}
	}
	return RecordDTO{
		ID:        rec.ID,
		OwnerID:   rec.OwnerID,
		Path:      rec.Path,
		Status:    rec.Status,
		Documents: docs,
		AutomatedReview: AutomatedReviewDTO{
			Status:          rec.AutomatedStatus,
			ConfidenceScore: rec.ConfidenceScore,
			Flags:           flags,
			FraudSignals:    fraud,
			ExtractedFields: rec.ExtractedFields,
			ScreenedAt:      rec.ScreenedAt,
		},
		HumanReview: HumanReviewDTO{
			Status:          rec.HumanStatus,
			ReviewerID:      rec.ReviewerID,
			ReviewedAt:      rec.ReviewedAt,
			Notes:           rec.ReviewNotes,
			RejectionReason: rec.RejectionReason,
		},
		Tier:       rec.Tier,
		ApprovedAt: rec.ApprovedAt,
		ExpiresAt:  rec.ExpiresAt,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

// HistoryToDTO maps audit rows for transport.
func HistoryToDTO(rows []models.VerificationStatusHistory) []HistoryDTO {
	out := make([]HistoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, HistoryDTO{
			FromStatus: row.FromStatus,
			Status:     row.Status,
			ChangedAt:  row.ChangedAt,
			ChangedBy:  row.ChangedBy,
			Reason:     row.Reason,
		})
	}
	return out
}
