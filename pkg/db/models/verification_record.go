package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/pkg/enums"
)

// VerificationDocument is one uploaded document reference; one per type.
type VerificationDocument struct {
	Type       enums.DocumentType `json:"type"`
	StorageKey string             `json:"storage_key"`
	FileName   string             `json:"file_name"`
	MimeType   string             `json:"mime_type"`
	SizeBytes  int64              `json:"size_bytes"`
	UploadedAt time.Time          `json:"uploaded_at"`
}

// DocumentSignals are facts extracted from a document by an upstream reader.
type DocumentSignals struct {
	ExtractedName string     `json:"extracted_name,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	TamperScore   *float64   `json:"tamper_score,omitempty"`
}

// DeclaredDetails holds the owner supplied fields screened alongside documents.
type DeclaredDetails struct {
	LegalName    string                                 `json:"legal_name,omitempty"`
	BusinessName string                                 `json:"business_name,omitempty"`
	TaxID        string                                 `json:"tax_id,omitempty"`
	Signals      map[enums.DocumentType]DocumentSignals `json:"signals,omitempty"`
}

// VerificationRecord tracks one owner's progress through a verification path.
type VerificationRecord struct {
	ID      uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID uuid.UUID                `gorm:"column:owner_id;type:uuid;not null;uniqueIndex:ux_verification_owner_path"`
	Path    enums.VerificationPath   `gorm:"column:path;type:verification_path;not null;uniqueIndex:ux_verification_owner_path"`
	Status  enums.VerificationStatus `gorm:"column:status;type:verification_status;not null;default:'draft'"`

	Documents datatypes.JSONSlice[VerificationDocument] `gorm:"column:documents;type:jsonb;not null"`
	Details   datatypes.JSONType[DeclaredDetails]       `gorm:"column:declared_details;type:jsonb;not null"`

	AutomatedStatus enums.AutomatedReviewStatus `gorm:"column:automated_status;type:automated_review_status;not null;default:'pending'"`
	ConfidenceScore int                         `gorm:"column:confidence_score;not null;default:0"`
	Flags           datatypes.JSONSlice[string] `gorm:"column:flags;type:jsonb;not null"`
	FraudSignals    datatypes.JSONSlice[string] `gorm:"column:fraud_signals;type:jsonb;not null"`
	ExtractedFields datatypes.JSONMap           `gorm:"column:extracted_fields;type:jsonb"`
	ScreenedAt      *time.Time                  `gorm:"column:screened_at"`

	HumanStatus     enums.HumanReviewStatus `gorm:"column:human_status;type:human_review_status;not null;default:'pending'"`
	ReviewerID      *uuid.UUID              `gorm:"column:reviewer_id;type:uuid"`
	ReviewedAt      *time.Time              `gorm:"column:reviewed_at"`
	ReviewNotes     *string                 `gorm:"column:review_notes"`
	RejectionReason *string                 `gorm:"column:rejection_reason"`

	Tier       *enums.VerificationTier `gorm:"column:tier;type:verification_tier"`
	PaymentRef *string                 `gorm:"column:payment_ref"`
	ApprovedAt *time.Time              `gorm:"column:approved_at"`
	ExpiresAt  *time.Time              `gorm:"column:expires_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (VerificationRecord) TableName() string {
	return "verification_records"
}

func (r *VerificationRecord) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// Document returns the stored document of the given type, if any.
func (r *VerificationRecord) Document(docType enums.DocumentType) (VerificationDocument, bool) {
	for _, doc := range r.Documents {
		if doc.Type == docType {
			return doc, true
		}
	}
	return VerificationDocument{}, false
}

// VerificationStatusHistory is the append-only audit log for a record.
type VerificationStatusHistory struct {
	ID         uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	RecordID   uuid.UUID                 `gorm:"column:record_id;type:uuid;not null;index"`
	FromStatus *enums.VerificationStatus `gorm:"column:from_status;type:verification_status"`
	Status     enums.VerificationStatus  `gorm:"column:status;type:verification_status;not null"`
	ChangedAt  time.Time                 `gorm:"column:changed_at;not null"`
	ChangedBy  string                    `gorm:"column:changed_by;not null"`
	Reason     *string                   `gorm:"column:reason"`
}

func (VerificationStatusHistory) TableName() string {
	return "verification_status_history"
}

func (h *VerificationStatusHistory) BeforeCreate(*gorm.DB) error {
	ensureID(&h.ID)
	return nil
}
