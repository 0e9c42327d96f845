package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/railexchange-backend/api/responses"
	"github.com/angelmondragon/railexchange-backend/api/validators"
	"github.com/angelmondragon/railexchange-backend/internal/checkout"
	"github.com/angelmondragon/railexchange-backend/internal/verification"
	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

// VerificationOwnerService is the owner-facing slice of the verification pipeline.
type VerificationOwnerService interface {
	RequestUpload(ctx context.Context, in verification.RequestUploadInput) (*verification.UploadTarget, error)
	DeclareDetails(ctx context.Context, ownerID uuid.UUID, path enums.VerificationPath, in verification.DetailsInput) (*models.VerificationRecord, error)
	Submit(ctx context.Context, ownerID uuid.UUID, path enums.VerificationPath) (*models.VerificationRecord, error)
	Restart(ctx context.Context, ownerID uuid.UUID, path enums.VerificationPath) (*models.VerificationRecord, error)
	SelectTier(ctx context.Context, ownerID uuid.UUID, path enums.VerificationPath, tier string) (*models.VerificationRecord, error)
	Get(ctx context.Context, ownerID uuid.UUID, path enums.VerificationPath) (*models.VerificationRecord, error)
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.VerificationRecord, error)
}

// VerificationCheckoutService opens hosted payment for a tier.
type VerificationCheckoutService interface {
	CreateVerificationCheckout(ctx context.Context, ownerID uuid.UUID, path enums.VerificationPath) (*checkout.Session, error)
}

type ownerPathHandler func(w http.ResponseWriter, r *http.Request, ownerID uuid.UUID, path enums.VerificationPath)

// withOwnerPath resolves the caller and the {path} segment before calling next.
func withOwnerPath(available bool, logg *logger.Logger, next ownerPathHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !available {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verification service unavailable"))
			return
		}
		ownerID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		path, err := pathParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next(w, r, ownerID, path)
	}
}

// ListMyVerifications returns every record the caller owns, one per path.
func ListMyVerifications(svc VerificationOwnerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verification service unavailable"))
			return
		}
		ownerID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListForOwner(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]verification.RecordDTO, 0, len(rows))
		for i := range rows {
			out = append(out, verification.ToDTO(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// GetMyVerification returns the caller's record for one path.
func GetMyVerification(svc VerificationOwnerService, logg *logger.Logger) http.HandlerFunc {
	return withOwnerPath(svc != nil, logg, func(w http.ResponseWriter, r *http.Request, ownerID uuid.UUID, path enums.VerificationPath) {
		rec, err := svc.Get(r.Context(), ownerID, path)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, verification.ToDTO(rec))
	})
}

type uploadRequest struct {
	DocumentType string `json:"documentType" validate:"required"`
	FileName     string `json:"fileName" validate:"required,max=255"`
	MimeType     string `json:"mimeType" validate:"required"`
	SizeBytes    int64  `json:"sizeBytes" validate:"required,min=1"`
}

// RequestDocumentUpload registers a document slot and returns a signed write URL.
func RequestDocumentUpload(svc VerificationOwnerService, logg *logger.Logger) http.HandlerFunc {
	return withOwnerPath(svc != nil, logg, func(w http.ResponseWriter, r *http.Request, ownerID uuid.UUID, path enums.VerificationPath) {
		var body uploadRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := svc.RequestUpload(r.Context(), verification.RequestUploadInput{
			OwnerID:      ownerID,
			Path:         path,
			DocumentType: body.DocumentType,
			FileName:     validators.SanitizeString(body.FileName, 255),
			MimeType:     strings.TrimSpace(body.MimeType),
			SizeBytes:    body.SizeBytes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, target)
	})
}

type detailsRequest struct {
	LegalName        string               `json:"legalName" validate:"omitempty,max=255"`
	BusinessName     string               `json:"businessName" validate:"omitempty,max=255"`
	TaxID            string               `json:"taxId" validate:"omitempty,max=64"`
	DocumentExpiries map[string]time.Time `json:"documentExpiries"`
}

func (d detailsRequest) toInput() (verification.DetailsInput, error) {
	in := verification.DetailsInput{
		LegalName:    validators.SanitizeString(d.LegalName, 255),
		BusinessName: validators.SanitizeString(d.BusinessName, 255),
		TaxID:        validators.SanitizeString(d.TaxID, 64),
	}
	if len(d.DocumentExpiries) == 0 {
		return in, nil
	}
	in.DocumentExpiries = make(map[enums.DocumentType]time.Time, len(d.DocumentExpiries))
	for key, expiry := range d.DocumentExpiries {
		docType, err := enums.ParseDocumentType(key)
		if err != nil {
			return verification.DetailsInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid document expiry key").
				WithDetails(map[string]any{"documentType": key})
		}
		in.DocumentExpiries[docType] = expiry.UTC()
	}
	return in, nil
}

// DeclareVerificationDetails records the owner's declared identity fields.
func DeclareVerificationDetails(svc VerificationOwnerService, logg *logger.Logger) http.HandlerFunc {
	return withOwnerPath(svc != nil, logg, func(w http.ResponseWriter, r *http.Request, ownerID uuid.UUID, path enums.VerificationPath) {
		var body detailsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		in, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rec, err := svc.DeclareDetails(r.Context(), ownerID, path, in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, verification.ToDTO(rec))
	})
}

// SubmitVerification runs screening and queues the record for review.
func SubmitVerification(svc VerificationOwnerService, logg *logger.Logger) http.HandlerFunc {
	return withOwnerPath(svc != nil, logg, func(w http.ResponseWriter, r *http.Request, ownerID uuid.UUID, path enums.VerificationPath) {
		rec, err := svc.Submit(r.Context(), ownerID, path)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logg.Info(logg.WithFields(r.Context(), map[string]any{
			"record_id": rec.ID.String(),
			"status":    rec.Status,
		}), "verification.submitted")
		responses.WriteSuccess(w, verification.ToDTO(rec))
	})
}

// RestartVerification reopens a terminal record as a fresh draft.
func RestartVerification(svc VerificationOwnerService, logg *logger.Logger) http.HandlerFunc {
	return withOwnerPath(svc != nil, logg, func(w http.ResponseWriter, r *http.Request, ownerID uuid.UUID, path enums.VerificationPath) {
		rec, err := svc.Restart(r.Context(), ownerID, path)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, verification.ToDTO(rec))
	})
}

type tierRequest struct {
	Tier string `json:"tier" validate:"required"`
}

// SelectVerificationTier stores the paid tier on a record awaiting payment.
func SelectVerificationTier(svc VerificationOwnerService, logg *logger.Logger) http.HandlerFunc {
	return withOwnerPath(svc != nil, logg, func(w http.ResponseWriter, r *http.Request, ownerID uuid.UUID, path enums.VerificationPath) {
		var body tierRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rec, err := svc.SelectTier(r.Context(), ownerID, path, strings.TrimSpace(body.Tier))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, verification.ToDTO(rec))
	})
}

// StartVerificationCheckout opens a Stripe checkout for the selected tier.
func StartVerificationCheckout(svc VerificationCheckoutService, logg *logger.Logger) http.HandlerFunc {
	return withOwnerPath(svc != nil, logg, func(w http.ResponseWriter, r *http.Request, ownerID uuid.UUID, path enums.VerificationPath) {
		sess, err := svc.CreateVerificationCheckout(r.Context(), ownerID, path)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sess)
	})
}
