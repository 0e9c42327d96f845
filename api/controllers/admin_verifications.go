package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/railexchange-backend/api/responses"
	"github.com/angelmondragon/railexchange-backend/api/validators"
	"github.com/angelmondragon/railexchange-backend/internal/verification"
	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
	"github.com/angelmondragon/railexchange-backend/pkg/pagination"
)

// VerificationAdminService is the reviewer surface of the verification pipeline.
type VerificationAdminService interface {
	ListByStatus(ctx context.Context, status string, params pagination.Params) (pagination.Page[models.VerificationRecord], error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.VerificationRecord, error)
	History(ctx context.Context, recordID uuid.UUID) ([]models.VerificationStatusHistory, error)
	Approve(ctx context.Context, actor verification.Actor, recordID uuid.UUID, notes string) (*models.VerificationRecord, error)
	Reject(ctx context.Context, actor verification.Actor, recordID uuid.UUID, reason string) (*models.VerificationRecord, error)
	Suspend(ctx context.Context, actor verification.Actor, recordID uuid.UUID, reason string) (*models.VerificationRecord, error)
	Reinstate(ctx context.Context, actor verification.Actor, recordID uuid.UUID) (*models.VerificationRecord, error)
	Revoke(ctx context.Context, actor verification.Actor, recordID uuid.UUID, reason string) (*models.VerificationRecord, error)
}

// AdminListVerifications pages the review queue for one status.
func AdminListVerifications(svc VerificationAdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verification service unavailable"))
			return
		}

		status := strings.TrimSpace(r.URL.Query().Get("status"))
		if status == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "status is required"))
			return
		}
		params, err := validators.PageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListByStatus(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]verification.RecordDTO, 0, len(page.Items))
		for i := range page.Items {
			items = append(items, verification.ToDTO(&page.Items[i]))
		}
		responses.WriteSuccess(w, pagination.Page[verification.RecordDTO]{Items: items, NextCursor: page.NextCursor})
	}
}

// AdminGetVerification returns one record by id.
func AdminGetVerification(svc VerificationAdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verification service unavailable"))
			return
		}
		id, err := uuidParam(r, "recordId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rec, err := svc.GetByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, verification.ToDTO(rec))
	}
}

// DocumentLinkSigner issues read links for stored documents.
type DocumentLinkSigner interface {
	SignedDownloadURL(ctx context.Context, object string, ttl time.Duration) (string, error)
}

type documentLink struct {
	Type      string    `json:"type"`
	FileName  string    `json:"fileName"`
	MimeType  string    `json:"mimeType"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AdminDocumentLinks signs a short-lived read link for every document on a
// record so a reviewer can inspect it without the bucket being public.
func AdminDocumentLinks(svc VerificationAdminService, signer DocumentLinkSigner, ttl time.Duration, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || signer == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "document links unavailable"))
			return
		}
		id, err := uuidParam(r, "recordId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rec, err := svc.GetByID(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		expires := now().Add(ttl).UTC()
		links := make([]documentLink, 0, len(rec.Documents))
		for _, doc := range rec.Documents {
			u, err := signer.SignedDownloadURL(ctx, doc.StorageKey, ttl)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign document link"))
				return
			}
			links = append(links, documentLink{
				Type:      string(doc.Type),
				FileName:  doc.FileName,
				MimeType:  doc.MimeType,
				URL:       u,
				ExpiresAt: expires,
			})
		}
		responses.WriteSuccess(w, links)
	}
}

// AdminVerificationHistory returns the status audit trail of a record.
func AdminVerificationHistory(svc VerificationAdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verification service unavailable"))
			return
		}
		id, err := uuidParam(r, "recordId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.History(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, verification.HistoryToDTO(rows))
	}
}

type reviewNoteRequest struct {
	Notes string `json:"notes" validate:"omitempty,max=2000"`
}

type reviewReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

type adminAction func(ctx context.Context, actor verification.Actor, id uuid.UUID, r *http.Request) (*models.VerificationRecord, error)

func adminTransition(svc VerificationAdminService, logg *logger.Logger, action string, fn adminAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verification service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "recordId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rec, err := fn(r.Context(), actor, id, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logg.Info(logg.WithFields(logg.WithRecordID(r.Context(), rec.ID.String()), map[string]any{
			"action": action,
			"status": rec.Status,
		}), "verification.admin_action")
		responses.WriteSuccess(w, verification.ToDTO(rec))
	}
}

// AdminApproveVerification records a human approval.
func AdminApproveVerification(svc VerificationAdminService, logg *logger.Logger) http.HandlerFunc {
	return adminTransition(svc, logg, "approve", func(ctx context.Context, actor verification.Actor, id uuid.UUID, r *http.Request) (*models.VerificationRecord, error) {
		var body reviewNoteRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				return nil, err
			}
		}
		return svc.Approve(ctx, actor, id, validators.SanitizeString(body.Notes, 2000))
	})
}

// AdminRejectVerification closes the record with a reason the owner can read.
func AdminRejectVerification(svc VerificationAdminService, logg *logger.Logger) http.HandlerFunc {
	return adminTransition(svc, logg, "reject", func(ctx context.Context, actor verification.Actor, id uuid.UUID, r *http.Request) (*models.VerificationRecord, error) {
		reason, err := decodeReason(r)
		if err != nil {
			return nil, err
		}
		return svc.Reject(ctx, actor, id, reason)
	})
}

// AdminSuspendVerification pauses an active verification.
func AdminSuspendVerification(svc VerificationAdminService, logg *logger.Logger) http.HandlerFunc {
	return adminTransition(svc, logg, "suspend", func(ctx context.Context, actor verification.Actor, id uuid.UUID, r *http.Request) (*models.VerificationRecord, error) {
		reason, err := decodeReason(r)
		if err != nil {
			return nil, err
		}
		return svc.Suspend(ctx, actor, id, reason)
	})
}

// AdminReinstateVerification lifts a suspension.
func AdminReinstateVerification(svc VerificationAdminService, logg *logger.Logger) http.HandlerFunc {
	return adminTransition(svc, logg, "reinstate", func(ctx context.Context, actor verification.Actor, id uuid.UUID, _ *http.Request) (*models.VerificationRecord, error) {
		return svc.Reinstate(ctx, actor, id)
	})
}

// AdminRevokeVerification permanently withdraws a verification.
func AdminRevokeVerification(svc VerificationAdminService, logg *logger.Logger) http.HandlerFunc {
	return adminTransition(svc, logg, "revoke", func(ctx context.Context, actor verification.Actor, id uuid.UUID, r *http.Request) (*models.VerificationRecord, error) {
		reason, err := decodeReason(r)
		if err != nil {
			return nil, err
		}
		return svc.Revoke(ctx, actor, id, reason)
	})
}

func decodeReason(r *http.Request) (string, error) {
	var body reviewReasonRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return "", err
	}
	reason := validators.SanitizeString(body.Reason, 2000)
	if reason == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	return reason, nil
}
