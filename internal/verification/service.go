package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/internal/notifications"
	"github.com/angelmondragon/railexchange-backend/pkg/config"
	dbpkg "github.com/angelmondragon/railexchange-backend/pkg/db"
	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
	"github.com/angelmondragon/railexchange-backend/pkg/metrics"
	"github.com/angelmondragon/railexchange-backend/pkg/outbox"
	"github.com/angelmondragon/railexchange-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/railexchange-backend/pkg/pagination"
)

const (
	systemActorName     = "system"
	defaultUploadURLTTL = 15 * time.Minute
	defaultBatchLimit   = 200
)

// Actor is whoever drives a transition. The zero value is the system.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// SystemActor attributes a transition to the platform itself.
func SystemActor() Actor { return Actor{} }

func (a Actor) IsSystem() bool { return a.UserID == uuid.Nil }

func (a Actor) changedBy() string {
	if a.IsSystem() {
		return systemActorName
	}
	return a.UserID.String()
}

func (a Actor) ref() *outbox.ActorRef {
	if a.IsSystem() {
		return &outbox.ActorRef{Role: systemActorName}
	}
	return &outbox.ActorRef{UserID: a.UserID, Role: string(a.Role)}
}

// PaymentConfirmation is the payment collaborator's report of a completed charge.
type PaymentConfirmation struct {
	OwnerID    uuid.UUID
	RecordID   uuid.UUID
	Tier       string
	PaymentRef string
}

// DetailsInput carries the owner declared fields screened with the documents.
type DetailsInput struct {
	LegalName        string
	BusinessName     string
	TaxID            string
	DocumentExpiries map[enums.DocumentType]time.Time
}

// DocumentInspector extracts signals (names, expiry, tamper score) from the
// stored documents. It is optional; screening runs on declared data without it.
type DocumentInspector interface {
	Inspect(ctx context.Context, rec *models.VerificationRecord) (map[enums.DocumentType]models.DocumentSignals, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userStore interface {
	GetTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.User, error)
	RefreshSnapshot(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, path enums.VerificationPath, status enums.VerificationStatus, expiresAt *time.Time) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (bool, error)
}

type uploadSigner interface {
	SignedUploadURL(ctx context.Context, object, contentType string, ttl time.Duration) (string, error)
}

// ServiceParams wires the verification service.
type ServiceParams struct {
	DB           txRunner
	Repo         *Repository
	Users        userStore
	Notifier     notifications.Emitter
	Outbox       eventEmitter
	Signer       uploadSigner
	Inspector    DocumentInspector
	Metrics      *metrics.VerificationMetrics
	Logger       *logger.Logger
	Config       config.VerificationConfig
	UploadURLTTL time.Duration
	Now          func() time.Time
}

// Service owns every verification record mutation.
type Service struct {
	db        txRunner
	repo      *Repository
	users     userStore
	notifier  notifications.Emitter
	outbox    eventEmitter
	signer    uploadSigner
	inspector DocumentInspector
	metrics   *metrics.VerificationMetrics
	logg      *logger.Logger
	cfg       config.VerificationConfig
	uploadTTL time.Duration
	now       func() time.Time
}

// NewService validates dependencies and builds the service.
func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.DB == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db runner required")
	case p.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "verification repository required")
	case p.Users == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users service required")
	case p.Notifier == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	case p.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	case p.Signer == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "upload signer required")
	case p.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	ttl := p.UploadURLTTL
	if ttl <= 0 {
		ttl = defaultUploadURLTTL
	}
	now := p.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		db:        p.DB,
		repo:      p.Repo,
		users:     p.Users,
		notifier:  p.Notifier,
		outbox:    p.Outbox,
		signer:    p.Signer,
		inspector: p.Inspector,
		metrics:   p.Metrics,
		logg:      p.Logger,
		cfg:       p.Config,
		uploadTTL: ttl,
		now:       now,
	}, nil
}

// step is one table transition plus the column writes that travel with it.
type step struct {
	action  Action
	actor   Actor
	reason  string
	updates map[string]any
	notify  bool
}

type appliedTransition struct {
	recordID uuid.UUID
	from     enums.VerificationStatus
	to       enums.VerificationStatus
	actor    Actor
}

// txState collects the transitions of one transaction so metrics and logs
// are only reported after commit.
type txState struct {
	tx      *gorm.DB
	applied []appliedTransition
	lastAt  time.Time
}

func (s *Service) inTx(ctx context.Context, fn func(st *txState) error) error {
	var st *txState
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		st = &txState{tx: tx}
		return fn(st)
	})
	if err != nil {
		return err
	}
	for _, t := range st.applied {
		s.metrics.IncTransition(string(t.from), string(t.to))
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"record_id": t.recordID.String(),
			"from":      t.from,
			"to":        t.to,
			"actor":     t.actor.changedBy(),
		})
		s.logg.Info(logCtx, "verification.transition")
	}
	return nil
}

// stamp returns a timestamp strictly after the previous one in this
// transaction so history order survives equal clock reads.
func (s *Service) stamp(st *txState) time.Time {
	at := s.now().UTC()
	if !st.lastAt.IsZero() && !at.After(st.lastAt) {
		at = st.lastAt.Add(time.Microsecond)
	}
	st.lastAt = at
	return at
}

// apply persists one transition: guarded status update, history row, owner
// snapshot, outbox event and notification, all on st.tx. rec is refreshed.
func (s *Service) apply(ctx context.Context, st *txState, rec *models.VerificationRecord, sp step) error {
	from := rec.Status
	to, err := Transition(from, sp.action)
	if err != nil {
		s.metrics.IncConflict(string(sp.action))
		return err
	}
	at := s.stamp(st)

	updates := map[string]any{"status": to}
	for col, val := range sp.updates {
		updates[col] = val
	}
	repo := s.repo.WithTx(st.tx)
	rows, err := repo.UpdateWhereStatus(ctx, rec.ID, from, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update verification status")
	}
	if rows == 0 {
		s.metrics.IncConflict(string(sp.action))
		return pkgerrors.New(pkgerrors.CodeConflict, "verification record changed concurrently").
			WithDetails(map[string]any{"recordId": rec.ID, "expected": from, "action": sp.action})
	}

	entry := &models.VerificationStatusHistory{
		RecordID:   rec.ID,
		FromStatus: &from,
		Status:     to,
		ChangedAt:  at,
		ChangedBy:  sp.actor.changedBy(),
	}
	if reason := strings.TrimSpace(sp.reason); reason != "" {
		entry.Reason = &reason
	}
	if err := repo.AppendHistory(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append verification history")
	}

	updated, err := repo.FindByID(ctx, rec.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload verification record")
	}
	*rec = *updated

	if err := s.users.RefreshSnapshot(ctx, st.tx, rec.OwnerID, rec.Path, to, rec.ExpiresAt); err != nil {
		return err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventVerificationStatusChanged,
		AggregateType: enums.AggregateVerification,
		AggregateID:   rec.ID,
		Actor:         sp.actor.ref(),
		OccurredAt:    at,
		Data: payloads.VerificationStatusChangedEvent{
			RecordID:   rec.ID,
			OwnerID:    rec.OwnerID,
			Path:       rec.Path,
			FromStatus: from,
			ToStatus:   to,
			Tier:       rec.Tier,
			ChangedBy:  entry.ChangedBy,
			Reason:     strings.TrimSpace(sp.reason),
			ChangedAt:  at,
			ExpiresAt:  rec.ExpiresAt,
		},
	}
	if err := s.outbox.Emit(ctx, st.tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue verification event")
	}

	if sp.notify {
		if req := statusNotification(rec, to, sp.reason); req != nil {
			if _, err := s.notifier.Emit(ctx, st.tx, *req); err != nil {
				return err
			}
		}
	}

	st.applied = append(st.applied, appliedTransition{recordID: rec.ID, from: from, to: to, actor: sp.actor})
	return nil
}

// lapsed reports whether an active record has reached its expiry.
func lapsed(rec *models.VerificationRecord, now time.Time) bool {
	return rec.Status == enums.VerificationStatusActive && rec.ExpiresAt != nil && !now.Before(*rec.ExpiresAt)
}

// healTx expires rec inside st when it has lapsed.
func (s *Service) healTx(ctx context.Context, st *txState, rec *models.VerificationRecord) error {
	if !lapsed(rec, s.now()) {
		return nil
	}
	return s.apply(ctx, st, rec, step{
		action: ActionExpire,
		actor:  SystemActor(),
		reason: "verification period ended",
		notify: true,
	})
}

// heal persists a lapsed expiry in its own transaction and returns the fresh
// record. Losing a race to another writer re-reads instead of failing.
func (s *Service) heal(ctx context.Context, rec *models.VerificationRecord) (*models.VerificationRecord, error) {
	if !lapsed(rec, s.now()) {
		return rec, nil
	}
	var healed *models.VerificationRecord
	err := s.inTx(ctx, func(st *txState) error {
		locked, err := s.lockRecord(ctx, st.tx, rec.ID)
		if err != nil {
			return err
		}
		if err := s.healTx(ctx, st, locked); err != nil {
			return err
		}
		healed = locked
		return nil
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			return s.findByID(ctx, rec.ID)
		}
		return nil, err
	}
	return healed, nil
}

func (s *Service) lockRecord(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.VerificationRecord, error) {
	rec, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, recordLookupError(err)
	}
	return rec, nil
}

func (s *Service) findByID(ctx context.Context, id uuid.UUID) (*models.VerificationRecord, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, recordLookupError(err)
	}
	return rec, nil
}

func (s *Service) findByOwnerPath(ctx context.Context, ownerID uuid.UUID, path enums.VerificationPath) (*models.VerificationRecord, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if !path.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "path must be seller or contractor")
	}
	rec, err := s.repo.FindByOwnerPath(ctx, ownerID, path)
	if err != nil {
		return nil, recordLookupError(err)
	}
	return rec, nil
}

func recordLookupError(err error) error {
	if dbpkg.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "verification record not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load verification record")
}

func requireAdmin(actor Actor) error {
	if actor.IsSystem() || actor.Role != enums.RoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

func conflictf(rec *models.VerificationRecord, format string, args ...any) error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf(format, args...)).
		WithDetails(map[string]any{"recordId": rec.ID, "status": rec.Status})
}

// pathAllowed reports whether the owner's role flags permit the path.
func pathAllowed(user *models.User, path enums.VerificationPath) bool {
	if path == enums.VerificationPathContractor {
		return user.IsContractor || user.IsCompany
	}
	return user.IsSeller
}

// ensureRecord returns the owner's record for path, creating it in draft.
func (s *Service) ensureRecord(ctx context.Context, ownerID uuid.UUID, path enums.VerificationPath) (*models.VerificationRecord, error) {
	user, err := s.users.GetTx(ctx, nil, ownerID)
	if err != nil {
		return nil, err
	}
	if !pathAllowed(user, path) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("account is not registered as a %s", pathLabel(path)))
	}

	rec, err := s.repo.FindByOwnerPath(ctx, ownerID, path)
	if err == nil {
		return rec, nil
	}
	if !dbpkg.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load verification record")
	}

	rec = &models.VerificationRecord{
		OwnerID:         ownerID,
		Path:            path,
		Status:          enums.VerificationStatusDraft,
		Documents:       []models.VerificationDocument{},
		AutomatedStatus: enums.AutomatedReviewPending,
		HumanStatus:     enums.HumanReviewPending,
		Flags:           []string{},
		FraudSignals:    []string{},
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return s.findByOwnerPath(ctx, ownerID, path)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create verification record")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"record_id": rec.ID.String(),
		"owner_id":  ownerID.String(),
		"path":      path,
	}), "verification.record_created")
	return rec, nil
}

// RequestUpload validates a document, records it on the owner's draft and
// returns a signed URL for the binary upload.
func (s *Service) RequestUpload(ctx context.Context, in RequestUploadInput) (*UploadTarget, error) {
	v, err := validateUpload(in, s.cfg.MaxUploadBytes)
	if err != nil {
		return nil, err
	}
	rec, err := s.ensureRecord(ctx, v.ownerID, v.path)
	if err != nil {
		return nil, err
	}
	if rec.Status != enums.VerificationStatusDraft {
		return nil, conflictf(rec, "documents can only change while the record is a draft")
	}

	key := storageKey(v.ownerID, v.docType, v.ext)
	signedURL, err := s.signer.SignedUploadURL(ctx, key, v.mimeType, s.uploadTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign upload url")
	}
	now := s.now().UTC()

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.FindByIDForUpdate(ctx, rec.ID)
		if err != nil {
			return recordLookupError(err)
		}
		if locked.Status != enums.VerificationStatusDraft {
			return conflictf(locked, "documents can only change while the record is a draft")
		}
		docs := upsertDocument(locked.Documents, models.VerificationDocument{
			Type:       v.docType,
			StorageKey: key,
			FileName:   v.fileName,
			MimeType:   v.mimeType,
			SizeBytes:  v.size,
			UploadedAt: now,
		})
		rows, err := repo.UpdateWhereStatus(ctx, locked.ID, enums.VerificationStatusDraft, map[string]any{
			"documents": docsColumn(docs),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store document")
		}
		if rows == 0 {
			return conflictf(locked, "verification record changed concurrently")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"record_id":     rec.ID.String(),
		"document_type": v.docType,
		"storage_key":   key,
	}), "verification.document_requested")

	return &UploadTarget{
		RecordID:     rec.ID,
		DocumentType: v.docType,
		StorageKey:   key,
		SignedURL:    signedURL,
		ExpiresAt:    now.Add(s.uploadTTL),
	}, nil
}

// DeclareDetails stores the owner supplied names, tax id and document expiry
// dates screened at submission.
func (s *Service) DeclareDetails(ctx context.Context, ownerID uuid.UUID, path enums.VerificationPath, in DetailsInput) (*models.VerificationRecord, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if !path.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "path must be seller or contractor")
	}
	for docType := range in.DocumentExpiries {
		if !docType.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported document type").
				WithDetails(map[string]any{"documentType": docType})
		}
	}
	rec, err := s.ensureRecord(ctx, ownerID, path)
	if err != nil {
		return nil, err
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.FindByIDForUpdate(ctx, rec.ID)
		if err != nil {
			return recordLookupError(err)
		}
		if locked.Status != enums.VerificationStatusDraft {
			return conflictf(locked, "details can only change while the record is a draft")
		}
		details := locked.Details.Data()
		details.LegalName = strings.TrimSpace(in.LegalName)
		details.BusinessName = strings.TrimSpace(in.BusinessName)
		details.TaxID = strings.TrimSpace(in.TaxID)
		signals := make(map[enums.DocumentType]models.DocumentSignals, len(details.Signals)+len(in.DocumentExpiries))
		for docType, sig := range details.Signals {
			signals[docType] = sig
		}
		for docType, expiresAt := range in.DocumentExpiries {
			sig := signals[docType]
			at := expiresAt.UTC()
			sig.ExpiresAt = &at
			signals[docType] = sig
		}
		details.Signals = signals

		rows, err := repo.UpdateWhereStatus(ctx, locked.ID, enums.VerificationStatusDraft, map[string]any{
			"declared_details": detailsColumn(details),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store declared details")
		}
		if rows == 0 {
			return conflictf(locked, "verification record changed concurrently")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.findByID(ctx, rec.ID)
}

// Submit screens the draft and moves it to the admin queue. Two history rows
// are written: draft to pending_ai, then pending_ai to pending_admin.
func (s *Service) Submit(ctx context.Context, ownerID uuid.UUID, path enums.VerificationPath) (*models.VerificationRecord, error) {
	rec, err := s.findByOwnerPath(ctx, ownerID, path)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "upload an identity document and a business document before submitting")
		}
		return nil, err
	}
	if rec.Status != enums.VerificationStatusDraft {
		s.metrics.IncConflict(string(ActionSubmit))
		return nil, conflictf(rec, "record already submitted")
	}
	identity, business := hasRequiredDocuments(rec.Documents)
	if !identity || !business {
		missing := []string{}
		if !identity {
			missing = append(missing, string(enums.DocumentTypeIdentity))
		}
		if !business {
			missing = append(missing, "business_document")
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "required documents are missing").
			WithDetails(map[string]any{"missing": missing})
	}

	signals := s.collectSignals(ctx, rec)

	err = s.inTx(ctx, func(st *txState) error {
		locked, err := s.lockRecord(ctx, st.tx, rec.ID)
		if err != nil {
			return err
		}
		owner, err := s.users.GetTx(ctx, st.tx, locked.OwnerID)
		if err != nil {
			return err
		}
		details := locked.Details.Data()
		review := Screen(ScreeningInput{
			AccountName:     owner.DisplayName,
			DeclaredName:    details.LegalName,
			BusinessName:    details.BusinessName,
			TaxID:           details.TaxID,
			Documents:       locked.Documents,
			Signals:         signals,
			TamperThreshold: s.cfg.TamperThreshold,
		}, s.now())

		if err := s.apply(ctx, st, locked, step{action: ActionSubmit, actor: ownerActor(locked.OwnerID)}); err != nil {
			return err
		}
		screenedAt := s.now().UTC()
		rec = locked
		return s.apply(ctx, st, locked, step{
			action: ActionScreeningComplete,
			actor:  SystemActor(),
			reason: review.ReasonFor(),
			updates: map[string]any{
				"automated_status": review.Status,
				"confidence_score": review.ConfidenceScore,
				"flags":            stringsColumn(review.Flags),
				"fraud_signals":    stringsColumn(review.FraudSignals),
				"extracted_fields": extractedColumn(review.ExtractedFields),
				"screened_at":      screenedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// collectSignals merges declared expiries with inspector output. Inspector
// failures only degrade screening.
func (s *Service) collectSignals(ctx context.Context, rec *models.VerificationRecord) map[enums.DocumentType]models.DocumentSignals {
	declared := rec.Details.Data().Signals
	signals := make(map[enums.DocumentType]models.DocumentSignals, len(declared))
	for docType, sig := range declared {
		signals[docType] = sig
	}
	if s.inspector == nil {
		return signals
	}
	inspected, err := s.inspector.Inspect(ctx, rec)
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"record_id": rec.ID.String(),
			"error":     err.Error(),
		}), "verification.inspection_failed")
		return signals
	}
	for docType, found := range inspected {
		merged := signals[docType]
		if found.ExtractedName != "" {
			merged.ExtractedName = found.ExtractedName
		}
		if found.ExpiresAt != nil {
			merged.ExpiresAt = found.ExpiresAt
		}
		if found.TamperScore != nil {
			merged.TamperScore = found.TamperScore
		}
		signals[docType] = merged
	}
	return signals
}

func ownerActor(ownerID uuid.UUID) Actor {
	return Actor{UserID: ownerID, Role: enums.RoleUser}
}

// Approve records the admin decision and asks the owner to pay.
func (s *Service) Approve(ctx context.Context, actor Actor, recordID uuid.UUID, notes string) (*models.VerificationRecord, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.adminTransition(ctx, recordID, func(st *txState, rec *models.VerificationRecord) error {
		if rec.AutomatedStatus == enums.AutomatedReviewPending {
			return conflictf(rec, "automated screening has not completed")
		}
		now := s.now().UTC()
		return s.apply(ctx, st, rec, step{
			action: ActionApprove,
			actor:  actor,
			reason: notes,
			notify: true,
			updates: map[string]any{
				"human_status": enums.HumanReviewApproved,
				"reviewer_id":  actor.UserID,
				"reviewed_at":  now,
				"review_notes": optionalString(notes),
			},
		})
	})
}

// Reject closes the review with a mandatory reason the owner will see.
func (s *Service) Reject(ctx context.Context, actor Actor, recordID uuid.UUID, reason string) (*models.VerificationRecord, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
	}
	return s.adminTransition(ctx, recordID, func(st *txState, rec *models.VerificationRecord) error {
		now := s.now().UTC()
		return s.apply(ctx, st, rec, step{
			action: ActionReject,
			actor:  actor,
			reason: reason,
			notify: true,
			updates: map[string]any{
				"human_status":     enums.HumanReviewRejected,
				"reviewer_id":      actor.UserID,
				"reviewed_at":      now,
				"rejection_reason": reason,
			},
		})
	})
}

// Suspend pauses an active verification.
func (s *Service) Suspend(ctx context.Context, actor Actor, recordID uuid.UUID, reason string) (*models.VerificationRecord, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.adminTransition(ctx, recordID, func(st *txState, rec *models.VerificationRecord) error {
		return s.apply(ctx, st, rec, step{action: ActionSuspend, actor: actor, reason: reason, notify: true})
	})
}

// Reinstate sends a suspended record back for a fresh human review.
func (s *Service) Reinstate(ctx context.Context, actor Actor, recordID uuid.UUID) (*models.VerificationRecord, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.adminTransition(ctx, recordID, func(st *txState, rec *models.VerificationRecord) error {
		return s.apply(ctx, st, rec, step{
			action: ActionReinstate,
			actor:  actor,
			reason: "reinstated for re-review",
			updates: map[string]any{
				"human_status": enums.HumanReviewPending,
				"reviewer_id":  nil,
				"reviewed_at":  nil,
				"review_notes": nil,
			},
		})
	})
}

// Revoke permanently ends the record. A reason is required.
func (s *Service) Revoke(ctx context.Context, actor Actor, recordID uuid.UUID, reason string) (*models.VerificationRecord, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "revocation reason is required")
	}
	return s.adminTransition(ctx, recordID, func(st *txState, rec *models.VerificationRecord) error {
		return s.apply(ctx, st, rec, step{action: ActionRevoke, actor: actor, reason: reason, notify: true})
	})
}

// adminTransition locks the record, heals a lapsed expiry, then runs fn.
func (s *Service) adminTransition(ctx context.Context, recordID uuid.UUID, fn func(st *txState, rec *models.VerificationRecord) error) (*models.VerificationRecord, error) {
	if recordID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "record id is required")
	}
	var out *models.VerificationRecord
	err := s.inTx(ctx, func(st *txState) error {
		rec, err := s.lockRecord(ctx, st.tx, recordID)
		if err != nil {
			return err
		}
		if err := s.healTx(ctx, st, rec); err != nil {
			return err
		}
		if err := fn(st, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Restart reopens a rejected or expired record as a draft. Documents are
// kept; review evidence, tier and payment are cleared.
func (s *Service) Restart(ctx context.Context, ownerID uuid.UUID, path enums.VerificationPath) (*models.VerificationRecord, error) {
	rec, err := s.findByOwnerPath(ctx, ownerID, path)
	if err != nil {
		return nil, err
	}
	var out *models.VerificationRecord
	err = s.inTx(ctx, func(st *txState) error {
		locked, err := s.lockRecord(ctx, st.tx, rec.ID)
		if err != nil {
			return err
		}
		if err := s.healTx(ctx, st, locked); err != nil {
			return err
		}
		if err := s.apply(ctx, st, locked, step{
			action: ActionRestart,
			actor:  ownerActor(ownerID),
			reason: "restarted by owner",
			updates: map[string]any{
				"automated_status": enums.AutomatedReviewPending,
				"confidence_score": 0,
				"flags":            stringsColumn(nil),
				"fraud_signals":    stringsColumn(nil),
				"extracted_fields": nil,
				"screened_at":      nil,
				"human_status":     enums.HumanReviewPending,
				"reviewer_id":      nil,
				"reviewed_at":      nil,
				"review_notes":     nil,
				"rejection_reason": nil,
				"tier":             nil,
				"payment_ref":      nil,
				"approved_at":      nil,
				"expires_at":       nil,
			},
		}); err != nil {
			return err
		}
		out = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SelectTier records the tier the owner will pay for.
func (s *Service) SelectTier(ctx context.Context, ownerID uuid.UUID, path enums.VerificationPath, tier string) (*models.VerificationRecord, error) {
	parsed, err := enums.ParseVerificationTier(strings.TrimSpace(tier))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tier must be standard or priority")
	}
	rec, err := s.findByOwnerPath(ctx, ownerID, path)
	if err != nil {
		return nil, err
	}
	if rec.Status != enums.VerificationStatusPendingPayment {
		return nil, conflictf(rec, "tier can only be chosen while payment is pending")
	}
	rows, err := s.repo.UpdateWhereStatus(ctx, rec.ID, enums.VerificationStatusPendingPayment, map[string]any{"tier": parsed})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store tier")
	}
	if rows == 0 {
		return nil, conflictf(rec, "verification record changed concurrently")
	}
	return s.findByID(ctx, rec.ID)
}

// ConfirmPayment activates a record awaiting payment. Replays against an
// already active record succeed without changing it.
func (s *Service) ConfirmPayment(ctx context.Context, conf PaymentConfirmation) (*models.VerificationRecord, error) {
	if conf.RecordID == uuid.Nil || conf.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner and record ids are required")
	}
	var confirmedTier *enums.VerificationTier
	if raw := strings.TrimSpace(conf.Tier); raw != "" {
		parsed, err := enums.ParseVerificationTier(raw)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tier must be standard or priority")
		}
		confirmedTier = &parsed
	}

	var out *models.VerificationRecord
	err := s.inTx(ctx, func(st *txState) error {
		rec, err := s.lockRecord(ctx, st.tx, conf.RecordID)
		if err != nil {
			return err
		}
		if rec.OwnerID != conf.OwnerID {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment owner does not match the verification record")
		}
		out = rec
		if rec.Status == enums.VerificationStatusActive {
			return nil
		}
		tier := confirmedTier
		if tier == nil {
			tier = rec.Tier
		}
		if tier == nil && rec.Status == enums.VerificationStatusPendingPayment {
			return pkgerrors.New(pkgerrors.CodeValidation, "a verification tier must be selected before payment")
		}
		approvedAt := s.now().UTC()
		expiresAt := approvedAt.AddDate(1, 0, 0)
		updates := map[string]any{
			"approved_at": approvedAt,
			"expires_at":  expiresAt,
			"payment_ref": optionalString(conf.PaymentRef),
		}
		if tier != nil {
			updates["tier"] = *tier
		}
		return s.apply(ctx, st, rec, step{
			action:  ActionConfirmPayment,
			actor:   SystemActor(),
			reason:  "payment confirmed",
			notify:  true,
			updates: updates,
		})
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			current, readErr := s.findByID(ctx, conf.RecordID)
			if readErr == nil && current.Status == enums.VerificationStatusActive && current.OwnerID == conf.OwnerID {
				return current, nil
			}
		}
		return nil, err
	}
	return out, nil
}

// Get returns the owner's record for path, persisting a lapsed expiry first.
func (s *Service) Get(ctx context.Context, ownerID uuid.UUID, path enums.VerificationPath) (*models.VerificationRecord, error) {
	rec, err := s.findByOwnerPath(ctx, ownerID, path)
	if err != nil {
		return nil, err
	}
	return s.heal(ctx, rec)
}

// GetByID is Get keyed by record id.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.VerificationRecord, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "record id is required")
	}
	rec, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.heal(ctx, rec)
}

// ListForOwner returns the owner's records with lapsed expiries healed.
func (s *Service) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.VerificationRecord, error) {
	recs, err := s.repo.ListForOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list verification records")
	}
	for i := range recs {
		healed, err := s.heal(ctx, &recs[i])
		if err != nil {
			return nil, err
		}
		recs[i] = *healed
	}
	return recs, nil
}

// ListByStatus pages the admin queue. Active rows that lapse while listed are
// healed and dropped from an active listing.
func (s *Service) ListByStatus(ctx context.Context, status string, params pagination.Params) (pagination.Page[models.VerificationRecord], error) {
	parsed, err := enums.ParseVerificationStatus(strings.TrimSpace(status))
	if err != nil {
		return pagination.Page[models.VerificationRecord]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid verification status")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.VerificationRecord]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByStatus(ctx, listByStatusParams{
		Status: parsed,
		Limit:  pagination.LimitWithBuffer(params.Limit),
		Cursor: cursor,
	})
	if err != nil {
		return pagination.Page[models.VerificationRecord]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list verification records")
	}
	page := pagination.BuildPage(rows, params.Limit, func(r models.VerificationRecord) pagination.Cursor {
		return pagination.Cursor{At: r.CreatedAt, ID: r.ID}
	})

	items := make([]models.VerificationRecord, 0, len(page.Items))
	for i := range page.Items {
		healed, err := s.heal(ctx, &page.Items[i])
		if err != nil {
			return pagination.Page[models.VerificationRecord]{}, err
		}
		if healed.Status == parsed {
			items = append(items, *healed)
		}
	}
	page.Items = items
	return page, nil
}

// History returns the record's audit trail oldest first.
func (s *Service) History(ctx context.Context, recordID uuid.UUID) ([]models.VerificationStatusHistory, error) {
	if _, err := s.findByID(ctx, recordID); err != nil {
		return nil, err
	}
	rows, err := s.repo.History(ctx, recordID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load verification history")
	}
	return rows, nil
}

// ExpireDue persists expiry for up to limit lapsed records and returns how
// many were expired. Failures are collected; one bad row does not stop the batch.
func (s *Service) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	recs, err := s.repo.ListLapsed(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list lapsed verifications")
	}
	var errs error
	expired := 0
	for i := range recs {
		healed, err := s.heal(ctx, &recs[i])
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire %s: %w", recs[i].ID, err))
			continue
		}
		if healed.Status == enums.VerificationStatusExpired {
			expired++
		}
	}
	return expired, errs
}

// ExpiringSoon lists active records whose expiry falls within window of now.
func (s *Service) ExpiringSoon(ctx context.Context, now time.Time, window time.Duration, limit int) ([]models.VerificationRecord, error) {
	if window <= 0 {
		window = s.cfg.RenewalWindow
	}
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	recs, err := s.repo.ListExpiringBetween(ctx, now, now.Add(window), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expiring verifications")
	}
	return recs, nil
}

// RemindRenewals emits one renewal_due event and notification per record and
// expiry date. Reruns within the same window are no-ops.
func (s *Service) RemindRenewals(ctx context.Context, now time.Time, window time.Duration, limit int) (int, error) {
	recs, err := s.ExpiringSoon(ctx, now, window, limit)
	if err != nil {
		return 0, err
	}
	var errs error
	sent := 0
	for i := range recs {
		rec := &recs[i]
		if rec.ExpiresAt == nil {
			continue
		}
		expiresAt := rec.ExpiresAt.UTC()
		days := int(expiresAt.Sub(now).Hours() / 24)
		if days < 1 {
			days = 1
		}
		emitted := false
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			ok, err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventVerificationRenewalDue,
				AggregateType: enums.AggregateVerification,
				AggregateID:   rec.ID,
				Actor:         SystemActor().ref(),
				OccurredAt:    now,
				DedupeKey:     fmt.Sprintf("renewal_due:%s:%s", rec.ID, expiresAt.Format("2006-01-02")),
				Data: payloads.VerificationRenewalDueEvent{
					RecordID:      rec.ID,
					OwnerID:       rec.OwnerID,
					Path:          rec.Path,
					ExpiresAt:     expiresAt,
					DaysRemaining: days,
				},
			})
			if err != nil || !ok {
				return err
			}
			emitted = true
			_, err = s.notifier.Emit(ctx, tx, renewalNotification(rec, days))
			return err
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("renewal reminder %s: %w", rec.ID, err))
			continue
		}
		if emitted {
			sent++
		}
	}
	return sent, errs
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
