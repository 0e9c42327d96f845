package enums

// VerificationStatus maps to the verification_status enum in Postgres.
type VerificationStatus string

const (
	VerificationStatusDraft          VerificationStatus = "draft"
	VerificationStatusPendingAI      VerificationStatus = "pending_ai"
	VerificationStatusPendingAdmin   VerificationStatus = "pending_admin"
	VerificationStatusPendingPayment VerificationStatus = "pending_payment"
	VerificationStatusActive         VerificationStatus = "active"
	VerificationStatusRejected       VerificationStatus = "rejected"
	VerificationStatusSuspended      VerificationStatus = "suspended"
	VerificationStatusExpired        VerificationStatus = "expired"
	VerificationStatusRevoked        VerificationStatus = "revoked"
)

var validVerificationStatuses = set[VerificationStatus]{
	VerificationStatusDraft,
	VerificationStatusPendingAI,
	VerificationStatusPendingAdmin,
	VerificationStatusPendingPayment,
	VerificationStatusActive,
	VerificationStatusRejected,
	VerificationStatusSuspended,
	VerificationStatusExpired,
	VerificationStatusRevoked,
}

// String implements fmt.Stringer.
func (s VerificationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical verification_status enum.
func (s VerificationStatus) IsValid() bool {
	return validVerificationStatuses.has(s)
}

// ParseVerificationStatus converts raw input into VerificationStatus.
func ParseVerificationStatus(value string) (VerificationStatus, error) {
	return validVerificationStatuses.parse("verification status", value)
}

// VerificationPath distinguishes seller and contractor verification records.
type VerificationPath string

const (
	VerificationPathSeller     VerificationPath = "seller"
	VerificationPathContractor VerificationPath = "contractor"
)

var validVerificationPaths = set[VerificationPath]{
	VerificationPathSeller,
	VerificationPathContractor,
}

func (p VerificationPath) String() string {
	return string(p)
}

func (p VerificationPath) IsValid() bool {
	return validVerificationPaths.has(p)
}

// ParseVerificationPath converts raw input into VerificationPath.
func ParseVerificationPath(value string) (VerificationPath, error) {
	return validVerificationPaths.parse("verification path", value)
}

// DocumentType is the fixed set of documents accepted by intake.
type DocumentType string

const (
	DocumentTypeIdentity             DocumentType = "identity_document"
	DocumentTypeBusinessLicense      DocumentType = "business_license"
	DocumentTypeTaxDocument          DocumentType = "tax_document"
	DocumentTypeInsuranceCertificate DocumentType = "insurance_certificate"
)

var validDocumentTypes = set[DocumentType]{
	DocumentTypeIdentity,
	DocumentTypeBusinessLicense,
	DocumentTypeTaxDocument,
	DocumentTypeInsuranceCertificate,
}

func (d DocumentType) String() string {
	return string(d)
}

func (d DocumentType) IsValid() bool {
	return validDocumentTypes.has(d)
}

// IsBusinessProof reports whether the document counts as proof of business.
func (d DocumentType) IsBusinessProof() bool {
	switch d {
	case DocumentTypeBusinessLicense, DocumentTypeTaxDocument, DocumentTypeInsuranceCertificate:
		return true
	default:
		return false
	}
}

// ParseDocumentType converts raw input into DocumentType.
func ParseDocumentType(value string) (DocumentType, error) {
	return validDocumentTypes.parse("document type", value)
}

// AutomatedReviewStatus is the outcome of automated screening.
type AutomatedReviewStatus string

const (
	AutomatedReviewPending AutomatedReviewStatus = "pending"
	AutomatedReviewPassed  AutomatedReviewStatus = "passed"
	AutomatedReviewFlagged AutomatedReviewStatus = "flagged"
	AutomatedReviewFailed  AutomatedReviewStatus = "failed"
)

var validAutomatedReviewStatuses = set[AutomatedReviewStatus]{
	AutomatedReviewPending,
	AutomatedReviewPassed,
	AutomatedReviewFlagged,
	AutomatedReviewFailed,
}

func (a AutomatedReviewStatus) String() string {
	return string(a)
}

func (a AutomatedReviewStatus) IsValid() bool {
	return validAutomatedReviewStatuses.has(a)
}

// HumanReviewStatus is the admin decision attached to a record.
type HumanReviewStatus string

const (
	HumanReviewPending  HumanReviewStatus = "pending"
	HumanReviewApproved HumanReviewStatus = "approved"
	HumanReviewRejected HumanReviewStatus = "rejected"
)

func (h HumanReviewStatus) String() string {
	return string(h)
}

func (h HumanReviewStatus) IsValid() bool {
	switch h {
	case HumanReviewPending, HumanReviewApproved, HumanReviewRejected:
		return true
	default:
		return false
	}
}

// VerificationTier is the paid tier chosen after admin approval.
type VerificationTier string

const (
	VerificationTierStandard VerificationTier = "standard"
	VerificationTierPriority VerificationTier = "priority"
)

var validVerificationTiers = set[VerificationTier]{
	VerificationTierStandard,
	VerificationTierPriority,
}

func (t VerificationTier) String() string {
	return string(t)
}

func (t VerificationTier) IsValid() bool {
	return validVerificationTiers.has(t)
}

// ParseVerificationTier converts raw input into VerificationTier.
func ParseVerificationTier(value string) (VerificationTier, error) {
	return validVerificationTiers.parse("verification tier", value)
}
