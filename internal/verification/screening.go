package verification

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
)

const (
	baseConfidence         = 85
	missingIdentityPenalty = 25
	missingBusinessPenalty = 25
	nameMismatchPenalty    = 30
	taxIDFormatPenalty     = 5
	expiredDocumentPenalty = 30
	tamperPenalty          = 20
	filenamePenalty        = 15

	failConfidenceBelow  = 50
	failFraudSignalCount = 2

	// DefaultTamperThreshold is the score below which a document is treated as altered.
	DefaultTamperThreshold = 0.6
)

const (
	FlagMissingIdentity = "missing_identity_document"
	FlagMissingBusiness = "missing_business_document"
	FlagNameMismatch    = "name_mismatch"
	FlagInvalidTaxID    = "invalid_tax_id_format"
	flagExpiredPrefix   = "document_expired:"
	fraudTamperPrefix   = "tamper_suspected:"
	fraudFilenamePrefix = "suspicious_filename:"
)

var (
	taxIDPattern     = regexp.MustCompile(`^\d{2}-\d{7}$`)
	placeholderWords = []string{"sample", "test", "specimen", "fake", "dummy", "template", "example", "copy"}
)

// ScreeningInput is everything automated screening looks at.
type ScreeningInput struct {
	AccountName     string
	DeclaredName    string
	BusinessName    string
	TaxID           string
	Documents       []models.VerificationDocument
	Signals         map[enums.DocumentType]models.DocumentSignals
	TamperThreshold float64
}

// AutomatedReview is the evidence produced by Screen.
type AutomatedReview struct {
	Status          enums.AutomatedReviewStatus
	ConfidenceScore int
	Flags           []string
	FraudSignals    []string
	ExtractedFields map[string]any
}

// Screen scores a document set. It never fails: suspicious or malformed input
// lowers the confidence and is recorded as flags or fraud signals.
func Screen(in ScreeningInput, now time.Time) AutomatedReview {
	threshold := in.TamperThreshold
	if threshold <= 0 {
		threshold = DefaultTamperThreshold
	}

	confidence := baseConfidence
	flags := []string{}
	fraud := []string{}

	present := map[enums.DocumentType]bool{}
	hasBusinessProof := false
	for _, doc := range in.Documents {
		present[doc.Type] = true
		if doc.Type.IsBusinessProof() {
			hasBusinessProof = true
		}
	}

	if !present[enums.DocumentTypeIdentity] {
		confidence -= missingIdentityPenalty
		flags = append(flags, FlagMissingIdentity)
	}
	if !hasBusinessProof {
		confidence -= missingBusinessPenalty
		flags = append(flags, FlagMissingBusiness)
	}

	if !namesMatch(in.AccountName, candidateNames(in)) {
		confidence -= nameMismatchPenalty
		flags = append(flags, FlagNameMismatch)
	}

	if taxID := strings.TrimSpace(in.TaxID); taxID != "" && !taxIDPattern.MatchString(taxID) {
		confidence -= taxIDFormatPenalty
		flags = append(flags, FlagInvalidTaxID)
	}

	for _, doc := range orderedDocuments(in.Documents) {
		signals := in.Signals[doc.Type]
		if signals.ExpiresAt != nil && signals.ExpiresAt.Before(now) {
			confidence -= expiredDocumentPenalty
			flags = append(flags, flagExpiredPrefix+string(doc.Type))
		}
		if signals.TamperScore != nil && *signals.TamperScore < threshold {
			confidence -= tamperPenalty
			fraud = append(fraud, fraudTamperPrefix+string(doc.Type))
		}
		if hasPlaceholderWord(doc.FileName) {
			confidence -= filenamePenalty
			fraud = append(fraud, fraudFilenamePrefix+string(doc.Type))
		}
	}

	confidence = clamp(confidence, 0, 100)

	status := enums.AutomatedReviewPassed
	switch {
	case len(fraud) >= failFraudSignalCount || confidence < failConfidenceBelow:
		status = enums.AutomatedReviewFailed
	case len(flags) > 0 || len(fraud) > 0:
		status = enums.AutomatedReviewFlagged
	}

	return AutomatedReview{
		Status:          status,
		ConfidenceScore: confidence,
		Flags:           flags,
		FraudSignals:    fraud,
		ExtractedFields: map[string]any{
			"account_name":   strings.TrimSpace(in.AccountName),
			"declared_name":  strings.TrimSpace(in.DeclaredName),
			"business_name":  strings.TrimSpace(in.BusinessName),
			"tax_id":         strings.TrimSpace(in.TaxID),
			"document_count": len(in.Documents),
		},
	}
}

// ReasonFor renders the audit reason recorded when screening hands off to review.
func (r AutomatedReview) ReasonFor() string {
	return fmt.Sprintf("automated screening: %s (%d)", r.Status, r.ConfidenceScore)
}

func candidateNames(in ScreeningInput) []string {
	names := []string{}
	if declared := strings.TrimSpace(in.DeclaredName); declared != "" {
		names = append(names, declared)
	}
	for _, doc := range orderedDocuments(in.Documents) {
		if extracted := strings.TrimSpace(in.Signals[doc.Type].ExtractedName); extracted != "" {
			names = append(names, extracted)
		}
	}
	return names
}

// namesMatch is true when every candidate agrees with the account name. With
// no candidate there is nothing to contradict the account name.
func namesMatch(account string, candidates []string) bool {
	if len(candidates) == 0 {
		return true
	}
	accountTokens := nameTokens(account)
	for _, candidate := range candidates {
		if !tokensAgree(accountTokens, nameTokens(candidate)) {
			return false
		}
	}
	return true
}

// tokensAgree reports whether the shorter token set is contained in the longer one,
// so a middle name or initial on one side does not count as a mismatch.
func tokensAgree(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	shorter, longer := a, b
	if len(b) < len(a) {
		shorter, longer = b, a
	}
	set := make(map[string]struct{}, len(longer))
	for _, token := range longer {
		set[token] = struct{}{}
	}
	for _, token := range shorter {
		if _, ok := set[token]; !ok {
			return false
		}
	}
	return true
}

func nameTokens(name string) []string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func hasPlaceholderWord(fileName string) bool {
	lowered := strings.ToLower(fileName)
	for _, word := range placeholderWords {
		if strings.Contains(lowered, word) {
			return true
		}
	}
	return false
}

// orderedDocuments sorts by type so flag order does not depend on upload order.
func orderedDocuments(docs []models.VerificationDocument) []models.VerificationDocument {
	out := make([]models.VerificationDocument, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
