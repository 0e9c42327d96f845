package verification

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
)

// DefaultMaxUploadBytes is the document size ceiling when none is configured.
const DefaultMaxUploadBytes int64 = 10 << 20

const maxFileNameLen = 200

var allowedMimeTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
}

// RequestUploadInput describes one document the owner intends to upload.
type RequestUploadInput struct {
	OwnerID      uuid.UUID
	Path         enums.VerificationPath
	DocumentType string
	FileName     string
	MimeType     string
	SizeBytes    int64
}

// UploadTarget is the write handle returned to the owner. The binary goes
// straight to object storage; the record only keeps the storage key.
type UploadTarget struct {
	RecordID     uuid.UUID          `json:"recordId"`
	DocumentType enums.DocumentType `json:"documentType"`
	StorageKey   string             `json:"storageKey"`
	SignedURL    string             `json:"signedUrl"`
	ExpiresAt    time.Time          `json:"expiresAt"`
}

// validatedUpload is a RequestUploadInput that passed every boundary check.
type validatedUpload struct {
	ownerID  uuid.UUID
	path     enums.VerificationPath
	docType  enums.DocumentType
	fileName string
	mimeType string
	ext      string
	size     int64
}

func validateUpload(in RequestUploadInput, maxBytes int64) (validatedUpload, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if in.OwnerID == uuid.Nil {
		return validatedUpload{}, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if !in.Path.IsValid() {
		return validatedUpload{}, pkgerrors.New(pkgerrors.CodeValidation, "path must be seller or contractor")
	}
	docType, err := enums.ParseDocumentType(strings.TrimSpace(in.DocumentType))
	if err != nil {
		return validatedUpload{}, pkgerrors.New(pkgerrors.CodeValidation, "unsupported document type").
			WithDetails(map[string]any{"documentType": in.DocumentType})
	}
	mimeType := normalizeMime(in.MimeType)
	ext, ok := allowedMimeTypes[mimeType]
	if !ok {
		return validatedUpload{}, pkgerrors.New(pkgerrors.CodeValidation, "mime type must be a pdf or an image (jpeg, png, webp, heic)").
			WithDetails(map[string]any{"mimeType": in.MimeType})
	}
	if in.SizeBytes <= 0 {
		return validatedUpload{}, pkgerrors.New(pkgerrors.CodeValidation, "size_bytes must be positive")
	}
	if in.SizeBytes > maxBytes {
		return validatedUpload{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file exceeds the %d byte limit", maxBytes)).
			WithDetails(map[string]any{"sizeBytes": in.SizeBytes, "maxBytes": maxBytes})
	}
	name := sanitizeFileName(in.FileName)
	if name == "" {
		return validatedUpload{}, pkgerrors.New(pkgerrors.CodeValidation, "file name is required")
	}
	if fileExt := strings.ToLower(path.Ext(name)); fileExt == ".jpeg" && ext == ".jpg" {
		ext = fileExt
	}
	return validatedUpload{
		ownerID:  in.OwnerID,
		path:     in.Path,
		docType:  docType,
		fileName: name,
		mimeType: mimeType,
		ext:      ext,
		size:     in.SizeBytes,
	}, nil
}

// storageKey lays documents out as verifications/{owner}/{type}/{uuid}{ext}.
func storageKey(ownerID uuid.UUID, docType enums.DocumentType, ext string) string {
	return fmt.Sprintf("verifications/%s/%s/%s%s", ownerID, docType, uuid.NewString(), ext)
}

// upsertDocument replaces the entry of the same type or appends a new one.
// The input slice is not modified.
func upsertDocument(docs []models.VerificationDocument, doc models.VerificationDocument) []models.VerificationDocument {
	out := make([]models.VerificationDocument, 0, len(docs)+1)
	replaced := false
	for _, existing := range docs {
		if existing.Type == doc.Type {
			if !replaced {
				out = append(out, doc)
				replaced = true
			}
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, doc)
	}
	return out
}

// hasRequiredDocuments reports whether submission may proceed: an identity
// document plus at least one business proof.
func hasRequiredDocuments(docs []models.VerificationDocument) (identity bool, business bool) {
	for _, doc := range docs {
		if doc.Type == enums.DocumentTypeIdentity {
			identity = true
		}
		if doc.Type.IsBusinessProof() {
			business = true
		}
	}
	return identity, business
}

func normalizeMime(raw string) string {
	mimeType := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "image/jpg" {
		return "image/jpeg"
	}
	return mimeType
}

func sanitizeFileName(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if len(name) > maxFileNameLen {
		// keep the tail so the extension survives, starting on a rune boundary
		cut := len(name) - maxFileNameLen
		for cut < len(name) && !utf8.RuneStart(name[cut]) {
			cut++
		}
		name = name[cut:]
	}
	return strings.TrimSpace(name)
}
