package verification

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
)

func validUpload() RequestUploadInput {
	return RequestUploadInput{
		OwnerID:      uuid.New(),
		Path:         enums.VerificationPathSeller,
		DocumentType: "identity_document",
		FileName:     "passport.pdf",
		MimeType:     "application/pdf",
		SizeBytes:    2048,
	}
}

func TestValidateUploadRejectsBadInput(t *testing.T) {
	cases := map[string]func(in *RequestUploadInput){
		"missing owner":  func(in *RequestUploadInput) { in.OwnerID = uuid.Nil },
		"bad path":       func(in *RequestUploadInput) { in.Path = "buyer" },
		"bad type":       func(in *RequestUploadInput) { in.DocumentType = "selfie" },
		"bad mime":       func(in *RequestUploadInput) { in.MimeType = "application/zip" },
		"zero size":      func(in *RequestUploadInput) { in.SizeBytes = 0 },
		"too large":      func(in *RequestUploadInput) { in.SizeBytes = DefaultMaxUploadBytes + 1 },
		"empty filename": func(in *RequestUploadInput) { in.FileName = "  " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validUpload()
			mutate(&in)
			_, err := validateUpload(in, 0)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestValidateUploadNormalizes(t *testing.T) {
	in := validUpload()
	in.MimeType = "Image/JPG; charset=binary"
	in.FileName = `C:\scans\front.jpeg`
	in.SizeBytes = DefaultMaxUploadBytes

	v, err := validateUpload(in, 0)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", v.mimeType)
	assert.Equal(t, ".jpeg", v.ext)
	assert.Equal(t, "front.jpeg", v.fileName)
}

func TestStorageKeyLayout(t *testing.T) {
	owner := uuid.New()
	key := storageKey(owner, enums.DocumentTypeTaxDocument, ".pdf")
	prefix := "verifications/" + owner.String() + "/tax_document/"
	require.True(t, strings.HasPrefix(key, prefix), key)
	_, err := uuid.Parse(strings.TrimSuffix(strings.TrimPrefix(key, prefix), ".pdf"))
	require.NoError(t, err)
}

func TestUpsertDocumentReplacesByType(t *testing.T) {
	uploaded := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []models.VerificationDocument{
		{Type: enums.DocumentTypeIdentity, StorageKey: "old-id"},
		{Type: enums.DocumentTypeBusinessLicense, StorageKey: "license"},
	}
	out := upsertDocument(docs, models.VerificationDocument{Type: enums.DocumentTypeIdentity, StorageKey: "new-id", UploadedAt: uploaded})
	require.Len(t, out, 2)
	assert.Equal(t, "new-id", out[0].StorageKey)
	assert.Equal(t, "old-id", docs[0].StorageKey)

	out = upsertDocument(out, models.VerificationDocument{Type: enums.DocumentTypeTaxDocument, StorageKey: "tax"})
	require.Len(t, out, 3)

	identity, business := hasRequiredDocuments(out)
	assert.True(t, identity)
	assert.True(t, business)
	identity, business = hasRequiredDocuments(out[1:])
	assert.False(t, identity)
	assert.True(t, business)
}

func TestSanitizeFileNameKeepsValidUTF8WhenTruncating(t *testing.T) {
	raw := strings.Repeat("é", 150) + "x.pdf"

	got := sanitizeFileName(raw)

	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxFileNameLen)
	assert.True(t, strings.HasSuffix(got, "x.pdf"))
}

func TestSanitizeFileNameStripsPathsAndControls(t *testing.T) {
	assert.Equal(t, "scan.pdf", sanitizeFileName(`C:\Users\me\scan.pdf`))
	assert.Equal(t, "id.png", sanitizeFileName("../../id\x00.png"))
	assert.Empty(t, sanitizeFileName("  /  "))
}
