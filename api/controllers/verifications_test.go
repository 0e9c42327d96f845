package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/railexchange-backend/internal/checkout"
	"github.com/angelmondragon/railexchange-backend/internal/verification"
	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
)

type fakeOwnerService struct {
	upload  verification.RequestUploadInput
	details verification.DetailsInput
	tier    string
	path    enums.VerificationPath
	owner   uuid.UUID
	err     error
}

func (f *fakeOwnerService) record() *models.VerificationRecord {
	return &models.VerificationRecord{ID: uuid.New(), OwnerID: f.owner, Path: f.path, Status: enums.VerificationStatusDraft}
}

func (f *fakeOwnerService) RequestUpload(_ context.Context, in verification.RequestUploadInput) (*verification.UploadTarget, error) {
	f.upload = in
	if f.err != nil {
		return nil, f.err
	}
	return &verification.UploadTarget{RecordID: uuid.New(), StorageKey: "verification/key", SignedURL: "https://storage.example/put"}, nil
}

func (f *fakeOwnerService) DeclareDetails(_ context.Context, ownerID uuid.UUID, path enums.VerificationPath, in verification.DetailsInput) (*models.VerificationRecord, error) {
	f.owner, f.path, f.details = ownerID, path, in
	if f.err != nil {
		return nil, f.err
	}
	return f.record(), nil
}

func (f *fakeOwnerService) Submit(_ context.Context, ownerID uuid.UUID, path enums.VerificationPath) (*models.VerificationRecord, error) {
	f.owner, f.path = ownerID, path
	if f.err != nil {
		return nil, f.err
	}
	rec := f.record()
	rec.Status = enums.VerificationStatusPendingAdmin
	return rec, nil
}

func (f *fakeOwnerService) Restart(_ context.Context, ownerID uuid.UUID, path enums.VerificationPath) (*models.VerificationRecord, error) {
	f.owner, f.path = ownerID, path
	if f.err != nil {
		return nil, f.err
	}
	return f.record(), nil
}

func (f *fakeOwnerService) SelectTier(_ context.Context, ownerID uuid.UUID, path enums.VerificationPath, tier string) (*models.VerificationRecord, error) {
	f.owner, f.path, f.tier = ownerID, path, tier
	if f.err != nil {
		return nil, f.err
	}
	return f.record(), nil
}

func (f *fakeOwnerService) Get(_ context.Context, ownerID uuid.UUID, path enums.VerificationPath) (*models.VerificationRecord, error) {
	f.owner, f.path = ownerID, path
	if f.err != nil {
		return nil, f.err
	}
	return f.record(), nil
}

func (f *fakeOwnerService) ListForOwner(_ context.Context, ownerID uuid.UUID) ([]models.VerificationRecord, error) {
	f.owner = ownerID
	if f.err != nil {
		return nil, f.err
	}
	return []models.VerificationRecord{*f.record()}, nil
}

type fakeVerificationCheckout struct {
	path enums.VerificationPath
}

func (f *fakeVerificationCheckout) CreateVerificationCheckout(_ context.Context, _ uuid.UUID, path enums.VerificationPath) (*checkout.Session, error) {
	f.path = path
	return &checkout.Session{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1"}, nil
}

func ownerRequest(method, target, body string, ownerID uuid.UUID, path string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req = withUser(req, ownerID)
	if path != "" {
		req = addRouteParam(req, "path", path)
	}
	return req
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	return envelope.Error.Code
}

func TestRequestDocumentUploadCreatesTarget(t *testing.T) {
	svc := &fakeOwnerService{}
	owner := uuid.New()
	req := ownerRequest(http.MethodPost, "/api/v1/verifications/seller/documents",
		`{"documentType":"business_license","fileName":"  license.pdf ","mimeType":"application/pdf","sizeBytes":2048}`, owner, "seller")

	resp := httptest.NewRecorder()
	RequestDocumentUpload(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.upload.OwnerID != owner || svc.upload.Path != enums.VerificationPathSeller {
		t.Fatalf("unexpected upload input %+v", svc.upload)
	}
	if svc.upload.FileName != "license.pdf" || svc.upload.SizeBytes != 2048 {
		t.Fatalf("expected sanitized input, got %+v", svc.upload)
	}
}

func TestRequestDocumentUploadRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		path string
		body string
	}{
		{name: "unknown path", path: "wholesaler", body: `{"documentType":"business_license","fileName":"a.pdf","mimeType":"application/pdf","sizeBytes":1}`},
		{name: "missing size", path: "seller", body: `{"documentType":"business_license","fileName":"a.pdf","mimeType":"application/pdf"}`},
		{name: "unknown field", path: "seller", body: `{"documentType":"business_license","fileName":"a.pdf","mimeType":"application/pdf","sizeBytes":1,"extra":true}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeOwnerService{}
			req := ownerRequest(http.MethodPost, "/api/v1/verifications/"+tc.path+"/documents", tc.body, uuid.New(), tc.path)
			resp := httptest.NewRecorder()
			RequestDocumentUpload(svc, testLogger())(resp, req)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", resp.Code)
			}
			if svc.upload.OwnerID != uuid.Nil {
				t.Fatal("service should not be called")
			}
		})
	}
}

func TestOwnerRoutesRequireUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verifications/seller/submit", nil)
	req = addRouteParam(req, "path", "seller")
	resp := httptest.NewRecorder()
	SubmitVerification(&fakeOwnerService{}, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestDeclareVerificationDetailsParsesExpiries(t *testing.T) {
	svc := &fakeOwnerService{}
	req := ownerRequest(http.MethodPut, "/api/v1/verifications/contractor/details",
		`{"legalName":"Jane Doe","businessName":"Doe Rail LLC","documentExpiries":{"insurance_certificate":"2027-01-31T00:00:00Z"}}`,
		uuid.New(), "contractor")

	resp := httptest.NewRecorder()
	DeclareVerificationDetails(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	want := time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC)
	if got := svc.details.DocumentExpiries[enums.DocumentTypeInsuranceCertificate]; !got.Equal(want) {
		t.Fatalf("expected insurance expiry %s, got %s", want, got)
	}
	if svc.details.LegalName != "Jane Doe" || svc.path != enums.VerificationPathContractor {
		t.Fatalf("unexpected details %+v", svc.details)
	}
}

func TestDeclareVerificationDetailsRejectsUnknownDocumentType(t *testing.T) {
	svc := &fakeOwnerService{}
	req := ownerRequest(http.MethodPut, "/api/v1/verifications/seller/details",
		`{"documentExpiries":{"passport_scan":"2027-01-31T00:00:00Z"}}`, uuid.New(), "seller")

	resp := httptest.NewRecorder()
	DeclareVerificationDetails(svc, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestSubmitVerificationPropagatesServiceErrors(t *testing.T) {
	svc := &fakeOwnerService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "record is not a draft")}
	req := ownerRequest(http.MethodPost, "/api/v1/verifications/seller/submit", "", uuid.New(), "seller")
	resp := httptest.NewRecorder()
	SubmitVerification(svc, testLogger())(resp, req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if code := decodeError(t, resp); code != string(pkgerrors.CodeStateConflict) {
		t.Fatalf("unexpected error code %s", code)
	}
}

func TestSelectVerificationTierTrimsTier(t *testing.T) {
	svc := &fakeOwnerService{}
	req := ownerRequest(http.MethodPut, "/api/v1/verifications/seller/tier", `{"tier":" priority "}`, uuid.New(), "seller")
	resp := httptest.NewRecorder()
	SelectVerificationTier(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.tier != "priority" {
		t.Fatalf("unexpected tier %q", svc.tier)
	}
}

func TestStartVerificationCheckout(t *testing.T) {
	svc := &fakeVerificationCheckout{}
	req := ownerRequest(http.MethodPost, "/api/v1/verifications/seller/checkout", "", uuid.New(), "seller")
	resp := httptest.NewRecorder()
	StartVerificationCheckout(svc, testLogger())(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.path != enums.VerificationPathSeller {
		t.Fatalf("unexpected path %s", svc.path)
	}
}

func TestListMyVerifications(t *testing.T) {
	owner := uuid.New()
	svc := &fakeOwnerService{}
	req := ownerRequest(http.MethodGet, "/api/v1/verifications", "", owner, "")
	resp := httptest.NewRecorder()
	ListMyVerifications(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data []verification.RecordDTO `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(envelope.Data) != 1 || svc.owner != owner {
		t.Fatalf("unexpected listing %+v", envelope.Data)
	}
}
