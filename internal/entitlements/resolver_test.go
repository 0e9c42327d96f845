package entitlements

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
)

var now = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func activeVerification(path enums.VerificationPath) VerificationState {
	return VerificationState{Path: path, Status: enums.VerificationStatusActive, ExpiresAt: at(90 * 24 * time.Hour)}
}

func liveAnalytics() AddOn {
	return AddOn{Type: enums.AddOnAnalytics, Status: enums.AddOnStatusActive, ExpiresAt: at(24 * time.Hour)}
}

func TestResolve(t *testing.T) {
	seller := Profile{IsSeller: true, AccountTier: enums.AccountTierBasic}
	buyer := Profile{AccountTier: enums.AccountTierBuyer}
	proContractor := Profile{IsContractor: true, AccountTier: enums.AccountTierProfessional}
	proCompany := Profile{IsCompany: true, AccountTier: enums.AccountTierProfessional}

	cases := []struct {
		name          string
		profile       Profile
		verifications []VerificationState
		addons        []AddOn
		want          Capabilities
	}{
		{
			name:    "buyer is hard denied even with live analytics",
			profile: buyer,
			addons:  []AddOn{liveAnalytics()},
			want:    Capabilities{AnalyticsDenied: true},
		},
		{
			name:    "professional contractor gets analytics and listing without add-ons",
			profile: proContractor,
			want: Capabilities{
				CanListAsContractor: true,
				HasAnalytics:        true,
				AnalyticsSource:     AnalyticsFromProfessionalTier,
			},
		},
		{
			name:    "professional company counts as contractor",
			profile: proCompany,
			want: Capabilities{
				CanListAsContractor: true,
				HasAnalytics:        true,
				AnalyticsSource:     AnalyticsFromProfessionalTier,
			},
		},
		{
			name:          "verified seller with live analytics add-on",
			profile:       seller,
			verifications: []VerificationState{activeVerification(enums.VerificationPathSeller)},
			addons:        []AddOn{liveAnalytics()},
			want: Capabilities{
				CanSell:             true,
				HasAnalytics:        true,
				VerifiedBadgeActive: true,
				AnalyticsSource:     AnalyticsFromAddOn,
			},
		},
		{
			name:          "verified seller without analytics add-on",
			profile:       seller,
			verifications: []VerificationState{activeVerification(enums.VerificationPathSeller)},
			addons:        []AddOn{{Type: enums.AddOnPlacementElite, Status: enums.AddOnStatusActive}},
			want:          Capabilities{CanSell: true, VerifiedBadgeActive: true},
		},
		{
			name:          "lapsed add-on still stored active is absent",
			profile:       seller,
			verifications: []VerificationState{activeVerification(enums.VerificationPathSeller)},
			addons:        []AddOn{{Type: enums.AddOnAnalytics, Status: enums.AddOnStatusActive, ExpiresAt: at(-time.Minute)}},
			want:          Capabilities{CanSell: true, VerifiedBadgeActive: true},
		},
		{
			name:          "add-on expiring exactly now is absent",
			profile:       seller,
			verifications: []VerificationState{activeVerification(enums.VerificationPathSeller)},
			addons:        []AddOn{{Type: enums.AddOnAnalytics, Status: enums.AddOnStatusActive, ExpiresAt: at(0)}},
			want:          Capabilities{CanSell: true, VerifiedBadgeActive: true},
		},
		{
			name:          "canceled add-on is absent",
			profile:       seller,
			verifications: []VerificationState{activeVerification(enums.VerificationPathSeller)},
			addons:        []AddOn{{Type: enums.AddOnAnalytics, Status: enums.AddOnStatusCanceled}},
			want:          Capabilities{CanSell: true, VerifiedBadgeActive: true},
		},
		{
			name:    "seller verification past expiry grants nothing",
			profile: seller,
			verifications: []VerificationState{{
				Path:      enums.VerificationPathSeller,
				Status:    enums.VerificationStatusActive,
				ExpiresAt: at(-time.Second),
			}},
			addons: []AddOn{liveAnalytics()},
			want:   Capabilities{},
		},
		{
			name:          "rejected seller keeps flags false",
			profile:       seller,
			verifications: []VerificationState{{Path: enums.VerificationPathSeller, Status: enums.VerificationStatusRejected}},
			addons:        []AddOn{liveAnalytics()},
			want:          Capabilities{},
		},
		{
			name:          "contractor verification does not let a seller sell",
			profile:       Profile{IsSeller: true, IsContractor: true, AccountTier: enums.AccountTierBasic},
			verifications: []VerificationState{activeVerification(enums.VerificationPathContractor)},
			addons:        []AddOn{liveAnalytics()},
			want:          Capabilities{CanListAsContractor: true, VerifiedBadgeActive: true},
		},
		{
			name:    "basic tier without roles is not hard denied",
			profile: Profile{AccountTier: enums.AccountTierBasic},
			want:    Capabilities{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(tc.profile, tc.verifications, tc.addons, now)
			if got != tc.want {
				t.Fatalf("Resolve() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestResolveBuyerNeverGetsAnalytics(t *testing.T) {
	buyer := Profile{AccountTier: enums.AccountTierBuyer}
	for _, addOnType := range []enums.AddOnType{enums.AddOnAnalytics, enums.AddOnVerifiedBadge, enums.AddOnPlacementElite} {
		for _, status := range []enums.AddOnStatus{enums.AddOnStatusActive, enums.AddOnStatusExpired, enums.AddOnStatusCanceled} {
			got := Resolve(buyer, []VerificationState{activeVerification(enums.VerificationPathSeller)}, []AddOn{{Type: addOnType, Status: status}}, now)
			if got.HasAnalytics || !got.AnalyticsDenied {
				t.Fatalf("buyer with %s/%s resolved to %+v", addOnType, status, got)
			}
		}
	}
}

func TestResolveDoesNotMutateInputs(t *testing.T) {
	verifications := []VerificationState{{Path: enums.VerificationPathSeller, Status: enums.VerificationStatusActive, ExpiresAt: at(-time.Hour)}}
	addons := []AddOn{{Type: enums.AddOnAnalytics, Status: enums.AddOnStatusActive, ExpiresAt: at(-time.Hour)}}
	verificationsCopy := append([]VerificationState(nil), verifications...)
	addonsCopy := append([]AddOn(nil), addons...)

	Resolve(Profile{IsSeller: true, AccountTier: enums.AccountTierBasic}, verifications, addons, now)

	if !reflect.DeepEqual(verifications, verificationsCopy) || !reflect.DeepEqual(addons, addonsCopy) {
		t.Fatal("Resolve mutated its inputs")
	}
}

type stubUsers struct {
	user *models.User
	err  error
}

func (s stubUsers) GetTx(context.Context, *gorm.DB, uuid.UUID) (*models.User, error) {
	return s.user, s.err
}

type stubRecords struct {
	recs []models.VerificationRecord
	err  error
}

func (s stubRecords) ListForOwner(context.Context, uuid.UUID) ([]models.VerificationRecord, error) {
	return s.recs, s.err
}

type stubAddOns struct {
	rows []models.AddOnPurchase
	err  error
}

func (s stubAddOns) ListForOwner(context.Context, uuid.UUID) ([]models.AddOnPurchase, error) {
	return s.rows, s.err
}

func TestServiceForUser(t *testing.T) {
	id := uuid.New()
	user := &models.User{ID: id, IsSeller: true, AccountTier: enums.AccountTierBasic}
	recs := []models.VerificationRecord{{
		OwnerID:   id,
		Path:      enums.VerificationPathSeller,
		Status:    enums.VerificationStatusActive,
		ExpiresAt: at(time.Hour),
	}}
	rows := []models.AddOnPurchase{{OwnerID: id, AddOnType: enums.AddOnAnalytics, Status: enums.AddOnStatusActive}}

	svc, err := NewService(stubUsers{user: user}, stubRecords{recs: recs}, stubAddOns{rows: rows}, func() time.Time { return now })
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	caps, err := svc.ForUser(context.Background(), id)
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}
	if !caps.CanSell || !caps.HasAnalytics || caps.AnalyticsSource != AnalyticsFromAddOn {
		t.Fatalf("unexpected capabilities %+v", caps)
	}

	later, err := NewService(stubUsers{user: user}, stubRecords{recs: recs}, stubAddOns{rows: rows}, func() time.Time { return now.Add(2 * time.Hour) })
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	caps, err = later.ForUser(context.Background(), id)
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}
	if caps.CanSell || caps.HasAnalytics || caps.VerifiedBadgeActive {
		t.Fatalf("expected lapsed verification to grant nothing, got %+v", caps)
	}
}

func TestServiceForUserAgreesOnHealedAndRawRecords(t *testing.T) {
	id := uuid.New()
	user := &models.User{ID: id, IsSeller: true, AccountTier: enums.AccountTierBasic}
	lapsed := at(-time.Minute)
	raw := []models.VerificationRecord{{OwnerID: id, Path: enums.VerificationPathSeller, Status: enums.VerificationStatusActive, ExpiresAt: lapsed}}
	healed := []models.VerificationRecord{{OwnerID: id, Path: enums.VerificationPathSeller, Status: enums.VerificationStatusExpired, ExpiresAt: lapsed}}

	for name, recs := range map[string][]models.VerificationRecord{"raw": raw, "healed": healed} {
		svc, err := NewService(stubUsers{user: user}, stubRecords{recs: recs}, stubAddOns{}, func() time.Time { return now })
		if err != nil {
			t.Fatalf("new service: %v", err)
		}
		caps, err := svc.ForUser(context.Background(), id)
		if err != nil {
			t.Fatalf("%s: ForUser: %v", name, err)
		}
		if caps.CanSell || caps.VerifiedBadgeActive {
			t.Fatalf("%s: expected lapsed seller verification to grant nothing, got %+v", name, caps)
		}
	}
}

func TestServiceForUserErrors(t *testing.T) {
	svc, err := NewService(stubUsers{err: pkgerrors.New(pkgerrors.CodeNotFound, "user not found")}, stubRecords{}, stubAddOns{}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.ForUser(context.Background(), uuid.Nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.ForUser(context.Background(), uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	svc, _ = NewService(stubUsers{user: &models.User{}}, stubRecords{err: errors.New("db down")}, stubAddOns{}, nil)
	if _, err := svc.ForUser(context.Background(), uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}

	if _, err := NewService(nil, stubRecords{}, stubAddOns{}, nil); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error for missing users, got %v", err)
	}
}
