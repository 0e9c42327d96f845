package addons

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/internal/notifications"
	dbpkg "github.com/angelmondragon/railexchange-backend/pkg/db"
	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
	"github.com/angelmondragon/railexchange-backend/pkg/outbox"
)

type fixture struct {
	ctx   context.Context
	conn  *gorm.DB
	svc   *Service
	now   time.Time
	owner uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&models.AddOnPurchase{}, &models.Notification{}, &models.OutboxEvent{}))

	logg := logger.New(logger.Options{ServiceName: "addons-test"})
	events := outbox.NewService(outbox.NewRepository(conn), logg)
	notifier, err := notifications.NewService(notifications.NewRepository(conn), events)
	require.NoError(t, err)

	f := &fixture{
		ctx:   context.Background(),
		conn:  conn,
		now:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		owner: uuid.New(),
	}
	f.svc, err = NewService(ServiceParams{
		DB:       dbpkg.Wrap(conn),
		Repo:     NewRepository(conn),
		Notifier: notifier,
		Outbox:   events,
		Logger:   logg,
		Now:      func() time.Time { return f.now },
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) purchase(t *testing.T, addOnType enums.AddOnType, ref string) *models.AddOnPurchase {
	t.Helper()
	row, err := f.svc.Purchase(f.ctx, nil, PurchaseInput{
		OwnerID:    f.owner,
		AddOnType:  addOnType,
		Duration:   DefaultDuration(addOnType, 0),
		PaymentRef: ref,
		AmountPaid: decimal.RequireFromString("49.00"),
	})
	require.NoError(t, err)
	return row
}

func (f *fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func TestDefaultDuration(t *testing.T) {
	assert.Equal(t, DefaultPeriod, DefaultDuration(enums.AddOnPlacementElite, 0))
	assert.Equal(t, 7*24*time.Hour, DefaultDuration(enums.AddOnAnalytics, 7*24*time.Hour))
	assert.Zero(t, DefaultDuration(enums.AddOnSpecSheet, time.Hour))
	assert.Zero(t, DefaultDuration(enums.AddOnAIDescription, 0))
}

func TestPurchaseTimedAndPermanent(t *testing.T) {
	f := newFixture(t)

	timed := f.purchase(t, enums.AddOnPlacementPremium, "cs_premium")
	assert.Equal(t, enums.AddOnStatusActive, timed.Status)
	require.NotNil(t, timed.ExpiresAt)
	assert.True(t, timed.ExpiresAt.Equal(f.now.Add(DefaultPeriod)))
	assert.Equal(t, "usd", timed.Currency)

	permanent := f.purchase(t, enums.AddOnSpecSheet, "cs_sheet")
	assert.Nil(t, permanent.ExpiresAt)

	assert.Equal(t, int64(2), f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventAddOnPurchased))
}

func TestPurchaseReplayReturnsExistingRow(t *testing.T) {
	f := newFixture(t)
	first := f.purchase(t, enums.AddOnAnalytics, "cs_analytics")
	second := f.purchase(t, enums.AddOnAnalytics, "cs_analytics")

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), f.count(t, &models.AddOnPurchase{}, "owner_id = ?", f.owner))
	assert.Equal(t, int64(1), f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventAddOnPurchased))
}

func TestPurchasePaymentRefReusedElsewhereConflicts(t *testing.T) {
	f := newFixture(t)
	f.purchase(t, enums.AddOnAnalytics, "cs_shared")

	_, err := f.svc.Purchase(f.ctx, nil, PurchaseInput{
		OwnerID:    uuid.New(),
		AddOnType:  enums.AddOnAnalytics,
		PaymentRef: "cs_shared",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestPurchaseValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]PurchaseInput{
		"missing owner":    {AddOnType: enums.AddOnAnalytics},
		"bad type":         {OwnerID: f.owner, AddOnType: "gold_star"},
		"negative period":  {OwnerID: f.owner, AddOnType: enums.AddOnAnalytics, Duration: -time.Hour},
		"negative payment": {OwnerID: f.owner, AddOnType: enums.AddOnAnalytics, AmountPaid: decimal.NewFromInt(-1)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Purchase(f.ctx, nil, in)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestPurchaseJoinsCallerTransaction(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	err := f.conn.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.Purchase(f.ctx, tx, PurchaseInput{OwnerID: f.owner, AddOnType: enums.AddOnVerifiedBadge})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, f.count(t, &models.AddOnPurchase{}, "owner_id = ?", f.owner))
	assert.Zero(t, f.count(t, &models.OutboxEvent{}, "1 = 1"))
}

func TestListForOwnerAppliesLazyExpiry(t *testing.T) {
	f := newFixture(t)
	boost := f.purchase(t, enums.AddOnPlacementBoost, "cs_boost")
	f.purchase(t, enums.AddOnAIDescription, "cs_ai")

	f.now = boost.ExpiresAt.Add(time.Minute)
	rows, err := f.svc.ListForOwner(f.ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byType := map[enums.AddOnType]models.AddOnPurchase{}
	for _, row := range rows {
		byType[row.AddOnType] = row
	}
	assert.Equal(t, enums.AddOnStatusExpired, byType[enums.AddOnPlacementBoost].Status)
	assert.Equal(t, enums.AddOnStatusActive, byType[enums.AddOnAIDescription].Status)

	stored, err := f.svc.repo.FindByID(f.ctx, boost.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AddOnStatusActive, stored.Status, "listing never writes")
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	row := f.purchase(t, enums.AddOnPlacementFeatured, "cs_featured")

	_, err := f.svc.Cancel(f.ctx, uuid.New(), row.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	canceled, err := f.svc.Cancel(f.ctx, f.owner, row.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AddOnStatusCanceled, canceled.Status)
	require.NotNil(t, canceled.CanceledAt)

	_, err = f.svc.Cancel(f.ctx, f.owner, row.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCancelLapsedIsConflict(t *testing.T) {
	f := newFixture(t)
	row := f.purchase(t, enums.AddOnPlacementBoost, "cs_boost")
	f.now = row.ExpiresAt.Add(time.Second)

	_, err := f.svc.Cancel(f.ctx, f.owner, row.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestSweepExpired(t *testing.T) {
	f := newFixture(t)
	elite := f.purchase(t, enums.AddOnPlacementElite, "cs_elite")
	f.purchase(t, enums.AddOnAnalytics, "cs_analytics")
	f.purchase(t, enums.AddOnSpecSheet, "cs_sheet")
	f.now = f.now.Add(10 * 24 * time.Hour)
	fresh := f.purchase(t, enums.AddOnPlacementBoost, "cs_boost")

	sweepAt := elite.ExpiresAt.Add(time.Hour)
	n, err := f.svc.SweepExpired(f.ctx, sweepAt, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, int64(2), f.count(t, &models.AddOnPurchase{}, "status = ?", enums.AddOnStatusExpired))
	assert.Equal(t, int64(2), f.count(t, &models.AddOnPurchase{}, "status = ?", enums.AddOnStatusActive))
	assert.Equal(t, int64(2), f.count(t, &models.Notification{}, "type = ?", enums.NotificationAddOnExpired))
	assert.Equal(t, int64(2), f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventAddOnExpired))

	stored, err := f.svc.repo.FindByID(f.ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AddOnStatusActive, stored.Status)

	n, err = f.svc.SweepExpired(f.ctx, sweepAt, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestToDTO(t *testing.T) {
	row := models.AddOnPurchase{
		ID:         uuid.New(),
		AddOnType:  enums.AddOnSpecSheet,
		Status:     enums.AddOnStatusActive,
		AmountPaid: decimal.RequireFromString("12.5"),
		Currency:   "usd",
	}
	dto := ToDTO(row)
	assert.True(t, dto.Permanent)
	assert.Equal(t, "12.50", dto.AmountPaid)
	assert.Equal(t, "Spec sheet", dto.Label)

	row.AmountPaid, row.Currency = decimal.NewFromInt(4900), "jpy"
	assert.Equal(t, "4900", ToDTO(row).AmountPaid)
}
