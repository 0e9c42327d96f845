package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/outbox"
	"github.com/angelmondragon/railexchange-backend/pkg/outbox/payloads"
	paginationpkg "github.com/angelmondragon/railexchange-backend/pkg/pagination"
)

type fakeRepository struct {
	listFn        func(ctx context.Context, params listNotificationsParams) ([]models.Notification, error)
	markReadFn    func(ctx context.Context, ownerID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	markAllReadFn func(ctx context.Context, ownerID uuid.UUID, now time.Time) (int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, notification *models.Notification) error {
	return nil
}

func (f *fakeRepository) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil
}

func (f *fakeRepository) MarkRead(ctx context.Context, ownerID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, ownerID, notificationID, now)
	}
	return notificationMarkResult{}, nil
}

func (f *fakeRepository) MarkAllRead(ctx context.Context, ownerID uuid.UUID, now time.Time) (int64, error) {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx, ownerID, now)
	}
	return 0, nil
}

func (f *fakeRepository) DeleteReadBefore(context.Context, time.Time, int) (int64, error) {
	return 0, nil
}

type nopOutbox struct{}

func (nopOutbox) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error { return nil }

func newServiceWithRepo(repo Repository) Service {
	svc, _ := NewService(repo, nopOutbox{})
	return svc
}

func newNotificationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&models.Notification{}, &models.OutboxEvent{}))
	return conn
}

func TestService_ListNotifications(t *testing.T) {
	first := models.Notification{ID: uuid.New(), CreatedAt: time.Now()}
	second := models.Notification{ID: uuid.New(), CreatedAt: time.Now().Add(-time.Hour)}

	repo := &fakeRepository{
		listFn: func(ctx context.Context, params listNotificationsParams) ([]models.Notification, error) {
			if params.Limit != paginationpkg.LimitWithBuffer(1) {
				t.Fatalf("unexpected limit %d", params.Limit)
			}
			return []models.Notification{first, second}, nil
		},
	}

	svc := newServiceWithRepo(repo)
	result, err := svc.List(context.Background(), ListParams{OwnerID: uuid.New(), Limit: 1})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(result.Items))
	}
	if result.Cursor == "" {
		t.Fatal("expected cursor for next page")
	}
	decoded, err := paginationpkg.ParseCursor(result.Cursor)
	if err != nil {
		t.Fatalf("invalid cursor %q: %v", result.Cursor, err)
	}
	if decoded.ID != first.ID {
		t.Fatalf("expected cursor id %s got %s", first.ID, decoded.ID)
	}
}

func TestService_ListNotificationsInvalidCursor(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{})
	_, err := svc.List(context.Background(), ListParams{OwnerID: uuid.New(), Cursor: "bad"})
	if err == nil {
		t.Fatal("expected error for invalid cursor")
	}
	errCode := pkgerrors.As(err).Code()
	if errCode != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %s", errCode)
	}
}

func TestService_MarkRead(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, ownerID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: true, Updated: true}, nil
		},
	}
	svc := newServiceWithRepo(repo)
	if err := svc.MarkRead(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("unexpected mark read error: %v", err)
	}
}

func TestService_MarkReadNotFound(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, ownerID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: false}, nil
		},
	}
	svc := newServiceWithRepo(repo)
	if err := svc.MarkRead(context.Background(), uuid.New(), uuid.New()); err == nil {
		t.Fatal("expected not found error")
	} else if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestService_MarkAllReadError(t *testing.T) {
	repo := &fakeRepository{
		markAllReadFn: func(ctx context.Context, ownerID uuid.UUID, now time.Time) (int64, error) {
			return 0, errors.New("boom")
		},
	}
	svc := newServiceWithRepo(repo)
	if _, err := svc.MarkAllRead(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error")
	}
}

func TestService_EmitWritesRowAndOutboxEvent(t *testing.T) {
	conn := newNotificationsTestDB(t)
	svc, err := NewService(NewRepository(conn), outbox.NewService(outbox.NewRepository(conn), nil))
	require.NoError(t, err)
	ownerID := uuid.New()

	var created *models.Notification
	err = conn.Transaction(func(tx *gorm.DB) error {
		var emitErr error
		created, emitErr = svc.Emit(context.Background(), tx, Request{
			OwnerID: ownerID,
			Kind:    enums.NotificationVerificationRejected,
			Title:   "Verification rejected",
			Message: "blurry identity document",
			Link:    "/verifications/seller",
		})
		return emitErr
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	var rows []models.Notification
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, ownerID, rows[0].OwnerID)
	require.NotNil(t, rows[0].Link)

	var events []models.OutboxEvent
	require.NoError(t, conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventNotificationRequested, events[0].EventType)
	assert.Equal(t, created.ID, events[0].AggregateID)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	var data payloads.NotificationRequestedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, "blurry identity document", data.Message)
}

func TestService_EmitRollsBackWithTransaction(t *testing.T) {
	conn := newNotificationsTestDB(t)
	svc, err := NewService(NewRepository(conn), outbox.NewService(outbox.NewRepository(conn), nil))
	require.NoError(t, err)

	boom := errors.New("transition failed")
	err = conn.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.Emit(context.Background(), tx, Request{
			OwnerID: uuid.New(),
			Kind:    enums.NotificationVerificationApproved,
			Title:   "Approved",
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, conn.Model(&models.Notification{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestService_EmitValidatesRequest(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{})
	tx := &gorm.DB{}

	_, err := svc.Emit(context.Background(), tx, Request{Kind: enums.NotificationVerificationApproved, Title: "x"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Emit(context.Background(), tx, Request{OwnerID: uuid.New(), Kind: "bogus", Title: "x"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Emit(context.Background(), tx, Request{OwnerID: uuid.New(), Kind: enums.NotificationVerificationApproved, Title: "  "})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRepository_ListPagesAndDeletesReadRows(t *testing.T) {
	conn := newNotificationsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	ownerID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.Notification{
			OwnerID:   ownerID,
			Type:      enums.NotificationVerificationApproved,
			Title:     fmt.Sprintf("n%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, &models.Notification{
		OwnerID: uuid.New(), Type: enums.NotificationVerificationApproved, Title: "other", CreatedAt: base,
	}))

	rows, err := repo.List(ctx, listNotificationsParams{OwnerID: ownerID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "n2", rows[0].Title)

	rows, err = repo.List(ctx, listNotificationsParams{
		OwnerID: ownerID,
		Limit:   5,
		Cursor:  &paginationpkg.Cursor{At: rows[1].CreatedAt, ID: rows[1].ID},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "n0", rows[0].Title)

	mark, err := repo.MarkRead(ctx, ownerID, rows[0].ID, base.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, mark.Updated)

	mark, err = repo.MarkRead(ctx, uuid.New(), rows[0].ID, base.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, mark.Found)

	deleted, err := repo.DeleteReadBefore(ctx, base.Add(24*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
