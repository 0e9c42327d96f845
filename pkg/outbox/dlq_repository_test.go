package outbox

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/pagination"
)

func deadLetter(failedAt time.Time, message string) models.OutboxDLQ {
	return models.OutboxDLQ{
		ID:            uuid.New(),
		EventID:       uuid.New(),
		EventType:     enums.EventAddOnExpired,
		AggregateType: enums.AggregateAddOn,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &message,
		AttemptCount:  10,
		FailedAt:      failedAt,
	}
}

func TestDLQRepositoryInsertClipsMessage(t *testing.T) {
	conn := newOutboxTestDB(t)
	repo := NewDLQRepository(conn)
	entry := deadLetter(time.Now().UTC(), strings.Repeat("a", maxErrorLen-1)+"é")

	require.Error(t, repo.InsertTx(nil, entry))
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error { return repo.InsertTx(tx, entry) }))

	got, err := repo.Get(context.Background(), entry.EventID)
	require.NoError(t, err)
	require.NotNil(t, got.ErrorMessage)
	assert.Len(t, *got.ErrorMessage, maxErrorLen-1)
	assert.True(t, utf8.ValidString(*got.ErrorMessage))
}

func TestDLQRepositoryGetMissing(t *testing.T) {
	repo := NewDLQRepository(newOutboxTestDB(t))
	_, err := repo.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDLQRepositoryPagesNewestFirst(t *testing.T) {
	conn := newOutboxTestDB(t)
	repo := NewDLQRepository(conn)
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		entry := deadLetter(base.Add(time.Duration(i)*time.Hour), "boom")
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error { return repo.InsertTx(tx, entry) }))
	}

	first, err := repo.Page(context.Background(), pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.True(t, first.Items[0].FailedAt.After(first.Items[1].FailedAt))
	require.NotEmpty(t, first.NextCursor)

	second, err := repo.Page(context.Background(), pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.True(t, second.Items[0].FailedAt.Equal(base))
	assert.Empty(t, second.NextCursor)

	_, err = repo.Page(context.Background(), pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
