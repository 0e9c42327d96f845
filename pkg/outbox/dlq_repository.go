package outbox

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/pagination"
)

const maxErrorLen = 1024

// DLQRepository stores rows the publisher gave up on. Rows are written by the
// publisher and read back by operators through the admin surface.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx must run in the same transaction that marks the source row terminal.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errTxRequired
	}
	if entry.ErrorMessage != nil {
		msg := clipError(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// Get returns the dead letter recorded for an outbox event.
func (r *DLQRepository) Get(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var entry models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dead letter")
	}
	return &entry, nil
}

// Page lists dead letters newest first, keyed on (failed_at, id).
func (r *DLQRepository) Page(ctx context.Context, params pagination.Params) (pagination.Page[models.OutboxDLQ], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.OutboxDLQ]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	var rows []models.OutboxDLQ
	err = r.db.WithContext(ctx).
		Model(&models.OutboxDLQ{}).
		Scopes(pagination.Seek("failed_at", cursor, pagination.Descending)).
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return pagination.Page[models.OutboxDLQ]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters")
	}
	return pagination.BuildPage(rows, params.Limit, func(row models.OutboxDLQ) pagination.Cursor {
		return pagination.Cursor{At: row.FailedAt, ID: row.ID}
	}), nil
}

// clipError trims to the column budget without splitting a rune.
func clipError(message string) string {
	if len(message) <= maxErrorLen {
		return message
	}
	cut := maxErrorLen
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}
