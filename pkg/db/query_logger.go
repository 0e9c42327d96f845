package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

// queryLogger routes GORM output through the service logger. Only slow
// statements and unexpected failures are reported; missing rows are normal
// control flow for the repositories.
type queryLogger struct {
	logg *logger.Logger
	slow time.Duration
	mode gormlogger.LogLevel
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &queryLogger{logg: logg, slow: slow, mode: gormlogger.Warn}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *q
	cp.mode = level
	return &cp
}

func (q *queryLogger) Info(ctx context.Context, msg string, data ...any) {
	if q.mode >= gormlogger.Info {
		q.logg.Info(ctx, fmt.Sprintf(msg, data...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, data ...any) {
	if q.mode >= gormlogger.Warn {
		q.logg.Warn(ctx, fmt.Sprintf(msg, data...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, data ...any) {
	if q.mode >= gormlogger.Error {
		q.logg.Error(ctx, fmt.Sprintf(msg, data...), nil)
	}
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.mode <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && q.mode >= gormlogger.Error:
		stmt, rows := fc()
		q.logg.Error(q.fields(ctx, stmt, rows, elapsed), "db.query_failed", err)
	case q.slow > 0 && elapsed > q.slow && q.mode >= gormlogger.Warn:
		stmt, rows := fc()
		q.logg.Warn(q.fields(ctx, stmt, rows, elapsed), "db.query_slow")
	case q.mode >= gormlogger.Info:
		stmt, rows := fc()
		q.logg.Debug(q.fields(ctx, stmt, rows, elapsed), "db.query")
	}
}

func (q *queryLogger) fields(ctx context.Context, stmt string, rows int64, elapsed time.Duration) context.Context {
	return q.logg.WithFields(ctx, map[string]any{
		"sql":        stmt,
		"rows":       rows,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}
