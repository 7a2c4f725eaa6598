package store

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// QueryInterceptor is the subset of *sql.DB the stores use.
type QueryInterceptor interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type requestIDKey struct{}

// WithRequestID tags every statement logged for ctx with id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id set by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type queryInterceptor struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

func newQueryInterceptor(db *sql.DB) *queryInterceptor {
	return &queryInterceptor{
		db:     db,
		logger: zap.S().Named("store"),
	}
}

func (q *queryInterceptor) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	defer q.log(ctx, "query_row", query, args, time.Now())
	return q.db.QueryRowContext(ctx, query, args...)
}

func (q *queryInterceptor) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	defer q.log(ctx, "query", query, args, time.Now())
	return q.db.QueryContext(ctx, query, args...)
}

func (q *queryInterceptor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	defer q.log(ctx, "exec", query, args, time.Now())
	return q.db.ExecContext(ctx, query, args...)
}

func (q *queryInterceptor) log(ctx context.Context, kind, query string, args []any, start time.Time) {
	q.logger.Debugw(kind, "request_id", RequestID(ctx), "query", query, "args", args, "duration", time.Since(start))
}
