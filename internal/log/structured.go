package log

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"moneymanager/internal/core"
	"moneymanager/internal/trace"
)

// StructuredLogger writes the recurring log records of the persistence layer.
type StructuredLogger struct {
	logger *slog.Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *slog.Logger) *StructuredLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &StructuredLogger{logger: logger}
}

// LogRemoteCall logs a completed remote request. Client errors log at warn,
// server errors and transport failures at error.
func (sl *StructuredLogger) LogRemoteCall(ctx context.Context, method, path string, statusCode int, elapsed time.Duration, err error) {
	level := slog.LevelDebug
	switch {
	case err != nil && statusCode == 0:
		level = slog.LevelError
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}
	fields := NewFields().
		WithRemoteCall(method, path, statusCode, elapsed.Milliseconds()).
		WithError(err).
		WithErrorType(ErrorType(err))
	if id := trace.GetRequestID(ctx); id != "" {
		fields[FieldRequestID] = id
	}
	sl.logger.Log(ctx, level, "Remote request completed", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithErrorType(ErrorType(err)).
		WithOperation(operation)
	sl.logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}

// ErrorType maps an error onto one of the ErrorType categories.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, core.ErrValidation):
		return ErrorTypeValidation
	case errors.Is(err, core.ErrNetworkUnavailable):
		return ErrorTypeNetwork
	case errors.Is(err, core.ErrUnauthorized), errors.Is(err, core.ErrInvalidCredentials), errors.Is(err, core.ErrNotAuthenticated):
		return ErrorTypeAuth
	case errors.Is(err, core.ErrRejected):
		return ErrorTypeRejected
	case errors.Is(err, core.ErrInvalidServerResponse):
		return ErrorTypeResponse
	case errors.Is(err, core.ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, core.ErrDuplicateCategory), errors.Is(err, core.ErrAlreadyRegistered):
		return ErrorTypeConflict
	default:
		return ErrorTypeInternal
	}
}
