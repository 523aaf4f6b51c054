package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/omnierp/controlplane/pkg/constants"
)

var (
	ErrNoLogger   = errors.New("logger not found")
	ErrNoTenantID = errors.New("tenant id not found in context")
)

// WithLogger returns a new context carrying a request-scoped log entry.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the logger from the context.
func UseLogger(ctx context.Context) *logrus.Entry {
	logger := ctx.Value(constants.LoggerKey)
	if logger == nil {
		panic("logger not found")
	}
	return logger.(*logrus.Entry)
}

func WithTenantID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.TenantIDKey, id)
}

func UseTenantID(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(constants.TenantIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrNoTenantID
	}
	return id, nil
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, constants.RequestIDKey, id)
}

func UseRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(constants.RequestIDKey).(string); ok {
		return id
	}
	return ""
}
