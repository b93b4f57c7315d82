package logger

import (
	"context"
	"log/slog"
)

type contextKey string

// Log field names for request-scoped values. They match the request logger's
// request_id so access logs and embed logs join on one field.
const (
	requestIDKey contextKey = "request_id"
	batchSizeKey contextKey = "batch_size"
	stageKey     contextKey = "embed_stage"
)

// Stages an embed call moves through inside the encoder handle.
const (
	StageQueued    = "queued"
	StageInference = "inference"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func WithBatchSize(ctx context.Context, size int) context.Context {
	return context.WithValue(ctx, batchSizeKey, size)
}

func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// RequestID returns the request ID stored by WithRequestID, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func requestAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		attrs = append(attrs, slog.String(string(requestIDKey), id))
	}
	if size, ok := ctx.Value(batchSizeKey).(int); ok {
		attrs = append(attrs, slog.Int(string(batchSizeKey), size))
	}
	if stage, ok := ctx.Value(stageKey).(string); ok && stage != "" {
		attrs = append(attrs, slog.String(string(stageKey), stage))
	}
	return attrs
}
