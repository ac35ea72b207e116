package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey     = "trace_id"
	MessageIDKey   = "message_id"
	ServiceNameKey = "service_name"
	TenantIDKey    = "tenant_id"
	LogIDKey       = "log_id"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, contextKey(TraceIDKey), traceID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, contextKey(MessageIDKey), messageID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, contextKey(ServiceNameKey), serviceName)
}

// WithRecordKey attaches the (tenant_id, log_id) pair a delivery resolved to.
func WithRecordKey(ctx context.Context, tenantID, logID string) context.Context {
	ctx = context.WithValue(ctx, contextKey(TenantIDKey), tenantID)
	return context.WithValue(ctx, contextKey(LogIDKey), logID)
}

func GetTraceID(ctx context.Context) string {
	return getString(ctx, TraceIDKey)
}

func GetMessageID(ctx context.Context) string {
	return getString(ctx, MessageIDKey)
}

func GetServiceName(ctx context.Context) string {
	return getString(ctx, ServiceNameKey)
}

func GetTenantID(ctx context.Context) string {
	return getString(ctx, TenantIDKey)
}

func GetLogID(ctx context.Context) string {
	return getString(ctx, LogIDKey)
}

func getString(ctx context.Context, key string) string {
	if v, ok := ctx.Value(contextKey(key)).(string); ok {
		return v
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 10)

	for _, key := range []string{TraceIDKey, MessageIDKey, ServiceNameKey, TenantIDKey, LogIDKey} {
		if v := getString(ctx, key); v != "" {
			fields = append(fields, key, v)
		}
	}

	return fields
}
