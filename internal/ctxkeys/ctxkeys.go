// Package ctxkeys 定义在 context 中传播事件元数据的键，供日志与
// 下游依赖调用在不显式传参的情况下读取当前事件的 event_id、
// idempotency_key 与 source（spec.md §4.8 Job Runner 调度上下文）。
package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	eventIDKey        contextKey = "event_id"
	idempotencyKeyKey contextKey = "idempotency_key"
	sourceKey         contextKey = "source"
	eventTypeKey      contextKey = "event_type"
)

// WithEventID 设置 EventID
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, eventIDKey, eventID)
}

// EventID 获取 EventID
func EventID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(eventIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithIdempotencyKey 设置 IdempotencyKey
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyKey, key)
}

// IdempotencyKey 获取 IdempotencyKey
func IdempotencyKey(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(idempotencyKeyKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithSource 设置事件来源
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey, source)
}

// Source 获取事件来源
func Source(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sourceKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithEventType 设置事件类型
func WithEventType(ctx context.Context, eventType string) context.Context {
	return context.WithValue(ctx, eventTypeKey, eventType)
}

// EventType 获取事件类型
func EventType(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(eventTypeKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
