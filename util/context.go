package util

import (
	"context"
	"fmt"
)

type CtxKey string

const (
	CorrelationIdKey   CtxKey = "CorrelationId"
	MessageIdKey       CtxKey = "MessageId"
	NativeMessageIdKey CtxKey = "NativeMessageId"
	QueueUrlKey        CtxKey = "QueueUrl"
)

func ValueToCtx[T any](ctx context.Context, key CtxKey, value T) context.Context {
	return context.WithValue(ctx, key, value)
}

func ValueFromCtx[T any](ctx context.Context, key CtxKey) (T, error) {
	raw := ctx.Value(key)
	if raw == nil {
		return *new(T), newContextError(ErrCodeValueNotFoundInContext, key, fmt.Sprintf("%v not found in context", key))
	}
	value, ok := raw.(T)
	if !ok {
		return *new(T), newContextError(ErrCodeInvalidValueInContext, key, fmt.Sprintf("%v is not of type %T on context", key, *new(T)))
	}
	return value, nil
}

// CorrelationIdToCtx stores the CorrelationId header of the message being
// handled.
func CorrelationIdToCtx(ctx context.Context, correlationId string) context.Context {
	return ValueToCtx(ctx, CorrelationIdKey, correlationId)
}

func CorrelationIdFromCtx(ctx context.Context) (string, error) {
	return ValueFromCtx[string](ctx, CorrelationIdKey)
}

// MessageIdToCtx stores the logical id of the message being handled.
func MessageIdToCtx(ctx context.Context, messageId string) context.Context {
	return ValueToCtx(ctx, MessageIdKey, messageId)
}

func MessageIdFromCtx(ctx context.Context) (string, error) {
	return ValueFromCtx[string](ctx, MessageIdKey)
}

// NativeMessageIdToCtx stores the id SQS assigned to the message.
func NativeMessageIdToCtx(ctx context.Context, nativeId string) context.Context {
	return ValueToCtx(ctx, NativeMessageIdKey, nativeId)
}

func NativeMessageIdFromCtx(ctx context.Context) (string, error) {
	return ValueFromCtx[string](ctx, NativeMessageIdKey)
}

func QueueUrlToCtx(ctx context.Context, queueUrl string) context.Context {
	return ValueToCtx(ctx, QueueUrlKey, queueUrl)
}

func QueueUrlFromCtx(ctx context.Context) (string, error) {
	return ValueFromCtx[string](ctx, QueueUrlKey)
}
