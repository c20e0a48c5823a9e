package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey     = "trace_id"
	RunIDKey       = "run_id"
	TaskKey        = "task"
	WorkflowKey    = "workflow"
	ServiceNameKey = "service_name"
)

var orderedKeys = []string{TraceIDKey, RunIDKey, TaskKey, WorkflowKey, ServiceNameKey}

func with(ctx context.Context, key, value string) context.Context {
	return context.WithValue(ctx, contextKey(key), value)
}

func get(ctx context.Context, key string) string {
	if v, ok := ctx.Value(contextKey(key)).(string); ok {
		return v
	}
	return ""
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return with(ctx, TraceIDKey, traceID)
}

func WithRunID(ctx context.Context, runID string) context.Context {
	return with(ctx, RunIDKey, runID)
}

func WithTask(ctx context.Context, task string) context.Context {
	return with(ctx, TaskKey, task)
}

func WithWorkflow(ctx context.Context, workflow string) context.Context {
	return with(ctx, WorkflowKey, workflow)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return with(ctx, ServiceNameKey, serviceName)
}

func GetTraceID(ctx context.Context) string {
	return get(ctx, TraceIDKey)
}

func GetRunID(ctx context.Context) string {
	return get(ctx, RunIDKey)
}

func GetTask(ctx context.Context) string {
	return get(ctx, TaskKey)
}

func GetWorkflow(ctx context.Context) string {
	return get(ctx, WorkflowKey)
}

func GetServiceName(ctx context.Context) string {
	return get(ctx, ServiceNameKey)
}

// GetLogFields returns the context values as alternating key/value pairs,
// suitable for the sugared *w logging calls.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, len(orderedKeys)*2)
	for _, key := range orderedKeys {
		if v := get(ctx, key); v != "" {
			fields = append(fields, key, v)
		}
	}
	return fields
}
