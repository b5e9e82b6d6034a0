package services

import "context"

type contextKey string

const (
	wordKey      contextKey = "word"
	slugKey      contextKey = "slug"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

// WithWord annotates context with the vocabulary word being processed.
func WithWord(ctx context.Context, word string) context.Context {
	if word == "" {
		return ctx
	}
	return context.WithValue(ctx, wordKey, word)
}

// WordFromContext extracts the vocabulary word if present.
func WordFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(wordKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSlug annotates context with the clip identifier.
func WithSlug(ctx context.Context, slug string) context.Context {
	if slug == "" {
		return ctx
	}
	return context.WithValue(ctx, slugKey, slug)
}

// SlugFromContext extracts the clip identifier if present.
func SlugFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(slugKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
