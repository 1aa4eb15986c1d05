package middleware

import "context"

type contextKey string

const (
	ctxRequestID contextKey = "request_id"
	ctxClient    contextKey = "api_client"
)

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRequestID).(string); ok {
		return v
	}
	return ""
}

// ClientFromContext returns the fingerprint of the API key that authenticated the request.
func ClientFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxClient).(string); ok {
		return v
	}
	return ""
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

func withClient(ctx context.Context, client string) context.Context {
	return context.WithValue(ctx, ctxClient, client)
}
