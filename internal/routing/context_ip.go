package routing

import "context"

// clientIPKey is an unexported context key for passing the client IP through
// internal layers.
//
// Webhook HTTP handlers (Gin) resolve the real client IP and attach it to the
// request context with WithClientIP; Dispatch includes it in routing logs.

type clientIPKey struct{}

func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIPFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(clientIPKey{}).(string); ok {
		return s
	}
	return ""
}
