package httpx

import "context"

type ctxKey string

const (
	CtxKeyUserID    ctxKey = "user_id"
	CtxKeySessionID ctxKey = "session_id"
	CtxKeyClientIP  ctxKey = "client_ip"
)

// WithPrincipal stores the authenticated user and session on ctx.
func WithPrincipal(ctx context.Context, userID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, userID)
	return context.WithValue(ctx, CtxKeySessionID, sessionID)
}

// UserID returns the authenticated user id, if any.
func UserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(CtxKeyUserID).(string)
	return v, ok && v != ""
}

// SessionID returns the id of the session that authenticated the request.
func SessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(CtxKeySessionID).(string)
	return v, ok && v != ""
}

// ClientIPFromContext returns the address resolved by ClientIPMiddleware.
func ClientIPFromContext(ctx context.Context) string {
	v, _ := ctx.Value(CtxKeyClientIP).(string)
	return v
}
