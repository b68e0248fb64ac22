package auth

import "context"

type ctxKey int

const ctxUserID ctxKey = iota

// WithUserID stores an already-authenticated user id in context. Upstream
// middleware that performs full authentication uses this so the consent
// layer can skip token work.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ctxUserID, userID)
}

// UserID returns the previously stored user id, if any.
func UserID(ctx context.Context) (int64, bool) {
	v := ctx.Value(ctxUserID)
	if id, ok := v.(int64); ok && id != 0 {
		return id, true
	}
	return 0, false
}
