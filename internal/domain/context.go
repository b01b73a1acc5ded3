package domain

import "context"

type contextKey string

const adminSessionKey contextKey = "admin_session"

// WithAdminSession returns a context carrying the authenticated admin session
func WithAdminSession(ctx context.Context, session *AdminSession) context.Context {
	return context.WithValue(ctx, adminSessionKey, session)
}

// GetAdminSessionFromContext returns the admin session set by the auth middleware
func GetAdminSessionFromContext(ctx context.Context) *AdminSession {
	if session, ok := ctx.Value(adminSessionKey).(*AdminSession); ok {
		return session
	}
	return nil
}
