package auth

import "context"

type contextKey string

const (
	contextKeySubject contextKey = "auth.subject"
	contextKeyEmail   contextKey = "auth.email"
	contextKeyRole    contextKey = "auth.role"
	contextKeyToken   contextKey = "auth.token"
)

// WithIdentity stores auth identity details in context.
func WithIdentity(ctx context.Context, subject, email string, role Role) context.Context {
	ctx = context.WithValue(ctx, contextKeySubject, subject)
	ctx = context.WithValue(ctx, contextKeyEmail, email)
	ctx = context.WithValue(ctx, contextKeyRole, role)
	return ctx
}

// WithPrincipal stores only the subject; used by tools and tests.
func WithPrincipal(ctx context.Context, subject string) context.Context {
	return WithIdentity(ctx, subject, "", RoleAuthenticated)
}

// WithToken stores the raw bearer token so downstream REST calls can forward it.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKeyToken, token)
}

// SubjectFromContext extracts subject from context.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeySubject)
	if subject, ok := value.(string); ok {
		return subject
	}
	return ""
}

// PrincipalFromContext returns the current principal or false when none.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	subject := SubjectFromContext(ctx)
	return subject, subject != ""
}

// EmailFromContext extracts email from context.
func EmailFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if email, ok := ctx.Value(contextKeyEmail).(string); ok {
		return email
	}
	return ""
}

// RoleFromContext extracts role from context.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeyRole)
	if role, ok := value.(Role); ok {
		return role
	}
	if role, ok := value.(string); ok {
		if normalized, valid := NormalizeRole(role); valid {
			return normalized
		}
	}
	return ""
}

// TokenFromContext extracts the raw bearer token.
func TokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if token, ok := ctx.Value(contextKeyToken).(string); ok {
		return token
	}
	return ""
}
