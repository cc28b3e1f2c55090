package auth

import "context"

type contextKey string

const (
	contextKeySections contextKey = "auth.sections"
	contextKeyRole     contextKey = "auth.role"
	contextKeyName     contextKey = "auth.name"
	contextKeySubject  contextKey = "auth.subject"
)

// WithIdentity stores auth identity details in context.
func WithIdentity(ctx context.Context, sections []string, role Role, name, subject string) context.Context {
	ctx = context.WithValue(ctx, contextKeySections, sections)
	ctx = context.WithValue(ctx, contextKeyRole, role)
	ctx = context.WithValue(ctx, contextKeyName, name)
	ctx = context.WithValue(ctx, contextKeySubject, subject)
	return ctx
}

// SectionsFromContext extracts the caller's allowed sections.
func SectionsFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if sections, ok := ctx.Value(contextKeySections).([]string); ok {
		return sections
	}
	return nil
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

// NameFromContext extracts the display name from context.
func NameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if name, ok := ctx.Value(contextKeyName).(string); ok {
		return name
	}
	return ""
}

// SubjectFromContext extracts subject from context.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if subject, ok := ctx.Value(contextKeySubject).(string); ok {
		return subject
	}
	return ""
}
