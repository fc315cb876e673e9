package auth

import "context"

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

type contextKey struct{}

type AuthContext struct {
	UserID     string
	Role       string
	SuperAdmin bool
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.UserID
}

func IsTeacher(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == RoleTeacher
}

func IsStudent(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == RoleStudent
}

func IsSuperAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	return ok && ac.Role == RoleTeacher && ac.SuperAdmin
}
