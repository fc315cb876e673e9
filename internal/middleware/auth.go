package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/classpoints/internal/auth"
)

// TokenCookieName is the HttpOnly cookie that carries the access token.
const TokenCookieName = "classpoints_token"

// RequireAuth verifies the bearer token or token cookie and populates
// AuthContext.
func RequireAuth(issuer *auth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFrom(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			claims, err := issuer.Parse(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := auth.WithAuth(r.Context(), claims.Context())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTeacher checks that the authenticated user is a teacher.
func RequireTeacher(next http.Handler) http.Handler {
	return requireRole(auth.IsTeacher, next)
}

// RequireStudent checks that the authenticated user is a student.
func RequireStudent(next http.Handler) http.Handler {
	return requireRole(auth.IsStudent, next)
}

func requireRole(allowed func(context.Context) bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowed(r.Context()) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	if c, err := r.Cookie(TokenCookieName); err == nil {
		return c.Value
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
