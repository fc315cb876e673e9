package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/classpoints/internal/auth"
	"github.com/dukerupert/classpoints/internal/middleware"
	"github.com/dukerupert/classpoints/internal/store"
)

// Mailer delivers password-reset links.
type Mailer interface {
	Configured() bool
	SendPasswordReset(ctx context.Context, toEmail, name, token string, ttl time.Duration) error
}

type AuthConfig struct {
	// StudentEmailDomain restricts self sign-up; empty accepts any address.
	StudentEmailDomain string
	ResetTTL           time.Duration
	SecureCookies      bool
}

type AuthHandler struct {
	students *store.StudentStore
	teachers *store.TeacherStore
	issuer   *auth.Issuer
	mailer   Mailer
	cfg      AuthConfig
	logger   *slog.Logger
}

func NewAuthHandler(ss *store.StudentStore, ts *store.TeacherStore, issuer *auth.Issuer, mailer Mailer, cfg AuthConfig, logger *slog.Logger) *AuthHandler {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	return &AuthHandler{
		students: ss,
		teachers: ts,
		issuer:   issuer,
		mailer:   mailer,
		cfg:      cfg,
		logger:   logger,
	}
}

type signupRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      string    `json:"role"`
	User      any       `json:"user"`
}

func (h *AuthHandler) StudentSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decode(w, r, &req) {
		return
	}

	email := auth.NormalizeEmail(req.Email)
	if !auth.EmailInDomain(email, h.cfg.StudentEmailDomain) {
		writeError(w, http.StatusBadRequest, "email must be a "+h.cfg.StudentEmailDomain+" address")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	student, err := h.students.Create(strings.TrimSpace(req.Name), email, hash, nil)
	if err != nil {
		storeError(w, h.logger, "student", err)
		return
	}

	h.issue(w, http.StatusCreated, student.ID, auth.RoleStudent, false, student)
}

func (h *AuthHandler) StudentLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	student, err := h.students.GetByEmail(auth.NormalizeEmail(req.Email))
	if err != nil {
		storeError(w, h.logger, "student", err)
		return
	}
	if student == nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	ok, rehash := auth.CheckPassword(student.PasswordHash, req.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if rehash {
		h.upgrade(student.ID, req.Password, h.students.SetPassword)
	}

	h.issue(w, http.StatusOK, student.ID, auth.RoleStudent, false, student)
}

func (h *AuthHandler) TeacherLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	teacher, err := h.teachers.GetByEmail(auth.NormalizeEmail(req.Email))
	if err != nil {
		storeError(w, h.logger, "teacher", err)
		return
	}
	if teacher == nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	ok, rehash := auth.CheckPassword(teacher.PasswordHash, req.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if rehash {
		h.upgrade(teacher.ID, req.Password, h.teachers.SetPassword)
	}

	h.issue(w, http.StatusOK, teacher.ID, auth.RoleTeacher, teacher.SuperAdmin, teacher)
}

// upgrade replaces a legacy plaintext password with a bcrypt hash. A
// failure is logged and the login still succeeds.
func (h *AuthHandler) upgrade(id, password string, set func(id, hash string) error) {
	hash, err := auth.HashPassword(password)
	if err == nil {
		err = set(id, hash)
	}
	if err != nil {
		h.logger.Warn("legacy password upgrade failed", "user_id", id, "error", err)
		return
	}
	h.logger.Info("upgraded legacy password", "user_id", id)
}

func (h *AuthHandler) issue(w http.ResponseWriter, status int, id, role string, superAdmin bool, user any) {
	tok, err := h.issuer.Issue(id, role, superAdmin)
	if err != nil {
		h.logger.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    tok.Value,
		Path:     "/",
		Expires:  tok.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, status, loginResponse{
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
		Role:      role,
		User:      user,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	switch ac.Role {
	case auth.RoleStudent:
		student, err := h.students.GetByID(ac.UserID)
		if err != nil {
			storeError(w, h.logger, "student", err)
			return
		}
		if student == nil {
			writeError(w, http.StatusUnauthorized, "account no longer exists")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"role": ac.Role, "user": student})
	case auth.RoleTeacher:
		teacher, err := h.teachers.GetByID(ac.UserID)
		if err != nil {
			storeError(w, h.logger, "teacher", err)
			return
		}
		if teacher == nil {
			writeError(w, http.StatusUnauthorized, "account no longer exists")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"role": ac.Role, "user": teacher})
	default:
		writeError(w, http.StatusUnauthorized, "authentication required")
	}
}

type resetRequest struct {
	Email string `json:"email" validate:"required"`
}

// RequestReset always answers 202 so callers cannot probe for accounts.
func (h *AuthHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}
	defer writeJSON(w, http.StatusAccepted, map[string]string{"status": "if the account exists, a reset link has been sent"})

	if h.mailer == nil || !h.mailer.Configured() {
		h.logger.Warn("password reset requested but email is not configured")
		return
	}

	email := auth.NormalizeEmail(req.Email)
	token, err := auth.RandomToken(32)
	if err != nil {
		h.logger.Error("generate reset token", "error", err)
		return
	}
	expires := time.Now().Add(h.cfg.ResetTTL)

	var name string
	teacher, err := h.teachers.GetByEmail(email)
	if err != nil {
		h.logger.Error("reset lookup", "error", err)
		return
	}
	switch {
	case teacher != nil:
		err = h.teachers.SetResetToken(teacher.ID, token, expires)
		name = teacher.Name
	default:
		student, lerr := h.students.GetByEmail(email)
		if lerr != nil {
			h.logger.Error("reset lookup", "error", lerr)
			return
		}
		if student == nil {
			return
		}
		err = h.students.SetResetToken(student.ID, token, expires)
		name = student.Name
	}
	if err != nil {
		h.logger.Error("store reset token", "error", err)
		return
	}

	if err := h.mailer.SendPasswordReset(r.Context(), email, name, token, h.cfg.ResetTTL); err != nil {
		h.logger.Error("send reset email", "error", err)
	}
}

type confirmResetRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

func (h *AuthHandler) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req confirmResetRequest
	if !decode(w, r, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}

	now := time.Now()
	teacher, err := h.teachers.GetByResetToken(req.Token)
	if err != nil {
		storeError(w, h.logger, "teacher", err)
		return
	}
	if teacher != nil {
		if teacher.ResetExpiresAt == nil || now.After(*teacher.ResetExpiresAt) {
			writeError(w, http.StatusBadRequest, "reset link has expired")
			return
		}
		if err := h.teachers.SetPassword(teacher.ID, hash); err != nil {
			storeError(w, h.logger, "teacher", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	student, err := h.students.GetByResetToken(req.Token)
	if err != nil {
		storeError(w, h.logger, "student", err)
		return
	}
	if student == nil {
		writeError(w, http.StatusBadRequest, "reset link is invalid")
		return
	}
	if student.ResetExpiresAt == nil || now.After(*student.ResetExpiresAt) {
		writeError(w, http.StatusBadRequest, "reset link has expired")
		return
	}
	if err := h.students.SetPassword(student.ID, hash); err != nil {
		storeError(w, h.logger, "student", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
