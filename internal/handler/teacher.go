package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/classpoints/internal/auth"
	"github.com/dukerupert/classpoints/internal/store"
)

type TeacherHandler struct {
	teachers *store.TeacherStore
	logger   *slog.Logger
}

func NewTeacherHandler(ts *store.TeacherStore, logger *slog.Logger) *TeacherHandler {
	return &TeacherHandler{teachers: ts, logger: logger}
}

func (h *TeacherHandler) List(w http.ResponseWriter, r *http.Request) {
	teachers, err := h.teachers.List()
	if err != nil {
		storeError(w, h.logger, "teachers", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(teachers))
}

type createTeacherRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"max=100"`
}

func (h *TeacherHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTeacherRequest
	if !decode(w, r, &req) {
		return
	}

	email := auth.NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = auth.NameFromEmail(email)
	}

	password, hash, err := tempPassword()
	if err != nil {
		h.logger.Error("temporary password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create teacher")
		return
	}

	teacher, err := h.teachers.Create(email, name, hash, false)
	if err != nil {
		storeError(w, h.logger, "teacher", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"teacher":            teacher,
		"temporary_password": password,
	})
}

func (h *TeacherHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	password, hash, err := tempPassword()
	if err != nil {
		h.logger.Error("temporary password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}
	if err := h.teachers.SetPassword(id, hash); err != nil {
		storeError(w, h.logger, "teacher", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"temporary_password": password})
}

// Delete removes a teacher account. The super admin and the caller's own
// account cannot be removed.
func (h *TeacherHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == auth.UserID(r.Context()) {
		writeError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}
	teacher, err := h.teachers.GetByID(id)
	if err != nil {
		storeError(w, h.logger, "teacher", err)
		return
	}
	if teacher == nil {
		writeError(w, http.StatusNotFound, "teacher not found")
		return
	}
	if teacher.SuperAdmin {
		writeError(w, http.StatusForbidden, "the super admin cannot be deleted")
		return
	}
	if err := h.teachers.Delete(id); err != nil {
		storeError(w, h.logger, "teacher", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
