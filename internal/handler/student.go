package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/classpoints/internal/auth"
	"github.com/dukerupert/classpoints/internal/model"
	"github.com/dukerupert/classpoints/internal/store"
	"github.com/dukerupert/classpoints/internal/websocket"
)

const tempPasswordBytes = 6

type StudentHandler struct {
	students  *store.StudentStore
	groups    *store.GroupStore
	semesters *store.SemesterStore
	awards    *store.AwardStore
	notifier
	logger *slog.Logger
}

func NewStudentHandler(ss *store.StudentStore, gs *store.GroupStore, sems *store.SemesterStore, as *store.AwardStore, b websocket.Broadcaster, logger *slog.Logger) *StudentHandler {
	return &StudentHandler{
		students:  ss,
		groups:    gs,
		semesters: sems,
		awards:    as,
		notifier:  notifier{b},
		logger:    logger,
	}
}

func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	students, err := h.students.List(semesterFilter(r))
	if err != nil {
		storeError(w, h.logger, "students", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(students))
}

// Get returns one student with their award history.
func (h *StudentHandler) Get(w http.ResponseWriter, r *http.Request) {
	student, ok := h.load(w, r)
	if !ok {
		return
	}
	awards, err := h.awards.ListForTarget(model.TargetStudent, student.ID)
	if err != nil {
		storeError(w, h.logger, "awards", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"student": student,
		"awards":  emptyIfNil(awards),
	})
}

type createStudentRequest struct {
	Name       string  `json:"name" validate:"required,max=100"`
	Email      string  `json:"email" validate:"required,email"`
	SemesterID *string `json:"semester_id"`
}

// Create adds a student with a random temporary password, returned once.
func (h *StudentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if !decode(w, r, &req) {
		return
	}

	semesterID := optional(req.SemesterID)
	if !h.semesterExists(w, semesterID) {
		return
	}

	password, hash, err := tempPassword()
	if err != nil {
		h.logger.Error("temporary password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create student")
		return
	}

	student, err := h.students.Create(strings.TrimSpace(req.Name), auth.NormalizeEmail(req.Email), hash, semesterID)
	if err != nil {
		storeError(w, h.logger, "student", err)
		return
	}

	h.broadcast("student", "created", student.ID, nil)
	writeJSON(w, http.StatusCreated, map[string]any{
		"student":            student,
		"temporary_password": password,
	})
}

type updateStudentRequest struct {
	Name       string  `json:"name" validate:"required,max=100"`
	GroupID    *string `json:"group_id"`
	SemesterID *string `json:"semester_id"`
	Version    int     `json:"version" validate:"required,gte=1"`
}

func (h *StudentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateStudentRequest
	if !decode(w, r, &req) {
		return
	}

	groupID := optional(req.GroupID)
	if groupID != nil {
		g, err := h.groups.GetByID(*groupID)
		if err != nil {
			storeError(w, h.logger, "group", err)
			return
		}
		if g == nil {
			writeError(w, http.StatusBadRequest, "group not found")
			return
		}
	}
	semesterID := optional(req.SemesterID)
	if !h.semesterExists(w, semesterID) {
		return
	}

	student, err := h.students.Update(id, req.Version, strings.TrimSpace(req.Name), groupID, semesterID)
	if err != nil {
		storeError(w, h.logger, "student", err)
		return
	}

	h.broadcast("student", "updated", id, nil)
	writeJSON(w, http.StatusOK, student)
}

// ResetPassword replaces the student's password with a new temporary one.
func (h *StudentHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	student, ok := h.load(w, r)
	if !ok {
		return
	}
	password, hash, err := tempPassword()
	if err != nil {
		h.logger.Error("temporary password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}
	if err := h.students.SetPassword(student.ID, hash); err != nil {
		storeError(w, h.logger, "student", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"temporary_password": password})
}

func (h *StudentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.students.Delete(id); err != nil {
		storeError(w, h.logger, "student", err)
		return
	}
	h.broadcast("student", "deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *StudentHandler) load(w http.ResponseWriter, r *http.Request) (*model.Student, bool) {
	student, err := h.students.GetByID(r.PathValue("id"))
	if err != nil {
		storeError(w, h.logger, "student", err)
		return nil, false
	}
	if student == nil {
		writeError(w, http.StatusNotFound, "student not found")
		return nil, false
	}
	return student, true
}

func (h *StudentHandler) semesterExists(w http.ResponseWriter, id *string) bool {
	if id == nil {
		return true
	}
	sem, err := h.semesters.GetByID(*id)
	if err != nil {
		storeError(w, h.logger, "semester", err)
		return false
	}
	if sem == nil {
		writeError(w, http.StatusBadRequest, "semester not found")
		return false
	}
	return true
}

func tempPassword() (password, hash string, err error) {
	password, err = auth.RandomToken(tempPasswordBytes)
	if err != nil {
		return "", "", err
	}
	hash, err = auth.HashPassword(password)
	if err != nil {
		return "", "", err
	}
	return password, hash, nil
}
