package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/classpoints/internal/store"
	"github.com/dukerupert/classpoints/internal/websocket"
)

type SemesterHandler struct {
	semesters *store.SemesterStore
	notifier
	logger *slog.Logger
}

func NewSemesterHandler(ss *store.SemesterStore, b websocket.Broadcaster, logger *slog.Logger) *SemesterHandler {
	return &SemesterHandler{semesters: ss, notifier: notifier{b}, logger: logger}
}

func (h *SemesterHandler) List(w http.ResponseWriter, r *http.Request) {
	semesters, err := h.semesters.List()
	if err != nil {
		storeError(w, h.logger, "semesters", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(semesters))
}

type createSemesterRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (h *SemesterHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSemesterRequest
	if !decode(w, r, &req) {
		return
	}
	sem, err := h.semesters.Create(strings.TrimSpace(req.Name))
	if err != nil {
		storeError(w, h.logger, "semester", err)
		return
	}
	h.broadcast("semester", "created", sem.ID, nil)
	writeJSON(w, http.StatusCreated, sem)
}

func (h *SemesterHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.semesters.Activate(id); err != nil {
		storeError(w, h.logger, "semester", err)
		return
	}
	sem, err := h.semesters.GetByID(id)
	if err != nil {
		storeError(w, h.logger, "semester", err)
		return
	}
	h.broadcast("semester", "activated", id, nil)
	writeJSON(w, http.StatusOK, sem)
}

func (h *SemesterHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.semesters.Delete(id); err != nil {
		storeError(w, h.logger, "semester", err)
		return
	}
	h.broadcast("semester", "deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}
