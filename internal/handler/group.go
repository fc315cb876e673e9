package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/classpoints/internal/store"
	"github.com/dukerupert/classpoints/internal/websocket"
)

type GroupHandler struct {
	groups *store.GroupStore
	notifier
	logger *slog.Logger
}

func NewGroupHandler(gs *store.GroupStore, b websocket.Broadcaster, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{groups: gs, notifier: notifier{b}, logger: logger}
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.List(semesterFilter(r))
	if err != nil {
		storeError(w, h.logger, "groups", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(groups))
}

type createGroupRequest struct {
	Name       string  `json:"name" validate:"required,max=100"`
	SemesterID *string `json:"semester_id"`
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !decode(w, r, &req) {
		return
	}
	group, err := h.groups.Create(strings.TrimSpace(req.Name), optional(req.SemesterID))
	if err != nil {
		storeError(w, h.logger, "group", err)
		return
	}
	h.broadcast("group", "created", group.ID, nil)
	writeJSON(w, http.StatusCreated, group)
}

type renameGroupRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Version int    `json:"version" validate:"required,gte=1"`
}

func (h *GroupHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req renameGroupRequest
	if !decode(w, r, &req) {
		return
	}
	group, err := h.groups.Rename(id, req.Version, strings.TrimSpace(req.Name))
	if err != nil {
		storeError(w, h.logger, "group", err)
		return
	}
	h.broadcast("group", "updated", id, nil)
	writeJSON(w, http.StatusOK, group)
}

// Delete removes the group; its members become ungrouped.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.groups.Delete(id); err != nil {
		storeError(w, h.logger, "group", err)
		return
	}
	h.broadcast("group", "deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}
