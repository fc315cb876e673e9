package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/classpoints/internal/leaderboard"
	"github.com/dukerupert/classpoints/internal/metrics"
	"github.com/dukerupert/classpoints/internal/model"
	"github.com/dukerupert/classpoints/internal/store"
	"github.com/dukerupert/classpoints/internal/websocket"
)

const defaultAwardLimit = 100

type AwardHandler struct {
	awards   *store.AwardStore
	badges   *store.BadgeStore
	students *store.StudentStore
	groups   *store.GroupStore
	settings *store.SettingsStore
	notifier
	logger *slog.Logger
}

func NewAwardHandler(as *store.AwardStore, bs *store.BadgeStore, ss *store.StudentStore, gs *store.GroupStore, sets *store.SettingsStore, b websocket.Broadcaster, logger *slog.Logger) *AwardHandler {
	return &AwardHandler{
		awards:   as,
		badges:   bs,
		students: ss,
		groups:   gs,
		settings: sets,
		notifier: notifier{b},
		logger:   logger,
	}
}

type grantRequest struct {
	Target    model.Target `json:"target" validate:"required,oneof=student group"`
	TargetIDs []string     `json:"target_ids" validate:"required,min=1,dive,required"`
	Amount    int          `json:"amount" validate:"required"`
	Reason    string       `json:"reason" validate:"max=200"`
}

// Grant gives (or with a negative amount, takes) points from each target.
func (h *AwardHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if !decode(w, r, &req) {
		return
	}

	seen := make(map[string]bool, len(req.TargetIDs))
	ids := make([]string, 0, len(req.TargetIDs))
	for _, id := range req.TargetIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "Manual award"
	}

	awards, err := h.awards.Grant(req.Target, ids, req.Amount, reason)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		storeError(w, h.logger, "award", err)
		return
	}

	metrics.PointsAwardedTotal.WithLabelValues(metrics.SourceManual).Add(float64(len(awards)))
	for _, a := range awards {
		h.broadcast("award", "created", a.ID, map[string]any{"target": a.Target, "target_id": a.TargetID})
	}
	writeJSON(w, http.StatusCreated, awards)
}

func (h *AwardHandler) List(w http.ResponseWriter, r *http.Request) {
	awards, err := h.awards.List(intQuery(r, "limit", defaultAwardLimit))
	if err != nil {
		storeError(w, h.logger, "awards", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(awards))
}

func (h *AwardHandler) ListBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := h.badges.List()
	if err != nil {
		storeError(w, h.logger, "badges", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(badges))
}

type badgeRequest struct {
	Title       string `json:"title" validate:"required,max=100"`
	Image       string `json:"image" validate:"max=500"`
	Requirement string `json:"requirement" validate:"max=500"`
	Version     int    `json:"version"`
}

func (h *AwardHandler) CreateBadge(w http.ResponseWriter, r *http.Request) {
	var req badgeRequest
	if !decode(w, r, &req) {
		return
	}
	badge, err := h.badges.Create(strings.TrimSpace(req.Title), strings.TrimSpace(req.Image), strings.TrimSpace(req.Requirement))
	if err != nil {
		storeError(w, h.logger, "badge", err)
		return
	}
	h.broadcast("badge", "created", badge.ID, nil)
	writeJSON(w, http.StatusCreated, badge)
}

func (h *AwardHandler) UpdateBadge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req badgeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Version < 1 {
		writeError(w, http.StatusBadRequest, "version is required")
		return
	}
	badge, err := h.badges.Update(id, req.Version, strings.TrimSpace(req.Title), strings.TrimSpace(req.Image), strings.TrimSpace(req.Requirement))
	if err != nil {
		storeError(w, h.logger, "badge", err)
		return
	}
	h.broadcast("badge", "updated", id, nil)
	writeJSON(w, http.StatusOK, badge)
}

func (h *AwardHandler) DeleteBadge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.badges.Delete(id); err != nil {
		storeError(w, h.logger, "badge", err)
		return
	}
	h.broadcast("badge", "deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

type toggleBadgeRequest struct {
	HasBadge bool `json:"has_badge"`
}

// ToggleBadge grants or revokes a badge for a student, moving the badge
// points with it. Asking for the current state changes nothing.
func (h *AwardHandler) ToggleBadge(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("id")
	var req toggleBadgeRequest
	if !decode(w, r, &req) {
		return
	}

	badge, err := h.badges.GetByID(r.PathValue("badge_id"))
	if err != nil {
		storeError(w, h.logger, "badge", err)
		return
	}
	if badge == nil {
		writeError(w, http.StatusNotFound, "badge not found")
		return
	}
	app, err := h.settings.App()
	if err != nil {
		storeError(w, h.logger, "settings", err)
		return
	}

	changed, err := h.students.SetBadge(studentID, badge, req.HasBadge, app.BadgePoints)
	if err != nil {
		storeError(w, h.logger, "student", err)
		return
	}
	if changed {
		metrics.PointsAwardedTotal.WithLabelValues(metrics.SourceBadge).Inc()
		h.broadcast("student", "updated", studentID, map[string]any{"badge_id": badge.ID, "has_badge": req.HasBadge})
	}

	student, err := h.students.GetByID(studentID)
	if err != nil {
		storeError(w, h.logger, "student", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "student": student})
}

func (h *AwardHandler) StudentLeaderboard(w http.ResponseWriter, r *http.Request) {
	students, err := h.students.List(semesterFilter(r))
	if err != nil {
		storeError(w, h.logger, "students", err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboard.Students(students))
}

func (h *AwardHandler) GroupLeaderboard(w http.ResponseWriter, r *http.Request) {
	sem := semesterFilter(r)
	groups, err := h.groups.List(sem)
	if err != nil {
		storeError(w, h.logger, "groups", err)
		return
	}
	students, err := h.students.List(sem)
	if err != nil {
		storeError(w, h.logger, "students", err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboard.Groups(groups, students))
}
