package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/classpoints/internal/store"
	"github.com/dukerupert/classpoints/internal/websocket"
)

type SettingsHandler struct {
	settings *store.SettingsStore
	notifier
	logger *slog.Logger
}

func NewSettingsHandler(ss *store.SettingsStore, b websocket.Broadcaster, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: ss, notifier: notifier{b}, logger: logger}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	app, err := h.settings.App()
	if err != nil {
		storeError(w, h.logger, "settings", err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// Omitted fields keep their current value.
type updateSettingsRequest struct {
	BingoHintsEnabled  *bool `json:"bingo_hints_enabled"`
	StreakFreezeTotal  *int  `json:"streak_freeze_total" validate:"omitempty,gte=0,lte=52"`
	WeeklyStreakPoints *int  `json:"weekly_streak_points" validate:"omitempty,gte=0,lte=10000"`
	BadgePoints        *int  `json:"badge_points" validate:"omitempty,gte=0,lte=10000"`
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if !decode(w, r, &req) {
		return
	}

	app, err := h.settings.App()
	if err != nil {
		storeError(w, h.logger, "settings", err)
		return
	}
	if req.BingoHintsEnabled != nil {
		app.BingoHintsEnabled = *req.BingoHintsEnabled
	}
	if req.StreakFreezeTotal != nil {
		app.StreakFreezeTotal = *req.StreakFreezeTotal
	}
	if req.WeeklyStreakPoints != nil {
		app.WeeklyStreakPoints = *req.WeeklyStreakPoints
	}
	if req.BadgePoints != nil {
		app.BadgePoints = *req.BadgePoints
	}

	if err := h.settings.SetApp(app); err != nil {
		storeError(w, h.logger, "settings", err)
		return
	}

	h.broadcast("settings", "updated", "", nil)
	writeJSON(w, http.StatusOK, app)
}
