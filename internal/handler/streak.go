package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/classpoints/internal/auth"
	"github.com/dukerupert/classpoints/internal/metrics"
	"github.com/dukerupert/classpoints/internal/model"
	"github.com/dukerupert/classpoints/internal/store"
	"github.com/dukerupert/classpoints/internal/streak"
	"github.com/dukerupert/classpoints/internal/websocket"
)

type StreakHandler struct {
	students   *store.StudentStore
	meetings   *store.MeetingStore
	attendance *store.AttendanceStore
	settings   *store.SettingsStore
	loc        *time.Location
	now        func() time.Time
	notifier
	logger *slog.Logger
}

func NewStreakHandler(ss *store.StudentStore, ms *store.MeetingStore, as *store.AttendanceStore, sets *store.SettingsStore, loc *time.Location, b websocket.Broadcaster, logger *slog.Logger) *StreakHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &StreakHandler{
		students:   ss,
		meetings:   ms,
		attendance: as,
		settings:   sets,
		loc:        loc,
		now:        time.Now,
		notifier:   notifier{b},
		logger:     logger,
	}
}

type streakResponse struct {
	streak.Result
	BonusAwarded bool `json:"bonus_awarded"`
	BonusPoints  int  `json:"bonus_points,omitempty"`
}

// ForStudent computes a student's streaks for a teacher. It never grants
// the weekly bonus.
func (h *StreakHandler) ForStudent(w http.ResponseWriter, r *http.Request) {
	student, err := h.students.GetByID(r.PathValue("id"))
	if err != nil {
		storeError(w, h.logger, "student", err)
		return
	}
	if student == nil {
		writeError(w, http.StatusNotFound, "student not found")
		return
	}
	res, _, err := h.compute(student)
	if err != nil {
		storeError(w, h.logger, "streak", err)
		return
	}
	writeJSON(w, http.StatusOK, streakResponse{Result: res})
}

// Mine computes the caller's streaks and grants last week's bonus when it
// is due and not yet paid.
func (h *StreakHandler) Mine(w http.ResponseWriter, r *http.Request) {
	student, err := h.students.GetByID(auth.UserID(r.Context()))
	if err != nil {
		storeError(w, h.logger, "student", err)
		return
	}
	if student == nil {
		writeError(w, http.StatusNotFound, "student not found")
		return
	}

	res, app, err := h.compute(student)
	if err != nil {
		storeError(w, h.logger, "streak", err)
		return
	}
	resp := streakResponse{Result: res}

	if res.BonusDue(student.LastWeekRewarded) && app.WeeklyStreakPoints > 0 {
		granted, err := h.students.GrantWeeklyBonus(student.ID, res.PrevWeekKey, app.WeeklyStreakPoints)
		if err != nil {
			storeError(w, h.logger, "streak bonus", err)
			return
		}
		if granted {
			resp.BonusAwarded = true
			resp.BonusPoints = app.WeeklyStreakPoints
			metrics.StreakBonusesTotal.Inc()
			metrics.PointsAwardedTotal.WithLabelValues(metrics.SourceStreak).Inc()
			h.logger.Info("weekly streak bonus granted", "student_id", student.ID, "week", res.PrevWeekKey)
			h.broadcast("student", "updated", student.ID, map[string]any{"reason": "streak_bonus"})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *StreakHandler) compute(student *model.Student) (streak.Result, model.AppSettings, error) {
	app, err := h.settings.App()
	if err != nil {
		return streak.Result{}, app, err
	}
	semesterID := ""
	if student.SemesterID != nil {
		semesterID = *student.SemesterID
	}
	meetings, err := h.meetings.List(semesterID)
	if err != nil {
		return streak.Result{}, app, err
	}
	recs, err := h.attendance.ListByStudent(student.ID)
	if err != nil {
		return streak.Result{}, app, err
	}

	res := streak.Compute(streak.Input{
		StudentID:   student.ID,
		SemesterID:  semesterID,
		FreezeTotal: app.StreakFreezeTotal,
		Meetings:    meetings,
		Attendance:  recs,
		Location:    h.loc,
	}, h.now())
	return res, app, nil
}
