package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/classpoints/internal/auth"
	"github.com/dukerupert/classpoints/internal/model"
	"github.com/dukerupert/classpoints/internal/recurrence"
	"github.com/dukerupert/classpoints/internal/store"
	"github.com/dukerupert/classpoints/internal/websocket"
)

type MeetingHandler struct {
	meetings   *store.MeetingStore
	attendance *store.AttendanceStore
	students   *store.StudentStore
	notifier
	logger *slog.Logger
}

func NewMeetingHandler(ms *store.MeetingStore, as *store.AttendanceStore, ss *store.StudentStore, b websocket.Broadcaster, logger *slog.Logger) *MeetingHandler {
	return &MeetingHandler{
		meetings:   ms,
		attendance: as,
		students:   ss,
		notifier:   notifier{b},
		logger:     logger,
	}
}

type meetingRequest struct {
	Date       string  `json:"date" validate:"required,datetime=2006-01-02"`
	Time       string  `json:"time" validate:"omitempty,datetime=15:04"`
	Title      string  `json:"title" validate:"max=200"`
	Type       string  `json:"type" validate:"max=50"`
	SemesterID *string `json:"semester_id"`
	Version    int     `json:"version"`
}

func (req meetingRequest) meeting() model.Meeting {
	return model.Meeting{
		Date:       req.Date,
		Time:       req.Time,
		Title:      strings.TrimSpace(req.Title),
		Type:       strings.TrimSpace(req.Type),
		SemesterID: optional(req.SemesterID),
	}
}

func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	meetings, err := h.meetings.List(semesterFilter(r))
	if err != nil {
		storeError(w, h.logger, "meetings", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(meetings))
}

func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req meetingRequest
	if !decode(w, r, &req) {
		return
	}
	m := req.meeting()
	m.CreatedBy = auth.UserID(r.Context())

	meeting, err := h.meetings.Create(m)
	if err != nil {
		storeError(w, h.logger, "meeting", err)
		return
	}
	h.broadcast("meeting", "created", meeting.ID, nil)
	writeJSON(w, http.StatusCreated, meeting)
}

type seriesRequest struct {
	Rule       string   `json:"rule" validate:"required"`
	StartDate  string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	Time       string   `json:"time" validate:"omitempty,datetime=15:04"`
	Title      string   `json:"title" validate:"max=200"`
	Type       string   `json:"type" validate:"max=50"`
	SemesterID *string  `json:"semester_id"`
	SkipDates  []string `json:"skip_dates" validate:"dive,datetime=2006-01-02"`
}

// CreateSeries schedules one meeting per date produced by an RRULE, for
// example "FREQ=WEEKLY;BYDAY=TU,TH;UNTIL=20261218".
func (h *MeetingHandler) CreateSeries(w http.ResponseWriter, r *http.Request) {
	var req seriesRequest
	if !decode(w, r, &req) {
		return
	}
	rule, err := recurrence.Parse(req.Rule)
	if err != nil {
		writeError(w, http.StatusBadRequest, "rule: "+err.Error())
		return
	}
	dates, err := recurrence.Dates(rule, req.StartDate, req.SkipDates)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(dates) == 0 {
		writeError(w, http.StatusBadRequest, "rule produces no meetings")
		return
	}

	base := meetingRequest{Time: req.Time, Title: req.Title, Type: req.Type, SemesterID: req.SemesterID}.meeting()
	base.CreatedBy = auth.UserID(r.Context())
	series := make([]model.Meeting, len(dates))
	for i, d := range dates {
		series[i] = base
		series[i].Date = d
	}

	created, err := h.meetings.CreateSeries(series)
	if err != nil {
		storeError(w, h.logger, "meetings", err)
		return
	}
	h.logger.Info("meeting series created", "rule", rule.String(), "count", len(created))
	h.broadcast("meeting", "created", "", map[string]any{"count": len(created)})
	writeJSON(w, http.StatusCreated, created)
}

func (h *MeetingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req meetingRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Version < 1 {
		writeError(w, http.StatusBadRequest, "version is required")
		return
	}
	meeting, err := h.meetings.Update(id, req.Version, req.meeting())
	if err != nil {
		storeError(w, h.logger, "meeting", err)
		return
	}
	h.broadcast("meeting", "updated", id, nil)
	writeJSON(w, http.StatusOK, meeting)
}

// Delete removes the meeting and all attendance marked for it.
func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.meetings.Delete(id); err != nil {
		storeError(w, h.logger, "meeting", err)
		return
	}
	h.broadcast("meeting", "deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *MeetingHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	meeting, err := h.meetings.GetByID(id)
	if err != nil {
		storeError(w, h.logger, "meeting", err)
		return
	}
	if meeting == nil {
		writeError(w, http.StatusNotFound, "meeting not found")
		return
	}
	recs, err := h.attendance.ListByMeeting(id)
	if err != nil {
		storeError(w, h.logger, "attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(recs))
}

type markRequest struct {
	Present      bool `json:"present"`
	StreakFreeze bool `json:"streak_freeze"`
}

// Mark upserts the attendance row for one student at one meeting.
func (h *MeetingHandler) Mark(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("id")
	studentID := r.PathValue("student_id")

	var req markRequest
	if !decode(w, r, &req) {
		return
	}

	meeting, err := h.meetings.GetByID(meetingID)
	if err != nil {
		storeError(w, h.logger, "meeting", err)
		return
	}
	if meeting == nil {
		writeError(w, http.StatusNotFound, "meeting not found")
		return
	}
	student, err := h.students.GetByID(studentID)
	if err != nil {
		storeError(w, h.logger, "student", err)
		return
	}
	if student == nil {
		writeError(w, http.StatusNotFound, "student not found")
		return
	}

	rec, err := h.attendance.Mark(meetingID, studentID, req.Present, req.StreakFreeze)
	if err != nil {
		storeError(w, h.logger, "attendance", err)
		return
	}

	h.broadcast("attendance", "marked", meetingID, map[string]any{"student_id": studentID})
	writeJSON(w, http.StatusOK, rec)
}

// Clear removes a mark, returning the student to "no record".
func (h *MeetingHandler) Clear(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("id")
	studentID := r.PathValue("student_id")
	if err := h.attendance.Clear(meetingID, studentID); err != nil {
		storeError(w, h.logger, "attendance", err)
		return
	}
	h.broadcast("attendance", "cleared", meetingID, map[string]any{"student_id": studentID})
	w.WriteHeader(http.StatusNoContent)
}
