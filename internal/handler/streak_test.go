package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/dukerupert/classpoints/internal/model"
)

func TestMyStreaksGrantsWeeklyBonusOnce(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := NewStreakHandler(env.students, env.meetings, env.attendance, env.settings, time.UTC, env.bc, env.logger)
	// Wednesday of ISO week 2024-W11; the previous week is 2024-W10.
	h.now = func() time.Time { return time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC) }

	st, _ := env.students.Create("Ana", "ana@school.example", "x", nil)
	for _, date := range []string{"2024-03-05", "2024-03-07"} {
		m, err := env.meetings.Create(model.Meeting{Date: date, Time: "09:00", Title: "Class"})
		if err != nil {
			t.Fatalf("create meeting: %v", err)
		}
		if _, err := env.attendance.Mark(m.ID, st.ID, true, false); err != nil {
			t.Fatalf("mark: %v", err)
		}
	}

	rec := call(t, h.Mine, "GET", "/api/me/streaks", nil, asStudent(st.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp streakResponse
	decodeBody(t, rec, &resp)
	if !resp.PrevWeekComplete || resp.PrevWeekKey != "2024-W10" {
		t.Fatalf("prev week = %v %q", resp.PrevWeekComplete, resp.PrevWeekKey)
	}
	if !resp.BonusAwarded || resp.BonusPoints != model.DefaultWeeklyStreakPoints {
		t.Errorf("bonus = %v/%d", resp.BonusAwarded, resp.BonusPoints)
	}
	if resp.Current != 2 {
		t.Errorf("current = %d, want 2", resp.Current)
	}

	rec = call(t, h.Mine, "GET", "/api/me/streaks", nil, asStudent(st.ID))
	resp = streakResponse{}
	decodeBody(t, rec, &resp)
	if resp.BonusAwarded {
		t.Error("bonus granted twice for the same week")
	}

	got, _ := env.students.GetByID(st.ID)
	if got.Points != model.DefaultWeeklyStreakPoints || got.LastWeekRewarded != "2024-W10" {
		t.Errorf("student = %d points, last week %q", got.Points, got.LastWeekRewarded)
	}
}

func TestStudentStreaksNeverGrants(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := NewStreakHandler(env.students, env.meetings, env.attendance, env.settings, time.UTC, env.bc, env.logger)
	h.now = func() time.Time { return time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC) }

	st, _ := env.students.Create("Ben", "ben@school.example", "x", nil)
	m, _ := env.meetings.Create(model.Meeting{Date: "2024-03-06"})
	env.attendance.Mark(m.ID, st.ID, true, false)

	rec := call(t, h.ForStudent, "GET", "/", nil, asTeacher("t1"), "id", st.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp streakResponse
	decodeBody(t, rec, &resp)
	if !resp.PrevWeekComplete || resp.BonusAwarded {
		t.Errorf("resp = %+v", resp)
	}
	got, _ := env.students.GetByID(st.ID)
	if got.Points != 0 {
		t.Errorf("teacher view changed points to %d", got.Points)
	}

	rec = call(t, h.ForStudent, "GET", "/", nil, asTeacher("t1"), "id", "missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing student status = %d", rec.Code)
	}
}

func TestMyStreaksUsesFreezeSetting(t *testing.T) {
	env := setupHandlerTestDB(t)
	h := NewStreakHandler(env.students, env.meetings, env.attendance, env.settings, time.UTC, env.bc, env.logger)
	h.now = func() time.Time { return time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC) }

	app := model.DefaultAppSettings()
	app.StreakFreezeTotal = 0
	if err := env.settings.SetApp(app); err != nil {
		t.Fatalf("set app: %v", err)
	}

	st, _ := env.students.Create("Cat", "cat@school.example", "x", nil)
	m1, _ := env.meetings.Create(model.Meeting{Date: "2024-03-11"})
	m2, _ := env.meetings.Create(model.Meeting{Date: "2024-03-12"})
	env.attendance.Mark(m1.ID, st.ID, true, false)
	env.attendance.Mark(m2.ID, st.ID, false, true)

	rec := call(t, h.Mine, "GET", "/", nil, asStudent(st.ID))
	var resp streakResponse
	decodeBody(t, rec, &resp)
	if resp.Current != 0 || resp.FreezeUsed != 0 {
		t.Errorf("with no freezes allowed: current %d, used %d", resp.Current, resp.FreezeUsed)
	}
}
