package store

import (
	"errors"
	"testing"

	"github.com/dukerupert/classpoints/internal/database"
	"github.com/dukerupert/classpoints/internal/model"
)

func setupMeetingTestDB(t *testing.T) (*MeetingStore, *AttendanceStore) {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewMeetingStore(db), NewAttendanceStore(db)
}

func TestMeetingCRUD(t *testing.T) {
	ms, _ := setupMeetingTestDB(t)

	m, err := ms.Create(model.Meeting{Date: "2026-09-02", Time: "10:30", Title: "Lab 1", Type: "lab", CreatedBy: "t1"})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	if m.Date != "2026-09-02" || m.Time != "10:30" || m.Version != 1 {
		t.Errorf("meeting = %+v", m)
	}
	ms.Create(model.Meeting{Date: "2026-09-01", Title: "Kickoff"})

	list, err := ms.List("")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Title != "Kickoff" {
		t.Errorf("list = %+v, want oldest first", list)
	}

	upd := *m
	upd.Title = "Lab 1 (moved)"
	upd.Date = "2026-09-03"
	got, err := ms.Update(m.ID, m.Version, upd)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "Lab 1 (moved)" || got.Version != 2 {
		t.Errorf("updated = %+v", got)
	}
	if _, err := ms.Update(m.ID, 1, upd); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("stale update err = %v, want ErrVersionConflict", err)
	}
}

func TestAttendanceMarkUpserts(t *testing.T) {
	ms, as := setupMeetingTestDB(t)

	m, _ := ms.Create(model.Meeting{Date: "2026-09-01", Title: "Kickoff"})

	first, err := as.Mark(m.ID, "s1", false, true)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if first.Present || !first.StreakFreeze {
		t.Errorf("first mark = %+v", first)
	}

	second, err := as.Mark(m.ID, "s1", true, false)
	if err != nil {
		t.Fatalf("re-mark: %v", err)
	}
	if !second.Present || second.StreakFreeze {
		t.Errorf("second mark = %+v", second)
	}

	recs, _ := as.ListByMeeting(m.ID)
	if len(recs) != 1 {
		t.Fatalf("len(records) = %d, want 1 per student", len(recs))
	}

	as.Mark(m.ID, "s2", true, false)
	if err := as.Clear(m.ID, "s2"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if recs, _ := as.ListByStudent("s2"); len(recs) != 0 {
		t.Errorf("s2 records = %+v, want none", recs)
	}
}

func TestMeetingDeleteRemovesAttendance(t *testing.T) {
	ms, as := setupMeetingTestDB(t)

	m, _ := ms.Create(model.Meeting{Date: "2026-09-01", Title: "Kickoff"})
	other, _ := ms.Create(model.Meeting{Date: "2026-09-08", Title: "Week 2"})
	as.Mark(m.ID, "s1", true, false)
	as.Mark(other.ID, "s1", true, false)

	if err := ms.Delete(m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	recs, _ := as.ListByStudent("s1")
	if len(recs) != 1 || recs[0].MeetingID != other.ID {
		t.Errorf("remaining attendance = %+v", recs)
	}
	if err := ms.Delete(m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestMeetingCreateSeries(t *testing.T) {
	ms, _ := setupMeetingTestDB(t)

	sem := "s1"
	created, err := ms.CreateSeries([]model.Meeting{
		{Date: "2026-09-01", Time: "09:00", Title: "Class", SemesterID: &sem},
		{Date: "2026-09-03", Time: "09:00", Title: "Class", SemesterID: &sem},
	})
	if err != nil {
		t.Fatalf("create series: %v", err)
	}
	if len(created) != 2 || created[0].ID == created[1].ID || created[1].Version != 1 {
		t.Errorf("created = %+v", created)
	}

	list, _ := ms.List("s1")
	if len(list) != 2 || list[1].Date != "2026-09-03" {
		t.Errorf("list = %+v", list)
	}
}
