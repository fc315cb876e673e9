// Package streak computes attendance streaks for one student.
//
// An absence flagged streak_freeze by a teacher can be forgiven; at most
// FreezeTotal of them are, consumed from the most recent meeting backwards.
package streak

import (
	"fmt"
	"sort"
	"time"

	"github.com/dukerupert/classpoints/internal/model"
)

// DefaultFreezeTotal is the number of frozen absences forgiven per student.
const DefaultFreezeTotal = 2

type Input struct {
	StudentID   string
	SemesterID  string
	FreezeTotal int
	Meetings    []model.Meeting
	Attendance  []model.AttendanceRecord
	// Location is the timezone meeting dates and times are written in.
	// Nil means UTC.
	Location *time.Location
}

type Result struct {
	Current          int    `json:"current"`
	Longest          int    `json:"longest"`
	WeekStreak       int    `json:"week_streak"`
	WeekPresent      int    `json:"week_present"`
	WeekTotal        int    `json:"week_total"`
	CurrentWeekKey   string `json:"current_week_key"`
	PrevWeekKey      string `json:"prev_week_key"`
	PrevWeekPresent  int    `json:"prev_week_present"`
	PrevWeekTotal    int    `json:"prev_week_total"`
	PrevWeekComplete bool   `json:"prev_week_complete"`
	FreezeTotal      int    `json:"freeze_total"`
	FreezeUsed       int    `json:"freeze_used"`
	FreezeRemaining  int    `json:"freeze_remaining"`
}

// WeekKey returns the ISO-8601 week of t as "YYYY-Www".
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

type slot struct {
	meeting model.Meeting
	start   time.Time
	present bool
	frozen  bool
	forgive bool
}

func (s slot) effective() bool {
	return s.present || s.forgive
}

// Compute evaluates the student's history as of now.
func Compute(in Input, now time.Time) Result {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)

	freezeTotal := in.FreezeTotal
	if freezeTotal < 0 {
		freezeTotal = 0
	}

	res := Result{
		CurrentWeekKey:  WeekKey(now),
		PrevWeekKey:     WeekKey(now.AddDate(0, 0, -7)),
		FreezeTotal:     freezeTotal,
		FreezeRemaining: freezeTotal,
	}
	if in.StudentID == "" {
		return res
	}

	type mark struct{ present, frozen bool }
	marks := make(map[string]mark)
	for _, a := range in.Attendance {
		if a.StudentID != in.StudentID {
			continue
		}
		marks[a.MeetingID] = mark{present: a.Present, frozen: a.StreakFreeze}
	}

	slots := make([]slot, 0, len(in.Meetings))
	for _, m := range in.Meetings {
		if in.SemesterID != "" && (m.SemesterID == nil || *m.SemesterID != in.SemesterID) {
			continue
		}
		start, ok := m.StartsAt(loc)
		if !ok || start.After(now) {
			continue
		}
		mk := marks[m.ID]
		slots = append(slots, slot{meeting: m, start: start, present: mk.present, frozen: mk.frozen})
	}
	if len(slots) == 0 {
		return res
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if !slots[i].start.Equal(slots[j].start) {
			return slots[i].start.Before(slots[j].start)
		}
		return slots[i].meeting.ID < slots[j].meeting.ID
	})

	used := 0
	for i := len(slots) - 1; i >= 0 && used < freezeTotal; i-- {
		if !slots[i].present && slots[i].frozen {
			slots[i].forgive = true
			used++
		}
	}
	res.FreezeUsed = used
	res.FreezeRemaining = freezeTotal - used

	for i := len(slots) - 1; i >= 0; i-- {
		if !slots[i].effective() {
			break
		}
		res.Current++
	}

	run := 0
	for _, s := range slots {
		if s.effective() {
			run++
			if run > res.Longest {
				res.Longest = run
			}
		} else {
			run = 0
		}
	}

	for _, s := range slots {
		switch WeekKey(s.start) {
		case res.CurrentWeekKey:
			res.WeekTotal++
			if s.effective() {
				res.WeekPresent++
			}
		case res.PrevWeekKey:
			res.PrevWeekTotal++
			if s.effective() {
				res.PrevWeekPresent++
			}
		}
	}
	if res.WeekTotal > 0 && res.WeekPresent == res.WeekTotal {
		res.WeekStreak = 1
	}
	res.PrevWeekComplete = res.PrevWeekTotal > 0 && res.PrevWeekPresent == res.PrevWeekTotal

	return res
}

// BonusDue reports whether the weekly bonus for the previous week should
// be granted given the week key already rewarded.
func (r Result) BonusDue(lastRewarded string) bool {
	return r.PrevWeekComplete && r.PrevWeekKey != lastRewarded
}
