package model

import "time"

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Meeting struct {
	ID         string    `json:"id" db:"id"`
	Date       string    `json:"date" db:"meeting_date"`
	Time       string    `json:"time" db:"meeting_time"`
	Title      string    `json:"title" db:"title"`
	Type       string    `json:"type" db:"type"`
	SemesterID *string   `json:"semester_id" db:"semester_id"`
	CreatedBy  string    `json:"created_by" db:"created_by"`
	Version    int       `json:"version" db:"version"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// StartsAt returns the meeting start in loc. A meeting without a time
// starts at midnight. ok is false when the date does not parse.
func (m *Meeting) StartsAt(loc *time.Location) (time.Time, bool) {
	if m.Time != "" {
		if t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, m.Date+" "+m.Time, loc); err == nil {
			return t, true
		}
	}
	t, err := time.ParseInLocation(DateLayout, m.Date, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type AttendanceRecord struct {
	ID           string    `json:"id" db:"id"`
	MeetingID    string    `json:"meeting_id" db:"meeting_id"`
	StudentID    string    `json:"student_id" db:"student_id"`
	Present      bool      `json:"present" db:"present"`
	StreakFreeze bool      `json:"streak_freeze" db:"streak_freeze"`
	MarkedAt     time.Time `json:"marked_at" db:"marked_at"`
}
