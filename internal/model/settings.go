package model

import "time"

type Setting struct {
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AppSettings are the classroom-wide knobs a teacher can change.
type AppSettings struct {
	BingoHintsEnabled  bool `json:"bingo_hints_enabled"`
	StreakFreezeTotal  int  `json:"streak_freeze_total"`
	WeeklyStreakPoints int  `json:"weekly_streak_points"`
	BadgePoints        int  `json:"badge_points"`
}

const (
	DefaultStreakFreezeTotal  = 2
	DefaultWeeklyStreakPoints = 50
	DefaultBadgePoints        = 50
)

func DefaultAppSettings() AppSettings {
	return AppSettings{
		StreakFreezeTotal:  DefaultStreakFreezeTotal,
		WeeklyStreakPoints: DefaultWeeklyStreakPoints,
		BadgePoints:        DefaultBadgePoints,
	}
}
