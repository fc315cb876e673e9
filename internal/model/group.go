package model

import "time"

// Group is a team of students. Points holds bonus points awarded to the
// group itself, not the sum of its members.
type Group struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Points     int       `json:"points" db:"points"`
	SemesterID *string   `json:"semester_id" db:"semester_id"`
	Version    int       `json:"version" db:"version"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
