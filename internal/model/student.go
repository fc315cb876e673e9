package model

import "time"

type Student struct {
	ID               string       `json:"id" db:"id"`
	Name             string       `json:"name" db:"name"`
	Email            string       `json:"email" db:"email"`
	PasswordHash     string       `json:"-" db:"password_hash"`
	GroupID          *string      `json:"group_id" db:"group_id"`
	Points           int          `json:"points" db:"points"`
	Badges           StringList   `json:"badges" db:"badges"`
	Bingo            BingoCard    `json:"bingo" db:"bingo"`
	BingoMatches     BingoMatches `json:"bingo_matches" db:"bingo_matches"`
	LastWeekRewarded string       `json:"last_week_rewarded" db:"last_week_rewarded"`
	SemesterID       *string      `json:"semester_id" db:"semester_id"`
	ResetToken       *string      `json:"-" db:"reset_token"`
	ResetExpiresAt   *time.Time   `json:"-" db:"reset_expires_at"`
	Version          int          `json:"version" db:"version"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// InGroup reports whether the student belongs to groupID.
func (s *Student) InGroup(groupID string) bool {
	return s.GroupID != nil && *s.GroupID == groupID
}

// HasGroup reports whether the student is assigned to any group.
func (s *Student) HasGroup() bool {
	return s.GroupID != nil && *s.GroupID != ""
}

type Teacher struct {
	ID             string     `json:"id" db:"id"`
	Email          string     `json:"email" db:"email"`
	Name           string     `json:"name" db:"name"`
	PasswordHash   string     `json:"-" db:"password_hash"`
	SuperAdmin     bool       `json:"super_admin" db:"super_admin"`
	ResetToken     *string    `json:"-" db:"reset_token"`
	ResetExpiresAt *time.Time `json:"-" db:"reset_expires_at"`
	Version        int        `json:"version" db:"version"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}
