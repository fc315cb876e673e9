package model

import "time"

type Target string

const (
	TargetStudent Target = "student"
	TargetGroup   Target = "group"
)

// MaxAwards is the number of award ledger rows retained.
const MaxAwards = 500

type Award struct {
	ID       string    `json:"id" db:"id"`
	TS       time.Time `json:"ts" db:"ts"`
	Target   Target    `json:"target" db:"target"`
	TargetID string    `json:"target_id" db:"target_id"`
	Amount   int       `json:"amount" db:"amount"`
	Reason   string    `json:"reason" db:"reason"`
}

type BadgeDef struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Image       string    `json:"image" db:"image"`
	Requirement string    `json:"requirement" db:"requirement"`
	Version     int       `json:"version" db:"version"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
