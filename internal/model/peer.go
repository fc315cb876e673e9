package model

import "time"

type RecipientScope string

const (
	ScopeAll         RecipientScope = "all"
	ScopeOwnGroup    RecipientScope = "own_group"
	ScopeOtherGroups RecipientScope = "other_groups"
)

// Valid reports whether s is one of the known scopes.
func (s RecipientScope) Valid() bool {
	switch s {
	case ScopeAll, ScopeOwnGroup, ScopeOtherGroups:
		return true
	}
	return false
}

// ScopeFromFlags maps the older allowOwnGroup/allowOtherGroups pair.
func ScopeFromFlags(allowOwn, allowOther bool) RecipientScope {
	switch {
	case allowOwn && allowOther:
		return ScopeAll
	case allowOwn:
		return ScopeOwnGroup
	default:
		return ScopeOtherGroups
	}
}

type PeerEvent struct {
	ID             string         `json:"id" db:"id"`
	Title          string         `json:"title" db:"title"`
	Description    string         `json:"description" db:"description"`
	Budget         int            `json:"budget" db:"budget"`
	Active         bool           `json:"active" db:"active"`
	RecipientScope RecipientScope `json:"recipient_scope" db:"recipient_scope"`
	Version        int            `json:"version" db:"version"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

type PeerAward struct {
	ID            string     `json:"id" db:"id"`
	TS            time.Time  `json:"ts" db:"ts"`
	FromStudentID string     `json:"from_student_id" db:"from_student_id"`
	EventID       string     `json:"event_id" db:"event_id"`
	EventTitle    string     `json:"event_title" db:"event_title"`
	Target        Target     `json:"target" db:"target"`
	TargetID      string     `json:"target_id" db:"target_id"`
	Amount        int        `json:"amount" db:"amount"`
	TotalAmount   int        `json:"total_amount" db:"total_amount"`
	Reason        string     `json:"reason" db:"reason"`
	Recipients    StringList `json:"recipients" db:"recipients"`
}

type PeerSubmission struct {
	EventID   string    `json:"event_id" db:"event_id"`
	StudentID string    `json:"student_id" db:"student_id"`
	TS        time.Time `json:"ts" db:"ts"`
}
