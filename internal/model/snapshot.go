package model

// StudentRecord is a student as written to a backup document, including
// the password hash that the API never returns.
type StudentRecord struct {
	Student
	PasswordHash string `json:"password_hash,omitempty"`
}

type TeacherRecord struct {
	Teacher
	PasswordHash string `json:"password_hash,omitempty"`
}

// PeerEventRecord accepts the allowOwnGroup/allowOtherGroups flags of
// older documents when recipient_scope is absent.
type PeerEventRecord struct {
	PeerEvent
	AllowOwnGroup    *bool `json:"allowOwnGroup,omitempty"`
	AllowOtherGroups *bool `json:"allowOtherGroups,omitempty"`
}

// Scope returns the event's recipient scope, derived from the legacy
// flags when needed.
func (r PeerEventRecord) Scope() RecipientScope {
	if r.RecipientScope.Valid() {
		return r.RecipientScope
	}
	if r.AllowOwnGroup != nil || r.AllowOtherGroups != nil {
		own := r.AllowOwnGroup != nil && *r.AllowOwnGroup
		other := r.AllowOtherGroups != nil && *r.AllowOtherGroups
		return ScopeFromFlags(own, other)
	}
	return ScopeAll
}

// Snapshot is the backup document. On import a nil slice means the
// collection was absent and is left untouched.
type Snapshot struct {
	Students   []StudentRecord    `json:"students"`
	Groups     []Group            `json:"groups"`
	Awards     []Award            `json:"awards"`
	Badges     []BadgeDef         `json:"badges"`
	Teachers   []TeacherRecord    `json:"teachers"`
	Meetings   []Meeting          `json:"meetings"`
	Attendance []AttendanceRecord `json:"attendance"`
	PeerAwards []PeerAward        `json:"peerAwards"`
	PeerEvents []PeerEventRecord  `json:"peerEvents"`
	Semesters  []Semester         `json:"semesters"`

	PeerAwardsAlt []PeerAward       `json:"peer_awards,omitempty"`
	PeerEventsAlt []PeerEventRecord `json:"peer_events,omitempty"`
}

// Normalize folds the snake_case aliases into the canonical fields.
func (s *Snapshot) Normalize() {
	if s.PeerAwards == nil && s.PeerAwardsAlt != nil {
		s.PeerAwards = s.PeerAwardsAlt
	}
	if s.PeerEvents == nil && s.PeerEventsAlt != nil {
		s.PeerEvents = s.PeerEventsAlt
	}
	s.PeerAwardsAlt = nil
	s.PeerEventsAlt = nil
}
