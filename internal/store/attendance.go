package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/classpoints/internal/model"
)

const attendanceCols = `id, meeting_id, student_id, present, streak_freeze, marked_at`

type AttendanceStore struct {
	db *sqlx.DB
}

func NewAttendanceStore(db *sqlx.DB) *AttendanceStore {
	return &AttendanceStore{db: db}
}

// Mark records attendance for one (meeting, student) pair, replacing any
// earlier mark for that pair.
func (s *AttendanceStore) Mark(meetingID, studentID string, present, streakFreeze bool) (*model.AttendanceRecord, error) {
	_, err := exec(s.db,
		`INSERT INTO attendance (id, meeting_id, student_id, present, streak_freeze, marked_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (meeting_id, student_id) DO UPDATE SET
		   present = excluded.present,
		   streak_freeze = excluded.streak_freeze,
		   marked_at = excluded.marked_at`,
		newID(), meetingID, studentID, present, streakFreeze, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("mark attendance: %w", err)
	}

	var rec model.AttendanceRecord
	err = get(s.db, &rec,
		`SELECT `+attendanceCols+` FROM attendance WHERE meeting_id = ? AND student_id = ?`,
		meetingID, studentID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	return &rec, nil
}

func (s *AttendanceStore) ListByMeeting(meetingID string) ([]model.AttendanceRecord, error) {
	var recs []model.AttendanceRecord
	if err := sel(s.db, &recs, `SELECT `+attendanceCols+` FROM attendance WHERE meeting_id = ?`, meetingID); err != nil {
		return nil, fmt.Errorf("list meeting attendance: %w", err)
	}
	return recs, nil
}

func (s *AttendanceStore) ListByStudent(studentID string) ([]model.AttendanceRecord, error) {
	var recs []model.AttendanceRecord
	if err := sel(s.db, &recs, `SELECT `+attendanceCols+` FROM attendance WHERE student_id = ?`, studentID); err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}
	return recs, nil
}

func (s *AttendanceStore) Clear(meetingID, studentID string) error {
	if _, err := exec(s.db, `DELETE FROM attendance WHERE meeting_id = ? AND student_id = ?`, meetingID, studentID); err != nil {
		return fmt.Errorf("clear attendance: %w", err)
	}
	return nil
}
