package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/classpoints/internal/model"
)

const meetingCols = `id, meeting_date, meeting_time, title, type, semester_id, created_by, version, created_at, updated_at`

type MeetingStore struct {
	db *sqlx.DB
}

func NewMeetingStore(db *sqlx.DB) *MeetingStore {
	return &MeetingStore{db: db}
}

func (s *MeetingStore) Create(m model.Meeting) (*model.Meeting, error) {
	m.ID = newID()
	if err := insertMeeting(s.db, m, now()); err != nil {
		return nil, err
	}
	return s.GetByID(m.ID)
}

// CreateSeries inserts all meetings in one transaction. Either every
// meeting is created or none is.
func (s *MeetingStore) CreateSeries(ms []model.Meeting) ([]model.Meeting, error) {
	ts := now()
	out := make([]model.Meeting, 0, len(ms))
	err := withTx(s.db, func(tx *sqlx.Tx) error {
		for _, m := range ms {
			m.ID = newID()
			if err := insertMeeting(tx, m, ts); err != nil {
				return err
			}
			m.Version = 1
			m.CreatedAt, m.UpdatedAt = ts, ts
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func insertMeeting(e sqlx.Ext, m model.Meeting, ts time.Time) error {
	_, err := exec(e,
		`INSERT INTO meetings (id, meeting_date, meeting_time, title, type, semester_id, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Date, m.Time, m.Title, m.Type, m.SemesterID, m.CreatedBy, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

func (s *MeetingStore) GetByID(id string) (*model.Meeting, error) {
	var m model.Meeting
	err := get(s.db, &m, `SELECT `+meetingCols+` FROM meetings WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meeting: %w", err)
	}
	return &m, nil
}

// List returns meetings oldest first. An empty semesterID lists all.
func (s *MeetingStore) List(semesterID string) ([]model.Meeting, error) {
	var meetings []model.Meeting
	var err error
	if semesterID == "" {
		err = sel(s.db, &meetings, `SELECT `+meetingCols+` FROM meetings ORDER BY meeting_date ASC, meeting_time ASC, id ASC`)
	} else {
		err = sel(s.db, &meetings,
			`SELECT `+meetingCols+` FROM meetings WHERE semester_id = ? ORDER BY meeting_date ASC, meeting_time ASC, id ASC`,
			semesterID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	return meetings, nil
}

func (s *MeetingStore) Update(id string, version int, m model.Meeting) (*model.Meeting, error) {
	res, err := exec(s.db,
		`UPDATE meetings SET meeting_date = ?, meeting_time = ?, title = ?, type = ?, semester_id = ?,
		 version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		m.Date, m.Time, m.Title, m.Type, m.SemesterID, now(), id, version,
	)
	if err != nil {
		return nil, fmt.Errorf("update meeting: %w", err)
	}
	if err := versioned(s.db, "meetings", id, res); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// Delete removes the meeting together with its attendance rows.
func (s *MeetingStore) Delete(id string) error {
	return withTx(s.db, func(tx *sqlx.Tx) error {
		if _, err := exec(tx, `DELETE FROM attendance WHERE meeting_id = ?`, id); err != nil {
			return fmt.Errorf("delete meeting attendance: %w", err)
		}
		res, err := exec(tx, `DELETE FROM meetings WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete meeting: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
