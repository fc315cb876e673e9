package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/classpoints/internal/model"
)

const semesterCols = `id, name, active, created_at`

type SemesterStore struct {
	db *sqlx.DB
}

func NewSemesterStore(db *sqlx.DB) *SemesterStore {
	return &SemesterStore{db: db}
}

func (s *SemesterStore) Create(name string) (*model.Semester, error) {
	id := newID()
	if _, err := exec(s.db, `INSERT INTO semesters (id, name, created_at) VALUES (?, ?, ?)`, id, name, now()); err != nil {
		return nil, fmt.Errorf("insert semester: %w", err)
	}
	return s.GetByID(id)
}

func (s *SemesterStore) GetByID(id string) (*model.Semester, error) {
	var sem model.Semester
	err := get(s.db, &sem, `SELECT `+semesterCols+` FROM semesters WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get semester: %w", err)
	}
	return &sem, nil
}

// Active returns the active semester, or nil when none is.
func (s *SemesterStore) Active() (*model.Semester, error) {
	var sem model.Semester
	err := get(s.db, &sem, `SELECT `+semesterCols+` FROM semesters WHERE active = ? ORDER BY created_at DESC LIMIT 1`, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active semester: %w", err)
	}
	return &sem, nil
}

func (s *SemesterStore) List() ([]model.Semester, error) {
	var semesters []model.Semester
	if err := sel(s.db, &semesters, `SELECT `+semesterCols+` FROM semesters ORDER BY created_at DESC, name ASC`); err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	return semesters, nil
}

// Activate makes id the only active semester.
func (s *SemesterStore) Activate(id string) error {
	return withTx(s.db, func(tx *sqlx.Tx) error {
		if _, err := exec(tx, `UPDATE semesters SET active = ? WHERE id <> ?`, false, id); err != nil {
			return fmt.Errorf("deactivate semesters: %w", err)
		}
		res, err := exec(tx, `UPDATE semesters SET active = ? WHERE id = ?`, true, id)
		if err != nil {
			return fmt.Errorf("activate semester: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Delete removes the semester and detaches students, groups and meetings
// that referenced it.
func (s *SemesterStore) Delete(id string) error {
	return withTx(s.db, func(tx *sqlx.Tx) error {
		for _, table := range []string{"students", "student_groups", "meetings"} {
			if _, err := exec(tx, `UPDATE `+table+` SET semester_id = NULL WHERE semester_id = ?`, id); err != nil {
				return fmt.Errorf("detach %s: %w", table, err)
			}
		}
		res, err := exec(tx, `DELETE FROM semesters WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete semester: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
