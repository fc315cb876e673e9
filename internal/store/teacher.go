package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/classpoints/internal/model"
)

const teacherCols = `id, email, name, password_hash, super_admin, reset_token, reset_expires_at, version, created_at, updated_at`

type TeacherStore struct {
	db *sqlx.DB
}

func NewTeacherStore(db *sqlx.DB) *TeacherStore {
	return &TeacherStore{db: db}
}

func (s *TeacherStore) Create(email, name, passwordHash string, superAdmin bool) (*model.Teacher, error) {
	id := newID()
	ts := now()
	_, err := exec(s.db,
		`INSERT INTO teachers (id, email, name, password_hash, super_admin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, email, name, passwordHash, superAdmin, ts, ts,
	)
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert teacher: %w", err)
	}
	return s.GetByID(id)
}

// EnsureSuperAdmin creates the super admin or refreshes its password.
func (s *TeacherStore) EnsureSuperAdmin(email, passwordHash string) (*model.Teacher, error) {
	existing, err := s.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return s.Create(email, "Admin", passwordHash, true)
	}
	_, err = exec(s.db,
		`UPDATE teachers SET password_hash = ?, super_admin = ?, updated_at = ? WHERE id = ?`,
		passwordHash, true, now(), existing.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("refresh super admin: %w", err)
	}
	return s.GetByID(existing.ID)
}

func (s *TeacherStore) GetByID(id string) (*model.Teacher, error) {
	return s.getBy("id", id)
}

func (s *TeacherStore) GetByEmail(email string) (*model.Teacher, error) {
	return s.getBy("email", email)
}

func (s *TeacherStore) GetByResetToken(token string) (*model.Teacher, error) {
	return s.getBy("reset_token", token)
}

func (s *TeacherStore) getBy(col, val string) (*model.Teacher, error) {
	var t model.Teacher
	err := get(s.db, &t, `SELECT `+teacherCols+` FROM teachers WHERE `+col+` = ?`, val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get teacher by %s: %w", col, err)
	}
	return &t, nil
}

func (s *TeacherStore) List() ([]model.Teacher, error) {
	var teachers []model.Teacher
	if err := sel(s.db, &teachers, `SELECT `+teacherCols+` FROM teachers ORDER BY email ASC`); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

func (s *TeacherStore) SetPassword(id, hash string) error {
	res, err := exec(s.db,
		`UPDATE teachers SET password_hash = ?, reset_token = NULL, reset_expires_at = NULL, updated_at = ? WHERE id = ?`,
		hash, now(), id,
	)
	if err != nil {
		return fmt.Errorf("set teacher password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *TeacherStore) SetResetToken(id, token string, expires time.Time) error {
	_, err := exec(s.db,
		`UPDATE teachers SET reset_token = ?, reset_expires_at = ? WHERE id = ?`,
		token, expires.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set teacher reset token: %w", err)
	}
	return nil
}

func (s *TeacherStore) Delete(id string) error {
	res, err := exec(s.db, `DELETE FROM teachers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
