package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/classpoints/internal/model"
)

const groupCols = `id, name, points, semester_id, version, created_at, updated_at`

type GroupStore struct {
	db *sqlx.DB
}

func NewGroupStore(db *sqlx.DB) *GroupStore {
	return &GroupStore{db: db}
}

func (s *GroupStore) Create(name string, semesterID *string) (*model.Group, error) {
	id := newID()
	ts := now()
	_, err := exec(s.db,
		`INSERT INTO student_groups (id, name, semester_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, semesterID, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	return s.GetByID(id)
}

func (s *GroupStore) GetByID(id string) (*model.Group, error) {
	var g model.Group
	err := get(s.db, &g, `SELECT `+groupCols+` FROM student_groups WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &g, nil
}

func (s *GroupStore) List(semesterID string) ([]model.Group, error) {
	var groups []model.Group
	var err error
	if semesterID == "" {
		err = sel(s.db, &groups, `SELECT `+groupCols+` FROM student_groups ORDER BY name ASC, id ASC`)
	} else {
		err = sel(s.db, &groups, `SELECT `+groupCols+` FROM student_groups WHERE semester_id = ? ORDER BY name ASC, id ASC`, semesterID)
	}
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

func (s *GroupStore) Rename(id string, version int, name string) (*model.Group, error) {
	res, err := exec(s.db,
		`UPDATE student_groups SET name = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		name, now(), id, version,
	)
	if err != nil {
		return nil, fmt.Errorf("rename group: %w", err)
	}
	if err := versioned(s.db, "student_groups", id, res); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// Delete removes the group and clears it from its members.
func (s *GroupStore) Delete(id string) error {
	return withTx(s.db, func(tx *sqlx.Tx) error {
		if _, err := exec(tx,
			`UPDATE students SET group_id = NULL, version = version + 1, updated_at = ? WHERE group_id = ?`,
			now(), id,
		); err != nil {
			return fmt.Errorf("clear group members: %w", err)
		}
		res, err := exec(tx, `DELETE FROM student_groups WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete group: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
