package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/classpoints/internal/model"
)

const badgeCols = `id, title, image, requirement, version, created_at, updated_at`

type BadgeStore struct {
	db *sqlx.DB
}

func NewBadgeStore(db *sqlx.DB) *BadgeStore {
	return &BadgeStore{db: db}
}

func (s *BadgeStore) Create(title, image, requirement string) (*model.BadgeDef, error) {
	id := newID()
	ts := now()
	_, err := exec(s.db,
		`INSERT INTO badges (id, title, image, requirement, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, title, image, requirement, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert badge: %w", err)
	}
	return s.GetByID(id)
}

func (s *BadgeStore) GetByID(id string) (*model.BadgeDef, error) {
	var b model.BadgeDef
	err := get(s.db, &b, `SELECT `+badgeCols+` FROM badges WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get badge: %w", err)
	}
	return &b, nil
}

func (s *BadgeStore) List() ([]model.BadgeDef, error) {
	var badges []model.BadgeDef
	if err := sel(s.db, &badges, `SELECT `+badgeCols+` FROM badges ORDER BY title ASC`); err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	return badges, nil
}

func (s *BadgeStore) Update(id string, version int, title, image, requirement string) (*model.BadgeDef, error) {
	res, err := exec(s.db,
		`UPDATE badges SET title = ?, image = ?, requirement = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		title, image, requirement, now(), id, version,
	)
	if err != nil {
		return nil, fmt.Errorf("update badge: %w", err)
	}
	if err := versioned(s.db, "badges", id, res); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *BadgeStore) Delete(id string) error {
	res, err := exec(s.db, `DELETE FROM badges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete badge: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
