package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/classpoints/internal/model"
)

const studentCols = `id, name, email, password_hash, group_id, points, badges, bingo, bingo_matches,
	last_week_rewarded, semester_id, reset_token, reset_expires_at, version, created_at, updated_at`

type StudentStore struct {
	db *sqlx.DB
}

func NewStudentStore(db *sqlx.DB) *StudentStore {
	return &StudentStore{db: db}
}

func (s *StudentStore) Create(name, email, passwordHash string, semesterID *string) (*model.Student, error) {
	id := newID()
	ts := now()
	_, err := exec(s.db,
		`INSERT INTO students (id, name, email, password_hash, semester_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, name, email, passwordHash, semesterID, ts, ts,
	)
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert student: %w", err)
	}
	return s.GetByID(id)
}

func (s *StudentStore) GetByID(id string) (*model.Student, error) {
	return s.getBy("id", id)
}

func (s *StudentStore) GetByEmail(email string) (*model.Student, error) {
	return s.getBy("email", email)
}

func (s *StudentStore) GetByResetToken(token string) (*model.Student, error) {
	return s.getBy("reset_token", token)
}

func (s *StudentStore) getBy(col, val string) (*model.Student, error) {
	var st model.Student
	err := get(s.db, &st, `SELECT `+studentCols+` FROM students WHERE `+col+` = ?`, val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student by %s: %w", col, err)
	}
	return &st, nil
}

// List returns students ordered by name. An empty semesterID lists all.
func (s *StudentStore) List(semesterID string) ([]model.Student, error) {
	var students []model.Student
	var err error
	if semesterID == "" {
		err = sel(s.db, &students, `SELECT `+studentCols+` FROM students ORDER BY name ASC, id ASC`)
	} else {
		err = sel(s.db, &students, `SELECT `+studentCols+` FROM students WHERE semester_id = ? ORDER BY name ASC, id ASC`, semesterID)
	}
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

func (s *StudentStore) ListByGroup(groupID string) ([]model.Student, error) {
	var students []model.Student
	err := sel(s.db, &students, `SELECT `+studentCols+` FROM students WHERE group_id = ? ORDER BY name ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	return students, nil
}

// Update changes roster fields when version still matches.
func (s *StudentStore) Update(id string, version int, name string, groupID, semesterID *string) (*model.Student, error) {
	res, err := exec(s.db,
		`UPDATE students SET name = ?, group_id = ?, semester_id = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		name, groupID, semesterID, now(), id, version,
	)
	if err != nil {
		return nil, fmt.Errorf("update student: %w", err)
	}
	if err := versioned(s.db, "students", id, res); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// SetPassword stores a new hash and clears any pending reset token.
func (s *StudentStore) SetPassword(id, hash string) error {
	res, err := exec(s.db,
		`UPDATE students SET password_hash = ?, reset_token = NULL, reset_expires_at = NULL, updated_at = ? WHERE id = ?`,
		hash, now(), id,
	)
	if err != nil {
		return fmt.Errorf("set student password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *StudentStore) SetResetToken(id, token string, expires time.Time) error {
	_, err := exec(s.db,
		`UPDATE students SET reset_token = ?, reset_expires_at = ? WHERE id = ?`,
		token, expires.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set student reset token: %w", err)
	}
	return nil
}

// Delete removes the student and their attendance rows.
func (s *StudentStore) Delete(id string) error {
	return withTx(s.db, func(tx *sqlx.Tx) error {
		if _, err := exec(tx, `DELETE FROM attendance WHERE student_id = ?`, id); err != nil {
			return fmt.Errorf("delete student attendance: %w", err)
		}
		res, err := exec(tx, `DELETE FROM students WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete student: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SetBadge grants or revokes a badge. Granting adds points and revoking
// takes them back, each with an award row. changed is false when the
// student already was in the requested state.
func (s *StudentStore) SetBadge(id string, badge *model.BadgeDef, has bool, points int) (changed bool, err error) {
	err = withTx(s.db, func(tx *sqlx.Tx) error {
		var badges model.StringList
		err := get(tx, &badges, `SELECT badges FROM students WHERE id = ?`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get student badges: %w", err)
		}
		if badges.Contains(badge.ID) == has {
			return nil
		}

		next := make(model.StringList, 0, len(badges)+1)
		for _, b := range badges {
			if b != badge.ID {
				next = append(next, b)
			}
		}
		delta := -points
		reason := "Badge revoked: " + badge.Title
		if has {
			next = append(next, badge.ID)
			delta = points
			reason = "Badge earned: " + badge.Title
		}

		if _, err := exec(tx, `UPDATE students SET badges = ? WHERE id = ?`, next, id); err != nil {
			return fmt.Errorf("update student badges: %w", err)
		}
		if err := adjustPoints(tx, model.TargetStudent, id, delta); err != nil {
			return err
		}
		award := model.Award{ID: newID(), TS: now(), Target: model.TargetStudent, TargetID: id, Amount: delta, Reason: reason}
		if err := insertAward(tx, award); err != nil {
			return err
		}
		changed = true
		return trimAwards(tx)
	})
	return changed, err
}

// GrantWeeklyBonus credits the weekly streak bonus for weekKey at most
// once. It reports whether this call granted it.
func (s *StudentStore) GrantWeeklyBonus(id, weekKey string, points int) (granted bool, err error) {
	err = withTx(s.db, func(tx *sqlx.Tx) error {
		res, err := exec(tx,
			`UPDATE students SET points = points + ?, last_week_rewarded = ?, version = version + 1, updated_at = ?
			 WHERE id = ? AND last_week_rewarded <> ?`,
			points, weekKey, now(), id, weekKey,
		)
		if err != nil {
			return fmt.Errorf("grant weekly bonus: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}
		award := model.Award{
			ID:       newID(),
			TS:       now(),
			Target:   model.TargetStudent,
			TargetID: id,
			Amount:   points,
			Reason:   "Weekly streak bonus " + weekKey,
		}
		if err := insertAward(tx, award); err != nil {
			return err
		}
		granted = true
		return trimAwards(tx)
	})
	return granted, err
}

func (s *StudentStore) SetBingo(id string, card model.BingoCard) error {
	res, err := exec(s.db,
		`UPDATE students SET bingo = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		card, now(), id,
	)
	if err != nil {
		return fmt.Errorf("set bingo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddBingoMatch records match for question and returns the updated set.
func (s *StudentStore) AddBingoMatch(id, question string, match model.BingoMatch) (model.BingoMatches, error) {
	var matches model.BingoMatches
	err := withTx(s.db, func(tx *sqlx.Tx) error {
		err := get(tx, &matches, `SELECT bingo_matches FROM students WHERE id = ?`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get bingo matches: %w", err)
		}
		if matches == nil {
			matches = make(model.BingoMatches)
		}
		matches[question] = match
		if _, err := exec(tx,
			`UPDATE students SET bingo_matches = ?, version = version + 1, updated_at = ? WHERE id = ?`,
			matches, now(), id,
		); err != nil {
			return fmt.Errorf("update bingo matches: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}
