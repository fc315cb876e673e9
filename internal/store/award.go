package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/classpoints/internal/model"
)

const awardCols = `id, ts, target, target_id, amount, reason`

type AwardStore struct {
	db *sqlx.DB
}

func NewAwardStore(db *sqlx.DB) *AwardStore {
	return &AwardStore{db: db}
}

// Grant appends one award per target id and applies the points, all in
// one transaction.
func (s *AwardStore) Grant(target model.Target, targetIDs []string, amount int, reason string) ([]model.Award, error) {
	ts := now()
	awards := make([]model.Award, 0, len(targetIDs))
	err := withTx(s.db, func(tx *sqlx.Tx) error {
		for _, id := range targetIDs {
			if err := adjustPoints(tx, target, id, amount); err != nil {
				return err
			}
			a := model.Award{ID: newID(), TS: ts, Target: target, TargetID: id, Amount: amount, Reason: reason}
			if err := insertAward(tx, a); err != nil {
				return err
			}
			awards = append(awards, a)
		}
		return trimAwards(tx)
	})
	if err != nil {
		return nil, err
	}
	return awards, nil
}

// List returns the newest awards first.
func (s *AwardStore) List(limit int) ([]model.Award, error) {
	if limit <= 0 || limit > model.MaxAwards {
		limit = model.MaxAwards
	}
	var awards []model.Award
	err := sel(s.db, &awards, `SELECT `+awardCols+` FROM awards ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list awards: %w", err)
	}
	return awards, nil
}

func (s *AwardStore) ListForTarget(target model.Target, targetID string) ([]model.Award, error) {
	var awards []model.Award
	err := sel(s.db, &awards,
		`SELECT `+awardCols+` FROM awards WHERE target = ? AND target_id = ? ORDER BY ts DESC, id DESC`,
		target, targetID,
	)
	if err != nil {
		return nil, fmt.Errorf("list awards for %s %s: %w", target, targetID, err)
	}
	return awards, nil
}

func (s *AwardStore) Count() (int, error) {
	var n int
	if err := get(s.db, &n, `SELECT COUNT(*) FROM awards`); err != nil {
		return 0, fmt.Errorf("count awards: %w", err)
	}
	return n, nil
}

func insertAward(e sqlx.Ext, a model.Award) error {
	_, err := exec(e,
		`INSERT INTO awards (`+awardCols+`) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.TS, a.Target, a.TargetID, a.Amount, a.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert award: %w", err)
	}
	return nil
}

// trimAwards keeps only the newest MaxAwards rows.
func trimAwards(e sqlx.Ext) error {
	_, err := exec(e,
		`DELETE FROM awards WHERE id NOT IN (SELECT id FROM awards ORDER BY ts DESC, id DESC LIMIT ?)`,
		model.MaxAwards,
	)
	if err != nil {
		return fmt.Errorf("trim awards: %w", err)
	}
	return nil
}

func adjustPoints(e sqlx.Ext, target model.Target, id string, delta int) error {
	table := "students"
	if target == model.TargetGroup {
		table = "student_groups"
	}
	res, err := exec(e,
		`UPDATE `+table+` SET points = points + ?, version = version + 1, updated_at = ? WHERE id = ?`,
		delta, now(), id,
	)
	if err != nil {
		return fmt.Errorf("adjust %s points: %w", target, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", target, id, ErrNotFound)
	}
	return nil
}
