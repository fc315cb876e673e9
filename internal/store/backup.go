package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/classpoints/internal/model"
)

const backupCols = `id, filename, object_key, size_bytes, status, error_message, started_at, completed_at, created_at, updated_at`

type BackupStore struct {
	db *sqlx.DB
}

func NewBackupStore(db *sqlx.DB) *BackupStore {
	return &BackupStore{db: db}
}

func (s *BackupStore) Create(filename, objectKey string) (*model.Backup, error) {
	ts := now()
	b := &model.Backup{
		ID:        newID(),
		Filename:  filename,
		ObjectKey: objectKey,
		Status:    model.BackupStatusPending,
		StartedAt: &ts,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	_, err := exec(s.db,
		`INSERT INTO backups (id, filename, object_key, status, started_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Filename, b.ObjectKey, b.Status, ts, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	return b, nil
}

func (s *BackupStore) GetByID(id string) (*model.Backup, error) {
	var b model.Backup
	err := get(s.db, &b, `SELECT `+backupCols+` FROM backups WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup %s: %w", id, err)
	}
	return &b, nil
}

func (s *BackupStore) List(limit int) ([]model.Backup, error) {
	var backups []model.Backup
	if err := sel(s.db, &backups, `SELECT `+backupCols+` FROM backups ORDER BY created_at DESC, id DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return backups, nil
}

func (s *BackupStore) UpdateStatus(id string, status model.BackupStatus, errMsg string) error {
	_, err := exec(s.db,
		`UPDATE backups SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, now(), id,
	)
	if err != nil {
		return fmt.Errorf("update backup status: %w", err)
	}
	return nil
}

func (s *BackupStore) UpdateCompleted(id string, sizeBytes int64) error {
	ts := now()
	_, err := exec(s.db,
		`UPDATE backups SET status = ?, size_bytes = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		model.BackupStatusCompleted, sizeBytes, ts, ts, id,
	)
	if err != nil {
		return fmt.Errorf("update backup completed: %w", err)
	}
	return nil
}

// DeleteOlderThan removes backup records created before cutoff and
// returns their object keys so the objects can be deleted too.
func (s *BackupStore) DeleteOlderThan(cutoff time.Time) ([]string, error) {
	var keys []string
	err := withTx(s.db, func(tx *sqlx.Tx) error {
		if err := sel(tx, &keys, `SELECT object_key FROM backups WHERE created_at < ? ORDER BY created_at ASC`, cutoff.UTC()); err != nil {
			return fmt.Errorf("list old backups: %w", err)
		}
		if _, err := exec(tx, `DELETE FROM backups WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return fmt.Errorf("delete old backups: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// LatestCompleted returns the most recent completed backup, or nil.
func (s *BackupStore) LatestCompleted() (*model.Backup, error) {
	var b model.Backup
	err := get(s.db, &b,
		`SELECT `+backupCols+` FROM backups WHERE status = ? ORDER BY completed_at DESC LIMIT 1`,
		model.BackupStatusCompleted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest backup: %w", err)
	}
	return &b, nil
}

func (s *BackupStore) TotalSize() (int64, error) {
	var total int64
	err := get(s.db, &total, `SELECT COALESCE(SUM(size_bytes), 0) FROM backups WHERE status = ?`, model.BackupStatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("total backup size: %w", err)
	}
	return total, nil
}
