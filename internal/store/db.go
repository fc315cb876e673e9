package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("record was changed by someone else")
	ErrEventLocked     = errors.New("peer event already submitted")
	ErrEmailTaken      = errors.New("email already registered")
)

// Queries are written with ? placeholders and rebound for the driver, so
// the same SQL serves sqlite and postgres. Every helper accepts either the
// *sqlx.DB or a *sqlx.Tx.

func get(e sqlx.Ext, dest any, query string, args ...any) error {
	return sqlx.Get(e, dest, e.Rebind(query), args...)
}

func sel(e sqlx.Ext, dest any, query string, args ...any) error {
	return sqlx.Select(e, dest, e.Rebind(query), args...)
}

func exec(e sqlx.Ext, query string, args ...any) (sql.Result, error) {
	return e.Exec(e.Rebind(query), args...)
}

func withTx(db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func newID() string {
	return uuid.NewString()
}

func now() time.Time {
	return time.Now().UTC()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

// versioned turns the result of an UPDATE ... WHERE id = ? AND version = ?
// into ErrNotFound or ErrVersionConflict when no row changed.
func versioned(e sqlx.Ext, table, id string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var count int
	if err := get(e, &count, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id); err != nil {
		return fmt.Errorf("check %s: %w", table, err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func timeOr(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t.UTC()
}
