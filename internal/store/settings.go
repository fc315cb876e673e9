package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/classpoints/internal/model"
)

const (
	KeyBingoHintsEnabled  = "bingo_hints_enabled"
	KeyStreakFreezeTotal  = "streak_freeze_total"
	KeyWeeklyStreakPoints = "weekly_streak_points"
	KeyBadgePoints        = "badge_points"
)

type SettingsStore struct {
	db *sqlx.DB
}

func NewSettingsStore(db *sqlx.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(key string) (string, error) {
	var value string
	err := get(s.db, &value, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("setting %q not found", key)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) GetAll() (map[string]string, error) {
	var rows []model.Setting
	if err := sel(s.db, &rows, `SELECT key, value, updated_at FROM settings ORDER BY key`); err != nil {
		return nil, fmt.Errorf("get all settings: %w", err)
	}
	settings := make(map[string]string, len(rows))
	for _, r := range rows {
		settings[r.Key] = r.Value
	}
	return settings, nil
}

func (s *SettingsStore) Set(key, value string) error {
	return setSetting(s.db, key, value)
}

func setSetting(e sqlx.Ext, key, value string) error {
	_, err := exec(e,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// App returns the classroom settings, falling back to defaults for keys
// that are missing or unparseable.
func (s *SettingsStore) App() (model.AppSettings, error) {
	all, err := s.GetAll()
	if err != nil {
		return model.AppSettings{}, err
	}
	app := model.DefaultAppSettings()
	if v, ok := all[KeyBingoHintsEnabled]; ok {
		app.BingoHintsEnabled, _ = strconv.ParseBool(v)
	}
	intSetting(all, KeyStreakFreezeTotal, &app.StreakFreezeTotal)
	intSetting(all, KeyWeeklyStreakPoints, &app.WeeklyStreakPoints)
	intSetting(all, KeyBadgePoints, &app.BadgePoints)
	return app, nil
}

func intSetting(all map[string]string, key string, dst *int) {
	v, ok := all[key]
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func (s *SettingsStore) SetApp(app model.AppSettings) error {
	return withTx(s.db, func(tx *sqlx.Tx) error {
		values := map[string]string{
			KeyBingoHintsEnabled:  strconv.FormatBool(app.BingoHintsEnabled),
			KeyStreakFreezeTotal:  strconv.Itoa(app.StreakFreezeTotal),
			KeyWeeklyStreakPoints: strconv.Itoa(app.WeeklyStreakPoints),
			KeyBadgePoints:        strconv.Itoa(app.BadgePoints),
		}
		for k, v := range values {
			if err := setSetting(tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}
