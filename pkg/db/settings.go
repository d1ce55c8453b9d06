package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/urmzd/ht32-panel/pkg/device"
	"github.com/urmzd/ht32-panel/pkg/state"
)

var ErrSettingNotFound = errors.New("setting not found")

// Persisted setting keys. They match the store's change field names.
var persistedKeys = []string{
	state.FieldLcdOrientation,
	state.FieldLcdTheme,
	state.FieldLcdRefresh,
	state.FieldLcdNetwork,
	state.FieldLcdIPDisplay,
	state.FieldLedTheme,
	state.FieldLedIntensity,
	state.FieldLedSpeed,
}

// Setting is one persisted key/value pair.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// SettingStore provides settings CRUD operations.
type SettingStore interface {
	Get(ctx context.Context, key string) (*Setting, error)
	List(ctx context.Context) ([]*Setting, error)
	Set(ctx context.Context, key, value string) error
	SetAll(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, key string) error
}

// Settings returns a SettingStore for this database.
func (db *DB) Settings() SettingStore {
	return &settingStore{db: db}
}

type settingStore struct {
	db *DB
}

func (s *settingStore) Get(ctx context.Context, key string) (*Setting, error) {
	st := &Setting{}
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT key, value, updated_at FROM settings WHERE key = ?
	`, key).Scan(&st.Key, &st.Value, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSettingNotFound
	}
	if err != nil {
		return nil, err
	}
	st.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return st, nil
}

func (s *settingStore) List(ctx context.Context) ([]*Setting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, updated_at FROM settings ORDER BY key
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var settings []*Setting
	for rows.Next() {
		st := &Setting{}
		var updatedAt string
		if err := rows.Scan(&st.Key, &st.Value, &updatedAt); err != nil {
			return nil, err
		}
		st.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
		settings = append(settings, st)
	}
	return settings, rows.Err()
}

const upsertSetting = `
	INSERT INTO settings (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')
	WHERE settings.value != excluded.value
`

func (s *settingStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, upsertSetting, key, value); err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

func (s *settingStore) SetAll(ctx context.Context, values map[string]string) error {
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		for k, v := range values {
			if _, err := tx.ExecContext(ctx, upsertSetting, k, v); err != nil {
				return fmt.Errorf("failed to save setting %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *settingStore) Delete(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSettingNotFound
	}
	return nil
}

// SettingsOf extracts the persisted settings from a snapshot.
func SettingsOf(st device.State) map[string]string {
	return map[string]string{
		state.FieldLcdOrientation: string(st.LCD.Orientation),
		state.FieldLcdTheme:       st.LCD.Theme,
		state.FieldLcdRefresh:     strconv.Itoa(st.LCD.RefreshMs),
		state.FieldLcdNetwork:     st.LCD.NetworkInterface,
		state.FieldLcdIPDisplay:   string(st.LCD.IPDisplay),
		state.FieldLedTheme:       st.LED.Theme.String(),
		state.FieldLedIntensity:   strconv.Itoa(st.LED.Intensity),
		state.FieldLedSpeed:       strconv.Itoa(st.LED.Speed),
	}
}
