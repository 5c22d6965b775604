package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
)

// Keys of the settings table.
const (
	SettingDisplayAssignment = "display_assignment"
	SettingFadeDurationMs    = "fade_duration_ms"
	SettingSyncMode          = "sync_mode"
	SettingSingerLanguage    = "singer_language"
)

// Settings are the operator's last-used session choices.
type Settings struct {
	DisplayAssignment models.DisplayAssignment `json:"displayAssignment"`
	FadeDurationMs    int64                    `json:"fadeDurationMs"`
	SyncMode          bool                     `json:"syncMode"`
	SingerLanguage    models.Language          `json:"singerLanguage,omitempty"`
}

// FadeDuration returns the fade as a duration.
func (s Settings) FadeDuration() time.Duration {
	return time.Duration(s.FadeDurationMs) * time.Millisecond
}

// SettingsService persists Settings as flat key/value rows
type SettingsService struct {
	database *sql.DB
	defaults Settings
	log      *observability.Logger
	now      func() time.Time
}

// NewSettingsService creates a settings service; defaults fill missing keys
func NewSettingsService(database *sql.DB, defaults Settings, log *observability.Logger) *SettingsService {
	return &SettingsService{
		database: database,
		defaults: defaults,
		log:      log.WithComponent("settings"),
		now:      time.Now,
	}
}

// Load returns the stored settings over the defaults. Unparseable values
// are logged and left at their default.
func (ss *SettingsService) Load() (Settings, error) {
	out := ss.defaults
	out.DisplayAssignment = ss.defaults.DisplayAssignment.Clone()

	rows, err := ss.database.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return out, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return out, fmt.Errorf("failed to scan setting: %w", err)
		}
		if err := applySetting(&out, key, value); err != nil {
			ss.log.Warn().Err(err).Str("key", key).Msg("Ignoring stored setting")
		}
	}
	return out, rows.Err()
}

func applySetting(s *Settings, key, value string) error {
	switch key {
	case SettingDisplayAssignment:
		var a models.DisplayAssignment
		if err := json.Unmarshal([]byte(value), &a); err != nil {
			return err
		}
		s.DisplayAssignment = a
	case SettingFadeDurationMs:
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		if ms < 0 {
			return fmt.Errorf("negative fade: %d", ms)
		}
		s.FadeDurationMs = ms
	case SettingSyncMode:
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		s.SyncMode = enabled
	case SettingSingerLanguage:
		s.SingerLanguage = models.Language(value)
	}
	return nil
}

// Save writes every setting in one transaction
func (ss *SettingsService) Save(s Settings) error {
	if s.FadeDurationMs < 0 {
		return fmt.Errorf("fade duration must not be negative")
	}
	assignment, err := json.Marshal(s.DisplayAssignment)
	if err != nil {
		return fmt.Errorf("failed to marshal display assignment: %w", err)
	}

	values := []struct{ key, value string }{
		{SettingDisplayAssignment, string(assignment)},
		{SettingFadeDurationMs, strconv.FormatInt(s.FadeDurationMs, 10)},
		{SettingSyncMode, strconv.FormatBool(s.SyncMode)},
		{SettingSingerLanguage, string(s.SingerLanguage)},
	}

	tx, err := ss.database.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := ss.now()
	query := `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	for _, kv := range values {
		if _, err := tx.Exec(query, kv.key, kv.value, now); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", kv.key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}

	ss.log.Debug().Int("outputs", len(s.DisplayAssignment)).Bool("sync_mode", s.SyncMode).Msg("Settings saved")
	return nil
}
