package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
)

var (
	ErrClickerNotFound = errors.New("clicker not found")
	ErrClickerInactive = errors.New("clicker is not active")
)

// KeyHandler receives navigation keys. The coordinator implements it.
type KeyHandler interface {
	HandleKey(key string) bool
}

// ClickerService manages hardware presenter remotes
type ClickerService struct {
	database *sql.DB
	keys     KeyHandler
	log      *observability.Logger
	now      func() time.Time
}

// NewClickerService creates a new clicker service
func NewClickerService(database *sql.DB, keys KeyHandler, log *observability.Logger) *ClickerService {
	return &ClickerService{
		database: database,
		keys:     keys,
		log:      log.WithComponent("clickers"),
		now:      time.Now,
	}
}

const clickerColumns = `id, mac_address, name, is_active, press_count, last_press, created_at, updated_at`

// normalizeMAC normalizes MAC address format
func normalizeMAC(macAddress string) string {
	r := strings.NewReplacer(":", "", "-", "", " ", "")
	return strings.ToUpper(r.Replace(macAddress))
}

// Register registers a remote, returning the existing one if known
func (cs *ClickerService) Register(macAddress, name string) (*models.Clicker, error) {
	macAddress = normalizeMAC(macAddress)
	if len(macAddress) < 6 {
		return nil, fmt.Errorf("invalid MAC address: %q", macAddress)
	}

	existing, err := cs.GetByMAC(macAddress)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrClickerNotFound) {
		return nil, err
	}

	// Use last 6 chars of MAC as ID
	id := fmt.Sprintf("clk_%s", macAddress[len(macAddress)-6:])
	now := cs.now()

	query := `INSERT INTO clickers
		(id, mac_address, name, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := cs.database.Exec(query, id, macAddress, name, true, now, now); err != nil {
		return nil, fmt.Errorf("failed to insert clicker: %w", err)
	}

	cs.log.Info().Str("mac", macAddress).Str("id", id).Msg("Clicker registered")
	return cs.GetByMAC(macAddress)
}

// GetByMAC returns a remote by its MAC address
func (cs *ClickerService) GetByMAC(macAddress string) (*models.Clicker, error) {
	macAddress = normalizeMAC(macAddress)

	row := cs.database.QueryRow(`SELECT `+clickerColumns+` FROM clickers WHERE mac_address = ?`, macAddress)
	clicker, err := scanClicker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrClickerNotFound, macAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query clicker: %w", err)
	}
	return clicker, nil
}

// List returns all registered remotes
func (cs *ClickerService) List() ([]*models.Clicker, error) {
	rows, err := cs.database.Query(`SELECT ` + clickerColumns + ` FROM clickers ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clickers: %w", err)
	}
	defer rows.Close()

	clickers := []*models.Clicker{}
	for rows.Next() {
		clicker, err := scanClicker(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan clicker: %w", err)
		}
		clickers = append(clickers, clicker)
	}
	return clickers, rows.Err()
}

// Update renames a remote and enables or disables it
func (cs *ClickerService) Update(macAddress, name string, active bool) (*models.Clicker, error) {
	macAddress = normalizeMAC(macAddress)

	query := `UPDATE clickers SET name = ?, is_active = ?, updated_at = ? WHERE mac_address = ?`
	result, err := cs.database.Exec(query, name, active, cs.now(), macAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to update clicker: %w", err)
	}
	if err := expectOneRow(result, macAddress); err != nil {
		return nil, err
	}
	return cs.GetByMAC(macAddress)
}

// Delete removes a remote
func (cs *ClickerService) Delete(macAddress string) error {
	macAddress = normalizeMAC(macAddress)

	result, err := cs.database.Exec(`DELETE FROM clickers WHERE mac_address = ?`, macAddress)
	if err != nil {
		return fmt.Errorf("failed to delete clicker: %w", err)
	}
	if err := expectOneRow(result, macAddress); err != nil {
		return err
	}

	cs.log.Info().Str("mac", macAddress).Msg("Clicker deleted")
	return nil
}

// Press records a key press from a remote and forwards the key. Unknown
// remotes are registered on their first press. It reports whether the key
// changed the presentation.
func (cs *ClickerService) Press(macAddress, key string) (*models.Clicker, bool, error) {
	clicker, err := cs.GetByMAC(macAddress)
	if errors.Is(err, ErrClickerNotFound) {
		clicker, err = cs.Register(macAddress, "")
	}
	if err != nil {
		return nil, false, err
	}
	if !clicker.IsActive {
		return clicker, false, fmt.Errorf("%w: %s", ErrClickerInactive, clicker.MACAddress)
	}

	now := cs.now()
	query := `UPDATE clickers
		SET press_count = press_count + 1, last_press = ?, updated_at = ?
		WHERE mac_address = ?`
	if _, err := cs.database.Exec(query, now, now, clicker.MACAddress); err != nil {
		return nil, false, fmt.Errorf("failed to update clicker press: %w", err)
	}
	clicker.PressCount++
	clicker.LastPress = now
	clicker.UpdatedAt = now

	handled := false
	if cs.keys != nil {
		handled = cs.keys.HandleKey(key)
	}

	cs.log.Debug().
		Str("mac", clicker.MACAddress).
		Str("key", key).
		Bool("handled", handled).
		Int("presses", clicker.PressCount).
		Msg("Clicker press")
	return clicker, handled, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClicker(row rowScanner) (*models.Clicker, error) {
	var clicker models.Clicker
	var lastPress sql.NullTime

	err := row.Scan(
		&clicker.ID,
		&clicker.MACAddress,
		&clicker.Name,
		&clicker.IsActive,
		&clicker.PressCount,
		&lastPress,
		&clicker.CreatedAt,
		&clicker.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastPress.Valid {
		clicker.LastPress = lastPress.Time
	}
	return &clicker, nil
}

func expectOneRow(result sql.Result, macAddress string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrClickerNotFound, macAddress)
	}
	return nil
}
