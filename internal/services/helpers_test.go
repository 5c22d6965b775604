package services

import (
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"syncdisplay/internal/db"
	"syncdisplay/internal/observability"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(db.InMemory, observability.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

type recordingKeys struct {
	mu      sync.Mutex
	keys    []string
	handled bool
}

func (k *recordingKeys) HandleKey(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys = append(k.keys, key)
	return k.handled
}

func (k *recordingKeys) pressed() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.keys...)
}
