package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
)

func TestDeckStore_PutPersists(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDeckStore(dir, observability.Nop())
	require.NoError(t, err)
	assert.Empty(t, store.List())

	convertedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(&models.DeckRecord{Language: "ru", SourceFile: "/in/ru.pptx", OutputDir: "/out/ru", SlideCount: 12, ConvertedAt: convertedAt}))
	require.NoError(t, store.Put(&models.DeckRecord{Language: "en", SourceFile: "/in/en.pptx", OutputDir: "/out/en", SlideCount: 10, ConvertedAt: convertedAt}))
	assert.NoFileExists(t, filepath.Join(dir, "decks.json.tmp"))

	reopened, err := NewDeckStore(dir, observability.Nop())
	require.NoError(t, err)
	list := reopened.List()
	require.Len(t, list, 2)
	assert.Equal(t, models.Language("en"), list[0].Language)
	assert.Equal(t, models.Language("ru"), list[1].Language)

	ru, ok := reopened.Get("ru")
	require.True(t, ok)
	assert.Equal(t, 12, ru.SlideCount)
	assert.True(t, convertedAt.Equal(ru.ConvertedAt))

	_, ok = reopened.Get("de")
	assert.False(t, ok)
}

func TestDeckStore_ReturnsCopies(t *testing.T) {
	store, err := NewDeckStore(t.TempDir(), observability.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Put(&models.DeckRecord{Language: "ru", SlideCount: 3}))

	got, _ := store.Get("ru")
	got.SlideCount = 99
	again, _ := store.Get("ru")
	assert.Equal(t, 3, again.SlideCount)
}

func TestDeckStore_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "decks.json"), []byte("{not json"), 0644))

	store, err := NewDeckStore(dir, observability.Nop())
	require.NoError(t, err)
	assert.Empty(t, store.List())
	assert.Error(t, store.Put(&models.DeckRecord{}))
}
