package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
)

// DeckStore records converted decks in a JSON file
type DeckStore struct {
	mu       sync.RWMutex
	filePath string
	data     *models.DecksFile
	log      *observability.Logger
}

// NewDeckStore creates a deck store and loads decks.json from dataPath
func NewDeckStore(dataPath string, log *observability.Logger) (*DeckStore, error) {
	store := &DeckStore{
		filePath: filepath.Join(dataPath, "decks.json"),
		data:     &models.DecksFile{Decks: make(map[models.Language]*models.DeckRecord)},
		log:      log.WithComponent("deck_store"),
	}

	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load decks: %w", err)
	}
	return store, nil
}

// Load reads decks.json; a missing or corrupt file leaves the store empty
func (s *DeckStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		s.log.Debug().Str("path", s.filePath).Msg("Decks file not found, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read decks file: %w", err)
	}

	var file models.DecksFile
	if err := json.Unmarshal(data, &file); err != nil {
		s.log.Warn().Err(err).Str("path", s.filePath).Msg("Failed to parse decks file, using empty structure")
		return nil
	}
	if file.Decks == nil {
		file.Decks = make(map[models.Language]*models.DeckRecord)
	}

	s.data = &file
	s.log.Info().Int("decks", len(s.data.Decks)).Str("path", s.filePath).Msg("Loaded deck records")
	return nil
}

// save atomically writes decks.json (temp file → rename).
// Must be called with lock held
func (s *DeckStore) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal decks: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tempPath := s.filePath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	file.Close()

	if err := os.Rename(tempPath, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Put records a converted deck, replacing any earlier record of its language
func (s *DeckStore) Put(record *models.DeckRecord) error {
	if record == nil || record.Language == "" {
		return fmt.Errorf("deck record with a language is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *record
	s.data.Decks[record.Language] = &copied
	if err := s.save(); err != nil {
		return fmt.Errorf("failed to save after recording deck: %w", err)
	}

	s.log.Info().
		Str("language", string(record.Language)).
		Str("source", record.SourceFile).
		Int("slides", record.SlideCount).
		Msg("Recorded deck")
	return nil
}

// Get returns the record of a language
func (s *DeckStore) Get(lang models.Language) (*models.DeckRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.data.Decks[lang]
	if !ok {
		return nil, false
	}
	copied := *record
	return &copied, true
}

// List returns all deck records ordered by language
func (s *DeckStore) List() []*models.DeckRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.DeckRecord, 0, len(s.data.Decks))
	for _, record := range s.data.Decks {
		copied := *record
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Language < out[j].Language })
	return out
}
