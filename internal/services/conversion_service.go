package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"syncdisplay/internal/assets"
	"syncdisplay/internal/converter"
	"syncdisplay/internal/events"
	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
)

var (
	ErrPresenting        = errors.New("decks cannot change while a presentation is running")
	ErrConversionRunning = errors.New("a conversion for this language is already running")
	ErrUnknownLanguage   = errors.New("unknown language")
)

// PresentationGuard is the part of the coordinator the conversion service
// needs: decks only change between sessions.
type PresentationGuard interface {
	IsPresenting() bool
	LibraryChanged() error
}

// ConversionService converts decks and installs them in the library.
// A conversion writes into a staging directory and replaces the language's
// deck directory only when it succeeded, so a failed run never leaves a
// partial deck behind.
type ConversionService struct {
	converter converter.Converter
	library   *assets.Library
	decks     *DeckStore
	guard     PresentationGuard
	events    events.Publisher
	decksDir  string
	opts      converter.Options
	log       *observability.Logger
	now       func() time.Time

	mu      sync.Mutex
	running map[models.Language]bool
}

// NewConversionService creates the service. Language decks live in
// decksDir/<language>.
func NewConversionService(conv converter.Converter, library *assets.Library, decks *DeckStore, guard PresentationGuard, pub events.Publisher, decksDir string, opts converter.Options, log *observability.Logger) *ConversionService {
	return &ConversionService{
		converter: conv,
		library:   library,
		decks:     decks,
		guard:     guard,
		events:    pub,
		decksDir:  decksDir,
		opts:      opts,
		log:       log.WithComponent("conversion"),
		now:       time.Now,
		running:   make(map[models.Language]bool),
	}
}

// DeckDir returns the deck directory of a language.
func (s *ConversionService) DeckDir(lang models.Language) string {
	return filepath.Join(s.decksDir, string(lang))
}

// LanguageForDir maps a deck directory back to its language.
func (s *ConversionService) LanguageForDir(dir string) (models.Language, bool) {
	for _, lang := range s.library.Languages() {
		if filepath.Clean(dir) == filepath.Clean(s.DeckDir(lang)) {
			return lang, true
		}
	}
	return "", false
}

// LoadAll loads every language whose deck directory exists. Missing or empty
// decks are logged and skipped.
func (s *ConversionService) LoadAll() error {
	for _, lang := range s.library.Languages() {
		if err := s.Reload(lang); err != nil {
			s.log.Warn().Err(err).Str("language", string(lang)).Msg("Deck not loaded")
		}
	}
	return nil
}

// Reload re-reads a language's deck directory into the library and lets the
// coordinator recompute its slide count.
func (s *ConversionService) Reload(lang models.Language) error {
	if !s.library.Has(lang) {
		return fmt.Errorf("%w: %s", ErrUnknownLanguage, lang)
	}
	if s.guard != nil && s.guard.IsPresenting() {
		return ErrPresenting
	}
	deck, err := s.library.Load(lang, s.DeckDir(lang))
	if err != nil {
		return err
	}
	s.log.Info().Str("language", string(lang)).Int("slides", deck.Len()).Msg("Deck loaded")
	if s.guard != nil {
		return s.guard.LibraryChanged()
	}
	return nil
}

// Convert converts sourceFile into lang's deck. Progress and the outcome are
// published as events.
func (s *ConversionService) Convert(ctx context.Context, lang models.Language, sourceFile string) (*models.DeckRecord, error) {
	if !s.library.Has(lang) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLanguage, lang)
	}
	if sourceFile == "" {
		return nil, fmt.Errorf("source file is required")
	}
	if _, err := os.Stat(sourceFile); err != nil {
		return nil, fmt.Errorf("failed to open source deck: %w", err)
	}
	if s.guard != nil && s.guard.IsPresenting() {
		return nil, ErrPresenting
	}

	s.mu.Lock()
	if s.running[lang] {
		s.mu.Unlock()
		return nil, ErrConversionRunning
	}
	s.running[lang] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, lang)
		s.mu.Unlock()
	}()

	record, err := s.convert(ctx, lang, sourceFile)
	slides := 0
	if record != nil {
		slides = record.SlideCount
	}
	s.publish(events.ConversionFinished(lang, slides, err))
	if err != nil {
		s.log.Error().Err(err).Str("language", string(lang)).Str("source", sourceFile).Msg("Conversion failed")
		return nil, err
	}
	return record, nil
}

func (s *ConversionService) convert(ctx context.Context, lang models.Language, sourceFile string) (*models.DeckRecord, error) {
	target := s.DeckDir(lang)
	staging := fmt.Sprintf("%s.staging-%s", target, uuid.NewString()[:8])
	if err := os.MkdirAll(staging, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	result, err := s.converter.Convert(ctx, sourceFile, staging, s.opts, func(percent int) {
		s.publish(events.ConversionProgress(lang, percent))
	})
	if err != nil {
		return nil, err
	}

	// Validate before touching the live deck.
	if _, err := assets.LoadDeck(lang, staging); err != nil {
		return nil, &converter.Error{Reason: "converter output is not a deck", Err: err}
	}

	if s.guard != nil && s.guard.IsPresenting() {
		return nil, ErrPresenting
	}
	if err := swapDir(staging, target); err != nil {
		return nil, err
	}

	deck, err := s.library.Load(lang, target)
	if err != nil {
		return nil, fmt.Errorf("failed to load converted deck: %w", err)
	}

	record := &models.DeckRecord{
		Language:    lang,
		SourceFile:  sourceFile,
		OutputDir:   target,
		SlideCount:  deck.Len(),
		ConvertedAt: s.now(),
	}
	if result != nil && result.SlideCount != deck.Len() {
		s.log.Warn().Int("reported", result.SlideCount).Int("found", deck.Len()).Msg("Converter slide count differs from files on disk")
	}
	if s.decks != nil {
		if err := s.decks.Put(record); err != nil {
			return nil, err
		}
	}
	if s.guard != nil {
		if err := s.guard.LibraryChanged(); err != nil {
			return nil, err
		}
	}

	s.log.Info().Str("language", string(lang)).Int("slides", record.SlideCount).Msg("Conversion installed")
	return record, nil
}

// swapDir replaces target with staging.
func swapDir(staging, target string) error {
	old := ""
	if _, err := os.Stat(target); err == nil {
		old = fmt.Sprintf("%s.old-%s", target, uuid.NewString()[:8])
		if err := os.Rename(target, old); err != nil {
			return fmt.Errorf("failed to move previous deck aside: %w", err)
		}
	}
	if err := os.Rename(staging, target); err != nil {
		if old != "" {
			_ = os.Rename(old, target)
		}
		return fmt.Errorf("failed to install converted deck: %w", err)
	}
	if old != "" {
		_ = os.RemoveAll(old)
	}
	return nil
}

func (s *ConversionService) publish(evt models.Event) {
	if s.events != nil {
		s.events.Publish(evt)
	}
}
