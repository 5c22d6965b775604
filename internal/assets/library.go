package assets

import (
	"fmt"
	"sync"

	"syncdisplay/internal/models"
)

// Library holds the decks of both languages. Decks are replaced wholesale on
// reload and never mutated, so readers can share them without locking.
type Library struct {
	mu        sync.RWMutex
	languages [2]models.Language
	decks     map[models.Language]*models.Deck
}

// NewLibrary creates an empty library for the two languages.
func NewLibrary(a, b models.Language) *Library {
	return &Library{
		languages: [2]models.Language{a, b},
		decks:     make(map[models.Language]*models.Deck),
	}
}

// Languages returns the two configured languages in order.
func (l *Library) Languages() [2]models.Language {
	return l.languages
}

// Has reports whether lang is one of the library's languages.
func (l *Library) Has(lang models.Language) bool {
	return lang == l.languages[0] || lang == l.languages[1]
}

// Set installs a deck for its language.
func (l *Library) Set(deck *models.Deck) error {
	if deck == nil {
		return fmt.Errorf("deck is required")
	}
	if !l.Has(deck.Language) {
		return fmt.Errorf("unknown language: %s", deck.Language)
	}
	l.mu.Lock()
	l.decks[deck.Language] = deck
	l.mu.Unlock()
	return nil
}

// Load reads lang's deck from dir and installs it.
func (l *Library) Load(lang models.Language, dir string) (*models.Deck, error) {
	if !l.Has(lang) {
		return nil, fmt.Errorf("unknown language: %s", lang)
	}
	deck, err := LoadDeck(lang, dir)
	if err != nil {
		return nil, err
	}
	if err := l.Set(deck); err != nil {
		return nil, err
	}
	return deck, nil
}

// Deck returns the loaded deck of lang.
func (l *Library) Deck(lang models.Language) (*models.Deck, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	deck, ok := l.decks[lang]
	return deck, ok && deck.Len() > 0
}

// Ready reports whether both languages have a non-empty deck.
func (l *Library) Ready() bool {
	_, okA := l.Deck(l.languages[0])
	_, okB := l.Deck(l.languages[1])
	return okA && okB
}

// TotalSlides is the shorter deck's slide count; 0 until both are loaded.
func (l *Library) TotalSlides() int {
	a, okA := l.Deck(l.languages[0])
	b, okB := l.Deck(l.languages[1])
	if !okA || !okB {
		return 0
	}
	if a.Len() < b.Len() {
		return a.Len()
	}
	return b.Len()
}
