package handlers

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
)

// DeckConverter converts and reloads language decks.
type DeckConverter interface {
	Convert(ctx context.Context, lang models.Language, sourceFile string) (*models.DeckRecord, error)
	Reload(lang models.Language) error
	DeckDir(lang models.Language) string
}

// DeckCatalog exposes the loaded decks.
type DeckCatalog interface {
	Languages() [2]models.Language
	Has(lang models.Language) bool
	Deck(lang models.Language) (*models.Deck, bool)
	TotalSlides() int
}

// DeckRecords exposes conversion history.
type DeckRecords interface {
	Get(lang models.Language) (*models.DeckRecord, bool)
}

var slideFilePattern = regexp.MustCompile(`^slide_\d{3}(_thumb)?\.jpg$`)

// DeckHandler handles HTTP requests for slide decks
type DeckHandler struct {
	converter DeckConverter
	catalog   DeckCatalog
	records   DeckRecords
	urlFor    func(string) string
	log       *observability.Logger
}

// NewDeckHandler creates a new deck handler
func NewDeckHandler(conv DeckConverter, catalog DeckCatalog, records DeckRecords, urlFor func(string) string, log *observability.Logger) *DeckHandler {
	return &DeckHandler{
		converter: conv,
		catalog:   catalog,
		records:   records,
		urlFor:    urlFor,
		log:       log.WithComponent("deck-api"),
	}
}

// SlideInfo describes one slide of a deck
type SlideInfo struct {
	Index        int    `json:"index"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	FirstLine    string `json:"firstLine,omitempty"`
}

// DeckInfo describes one language deck
type DeckInfo struct {
	Language    models.Language `json:"language"`
	Loaded      bool            `json:"loaded"`
	SlideCount  int             `json:"slideCount"`
	SourceFile  string          `json:"sourceFile,omitempty"`
	ConvertedAt *time.Time      `json:"convertedAt,omitempty"`
	Slides      []SlideInfo     `json:"slides"`
}

// DecksResponse lists both language decks
type DecksResponse struct {
	Success     bool       `json:"success"`
	TotalSlides int        `json:"totalSlides"`
	Decks       []DeckInfo `json:"decks"`
}

// ListDecks returns both decks with their slides
// GET /api/decks
func (h *DeckHandler) ListDecks(w http.ResponseWriter, r *http.Request) {
	langs := h.catalog.Languages()
	response := DecksResponse{
		Success:     true,
		TotalSlides: h.catalog.TotalSlides(),
		Decks:       make([]DeckInfo, 0, len(langs)),
	}
	for _, lang := range langs {
		response.Decks = append(response.Decks, h.deckInfo(lang))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *DeckHandler) deckInfo(lang models.Language) DeckInfo {
	info := DeckInfo{Language: lang, Slides: []SlideInfo{}}
	if rec, ok := h.records.Get(lang); ok {
		info.SourceFile = rec.SourceFile
		converted := rec.ConvertedAt
		info.ConvertedAt = &converted
	}
	deck, ok := h.catalog.Deck(lang)
	if !ok {
		return info
	}
	info.Loaded = true
	info.SlideCount = deck.Len()
	for i, s := range deck.Slides {
		info.Slides = append(info.Slides, SlideInfo{
			Index:        i,
			URL:          h.urlFor(s.ImagePath),
			ThumbnailURL: h.urlFor(s.ThumbnailPath),
			FirstLine:    firstLine(s.Text),
		})
	}
	return info
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(line)
}

// ConvertRequest names the source deck to convert
type ConvertRequest struct {
	SourceFile string `json:"sourceFile"`
}

// ConvertResponse reports a finished conversion
type ConvertResponse struct {
	Success bool               `json:"success"`
	Deck    *models.DeckRecord `json:"deck"`
}

// ConvertDeck converts a source presentation into a language deck. Progress
// is streamed to control clients as events.
// POST /api/decks/{language}/convert
func (h *DeckHandler) ConvertDeck(w http.ResponseWriter, r *http.Request) {
	lang := models.Language(mux.Vars(r)["language"])

	var req ConvertRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.SourceFile == "" {
		http.Error(w, "sourceFile is required", http.StatusBadRequest)
		return
	}

	record, err := h.converter.Convert(r.Context(), lang, req.SourceFile)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConvertResponse{Success: true, Deck: record})
}

// ReloadDeck re-reads a language deck from disk
// POST /api/decks/{language}/reload
func (h *DeckHandler) ReloadDeck(w http.ResponseWriter, r *http.Request) {
	lang := models.Language(mux.Vars(r)["language"])
	if err := h.converter.Reload(lang); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deckInfo(lang))
}

// ServeSlide serves a slide image or thumbnail of a deck
// GET /slides/{language}/{file}
func (h *DeckHandler) ServeSlide(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	lang := models.Language(vars["language"])
	file := vars["file"]

	if !h.catalog.Has(lang) || !slideFilePattern.MatchString(file) {
		http.Error(w, "Slide not found", http.StatusNotFound)
		return
	}

	path := filepath.Join(h.converter.DeckDir(lang), file)
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "Slide not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}
