package models

import "time"

// SlideAsset is one converted slide of one language.
type SlideAsset struct {
	ImagePath     string `json:"imagePath"`
	ThumbnailPath string `json:"thumbnailPath,omitempty"`
	Text          string `json:"text"`
}

// Deck is the ordered slide list of one language, read-only once loaded.
type Deck struct {
	Language Language     `json:"language"`
	Dir      string       `json:"dir"`
	Source   string       `json:"sourceFile,omitempty"`
	Slides   []SlideAsset `json:"slides"`
	LoadedAt time.Time    `json:"loadedAt"`
}

// Len returns the number of slides; a nil deck has none.
func (d *Deck) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Slides)
}

// Slide returns the asset at index, or false when out of range.
func (d *Deck) Slide(index int) (SlideAsset, bool) {
	if d == nil || index < 0 || index >= len(d.Slides) {
		return SlideAsset{}, false
	}
	return d.Slides[index], true
}

// SlideText is one entry of the converter's metadata sidecar.
type SlideText struct {
	Text      string `json:"text"`
	FirstLine string `json:"firstLine"`
}

// DeckMetadata is the metadata.json sidecar written by the converter.
type DeckMetadata struct {
	SourceFile  string      `json:"sourceFile"`
	SlideCount  int         `json:"slideCount"`
	GeneratedAt string      `json:"generatedAt"`
	Slides      []SlideText `json:"slides"`
}

// DeckRecord tracks a converted deck in the deck store.
type DeckRecord struct {
	Language    Language  `json:"language"`
	SourceFile  string    `json:"sourceFile"`
	OutputDir   string    `json:"outputDir"`
	SlideCount  int       `json:"slideCount"`
	ConvertedAt time.Time `json:"convertedAt"`
}

// DecksFile is the root structure of decks.json.
type DecksFile struct {
	Decks map[Language]*DeckRecord `json:"decks"`
}
