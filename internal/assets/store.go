// Package assets loads converted slide decks from disk.
//
// A deck directory holds slide_001.jpg, slide_002.jpg, ... (1-based, three
// digits), a slide_NNN_thumb.jpg per slide and an optional metadata.json
// sidecar with per-slide text.
package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"syncdisplay/internal/models"
)

// MetadataFile is the name of the converter's text sidecar.
const MetadataFile = "metadata.json"

// ErrEmptyDeck is returned when a directory holds no slide images.
var ErrEmptyDeck = errors.New("deck has no slides")

// SlideFileName returns the image name for a 0-based slide index.
func SlideFileName(index int) string {
	return fmt.Sprintf("slide_%03d.jpg", index+1)
}

// ThumbnailFileName returns the thumbnail name for a 0-based slide index.
func ThumbnailFileName(index int) string {
	return fmt.Sprintf("slide_%03d_thumb.jpg", index+1)
}

// ReadMetadata reads the sidecar in dir. A missing sidecar is not an error.
func ReadMetadata(dir string) (*models.DeckMetadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta models.DeckMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &meta, nil
}

// metadataCount is how many slides the sidecar vouches for: its announced
// count, bounded by the per-slide entries it actually carries.
func metadataCount(meta *models.DeckMetadata) int {
	if meta == nil {
		return 0
	}
	return min(meta.SlideCount, len(meta.Slides))
}

// LoadDeck reads the deck of one language from dir.
//
// The slide count is the number of contiguous slide images starting at
// slide_001.jpg. When the sidecar has entries for more slides than exist on
// disk the extra slides are still listed so they reveal as placeholders.
func LoadDeck(lang models.Language, dir string) (*models.Deck, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open deck directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("deck path is not a directory: %s", dir)
	}

	meta, err := ReadMetadata(dir)
	if err != nil {
		return nil, err
	}

	count := 0
	for {
		if _, err := os.Stat(filepath.Join(dir, SlideFileName(count))); err != nil {
			break
		}
		count++
	}
	if extra := metadataCount(meta); extra > count {
		count = extra
	}
	if count == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrEmptyDeck)
	}

	deck := &models.Deck{
		Language: lang,
		Dir:      dir,
		Slides:   make([]models.SlideAsset, count),
		LoadedAt: time.Now(),
	}
	if meta != nil {
		deck.Source = meta.SourceFile
	}
	for i := range deck.Slides {
		deck.Slides[i] = models.SlideAsset{
			ImagePath:     filepath.Join(dir, SlideFileName(i)),
			ThumbnailPath: filepath.Join(dir, ThumbnailFileName(i)),
		}
		if meta != nil && i < len(meta.Slides) {
			deck.Slides[i].Text = meta.Slides[i].Text
		}
	}
	return deck, nil
}
