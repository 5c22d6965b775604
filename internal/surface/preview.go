package surface

import "strings"

const (
	// MaxPreviewRunes bounds the singer's preview line.
	MaxPreviewRunes = 60
	// Ellipsis marks a truncated preview.
	Ellipsis = "…"
	// EndMarker is shown when no upcoming slide exists.
	EndMarker = "End of presentation"

	minPreviewLineRunes = 3
)

// Preview is what the singer screen shows under the current slide.
type Preview struct {
	Text string
	End  bool
}

// DerivePreview computes the singer preview for the slide at index, whose
// text is text, in a deck of total slides.
//
// Lines are trimmed and lines of two characters or fewer (bare slide
// numbers, bullet glyphs) are skipped. The first remaining line is used,
// truncated to MaxPreviewRunes with an ellipsis. No qualifying line yields an
// empty preview.
func DerivePreview(text string, index, total int) Preview {
	if index >= total {
		return Preview{Text: EndMarker, End: true}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		runes := []rune(line)
		if len(runes) < minPreviewLineRunes {
			continue
		}
		if len(runes) > MaxPreviewRunes {
			return Preview{Text: string(runes[:MaxPreviewRunes]) + Ellipsis}
		}
		return Preview{Text: line}
	}
	return Preview{}
}
