package surface

import (
	"syncdisplay/internal/clock"
	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
)

// Singer is a display surface that also previews the upcoming slide's text.
// The preview changes at the same instant as the slide it belongs to, and
// Blank on the renderer clears both.
type Singer struct {
	*Display
	preview PreviewRenderer
}

// NewSinger initializes the singer surface for the configured language.
func NewSinger(cfg Config, renderer PreviewRenderer, loader Loader, clk clock.Clock, log *observability.Logger) *Singer {
	if cfg.ID == "" {
		cfg.ID = models.SingerSurface
	}
	s := &Singer{
		Display: NewDisplay(cfg, renderer, loader, clk, log),
		preview: renderer,
	}
	s.Display.onReveal = s.render
	return s
}

// Update queues a navigation carrying the current slide and the next slide's text.
func (s *Singer) Update(p *models.SlidePayload) {
	s.GoToSlide(p)
}

// render runs on the display loop after the slide has been revealed.
func (s *Singer) render(p *models.SlidePayload) {
	pv := DerivePreview(p.NextText, p.Command.TargetIndex+1, p.TotalSlides)
	if pv.End {
		s.preview.ShowEnd(pv.Text)
		return
	}
	s.preview.ShowPreview(pv.Text)
}
