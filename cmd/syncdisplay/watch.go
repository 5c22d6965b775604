package main

import (
	"context"

	"syncdisplay/internal/assets"
	"syncdisplay/internal/coordinator"
	"syncdisplay/internal/events"
	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
	"syncdisplay/internal/services"
)

// watchDecks reloads a language when its deck directory changes on disk.
// Changes seen during a session are applied once the session ends.
func watchDecks(ctx context.Context, w *assets.Watcher, bus *events.Bus, coord *coordinator.Coordinator, conversion *services.ConversionService, log *observability.Logger) {
	log = log.WithComponent("deck-watch")
	evts, unsub := bus.Subscribe()
	defer unsub()

	pending := make(map[models.Language]bool)
	reload := func(lang models.Language) {
		if coord.IsPresenting() {
			pending[lang] = true
			log.Debug().Str("language", string(lang)).Msg("Deck changed during session, reload deferred")
			return
		}
		delete(pending, lang)
		if err := conversion.Reload(lang); err != nil {
			log.Warn().Err(err).Str("language", string(lang)).Msg("Deck reload failed")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case dir, ok := <-w.Events:
			if !ok {
				return
			}
			if lang, ok := conversion.LanguageForDir(dir); ok {
				reload(lang)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Deck watcher error")
		case evt, ok := <-evts:
			if !ok {
				return
			}
			switch evt.Kind {
			case models.EventConversionFinished:
				// The swap replaced the directory inode; watch the new one.
				done := evt.ConversionFinished
				if done != nil && done.Error == "" {
					if err := w.Add(conversion.DeckDir(done.Language)); err != nil {
						log.Warn().Err(err).Str("language", string(done.Language)).Msg("Failed to re-watch deck directory")
					}
				}
			case models.EventPresentationState:
				if evt.Presentation != nil && !evt.Presentation.Presenting {
					for lang := range pending {
						reload(lang)
					}
				}
			}
		}
	}
}
