package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"syncdisplay/internal/assets"
	"syncdisplay/internal/converter"
	"syncdisplay/internal/events"
	"syncdisplay/internal/models"
	"syncdisplay/internal/services"
)

var (
	convertLanguage string
	convertQuiet    bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <source.pptx>",
	Short: "Convert a presentation into a language deck",
	Long: `Convert a source presentation into slide images for one language and
install it as that language's deck. A running server picks the new deck up
through its directory watcher once no session is running.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertLanguage, "language", "l", "", "deck language (required)")
	convertCmd.Flags().BoolVarP(&convertQuiet, "quiet", "q", false, "do not show a progress bar")
	_ = convertCmd.MarkFlagRequired("language")
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	library := assets.NewLibrary(models.Language(cfg.Presentation.LanguageA), models.Language(cfg.Presentation.LanguageB))
	lang := models.Language(convertLanguage)
	if !library.Has(lang) {
		return fmt.Errorf("%w: %s (configured: %s, %s)", services.ErrUnknownLanguage, lang, cfg.Presentation.LanguageA, cfg.Presentation.LanguageB)
	}
	if err := os.MkdirAll(cfg.Storage.DecksDir, 0755); err != nil {
		return fmt.Errorf("failed to create decks directory: %w", err)
	}

	decks, err := services.NewDeckStore(cfg.Storage.DataDir, log)
	if err != nil {
		return err
	}
	bus := events.NewBus()
	conv := converter.NewExecConverter(cfg.Converter.Command, cfg.Converter.Args, cfg.Converter.Timeout, log)
	conversion := services.NewConversionService(conv, library, decks, nil, bus, cfg.Storage.DecksDir, converter.Options{
		TargetWidth:    cfg.Converter.Width,
		TargetHeight:   cfg.Converter.Height,
		ThumbnailWidth: cfg.Converter.ThumbnailWidth,
	}, log)

	evts, unsub := bus.Subscribe()
	relayed := make(chan struct{})
	go func() {
		defer close(relayed)
		if convertQuiet {
			for range evts {
			}
			return
		}
		bar := progressbar.NewOptions(100,
			progressbar.OptionSetDescription(fmt.Sprintf("Converting %s deck", lang)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(os.Stderr, "\n")
			}),
		)
		for evt := range evts {
			switch evt.Kind {
			case models.EventConversionProgress:
				_ = bar.Set(evt.ConversionProgress.Percent)
			case models.EventConversionFinished:
				if evt.ConversionFinished.Error == "" {
					_ = bar.Finish()
				} else {
					_ = bar.Exit()
				}
			}
		}
	}()

	record, err := conversion.Convert(cmd.Context(), lang, args[0])
	unsub()
	<-relayed
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Converted %s: %d slides in %s\n", record.SourceFile, record.SlideCount, record.OutputDir)
	return nil
}
