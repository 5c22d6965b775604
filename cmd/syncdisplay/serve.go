package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"syncdisplay/internal/assets"
	"syncdisplay/internal/clock"
	"syncdisplay/internal/config"
	"syncdisplay/internal/converter"
	"syncdisplay/internal/coordinator"
	"syncdisplay/internal/db"
	"syncdisplay/internal/events"
	"syncdisplay/internal/handlers"
	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
	"syncdisplay/internal/services"
	"syncdisplay/internal/surface"
)

var staticDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the presentation host",
	Long: `Serve the control API, the kiosk display websockets and the slide
images. Kiosk windows connect to /ws/display/{outputId}; the control UI uses
/api and /ws/control.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&staticDir, "static", "", "directory with the control and kiosk pages (frame protocol: services.RemoteRenderer)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.Storage.DBPath, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	langA := models.Language(cfg.Presentation.LanguageA)
	langB := models.Language(cfg.Presentation.LanguageB)
	for _, lang := range []models.Language{langA, langB} {
		if err := os.MkdirAll(cfg.DeckDir(string(lang)), 0755); err != nil {
			return fmt.Errorf("failed to create deck directory: %w", err)
		}
	}

	// Core
	bus := events.NewBus()
	clk := clock.New()
	library := assets.NewLibrary(langA, langB)
	urlFor := services.SlideURL(cfg.Storage.DecksDir)

	hub := services.NewWebSocketService(bus, nil, log)
	factory := services.NewSurfaceFactory(hub, surface.FileLoader{}, clk, urlFor, log)
	coord := coordinator.New(library, factory, clk, bus, log, coordinator.Options{
		SyncWindow:   cfg.Presentation.SyncWindow,
		SettleWindow: cfg.Presentation.SettleWindow,
		FadeDuration: cfg.Presentation.FadeDuration,
		SyncMode:     cfg.Presentation.SyncMode,
	})
	hub.SetKeyHandler(coord)

	coordDone := make(chan struct{})
	go func() {
		coord.Run(ctx)
		close(coordDone)
	}()
	go hub.Run(ctx)

	// Services
	decks, err := services.NewDeckStore(cfg.Storage.DataDir, log)
	if err != nil {
		return err
	}
	conv := converter.NewExecConverter(cfg.Converter.Command, cfg.Converter.Args, cfg.Converter.Timeout, log)
	conversion := services.NewConversionService(conv, library, decks, coord, bus, cfg.Storage.DecksDir, converter.Options{
		TargetWidth:    cfg.Converter.Width,
		TargetHeight:   cfg.Converter.Height,
		ThumbnailWidth: cfg.Converter.ThumbnailWidth,
	}, log)
	if err := conversion.LoadAll(); err != nil {
		log.Warn().Err(err).Msg("Library refresh failed")
	}

	settings := services.NewSettingsService(database, services.Settings{
		FadeDurationMs: cfg.Presentation.FadeDuration.Milliseconds(),
		SyncMode:       cfg.Presentation.SyncMode,
		SingerLanguage: langA,
	}, log)
	clickers := services.NewClickerService(database, coord, log)

	if cfg.Storage.Watch {
		watcher, err := assets.NewWatcher(conversion.DeckDir(langA), conversion.DeckDir(langB))
		if err != nil {
			log.Warn().Err(err).Msg("Deck watcher disabled")
		} else {
			defer watcher.Close()
			go watchDecks(ctx, watcher, bus, coord, conversion, log)
		}
	}

	// HTTP
	h := handlers.Handlers{
		Presentation: handlers.NewPresentationHandler(coord, settings, log),
		Decks:        handlers.NewDeckHandler(conversion, library, decks, urlFor, log),
		Clickers:     handlers.NewClickerHandler(clickers, log),
		WebSocket:    handlers.NewWebSocketHandler(hub, cfg.Server.CORSOrigins, log),
	}
	if staticDir != "" {
		h.Static = http.FileServer(http.Dir(staticDir))
	}
	router := handlers.SetupRoutes(h, cfg.Server.CORSOrigins, log)

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(server, cfg, log)
	}()

	select {
	case err := <-errCh:
		stop()
		<-coordDone
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	<-coordDone
	return nil
}

func listen(server *http.Server, cfg *config.Config, log *observability.Logger) error {
	var err error
	if cfg.TLS.Enabled {
		server.TLSConfig = &tls.Config{
			MinVersion: getTLSVersion(cfg.TLS.MinVersion),
		}
		log.Info().
			Str("addr", server.Addr).
			Str("cert", cfg.TLS.CertFile).
			Str("min_version", cfg.TLS.MinVersion).
			Msg("Starting HTTPS server")
		err = server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	} else {
		log.Info().Str("addr", server.Addr).Msg("Starting HTTP server")
		err = server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// getTLSVersion converts string version to tls.Version constant
func getTLSVersion(version string) uint16 {
	switch version {
	case "1.0":
		return tls.VersionTLS10
	case "1.1":
		return tls.VersionTLS11
	case "1.2":
		return tls.VersionTLS12
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
