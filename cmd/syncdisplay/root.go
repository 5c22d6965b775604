package main

import (
	"github.com/spf13/cobra"

	"syncdisplay/internal/config"
	"syncdisplay/internal/observability"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "syncdisplay",
	Short: "Bilingual multi-screen slide presentation host",
	Long: `syncdisplay drives one slide deck per language on separate screens,
keeping every screen on the same slide index, plus an optional singer
screen with a preview of the next slide's text.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	rootCmd.AddCommand(serveCmd, convertCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, *observability.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Observability.LogLevel = logLevel
	}
	log := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "syncdisplay",
	})
	return cfg, log, nil
}
