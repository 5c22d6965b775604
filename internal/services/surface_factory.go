package services

import (
	"context"
	"fmt"

	"syncdisplay/internal/clock"
	"syncdisplay/internal/coordinator"
	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
	"syncdisplay/internal/surface"
)

// SurfaceFactory creates display and singer surfaces rendering on kiosk
// windows of the websocket hub.
type SurfaceFactory struct {
	hub    *WebSocketService
	loader surface.Loader
	clock  clock.Clock
	urlFor func(string) string
	log    *observability.Logger
}

// NewSurfaceFactory creates a factory. A nil loader checks images on disk.
func NewSurfaceFactory(hub *WebSocketService, loader surface.Loader, clk clock.Clock, urlFor func(string) string, log *observability.Logger) *SurfaceFactory {
	return &SurfaceFactory{hub: hub, loader: loader, clock: clk, urlFor: urlFor, log: log}
}

// CreateSurface builds the surface for spec and starts its loop.
func (f *SurfaceFactory) CreateSurface(ctx context.Context, spec models.SurfaceSpec) (coordinator.Surface, error) {
	if spec.OutputID == "" {
		return nil, fmt.Errorf("surface %s has no output", spec.ID)
	}

	cfg := surface.Config{
		ID:           spec.ID,
		Language:     spec.Language,
		OutputID:     spec.OutputID,
		FadeDuration: spec.FadeDuration,
		SyncMode:     spec.SyncMode,
	}
	renderer := f.hub.Renderer(spec.OutputID, f.urlFor)

	switch spec.Kind {
	case models.SurfaceSinger:
		s := surface.NewSinger(cfg, renderer, f.loader, f.clock, f.log)
		go s.Run(ctx)
		return s, nil
	case models.SurfaceDisplay:
		d := surface.NewDisplay(cfg, renderer, f.loader, f.clock, f.log)
		go d.Run(ctx)
		return d, nil
	default:
		return nil, fmt.Errorf("unknown surface kind: %d", spec.Kind)
	}
}
