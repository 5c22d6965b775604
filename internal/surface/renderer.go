// Package surface implements the per-screen display and singer surfaces.
//
// Each surface runs its own event loop and owns its image cache, render
// layers and reveal timers. It only ever receives immutable directives from
// the coordinator and never reports back.
package surface

import (
	"context"
	"time"
)

// Layer is one of the two render layers of a double-buffered surface.
type Layer int

const (
	LayerA Layer = 0
	LayerB Layer = 1
)

// Other returns the layer that is not l.
func (l Layer) Other() Layer {
	return l ^ 1
}

// Renderer is a double-buffered image surface on one physical output.
type Renderer interface {
	// SetBackBufferImage loads path into the hidden layer.
	SetBackBufferImage(layer Layer, path string)
	// PresentBackBuffer makes layer visible, crossfading over transition.
	// A zero transition swaps immediately.
	PresentBackBuffer(layer Layer, transition time.Duration)
	// ShowPlaceholder replaces the slide with a numbered error state.
	ShowPlaceholder(slideNumber int)
	// Blank hides both layers.
	Blank()
	// SetVisible shows or hides the surface window itself.
	SetVisible(visible bool)
}

// Preloader is implemented by renderers that can warm their own cache.
type Preloader interface {
	Preload(path string)
}

// PreviewRenderer is a Renderer that can also show the singer's preview line.
type PreviewRenderer interface {
	Renderer
	ShowPreview(text string)
	ShowEnd(marker string)
}

// Loader resolves and decodes a slide image.
type Loader interface {
	Load(ctx context.Context, path string) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, path string) error

func (f LoaderFunc) Load(ctx context.Context, path string) error {
	return f(ctx, path)
}
