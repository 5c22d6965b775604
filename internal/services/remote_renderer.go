package services

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"syncdisplay/internal/surface"
)

// frameSender is the hub side of a RemoteRenderer.
type frameSender interface {
	sendFrame(outputID string, f Frame)
}

// RemoteRenderer drives a kiosk window over its websocket. It keeps the last
// state it sent so a kiosk that reconnects is brought back to what the
// audience should see.
//
// A kiosk page served with serve --static implements the other end. It
// connects to /ws/display/{outputId}, sends
//
//	{"type":"hello","name":"...","width":1920,"height":1080}
//
// and forwards key presses as {"type":"key","key":"ArrowRight"}. It keeps two
// stacked image layers, 0 and 1 (an absent "layer" field means 0), and
// handles these JSON frames:
//
//	back        {"layer":n,"url":u}  load u into layer n off screen
//	present     {"layer":n,"transitionMs":ms}  crossfade layer n in over ms, the other out
//	placeholder {"slideNumber":n}  show a "slide n" card over both layers
//	blank       {}  black screen, layers untouched
//	visible     {"visible":b}  show or hide the whole window (absent means false)
//	preload     {"url":u}  warm the browser cache
//	preview     {"text":t}  singer only: next slide text
//	end         {"text":t}  singer only: end-of-deck marker
//
// A present after a blank or placeholder clears those overlays. A
// reconnecting kiosk receives visible, both back layers, then the current
// present, placeholder or blank with transitionMs 0, then any preview.
type RemoteRenderer struct {
	outputID string
	sender   frameSender
	urlFor   func(path string) string

	mu          sync.Mutex
	layers      [2]string
	presented   int
	placeholder int
	blank       bool
	visible     bool
	preview     *Frame
}

// NewRemoteRenderer creates a renderer for one output. urlFor maps slide
// image paths to the URLs the kiosk fetches; nil sends paths unchanged.
func NewRemoteRenderer(outputID string, sender frameSender, urlFor func(string) string) *RemoteRenderer {
	if urlFor == nil {
		urlFor = func(p string) string { return p }
	}
	return &RemoteRenderer{
		outputID:  outputID,
		sender:    sender,
		urlFor:    urlFor,
		presented: -1,
	}
}

// OutputID returns the output this renderer draws on.
func (r *RemoteRenderer) OutputID() string {
	return r.outputID
}

func (r *RemoteRenderer) SetBackBufferImage(layer surface.Layer, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	url := r.urlFor(path)
	r.layers[layer] = url
	r.sender.sendFrame(r.outputID, Frame{Type: FrameBack, Layer: int(layer), URL: url})
}

func (r *RemoteRenderer) PresentBackBuffer(layer surface.Layer, transition time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presented = int(layer)
	r.placeholder = 0
	r.blank = false
	r.sender.sendFrame(r.outputID, Frame{Type: FramePresent, Layer: int(layer), TransitionMs: transition.Milliseconds()})
}

func (r *RemoteRenderer) ShowPlaceholder(slideNumber int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placeholder = slideNumber
	r.blank = false
	r.sender.sendFrame(r.outputID, Frame{Type: FramePlaceholder, SlideNumber: slideNumber})
}

// Blank blacks out the window, preview included. Layer images are kept.
func (r *RemoteRenderer) Blank() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blank = true
	r.preview = nil
	r.sender.sendFrame(r.outputID, Frame{Type: FrameBlank})
}

func (r *RemoteRenderer) SetVisible(visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visible = visible
	r.sender.sendFrame(r.outputID, Frame{Type: FrameVisible, Visible: visible})
}

// Preload asks the kiosk to fetch an image ahead of its reveal.
func (r *RemoteRenderer) Preload(path string) {
	r.sender.sendFrame(r.outputID, Frame{Type: FramePreload, URL: r.urlFor(path)})
}

func (r *RemoteRenderer) ShowPreview(text string) {
	r.setPreview(Frame{Type: FramePreview, Text: text})
}

func (r *RemoteRenderer) ShowEnd(marker string) {
	r.setPreview(Frame{Type: FrameEnd, Text: marker})
}

func (r *RemoteRenderer) setPreview(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preview = &f
	r.sender.sendFrame(r.outputID, f)
}

// Replay resends the current state without transitions.
func (r *RemoteRenderer) Replay() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sender.sendFrame(r.outputID, Frame{Type: FrameVisible, Visible: r.visible})
	for layer, url := range r.layers {
		if url != "" {
			r.sender.sendFrame(r.outputID, Frame{Type: FrameBack, Layer: layer, URL: url})
		}
	}
	switch {
	case r.blank:
		r.sender.sendFrame(r.outputID, Frame{Type: FrameBlank})
		return
	case r.placeholder > 0:
		r.sender.sendFrame(r.outputID, Frame{Type: FramePlaceholder, SlideNumber: r.placeholder})
	case r.presented >= 0:
		r.sender.sendFrame(r.outputID, Frame{Type: FramePresent, Layer: r.presented})
	}
	if r.preview != nil {
		r.sender.sendFrame(r.outputID, *r.preview)
	}
}

// SlideURL maps a deck image path under decksDir to its /slides/ URL.
func SlideURL(decksDir string) func(string) string {
	return func(path string) string {
		if path == "" {
			return ""
		}
		rel, err := filepath.Rel(decksDir, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return path
		}
		return "/slides/" + filepath.ToSlash(rel)
	}
}
