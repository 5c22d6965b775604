package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"syncdisplay/internal/surface"
)

type recordingSender struct {
	mu     sync.Mutex
	frames []Frame
}

func (s *recordingSender) sendFrame(outputID string, f Frame) {
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
}

func (s *recordingSender) take() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.frames
	s.frames = nil
	return out
}

func TestRemoteRenderer_Frames(t *testing.T) {
	sender := &recordingSender{}
	r := NewRemoteRenderer("hdmi-1", sender, SlideURL("/data/decks"))

	r.SetVisible(true)
	r.SetBackBufferImage(surface.LayerB, "/data/decks/ru/slide_001.jpg")
	r.PresentBackBuffer(surface.LayerB, 300*time.Millisecond)
	r.Preload("/data/decks/ru/slide_002.jpg")
	r.ShowPlaceholder(3)

	assert.Equal(t, []Frame{
		{Type: FrameVisible, Visible: true},
		{Type: FrameBack, Layer: 1, URL: "/slides/ru/slide_001.jpg"},
		{Type: FramePresent, Layer: 1, TransitionMs: 300},
		{Type: FramePreload, URL: "/slides/ru/slide_002.jpg"},
		{Type: FramePlaceholder, SlideNumber: 3},
	}, sender.take())
}

func TestRemoteRenderer_ReplayPresented(t *testing.T) {
	sender := &recordingSender{}
	r := NewRemoteRenderer("hdmi-3", sender, SlideURL("/data/decks"))

	r.SetVisible(true)
	r.SetBackBufferImage(surface.LayerB, "/data/decks/en/slide_004.jpg")
	r.PresentBackBuffer(surface.LayerB, 300*time.Millisecond)
	r.ShowPreview("Amazing grace")
	sender.take()

	r.Replay()
	assert.Equal(t, []Frame{
		{Type: FrameVisible, Visible: true},
		{Type: FrameBack, Layer: 1, URL: "/slides/en/slide_004.jpg"},
		{Type: FramePresent, Layer: 1},
		{Type: FramePreview, Text: "Amazing grace"},
	}, sender.take())
}

func TestRemoteRenderer_ReplayBlank(t *testing.T) {
	sender := &recordingSender{}
	r := NewRemoteRenderer("hdmi-3", sender, nil)

	r.SetVisible(true)
	r.SetBackBufferImage(surface.LayerB, "/elsewhere/a.jpg")
	r.PresentBackBuffer(surface.LayerB, 0)
	r.ShowEnd(surface.EndMarker)
	r.Blank()
	sender.take()

	r.Replay()
	assert.Equal(t, []Frame{
		{Type: FrameVisible, Visible: true},
		{Type: FrameBack, Layer: 1, URL: "/elsewhere/a.jpg"},
		{Type: FrameBlank},
	}, sender.take())
}

func TestSlideURL(t *testing.T) {
	urlFor := SlideURL("/data/decks")
	assert.Equal(t, "/slides/ru/slide_010.jpg", urlFor("/data/decks/ru/slide_010.jpg"))
	assert.Equal(t, "/tmp/x.jpg", urlFor("/tmp/x.jpg"))
	assert.Equal(t, "", urlFor(""))
}
