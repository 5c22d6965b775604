package models

import "time"

// EventKind enumerates the events the core publishes to the control surface.
type EventKind string

const (
	EventSlideChanged       EventKind = "slide-changed"
	EventConversionProgress EventKind = "conversion-progress"
	EventConversionFinished EventKind = "conversion-finished"
	EventDisplaysUpdated    EventKind = "displays-updated"
	EventPresentationState  EventKind = "presentation-state"
)

// SlideChanged is published after every navigation broadcast.
type SlideChanged struct {
	CurrentIndex    int `json:"currentIndex"`
	TotalSlideCount int `json:"totalSlideCount"`
}

// ConversionProgress relays the converter's percent-complete verbatim.
type ConversionProgress struct {
	Language Language `json:"language"`
	Percent  int      `json:"percent"`
}

// ConversionFinished reports the outcome of a conversion.
type ConversionFinished struct {
	Language   Language `json:"language"`
	SlideCount int      `json:"slideCount"`
	Error      string   `json:"error,omitempty"`
}

// PhysicalOutput is a connected kiosk window.
type PhysicalOutput struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// DisplaysUpdated lists the outputs currently connected.
type DisplaysUpdated struct {
	Outputs []PhysicalOutput `json:"outputs"`
}

// Event is one notification on the event bus. Exactly one payload field is
// set, matching Kind.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	SlideChanged       *SlideChanged       `json:"slideChanged,omitempty"`
	ConversionProgress *ConversionProgress `json:"conversionProgress,omitempty"`
	ConversionFinished *ConversionFinished `json:"conversionFinished,omitempty"`
	DisplaysUpdated    *DisplaysUpdated    `json:"displaysUpdated,omitempty"`
	Presentation       *PresentationState  `json:"presentation,omitempty"`
}
