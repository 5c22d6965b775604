package models

import "time"

// NoSlide marks an absent preload neighbour.
const NoSlide = -1

// PreloadIndices are the neighbours of a navigation target.
type PreloadIndices struct {
	Prev int `json:"prev"`
	Next int `json:"next"`
}

// NavigationCommand is built once per navigation event and shared by every
// surface. It must not be modified after broadcast.
type NavigationCommand struct {
	Seq             uint64         `json:"seq"`
	SessionID       string         `json:"sessionId"`
	TargetIndex     int            `json:"targetIndex"`
	Timestamp       time.Time      `json:"timestamp"`
	RevealAt        time.Time      `json:"revealAt"`
	SyncModeEnabled bool           `json:"syncModeEnabled"`
	PreloadIndices  PreloadIndices `json:"preloadIndices"`
}

// SlidePayload is the per-surface view of a NavigationCommand, with paths
// resolved in that surface's language.
type SlidePayload struct {
	Command      *NavigationCommand
	Language     Language
	ImagePath    string
	PreloadPaths []string
	// NextText and TotalSlides are only consumed by the singer surface.
	NextText    string
	TotalSlides int
}

// DirectiveKind enumerates what a surface is asked to do.
type DirectiveKind int

const (
	DirectiveNavigate DirectiveKind = iota
	DirectiveClear
	DirectiveConfigure
	DirectiveShow
	DirectiveHide
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveNavigate:
		return "navigate"
	case DirectiveClear:
		return "clear"
	case DirectiveConfigure:
		return "configure"
	case DirectiveShow:
		return "show"
	case DirectiveHide:
		return "hide"
	default:
		return "unknown"
	}
}

// Directive is the one-way message from the coordinator to a surface.
type Directive struct {
	Kind    DirectiveKind
	Payload *SlidePayload

	// Configure only.
	FadeDuration time.Duration
	SyncMode     bool
}
