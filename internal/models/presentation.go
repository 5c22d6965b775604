package models

import "time"

// Language identifies one of the two deck languages of a bilingual presentation.
type Language string

// SurfaceID is the logical id of a surface: one per language plus the optional singer.
type SurfaceID string

// SingerSurface is the logical id of the singer screen.
const SingerSurface SurfaceID = "singer"

// SurfaceKind distinguishes plain display surfaces from the singer surface.
type SurfaceKind int

const (
	SurfaceDisplay SurfaceKind = iota
	SurfaceSinger
)

// SurfaceIDFor returns the logical surface id of the primary display for a language.
func SurfaceIDFor(lang Language) SurfaceID {
	return SurfaceID(lang)
}

// DisplayAssignment maps logical surfaces to physical output ids.
type DisplayAssignment map[SurfaceID]string

// Clone returns a copy that shares nothing with the receiver.
func (a DisplayAssignment) Clone() DisplayAssignment {
	out := make(DisplayAssignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// PresentationState is the coordinator's single source of truth.
type PresentationState struct {
	SessionID         string            `json:"sessionId,omitempty"`
	Presenting        bool              `json:"presenting"`
	CurrentSlideIndex int               `json:"currentSlideIndex"`
	TotalSlideCount   int               `json:"totalSlideCount"`
	IsCleared         bool              `json:"isCleared"`
	FadeDuration      time.Duration     `json:"-"`
	FadeDurationMs    int64             `json:"fadeDurationMs"`
	SyncModeEnabled   bool              `json:"syncModeEnabled"`
	SingerLanguage    Language          `json:"singerLanguage,omitempty"`
	DisplayAssignment DisplayAssignment `json:"displayAssignment,omitempty"`
}

// Phase reports the coordinator state machine position.
func (s PresentationState) Phase() string {
	switch {
	case !s.Presenting:
		return "idle"
	case s.IsCleared:
		return "cleared"
	default:
		return "presenting"
	}
}

// SurfaceSpec describes a surface the coordinator asks the host to create.
type SurfaceSpec struct {
	ID           SurfaceID
	Kind         SurfaceKind
	Language     Language
	OutputID     string
	FadeDuration time.Duration
	SyncMode     bool
}
