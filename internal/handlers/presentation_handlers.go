package handlers

import (
	"net/http"
	"time"

	"syncdisplay/internal/coordinator"
	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
	"syncdisplay/internal/services"
)

// Presenter is the slice of the coordinator the HTTP API drives.
type Presenter interface {
	State() models.PresentationState
	Start(req coordinator.StartRequest) (coordinator.StartResult, error)
	Stop() error
	NavigateTo(index int) bool
	NavigateRelative(delta int) bool
	ClearAll() error
	ShowAll() error
	SetFadeDuration(fade time.Duration) error
	SetSyncMode(enabled bool) error
	HandleKey(key string) bool
}

// SettingsStore loads and saves the operator's session choices.
type SettingsStore interface {
	Load() (services.Settings, error)
	Save(s services.Settings) error
}

// PresentationHandler handles HTTP requests for the running presentation
type PresentationHandler struct {
	presenter Presenter
	settings  SettingsStore
	log       *observability.Logger
}

// NewPresentationHandler creates a new presentation handler
func NewPresentationHandler(presenter Presenter, settings SettingsStore, log *observability.Logger) *PresentationHandler {
	return &PresentationHandler{
		presenter: presenter,
		settings:  settings,
		log:       log.WithComponent("presentation-api"),
	}
}

// StateResponse wraps the presentation state
type StateResponse struct {
	Success bool                     `json:"success"`
	Phase   string                   `json:"phase"`
	State   models.PresentationState `json:"state"`
}

func (h *PresentationHandler) stateResponse() StateResponse {
	state := h.presenter.State()
	return StateResponse{Success: true, Phase: state.Phase(), State: state}
}

// GetState returns the current presentation state
// GET /api/presentation/state
func (h *PresentationHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stateResponse())
}

// StartRequest starts a session. Omitted fields fall back to the saved settings.
type StartRequest struct {
	DisplayAssignment models.DisplayAssignment `json:"displayAssignment,omitempty"`
	SingerLanguage    models.Language          `json:"singerLanguage,omitempty"`
	FadeDurationMs    *int64                   `json:"fadeDurationMs,omitempty"`
	SyncModeEnabled   *bool                    `json:"syncModeEnabled,omitempty"`
}

// StartResponse represents the response of a started session
type StartResponse struct {
	Success         bool   `json:"success"`
	SessionID       string `json:"sessionId"`
	TotalSlideCount int    `json:"totalSlideCount"`
}

// Start begins a presentation on the assigned outputs
// POST /api/presentation/start
func (h *PresentationHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
	}

	saved, err := h.settings.Load()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load settings")
		writeError(w, err)
		return
	}
	if len(req.DisplayAssignment) > 0 {
		saved.DisplayAssignment = req.DisplayAssignment
	}
	if req.SingerLanguage != "" {
		saved.SingerLanguage = req.SingerLanguage
	}
	if req.FadeDurationMs != nil {
		if *req.FadeDurationMs < 0 {
			writeError(w, coordinator.ErrInvalidFade)
			return
		}
		saved.FadeDurationMs = *req.FadeDurationMs
	}
	if req.SyncModeEnabled != nil {
		saved.SyncMode = *req.SyncModeEnabled
	}

	result, err := h.presenter.Start(coordinator.StartRequest{
		DisplayAssignment: saved.DisplayAssignment,
		SingerLanguage:    saved.SingerLanguage,
		FadeDuration:      saved.FadeDuration(),
		SyncModeEnabled:   saved.SyncMode,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Presentation start rejected")
		writeError(w, err)
		return
	}

	if err := h.settings.Save(saved); err != nil {
		h.log.Warn().Err(err).Msg("Failed to save settings")
	}

	writeJSON(w, http.StatusOK, StartResponse{
		Success:         true,
		SessionID:       result.SessionID,
		TotalSlideCount: result.TotalSlideCount,
	})
}

// Stop ends the running presentation
// POST /api/presentation/stop
func (h *PresentationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.presenter.Stop(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse())
}

// NavigateRequest targets an absolute slide index
type NavigateRequest struct {
	Index int `json:"index"`
}

// RelativeRequest moves by delta slides
type RelativeRequest struct {
	Delta int `json:"delta"`
}

// NavigateResponse reports whether the presentation moved
type NavigateResponse struct {
	Success bool                     `json:"success"`
	Moved   bool                     `json:"moved"`
	State   models.PresentationState `json:"state"`
}

// Navigate jumps to a slide. Out-of-range indices are ignored.
// POST /api/presentation/navigate
func (h *PresentationHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	moved := h.presenter.NavigateTo(req.Index)
	writeJSON(w, http.StatusOK, NavigateResponse{Success: true, Moved: moved, State: h.presenter.State()})
}

// Relative moves forward or back
// POST /api/presentation/relative
func (h *PresentationHandler) Relative(w http.ResponseWriter, r *http.Request) {
	var req RelativeRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	moved := h.presenter.NavigateRelative(req.Delta)
	writeJSON(w, http.StatusOK, NavigateResponse{Success: true, Moved: moved, State: h.presenter.State()})
}

// KeyRequest carries a key name from the control UI
type KeyRequest struct {
	Key string `json:"key"`
}

// Key applies a navigation key
// POST /api/presentation/key
func (h *PresentationHandler) Key(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}
	moved := h.presenter.HandleKey(req.Key)
	writeJSON(w, http.StatusOK, NavigateResponse{Success: true, Moved: moved, State: h.presenter.State()})
}

// Clear blanks every surface
// POST /api/presentation/clear
func (h *PresentationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.presenter.ClearAll(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse())
}

// Show restores the current slide after a clear
// POST /api/presentation/show
func (h *PresentationHandler) Show(w http.ResponseWriter, r *http.Request) {
	if err := h.presenter.ShowAll(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse())
}

// FadeRequest sets the crossfade duration
type FadeRequest struct {
	FadeDurationMs int64 `json:"fadeDurationMs"`
}

// SetFade changes the crossfade duration
// POST /api/presentation/fade
func (h *PresentationHandler) SetFade(w http.ResponseWriter, r *http.Request) {
	var req FadeRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := h.presenter.SetFadeDuration(time.Duration(req.FadeDurationMs) * time.Millisecond); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse())
}

// SyncRequest toggles synchronized reveals
type SyncRequest struct {
	Enabled bool `json:"enabled"`
}

// SetSync toggles synchronized reveals
// POST /api/presentation/sync
func (h *PresentationHandler) SetSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := h.presenter.SetSyncMode(req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.stateResponse())
}

// SettingsResponse wraps the saved settings
type SettingsResponse struct {
	Success  bool              `json:"success"`
	Settings services.Settings `json:"settings"`
}

// GetSettings returns the saved session settings
// GET /api/settings
func (h *PresentationHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	saved, err := h.settings.Load()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SettingsResponse{Success: true, Settings: saved})
}

// PutSettings replaces the saved session settings
// PUT /api/settings
func (h *PresentationHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var req services.Settings
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.FadeDurationMs < 0 {
		writeError(w, coordinator.ErrInvalidFade)
		return
	}
	if err := h.settings.Save(req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SettingsResponse{Success: true, Settings: req})
}
