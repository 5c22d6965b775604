package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
)

// ClickerRegistry manages presenter remotes.
type ClickerRegistry interface {
	Register(macAddress, name string) (*models.Clicker, error)
	List() ([]*models.Clicker, error)
	Update(macAddress, name string, active bool) (*models.Clicker, error)
	Delete(macAddress string) error
	Press(macAddress, key string) (*models.Clicker, bool, error)
}

// ClickerHandler handles HTTP requests for presenter remotes
type ClickerHandler struct {
	clickers ClickerRegistry
	log      *observability.Logger
}

// NewClickerHandler creates a new clicker handler
func NewClickerHandler(clickers ClickerRegistry, log *observability.Logger) *ClickerHandler {
	return &ClickerHandler{
		clickers: clickers,
		log:      log.WithComponent("clicker-api"),
	}
}

// PressRequest represents a key press from a remote
type PressRequest struct {
	MACAddress string `json:"macAddress"`
	Key        string `json:"key"`
}

// PressResponse represents the response to a key press
type PressResponse struct {
	Success bool            `json:"success"`
	Handled bool            `json:"handled"`
	Clicker *models.Clicker `json:"clicker"`
}

// Press handles a key press from a presenter remote
// POST /api/clicker/press
func (h *ClickerHandler) Press(w http.ResponseWriter, r *http.Request) {
	var req PressRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.MACAddress == "" {
		http.Error(w, "macAddress is required", http.StatusBadRequest)
		return
	}
	if req.Key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	clicker, handled, err := h.clickers.Press(req.MACAddress, req.Key)
	if err != nil {
		h.log.Warn().Err(err).Str("mac", req.MACAddress).Msg("Clicker press rejected")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PressResponse{Success: true, Handled: handled, Clicker: clicker})
}

// RegisterRequest represents a request to register a remote
type RegisterRequest struct {
	MACAddress string `json:"macAddress"`
	Name       string `json:"name"`
}

// ClickerResponse wraps one clicker
type ClickerResponse struct {
	Success bool            `json:"success"`
	Clicker *models.Clicker `json:"clicker"`
}

// Register handles remote registration
// POST /api/clicker/register
func (h *ClickerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.MACAddress == "" {
		http.Error(w, "macAddress is required", http.StatusBadRequest)
		return
	}

	clicker, err := h.clickers.Register(req.MACAddress, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClickerResponse{Success: true, Clicker: clicker})
}

// ClickerListResponse lists the known remotes
type ClickerListResponse struct {
	Success  bool              `json:"success"`
	Clickers []*models.Clicker `json:"clickers"`
}

// List returns every registered remote
// GET /api/clicker/list
func (h *ClickerHandler) List(w http.ResponseWriter, r *http.Request) {
	clickers, err := h.clickers.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if clickers == nil {
		clickers = []*models.Clicker{}
	}
	writeJSON(w, http.StatusOK, ClickerListResponse{Success: true, Clickers: clickers})
}

// UpdateRequest renames or (de)activates a remote
type UpdateRequest struct {
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

// Update changes a remote's name or active flag
// PUT /api/clicker/{mac}
func (h *ClickerHandler) Update(w http.ResponseWriter, r *http.Request) {
	mac := mux.Vars(r)["mac"]
	var req UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	clicker, err := h.clickers.Update(mac, req.Name, req.IsActive)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClickerResponse{Success: true, Clicker: clicker})
}

// Delete removes a remote
// DELETE /api/clicker/{mac}
func (h *ClickerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.clickers.Delete(mux.Vars(r)["mac"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
