package handlers

import (
	"net/http"
	"regexp"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
)

// Hub attaches kiosk and control connections.
type Hub interface {
	AttachDisplay(conn *websocket.Conn, outputID string)
	AttachControl(conn *websocket.Conn)
	Outputs() []models.PhysicalOutput
}

var outputIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// WebSocketHandler upgrades kiosk and control connections
type WebSocketHandler struct {
	hub      Hub
	upgrader websocket.Upgrader
	log      *observability.Logger
}

// NewWebSocketHandler creates a websocket handler. An empty origin list
// accepts any origin.
func NewWebSocketHandler(hub Hub, allowedOrigins []string, log *observability.Logger) *WebSocketHandler {
	h := &WebSocketHandler{hub: hub, log: log.WithComponent("ws-api")}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// ServeDisplay attaches a kiosk window to a physical output
// GET /ws/display/{outputId}
func (h *WebSocketHandler) ServeDisplay(w http.ResponseWriter, r *http.Request) {
	outputID := mux.Vars(r)["outputId"]
	if !outputIDPattern.MatchString(outputID) {
		http.Error(w, "Invalid output id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("output", outputID).Msg("Display upgrade failed")
		return
	}
	h.hub.AttachDisplay(conn, outputID)
}

// ServeControl attaches a control client to the event stream
// GET /ws/control
func (h *WebSocketHandler) ServeControl(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Control upgrade failed")
		return
	}
	h.hub.AttachControl(conn)
}

// DisplaysResponse lists connected outputs
type DisplaysResponse struct {
	Success bool                    `json:"success"`
	Outputs []models.PhysicalOutput `json:"outputs"`
}

// ListDisplays returns the connected physical outputs
// GET /api/displays
func (h *WebSocketHandler) ListDisplays(w http.ResponseWriter, r *http.Request) {
	outputs := h.hub.Outputs()
	if outputs == nil {
		outputs = []models.PhysicalOutput{}
	}
	writeJSON(w, http.StatusOK, DisplaysResponse{Success: true, Outputs: outputs})
}
