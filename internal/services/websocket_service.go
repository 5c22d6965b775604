package services

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"syncdisplay/internal/events"
	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Frame types sent to kiosk windows.
const (
	FrameBack        = "back"
	FramePresent     = "present"
	FramePlaceholder = "placeholder"
	FrameBlank       = "blank"
	FrameVisible     = "visible"
	FramePreload     = "preload"
	FramePreview     = "preview"
	FrameEnd         = "end"
	FrameEvent       = "event"
)

// Frame is one message to a kiosk window or control client.
type Frame struct {
	Type         string        `json:"type"`
	Layer        int           `json:"layer,omitempty"`
	URL          string        `json:"url,omitempty"`
	TransitionMs int64         `json:"transitionMs,omitempty"`
	SlideNumber  int           `json:"slideNumber,omitempty"`
	Visible      bool          `json:"visible,omitempty"`
	Text         string        `json:"text,omitempty"`
	Event        *models.Event `json:"event,omitempty"`
}

// kioskMessage is what kiosk windows send.
type kioskMessage struct {
	Type   string `json:"type"` // hello or key
	Name   string `json:"name,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Key    string `json:"key,omitempty"`
}

type clientKind int

const (
	clientDisplay clientKind = iota
	clientControl
)

type wsClient struct {
	id       string
	kind     clientKind
	outputID string
	conn     *websocket.Conn
	send     chan []byte
	hub      *WebSocketService
}

// WebSocketService is the hub of kiosk display windows and control clients.
// Each connected kiosk is one physical output; control clients receive every
// event published on the bus.
type WebSocketService struct {
	bus   *events.Bus
	evts  <-chan models.Event
	unsub func()
	keys  KeyHandler
	log   *observability.Logger
	now   func() time.Time

	mu        sync.RWMutex
	displays  map[string]*wsClient
	controls  map[*wsClient]bool
	outputs   map[string]models.PhysicalOutput
	renderers map[string]*RemoteRenderer
}

// NewWebSocketService creates the hub. keys receives kiosk key presses.
func NewWebSocketService(bus *events.Bus, keys KeyHandler, log *observability.Logger) *WebSocketService {
	evts, unsub := bus.Subscribe()
	return &WebSocketService{
		bus:       bus,
		evts:      evts,
		unsub:     unsub,
		keys:      keys,
		log:       log.WithComponent("websocket"),
		now:       time.Now,
		displays:  make(map[string]*wsClient),
		controls:  make(map[*wsClient]bool),
		outputs:   make(map[string]models.PhysicalOutput),
		renderers: make(map[string]*RemoteRenderer),
	}
}

// SetKeyHandler wires the handler for kiosk key presses.
func (s *WebSocketService) SetKeyHandler(keys KeyHandler) {
	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
}

// Run forwards bus events to control clients until ctx is done, then
// disconnects everyone.
func (s *WebSocketService) Run(ctx context.Context) {
	defer s.unsub()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case evt, ok := <-s.evts:
			if !ok {
				return
			}
			s.broadcastControl(Frame{Type: FrameEvent, Event: &evt})
		}
	}
}

// Outputs lists the connected physical outputs ordered by id.
func (s *WebSocketService) Outputs() []models.PhysicalOutput {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outputsLocked()
}

func (s *WebSocketService) outputsLocked() []models.PhysicalOutput {
	out := make([]models.PhysicalOutput, 0, len(s.outputs))
	for _, o := range s.outputs {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Renderer returns a fresh renderer for outputID, replacing the previous
// one. Frames reach whichever kiosk is connected for the output.
func (s *WebSocketService) Renderer(outputID string, urlFor func(string) string) *RemoteRenderer {
	r := NewRemoteRenderer(outputID, s, urlFor)
	s.mu.Lock()
	s.renderers[outputID] = r
	s.mu.Unlock()
	return r
}

// AttachDisplay serves a kiosk window for outputID. It returns immediately;
// the connection is served by its own goroutines.
func (s *WebSocketService) AttachDisplay(conn *websocket.Conn, outputID string) {
	c := s.newClient(conn, clientDisplay, outputID)

	s.mu.Lock()
	if old, ok := s.displays[outputID]; ok {
		s.log.Info().Str("output", outputID).Msg("Replacing kiosk connection")
		close(old.send)
	}
	s.displays[outputID] = c
	s.outputs[outputID] = models.PhysicalOutput{ID: outputID, Name: outputID, ConnectedAt: s.now()}
	outputs := s.outputsLocked()
	renderer := s.renderers[outputID]
	s.mu.Unlock()

	s.log.Info().Str("output", outputID).Str("client", c.id).Msg("Kiosk connected")
	s.bus.Publish(events.DisplaysUpdated(outputs))

	go c.writePump()
	go c.readPump()

	if renderer != nil {
		renderer.Replay()
	}
}

// AttachControl serves a control client that receives events.
func (s *WebSocketService) AttachControl(conn *websocket.Conn) {
	c := s.newClient(conn, clientControl, "")
	s.mu.Lock()
	s.controls[c] = true
	s.mu.Unlock()

	s.log.Debug().Str("client", c.id).Msg("Control client connected")
	go c.writePump()
	go c.readPump()
}

func (s *WebSocketService) newClient(conn *websocket.Conn, kind clientKind, outputID string) *wsClient {
	return &wsClient{
		id:       uuid.NewString(),
		kind:     kind,
		outputID: outputID,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		hub:      s,
	}
}

func (s *WebSocketService) unregister(c *wsClient) {
	s.mu.Lock()
	var outputs []models.PhysicalOutput
	changed := false
	switch c.kind {
	case clientDisplay:
		if s.displays[c.outputID] == c {
			delete(s.displays, c.outputID)
			delete(s.outputs, c.outputID)
			close(c.send)
			outputs = s.outputsLocked()
			changed = true
		}
	case clientControl:
		if s.controls[c] {
			delete(s.controls, c)
			close(c.send)
		}
	}
	s.mu.Unlock()

	if changed {
		s.log.Info().Str("output", c.outputID).Msg("Kiosk disconnected")
		s.bus.Publish(events.DisplaysUpdated(outputs))
	}
}

func (s *WebSocketService) closeAll() {
	s.mu.Lock()
	for id, c := range s.displays {
		close(c.send)
		delete(s.displays, id)
		delete(s.outputs, id)
	}
	for c := range s.controls {
		close(c.send)
		delete(s.controls, c)
	}
	s.mu.Unlock()
}

func (s *WebSocketService) updateOutput(outputID string, msg kioskMessage) {
	s.mu.Lock()
	o, ok := s.outputs[outputID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if msg.Name != "" {
		o.Name = msg.Name
	}
	o.Width, o.Height = msg.Width, msg.Height
	s.outputs[outputID] = o
	outputs := s.outputsLocked()
	s.mu.Unlock()

	s.bus.Publish(events.DisplaysUpdated(outputs))
}

// sendFrame delivers f to the kiosk of outputID if one is connected.
func (s *WebSocketService) sendFrame(outputID string, f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		s.log.Error().Err(err).Str("frame", f.Type).Msg("Failed to marshal frame")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.displays[outputID]
	if !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		s.log.Warn().Str("output", outputID).Str("frame", f.Type).Msg("Kiosk send buffer full, frame dropped")
	}
}

func (s *WebSocketService) broadcastControl(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to marshal event frame")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.controls {
		select {
		case c.send <- data:
		default:
			s.log.Warn().Str("client", c.id).Msg("Control send buffer full, event dropped")
		}
	}
}

func (s *WebSocketService) keyHandler() KeyHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn().Err(err).Str("client", c.id).Msg("Websocket closed unexpectedly")
			}
			return
		}
		if c.kind != clientDisplay {
			continue
		}

		var msg kioskMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.log.Debug().Err(err).Str("output", c.outputID).Msg("Ignoring malformed kiosk message")
			continue
		}
		switch msg.Type {
		case "hello":
			c.hub.updateOutput(c.outputID, msg)
		case "key":
			if keys := c.hub.keyHandler(); keys != nil && msg.Key != "" {
				keys.HandleKey(msg.Key)
			}
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
