package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"syncdisplay/internal/assets"
	"syncdisplay/internal/coordinator"
	"syncdisplay/internal/db"
	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
	"syncdisplay/internal/services"
)

type fakePresenter struct {
	mu       sync.Mutex
	state    models.PresentationState
	startErr error
	started  []coordinator.StartRequest
	keys     []string
	total    int
}

func (p *fakePresenter) State() models.PresentationState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePresenter) Start(req coordinator.StartRequest) (coordinator.StartResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return coordinator.StartResult{}, p.startErr
	}
	if p.state.Presenting {
		return coordinator.StartResult{}, coordinator.ErrAlreadyPresenting
	}
	p.started = append(p.started, req)
	p.state.Presenting = true
	p.state.SessionID = "session-1"
	p.state.TotalSlideCount = p.total
	return coordinator.StartResult{SessionID: "session-1", TotalSlideCount: p.total}, nil
}

func (p *fakePresenter) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.Presenting {
		return coordinator.ErrNotPresenting
	}
	p.state.Presenting = false
	p.state.IsCleared = false
	return nil
}

func (p *fakePresenter) NavigateTo(index int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.Presenting || index < 0 || index >= p.total {
		return false
	}
	p.state.CurrentSlideIndex = index
	return true
}

func (p *fakePresenter) NavigateRelative(delta int) bool {
	return p.NavigateTo(p.State().CurrentSlideIndex + delta)
}

func (p *fakePresenter) ClearAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.Presenting {
		return coordinator.ErrNotPresenting
	}
	p.state.IsCleared = true
	return nil
}

func (p *fakePresenter) ShowAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.Presenting {
		return coordinator.ErrNotPresenting
	}
	p.state.IsCleared = false
	return nil
}

func (p *fakePresenter) SetFadeDuration(fade time.Duration) error {
	if fade < 0 {
		return coordinator.ErrInvalidFade
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.FadeDuration = fade
	p.state.FadeDurationMs = fade.Milliseconds()
	return nil
}

func (p *fakePresenter) SetSyncMode(enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.SyncModeEnabled = enabled
	return nil
}

func (p *fakePresenter) pressedKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func (p *fakePresenter) startRequests() []coordinator.StartRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]coordinator.StartRequest(nil), p.started...)
}

func (p *fakePresenter) HandleKey(key string) bool {
	p.mu.Lock()
	p.keys = append(p.keys, key)
	p.mu.Unlock()
	if key == coordinator.KeyArrowRight {
		return p.NavigateRelative(1)
	}
	return false
}

type fakeDeckConverter struct {
	library  *assets.Library
	decksDir string
	err      error

	mu      sync.Mutex
	sources []string
}

func (c *fakeDeckConverter) Convert(ctx context.Context, lang models.Language, sourceFile string) (*models.DeckRecord, error) {
	if !c.library.Has(lang) {
		return nil, services.ErrUnknownLanguage
	}
	if c.err != nil {
		return nil, c.err
	}
	c.mu.Lock()
	c.sources = append(c.sources, sourceFile)
	c.mu.Unlock()
	return &models.DeckRecord{Language: lang, SourceFile: sourceFile, OutputDir: c.DeckDir(lang), SlideCount: 2}, nil
}

func (c *fakeDeckConverter) converted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sources...)
}

func (c *fakeDeckConverter) Reload(lang models.Language) error {
	if !c.library.Has(lang) {
		return services.ErrUnknownLanguage
	}
	_, err := c.library.Load(lang, c.DeckDir(lang))
	return err
}

func (c *fakeDeckConverter) DeckDir(lang models.Language) string {
	return filepath.Join(c.decksDir, string(lang))
}

type fakeHub struct {
	mu       sync.Mutex
	displays []string
	controls int
}

func (h *fakeHub) AttachDisplay(conn *websocket.Conn, outputID string) {
	h.mu.Lock()
	h.displays = append(h.displays, outputID)
	h.mu.Unlock()
	conn.WriteJSON(map[string]string{"type": "attached", "output": outputID})
}

func (h *fakeHub) AttachControl(conn *websocket.Conn) {
	h.mu.Lock()
	h.controls++
	h.mu.Unlock()
	conn.WriteJSON(map[string]string{"type": "attached"})
}

func (h *fakeHub) controlCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.controls
}

func (h *fakeHub) Outputs() []models.PhysicalOutput {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.PhysicalOutput, 0, len(h.displays))
	for _, id := range h.displays {
		out = append(out, models.PhysicalOutput{ID: id, Name: id})
	}
	return out
}

type testServer struct {
	server    *httptest.Server
	presenter *fakePresenter
	settings  *services.SettingsService
	converter *fakeDeckConverter
	library   *assets.Library
	hub       *fakeHub
	decksDir  string
}

func writeDeck(t *testing.T, dir string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	meta := models.DeckMetadata{SlideCount: n}
	for i := 0; i < n; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, assets.SlideFileName(i)), []byte("jpeg"), 0644))
		meta.Slides = append(meta.Slides, models.SlideText{Text: "Title\nbody"})
	}
	data, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, assets.MetadataFile), data, 0644))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := observability.Nop()
	database, err := db.Open(db.InMemory, log)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	ts := &testServer{
		presenter: &fakePresenter{total: 5},
		library:   assets.NewLibrary("ru", "en"),
		hub:       &fakeHub{},
		decksDir:  t.TempDir(),
	}
	ts.converter = &fakeDeckConverter{library: ts.library, decksDir: ts.decksDir}
	ts.settings = services.NewSettingsService(database, services.Settings{FadeDurationMs: 300}, log)

	records, err := services.NewDeckStore(t.TempDir(), log)
	require.NoError(t, err)
	clickers := services.NewClickerService(database, ts.presenter, log)

	h := Handlers{
		Presentation: NewPresentationHandler(ts.presenter, ts.settings, log),
		Decks:        NewDeckHandler(ts.converter, ts.library, records, services.SlideURL(ts.decksDir), log),
		Clickers:     NewClickerHandler(clickers, log),
		WebSocket:    NewWebSocketHandler(ts.hub, nil, log),
	}
	ts.server = httptest.NewServer(SetupRoutes(h, nil, log))
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}
