package surface

import (
	"context"
	"sync"
	"testing"
	"time"

	"syncdisplay/internal/clock"
	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
)

type renderCall struct {
	op         string
	layer      Layer
	path       string
	transition time.Duration
	number     int
	text       string
}

type fakeRenderer struct {
	mu    sync.Mutex
	calls []renderCall
}

func (r *fakeRenderer) record(c renderCall) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *fakeRenderer) SetBackBufferImage(layer Layer, path string) {
	r.record(renderCall{op: "back", layer: layer, path: path})
}

func (r *fakeRenderer) PresentBackBuffer(layer Layer, transition time.Duration) {
	r.record(renderCall{op: "present", layer: layer, transition: transition})
}

func (r *fakeRenderer) ShowPlaceholder(n int) {
	r.record(renderCall{op: "placeholder", number: n})
}

func (r *fakeRenderer) Blank() {
	r.record(renderCall{op: "blank"})
}

func (r *fakeRenderer) SetVisible(v bool) {
	op := "hide"
	if v {
		op = "show"
	}
	r.record(renderCall{op: op})
}

func (r *fakeRenderer) ShowPreview(text string) {
	r.record(renderCall{op: "preview", text: text})
}

func (r *fakeRenderer) ShowEnd(marker string) {
	r.record(renderCall{op: "end", text: marker})
}

func (r *fakeRenderer) ops(op string) []renderCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []renderCall
	for _, c := range r.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

// lastPresentedPath returns the image staged on the most recently presented layer.
func (r *fakeRenderer) lastPresentedPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	path := ""
	staged := map[Layer]string{}
	for _, c := range r.calls {
		switch c.op {
		case "back":
			staged[c.layer] = c.path
		case "present":
			path = staged[c.layer]
		}
	}
	return path
}

type fakeLoader struct {
	mu    sync.Mutex
	calls map[string]int
	gates map[string]chan error
	errs  map[string]error
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		calls: make(map[string]int),
		gates: make(map[string]chan error),
		errs:  make(map[string]error),
	}
}

// hold makes Load(path) block until release is called.
func (l *fakeLoader) hold(path string) {
	l.mu.Lock()
	l.gates[path] = make(chan error, 1)
	l.mu.Unlock()
}

func (l *fakeLoader) release(path string, err error) {
	l.mu.Lock()
	g := l.gates[path]
	l.mu.Unlock()
	g <- err
}

func (l *fakeLoader) fail(path string, err error) {
	l.mu.Lock()
	l.errs[path] = err
	l.mu.Unlock()
}

func (l *fakeLoader) count(path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[path]
}

func (l *fakeLoader) Load(ctx context.Context, path string) error {
	l.mu.Lock()
	l.calls[path]++
	g := l.gates[path]
	err := l.errs[path]
	l.mu.Unlock()
	if g != nil {
		select {
		case err := <-g:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

var t0 = time.Date(2024, 5, 1, 19, 0, 0, 0, time.UTC)

func slidePath(lang models.Language, index int) string {
	return "/decks/" + string(lang) + "/slide_" + string(rune('a'+index)) + ".jpg"
}

type navOpts struct {
	seq      uint64
	revealAt time.Time
	total    int
	nextText string
}

func payload(lang models.Language, index int, o navOpts) *models.SlidePayload {
	total := o.total
	if total == 0 {
		total = 10
	}
	cmd := &models.NavigationCommand{
		Seq:             o.seq,
		TargetIndex:     index,
		Timestamp:       t0,
		RevealAt:        o.revealAt,
		SyncModeEnabled: !o.revealAt.IsZero(),
		PreloadIndices:  models.PreloadIndices{Prev: index - 1, Next: index + 1},
	}
	p := &models.SlidePayload{
		Command:     cmd,
		Language:    lang,
		ImagePath:   slidePath(lang, index),
		NextText:    o.nextText,
		TotalSlides: total,
	}
	if index > 0 {
		p.PreloadPaths = append(p.PreloadPaths, slidePath(lang, index-1))
	}
	if index+1 < total {
		p.PreloadPaths = append(p.PreloadPaths, slidePath(lang, index+1))
	}
	return p
}

func startDisplay(t *testing.T, cfg Config, r Renderer, l Loader, clk clock.Clock) *Display {
	t.Helper()
	d := NewDisplay(cfg, r, l, clk, observability.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-d.Done()
	})
	return d
}
