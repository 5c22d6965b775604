package surface

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"syncdisplay/internal/clock"
	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
)

// Config is fixed for the lifetime of a surface.
type Config struct {
	ID           models.SurfaceID
	Language     models.Language
	OutputID     string
	FadeDuration time.Duration
	SyncMode     bool
}

// Stats is a snapshot of a surface's counters.
type Stats struct {
	LoadsStarted   uint64
	LoadFailures   uint64
	CacheHits      uint64
	Reveals        uint64
	Placeholders   uint64
	StaleDiscarded uint64
	Overruns       uint64
	Ignored        uint64
	Coalesced      uint64
}

type loadResult struct {
	path string
	err  error
}

type pendingReveal struct {
	token   uint64
	payload *models.SlidePayload
	failed  bool
	timer   clock.Timer
}

// Display is one screen rendering one language.
type Display struct {
	cfg      Config
	renderer Renderer
	loader   Loader
	clock    clock.Clock
	log      *observability.Logger

	box     *mailbox
	loaded  chan loadResult
	due     chan uint64
	closeCh chan struct{}
	stopped chan struct{}
	once    sync.Once

	// Last requested configuration, for the single-field updates.
	cfgMu    sync.Mutex
	wantFade time.Duration
	wantSync bool

	// Set by the singer surface.
	onReveal func(p *models.SlidePayload)

	// Owned by the loop goroutine.
	ctx          context.Context
	fade         time.Duration
	syncMode     bool
	active       Layer
	cache        map[string]struct{}
	failed       map[string]error
	inflight     map[string]struct{}
	latest       *models.SlidePayload
	pending      *pendingReveal
	token        uint64
	lastRendered int
	awaiting     bool
	visible      bool
	showingError bool

	loadsStarted   uint64
	loadFailures   uint64
	cacheHits      uint64
	reveals        uint64
	placeholders   uint64
	staleDiscarded uint64
	overruns       uint64
	ignored        uint64
}

// NewDisplay initializes a surface for one language and output. Run must be
// called to start processing directives.
func NewDisplay(cfg Config, renderer Renderer, loader Loader, clk clock.Clock, log *observability.Logger) *Display {
	if clk == nil {
		clk = clock.New()
	}
	if loader == nil {
		loader = FileLoader{}
	}
	return &Display{
		cfg:      cfg,
		renderer: renderer,
		loader:   loader,
		clock:    clk,
		log: log.WithComponent("surface").
			WithStr("surface", string(cfg.ID)).
			WithStr("language", string(cfg.Language)),
		box:          newMailbox(),
		loaded:       make(chan loadResult, 8),
		due:          make(chan uint64, 1),
		closeCh:      make(chan struct{}),
		stopped:      make(chan struct{}),
		ctx:          context.Background(),
		wantFade:     cfg.FadeDuration,
		wantSync:     cfg.SyncMode,
		fade:         cfg.FadeDuration,
		syncMode:     cfg.SyncMode,
		cache:        make(map[string]struct{}),
		failed:       make(map[string]error),
		inflight:     make(map[string]struct{}),
		lastRendered: models.NoSlide,
	}
}

// ID returns the logical surface id.
func (d *Display) ID() models.SurfaceID {
	return d.cfg.ID
}

// Language returns the language this surface renders.
func (d *Display) Language() models.Language {
	return d.cfg.Language
}

// OutputID returns the physical output this surface is placed on.
func (d *Display) OutputID() string {
	return d.cfg.OutputID
}

// Deliver queues a directive. It never blocks.
func (d *Display) Deliver(dir models.Directive) {
	if dir.Kind == models.DirectiveConfigure {
		d.cfgMu.Lock()
		d.wantFade, d.wantSync = dir.FadeDuration, dir.SyncMode
		d.cfgMu.Unlock()
	}
	if !d.box.put(dir) {
		d.log.Debug().Str("directive", dir.Kind.String()).Msg("Directive after close dropped")
	}
}

// GoToSlide queues a navigation.
func (d *Display) GoToSlide(p *models.SlidePayload) {
	d.Deliver(models.Directive{Kind: models.DirectiveNavigate, Payload: p})
}

// Clear queues a blackout.
func (d *Display) Clear() {
	d.Deliver(models.Directive{Kind: models.DirectiveClear})
}

// UpdateFadeDuration changes the crossfade used by the next reveal.
func (d *Display) UpdateFadeDuration(fade time.Duration) {
	d.cfgMu.Lock()
	d.wantFade = fade
	dir := models.Directive{Kind: models.DirectiveConfigure, FadeDuration: d.wantFade, SyncMode: d.wantSync}
	d.cfgMu.Unlock()
	d.Deliver(dir)
}

// UpdateSyncMode changes the reveal policy used by the next reveal.
func (d *Display) UpdateSyncMode(enabled bool) {
	d.cfgMu.Lock()
	d.wantSync = enabled
	dir := models.Directive{Kind: models.DirectiveConfigure, FadeDuration: d.wantFade, SyncMode: d.wantSync}
	d.cfgMu.Unlock()
	d.Deliver(dir)
}

// Close stops the loop. Queued directives are discarded.
func (d *Display) Close() {
	d.once.Do(func() {
		d.box.close()
		close(d.closeCh)
	})
}

// Done is closed once the loop has exited.
func (d *Display) Done() <-chan struct{} {
	return d.stopped
}

// Stats returns a snapshot of the surface counters.
func (d *Display) Stats() Stats {
	return Stats{
		LoadsStarted:   atomic.LoadUint64(&d.loadsStarted),
		LoadFailures:   atomic.LoadUint64(&d.loadFailures),
		CacheHits:      atomic.LoadUint64(&d.cacheHits),
		Reveals:        atomic.LoadUint64(&d.reveals),
		Placeholders:   atomic.LoadUint64(&d.placeholders),
		StaleDiscarded: atomic.LoadUint64(&d.staleDiscarded),
		Overruns:       atomic.LoadUint64(&d.overruns),
		Ignored:        atomic.LoadUint64(&d.ignored),
		Coalesced:      d.box.coalescedCount(),
	}
}

// Run processes directives, load results and reveal timers until ctx is
// done or Close is called.
func (d *Display) Run(ctx context.Context) {
	d.ctx = ctx
	defer close(d.stopped)
	defer d.cancelPending()

	d.log.Debug().Str("output", d.cfg.OutputID).Msg("Surface loop started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.closeCh:
			return
		case <-d.box.ready:
			for _, dir := range d.box.drain() {
				d.handle(dir)
			}
		case res := <-d.loaded:
			d.onLoaded(res)
		case tok := <-d.due:
			d.onDue(tok)
		}
	}
}

func (d *Display) handle(dir models.Directive) {
	switch dir.Kind {
	case models.DirectiveNavigate:
		d.goToSlide(dir.Payload)
	case models.DirectiveClear:
		d.clear()
	case models.DirectiveConfigure:
		d.fade = dir.FadeDuration
		d.syncMode = dir.SyncMode
	case models.DirectiveShow:
		d.renderer.SetVisible(true)
	case models.DirectiveHide:
		d.cancelPending()
		d.renderer.SetVisible(false)
	}
}

func (d *Display) goToSlide(p *models.SlidePayload) {
	if p == nil || p.Command == nil {
		return
	}
	if p.Language != d.cfg.Language {
		atomic.AddUint64(&d.ignored, 1)
		d.log.Debug().Str("command_language", string(p.Language)).Msg("Ignoring command for another language")
		return
	}

	if d.awaiting {
		atomic.AddUint64(&d.staleDiscarded, 1)
	}
	d.latest = p
	d.awaiting = true
	d.cancelPending()

	path := p.ImagePath
	switch {
	case path == "":
		d.scheduleReveal(p, true)
	case d.isCached(path):
		atomic.AddUint64(&d.cacheHits, 1)
		d.scheduleReveal(p, false)
	case d.failed[path] != nil:
		d.scheduleReveal(p, true)
	case d.isInflight(path):
		// Revealed when the running load reports back.
	default:
		d.startLoad(path)
	}

	for _, next := range p.PreloadPaths {
		if next == "" || d.isCached(next) || d.isInflight(next) || d.failed[next] != nil {
			continue
		}
		d.startLoad(next)
	}
}

func (d *Display) isCached(path string) bool {
	_, ok := d.cache[path]
	return ok
}

func (d *Display) isInflight(path string) bool {
	_, ok := d.inflight[path]
	return ok
}

func (d *Display) startLoad(path string) {
	atomic.AddUint64(&d.loadsStarted, 1)
	d.inflight[path] = struct{}{}
	ctx := d.ctx
	go func() {
		err := d.loader.Load(ctx, path)
		select {
		case d.loaded <- loadResult{path: path, err: err}:
		case <-d.stopped:
		}
	}()
}

func (d *Display) onLoaded(res loadResult) {
	delete(d.inflight, res.path)

	if res.err != nil {
		atomic.AddUint64(&d.loadFailures, 1)
		d.failed[res.path] = res.err
		d.log.Warn().Err(res.err).Str("path", res.path).Msg("Slide image failed to load")
	} else {
		d.cache[res.path] = struct{}{}
		if pre, ok := d.renderer.(Preloader); ok {
			pre.Preload(res.path)
		}
	}

	if d.latest == nil || d.latest.ImagePath != res.path {
		return
	}
	if d.pending != nil && d.pending.payload == d.latest {
		return
	}
	d.scheduleReveal(d.latest, res.err != nil)
}

// scheduleReveal reveals p now, or at its revealAt instant in sync mode.
func (d *Display) scheduleReveal(p *models.SlidePayload, failed bool) {
	if !failed {
		d.renderer.SetBackBufferImage(d.active.Other(), p.ImagePath)
	}

	cmd := p.Command
	if d.syncMode && cmd.SyncModeEnabled && !cmd.RevealAt.IsZero() {
		delay := cmd.RevealAt.Sub(d.clock.Now())
		if delay > 0 {
			d.token++
			tok := d.token
			timer := d.clock.AfterFunc(delay, func() {
				select {
				case d.due <- tok:
				case <-d.stopped:
				}
			})
			d.pending = &pendingReveal{token: tok, payload: p, failed: failed, timer: timer}
			return
		}
		if delay < 0 {
			atomic.AddUint64(&d.overruns, 1)
			d.log.Debug().Dur("overrun", -delay).Int("slide", cmd.TargetIndex).Msg("Reveal deadline passed, revealing now")
		}
	}
	d.reveal(p, failed)
}

func (d *Display) onDue(tok uint64) {
	if d.pending == nil || d.pending.token != tok {
		return
	}
	pr := d.pending
	d.pending = nil
	d.reveal(pr.payload, pr.failed)
}

func (d *Display) cancelPending() {
	if d.pending == nil {
		return
	}
	d.pending.timer.Stop()
	d.pending = nil
}

// reveal swaps layers, unless a newer command has superseded p.
func (d *Display) reveal(p *models.SlidePayload, failed bool) {
	if d.latest == nil || d.latest.Command.TargetIndex != p.Command.TargetIndex {
		atomic.AddUint64(&d.staleDiscarded, 1)
		return
	}
	index := p.Command.TargetIndex
	d.awaiting = false

	if failed {
		atomic.AddUint64(&d.placeholders, 1)
		d.renderer.ShowPlaceholder(index + 1)
		d.showingError = true
	} else {
		if d.visible && !d.showingError && d.lastRendered == index {
			return
		}
		next := d.active.Other()
		d.renderer.PresentBackBuffer(next, d.fade)
		d.active = next
		d.showingError = false
		atomic.AddUint64(&d.reveals, 1)
	}

	d.lastRendered = index
	d.visible = true
	if d.onReveal != nil {
		d.onReveal(p)
	}
}

func (d *Display) clear() {
	d.cancelPending()
	d.latest = nil
	d.awaiting = false
	d.visible = false
	d.renderer.Blank()
}
