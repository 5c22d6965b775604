// Package coordinator owns the presentation state and fans navigation out to
// the display surfaces.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"syncdisplay/internal/assets"
	"syncdisplay/internal/clock"
	"syncdisplay/internal/events"
	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
)

var (
	ErrAssetsNotLoaded   = errors.New("slide decks for both languages must be loaded")
	ErrDisplayUnassigned = errors.New("both language displays must be assigned to an output")
	ErrAlreadyPresenting = errors.New("presentation already running")
	ErrNotPresenting     = errors.New("no presentation running")
	ErrInvalidFade       = errors.New("fade duration must not be negative")
	ErrOutputShared      = errors.New("each surface needs its own output")
	ErrClosed            = errors.New("coordinator stopped")
)

const (
	DefaultSyncWindow   = 100 * time.Millisecond
	DefaultSettleWindow = 500 * time.Millisecond
	DefaultFadeDuration = 300 * time.Millisecond
)

// Surface is the coordinator's view of a running display surface.
type Surface interface {
	ID() models.SurfaceID
	Language() models.Language
	Deliver(dir models.Directive)
	Close()
}

// SurfaceFactory creates and starts a surface. The surface must stop when ctx
// is cancelled.
type SurfaceFactory interface {
	CreateSurface(ctx context.Context, spec models.SurfaceSpec) (Surface, error)
}

// SurfaceFactoryFunc adapts a function to SurfaceFactory.
type SurfaceFactoryFunc func(ctx context.Context, spec models.SurfaceSpec) (Surface, error)

func (f SurfaceFactoryFunc) CreateSurface(ctx context.Context, spec models.SurfaceSpec) (Surface, error) {
	return f(ctx, spec)
}

// Options tunes timing. A zero window takes its default; a negative settle
// window sends the first slide right away.
type Options struct {
	SyncWindow   time.Duration
	SettleWindow time.Duration
	FadeDuration time.Duration
	SyncMode     bool
}

// StartRequest configures one presentation session.
type StartRequest struct {
	DisplayAssignment models.DisplayAssignment `json:"displayAssignment"`
	SingerLanguage    models.Language          `json:"singerLanguage,omitempty"`
	FadeDuration      time.Duration            `json:"-"`
	SyncModeEnabled   bool                     `json:"syncModeEnabled"`
}

// StartResult is returned by a successful Start.
type StartResult struct {
	SessionID       string `json:"sessionId"`
	TotalSlideCount int    `json:"totalSlideCount"`
}

// Coordinator serializes every state change through a single goroutine.
type Coordinator struct {
	library *assets.Library
	factory SurfaceFactory
	clock   clock.Clock
	events  events.Publisher
	log     *observability.Logger
	opts    Options

	ops     chan func()
	stopped chan struct{}

	snapMu sync.RWMutex
	snap   models.PresentationState

	// Owned by the loop goroutine.
	ctx       context.Context
	state     models.PresentationState
	decks     map[models.Language]*models.Deck
	singer    models.Language
	surfaces  []Surface
	cancel    context.CancelFunc
	settle    clock.Timer
	navigated bool
	seq       uint64
	session   uint64
}

// New creates a coordinator. Run must be started before any operation is used.
func New(library *assets.Library, factory SurfaceFactory, clk clock.Clock, pub events.Publisher, log *observability.Logger, opts Options) *Coordinator {
	if clk == nil {
		clk = clock.New()
	}
	if opts.SyncWindow <= 0 {
		opts.SyncWindow = DefaultSyncWindow
	}
	if opts.SettleWindow < 0 {
		opts.SettleWindow = 0
	} else if opts.SettleWindow == 0 {
		opts.SettleWindow = DefaultSettleWindow
	}
	if opts.FadeDuration < 0 {
		opts.FadeDuration = DefaultFadeDuration
	}

	c := &Coordinator{
		library: library,
		factory: factory,
		clock:   clk,
		events:  pub,
		log:     log.WithComponent("coordinator"),
		opts:    opts,
		ops:     make(chan func()),
		stopped: make(chan struct{}),
		ctx:     context.Background(),
	}
	c.state.FadeDuration = opts.FadeDuration
	c.state.FadeDurationMs = opts.FadeDuration.Milliseconds()
	c.state.SyncModeEnabled = opts.SyncMode
	c.state.TotalSlideCount = library.TotalSlides()
	c.storeSnapshot()
	return c
}

// Run processes operations until ctx is done. A running session is stopped
// on exit.
func (c *Coordinator) Run(ctx context.Context) {
	c.ctx = ctx
	defer close(c.stopped)

	c.log.Info().Int("total_slides", c.state.TotalSlideCount).Msg("Coordinator started")
	for {
		select {
		case <-ctx.Done():
			if c.state.Presenting {
				c.stop()
				c.storeSnapshot()
			}
			c.log.Info().Msg("Coordinator stopped")
			return
		case op := <-c.ops:
			op()
		}
	}
}

// do runs fn on the loop goroutine and waits for it to finish.
func (c *Coordinator) do(fn func()) error {
	done := make(chan struct{})
	select {
	case c.ops <- func() { fn(); c.storeSnapshot(); close(done) }:
	case <-c.stopped:
		return ErrClosed
	}
	<-done
	return nil
}

// State returns a snapshot of the presentation state.
func (c *Coordinator) State() models.PresentationState {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	s := c.snap
	s.DisplayAssignment = s.DisplayAssignment.Clone()
	return s
}

// IsPresenting reports whether a session is running.
func (c *Coordinator) IsPresenting() bool {
	return c.State().Presenting
}

func (c *Coordinator) storeSnapshot() {
	s := c.state
	s.DisplayAssignment = s.DisplayAssignment.Clone()
	c.snapMu.Lock()
	c.snap = s
	c.snapMu.Unlock()
}

// Start begins a presentation session.
func (c *Coordinator) Start(req StartRequest) (StartResult, error) {
	var (
		res StartResult
		err error
	)
	if qerr := c.do(func() { res, err = c.start(req) }); qerr != nil {
		return StartResult{}, qerr
	}
	return res, err
}

// Stop hides every surface and ends the session. The current slide index is kept.
func (c *Coordinator) Stop() error {
	var err error
	if qerr := c.do(func() {
		if !c.state.Presenting {
			err = ErrNotPresenting
			return
		}
		c.stop()
	}); qerr != nil {
		return qerr
	}
	return err
}

// NavigateTo moves every surface to index. It reports false, changing
// nothing, when no session runs or index is out of range.
func (c *Coordinator) NavigateTo(index int) bool {
	var ok bool
	if c.do(func() { ok = c.navigateTo(index) }) != nil {
		return false
	}
	return ok
}

// NavigateRelative moves by delta from the current slide. Moves past either
// end are ignored rather than clamped.
func (c *Coordinator) NavigateRelative(delta int) bool {
	var ok bool
	if c.do(func() { ok = c.navigateTo(c.state.CurrentSlideIndex + delta) }) != nil {
		return false
	}
	return ok
}

// ClearAll blacks out every surface without changing the current slide.
func (c *Coordinator) ClearAll() error {
	var err error
	if qerr := c.do(func() { err = c.clearAll() }); qerr != nil {
		return qerr
	}
	return err
}

// ShowAll brings back every surface and re-sends the current slide.
func (c *Coordinator) ShowAll() error {
	var err error
	if qerr := c.do(func() { err = c.showAll() }); qerr != nil {
		return qerr
	}
	return err
}

// SetFadeDuration changes the crossfade of the next reveals.
func (c *Coordinator) SetFadeDuration(fade time.Duration) error {
	if fade < 0 {
		return ErrInvalidFade
	}
	return c.do(func() {
		c.state.FadeDuration = fade
		c.state.FadeDurationMs = fade.Milliseconds()
		c.configure()
	})
}

// SetSyncMode toggles coordinated reveals.
func (c *Coordinator) SetSyncMode(enabled bool) error {
	return c.do(func() {
		c.state.SyncModeEnabled = enabled
		c.configure()
	})
}

// LibraryChanged recomputes the slide count after a deck was (re)loaded. A
// running session keeps the decks it started with.
func (c *Coordinator) LibraryChanged() error {
	return c.do(func() {
		if c.state.Presenting {
			return
		}
		c.state.TotalSlideCount = c.library.TotalSlides()
		if c.state.CurrentSlideIndex >= c.state.TotalSlideCount {
			c.state.CurrentSlideIndex = 0
		}
		c.publishState()
	})
}

func (c *Coordinator) start(req StartRequest) (StartResult, error) {
	if c.state.Presenting {
		return StartResult{}, ErrAlreadyPresenting
	}
	if req.FadeDuration < 0 {
		return StartResult{}, ErrInvalidFade
	}
	if !c.library.Ready() {
		return StartResult{}, ErrAssetsNotLoaded
	}

	langs := c.library.Languages()
	for _, lang := range langs {
		if req.DisplayAssignment[models.SurfaceIDFor(lang)] == "" {
			return StartResult{}, fmt.Errorf("%w: %s", ErrDisplayUnassigned, lang)
		}
	}

	singer := req.SingerLanguage
	if singer == "" {
		singer = langs[0]
	}
	if !c.library.Has(singer) {
		return StartResult{}, fmt.Errorf("unknown singer language: %s", singer)
	}

	decks := make(map[models.Language]*models.Deck, len(langs))
	for _, lang := range langs {
		deck, _ := c.library.Deck(lang)
		decks[lang] = deck
	}
	total := c.library.TotalSlides()

	specs := make([]models.SurfaceSpec, 0, 3)
	for _, lang := range langs {
		specs = append(specs, models.SurfaceSpec{
			ID:           models.SurfaceIDFor(lang),
			Kind:         models.SurfaceDisplay,
			Language:     lang,
			OutputID:     req.DisplayAssignment[models.SurfaceIDFor(lang)],
			FadeDuration: req.FadeDuration,
			SyncMode:     req.SyncModeEnabled,
		})
	}
	if out := req.DisplayAssignment[models.SingerSurface]; out != "" {
		specs = append(specs, models.SurfaceSpec{
			ID:           models.SingerSurface,
			Kind:         models.SurfaceSinger,
			Language:     singer,
			OutputID:     out,
			FadeDuration: req.FadeDuration,
			SyncMode:     req.SyncModeEnabled,
		})
	}

	used := make(map[string]models.SurfaceID, len(specs))
	for _, spec := range specs {
		if other, ok := used[spec.OutputID]; ok {
			return StartResult{}, fmt.Errorf("%w: %s and %s on %s", ErrOutputShared, other, spec.ID, spec.OutputID)
		}
		used[spec.OutputID] = spec.ID
	}

	ctx, cancel := context.WithCancel(c.ctx)
	surfaces := make([]Surface, 0, len(specs))
	for _, spec := range specs {
		s, err := c.factory.CreateSurface(ctx, spec)
		if err != nil {
			for _, created := range surfaces {
				created.Close()
			}
			cancel()
			return StartResult{}, fmt.Errorf("failed to create surface %s: %w", spec.ID, err)
		}
		surfaces = append(surfaces, s)
	}

	c.session++
	c.surfaces = surfaces
	c.cancel = cancel
	c.decks = decks
	c.singer = singer
	c.navigated = false

	c.state.SessionID = uuid.NewString()
	c.state.Presenting = true
	c.state.IsCleared = false
	c.state.TotalSlideCount = total
	c.state.FadeDuration = req.FadeDuration
	c.state.FadeDurationMs = req.FadeDuration.Milliseconds()
	c.state.SyncModeEnabled = req.SyncModeEnabled
	c.state.SingerLanguage = singer
	c.state.DisplayAssignment = req.DisplayAssignment.Clone()
	if c.state.CurrentSlideIndex < 0 || c.state.CurrentSlideIndex >= total {
		c.state.CurrentSlideIndex = 0
	}

	c.broadcast(models.Directive{Kind: models.DirectiveShow})

	session := c.session
	c.settle = c.clock.AfterFunc(c.opts.SettleWindow, func() {
		c.enqueue(func() {
			if c.session != session || !c.state.Presenting || c.navigated {
				return
			}
			c.navigateTo(c.state.CurrentSlideIndex)
		})
	})

	c.log.Info().
		Str("session_id", c.state.SessionID).
		Int("total_slides", total).
		Int("surfaces", len(surfaces)).
		Bool("sync_mode", req.SyncModeEnabled).
		Msg("Presentation started")
	c.publishState()

	return StartResult{SessionID: c.state.SessionID, TotalSlideCount: total}, nil
}

// enqueue is used by timer callbacks, which must not wait for a reply.
func (c *Coordinator) enqueue(fn func()) {
	select {
	case c.ops <- func() { fn(); c.storeSnapshot() }:
	case <-c.stopped:
	}
}

func (c *Coordinator) stop() {
	if c.settle != nil {
		c.settle.Stop()
		c.settle = nil
	}
	c.broadcast(models.Directive{Kind: models.DirectiveHide})
	for _, s := range c.surfaces {
		s.Close()
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.surfaces = nil
	c.decks = nil

	c.log.Info().
		Str("session_id", c.state.SessionID).
		Int("slide", c.state.CurrentSlideIndex).
		Msg("Presentation stopped")

	c.state.Presenting = false
	c.state.IsCleared = false
	c.state.SessionID = ""
	c.state.TotalSlideCount = c.library.TotalSlides()
	if c.state.CurrentSlideIndex >= c.state.TotalSlideCount {
		c.state.CurrentSlideIndex = 0
	}
	c.publishState()
}

func (c *Coordinator) navigateTo(index int) bool {
	if !c.state.Presenting {
		return false
	}
	if index < 0 || index >= c.state.TotalSlideCount {
		c.log.Debug().Int("index", index).Int("total_slides", c.state.TotalSlideCount).Msg("Navigation out of range dropped")
		return false
	}

	if c.settle != nil {
		c.settle.Stop()
		c.settle = nil
	}
	c.navigated = true
	c.state.CurrentSlideIndex = index
	c.state.IsCleared = false

	c.sendSlide(index)

	c.publish(events.SlideChanged(index, c.state.TotalSlideCount))
	c.publishState()
	return true
}

// sendSlide builds one command and delivers it to every surface with paths
// resolved in the surface's language.
func (c *Coordinator) sendSlide(index int) {
	now := c.clock.Now()
	total := c.state.TotalSlideCount

	c.seq++
	cmd := &models.NavigationCommand{
		Seq:             c.seq,
		SessionID:       c.state.SessionID,
		TargetIndex:     index,
		Timestamp:       now,
		SyncModeEnabled: c.state.SyncModeEnabled,
		PreloadIndices:  models.PreloadIndices{Prev: models.NoSlide, Next: models.NoSlide},
	}
	if c.state.SyncModeEnabled {
		cmd.RevealAt = now.Add(c.opts.SyncWindow)
	}
	if index > 0 {
		cmd.PreloadIndices.Prev = index - 1
	}
	if index+1 < total {
		cmd.PreloadIndices.Next = index + 1
	}

	for _, s := range c.surfaces {
		s.Deliver(models.Directive{Kind: models.DirectiveNavigate, Payload: c.payloadFor(s.Language(), cmd, total)})
	}
}

func (c *Coordinator) payloadFor(lang models.Language, cmd *models.NavigationCommand, total int) *models.SlidePayload {
	deck := c.decks[lang]
	p := &models.SlidePayload{
		Command:     cmd,
		Language:    lang,
		TotalSlides: total,
	}
	if slide, ok := deck.Slide(cmd.TargetIndex); ok {
		p.ImagePath = slide.ImagePath
	}
	for _, i := range []int{cmd.PreloadIndices.Prev, cmd.PreloadIndices.Next} {
		if slide, ok := deck.Slide(i); ok {
			p.PreloadPaths = append(p.PreloadPaths, slide.ImagePath)
		}
	}
	if cmd.TargetIndex+1 < total {
		if next, ok := deck.Slide(cmd.TargetIndex + 1); ok {
			p.NextText = next.Text
		}
	}
	return p
}

func (c *Coordinator) clearAll() error {
	if !c.state.Presenting {
		return ErrNotPresenting
	}
	c.state.IsCleared = true
	c.broadcast(models.Directive{Kind: models.DirectiveClear})
	c.publishState()
	return nil
}

func (c *Coordinator) showAll() error {
	if !c.state.Presenting {
		return ErrNotPresenting
	}
	c.state.IsCleared = false
	c.broadcast(models.Directive{Kind: models.DirectiveShow})
	if c.state.TotalSlideCount > 0 {
		c.navigated = true
		c.sendSlide(c.state.CurrentSlideIndex)
	}
	c.publishState()
	return nil
}

func (c *Coordinator) configure() {
	c.broadcast(models.Directive{
		Kind:         models.DirectiveConfigure,
		FadeDuration: c.state.FadeDuration,
		SyncMode:     c.state.SyncModeEnabled,
	})
	c.publishState()
}

func (c *Coordinator) broadcast(dir models.Directive) {
	for _, s := range c.surfaces {
		s.Deliver(dir)
	}
}

func (c *Coordinator) publish(evt models.Event) {
	if c.events != nil {
		c.events.Publish(evt)
	}
}

// publishState refreshes the snapshot first so subscribers that call State
// see what the event says.
func (c *Coordinator) publishState() {
	c.storeSnapshot()
	s := c.state
	s.DisplayAssignment = s.DisplayAssignment.Clone()
	c.publish(events.PresentationState(s))
}
