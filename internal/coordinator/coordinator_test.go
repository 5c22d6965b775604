package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncdisplay/internal/assets"
	"syncdisplay/internal/clock"
	"syncdisplay/internal/events"
	"syncdisplay/internal/models"
	"syncdisplay/internal/observability"
)

const (
	ru models.Language = "ru"
	en models.Language = "en"
)

var t0 = time.Date(2024, 5, 1, 19, 0, 0, 0, time.UTC)

type fakeSurface struct {
	spec models.SurfaceSpec
	ctx  context.Context

	mu     sync.Mutex
	dirs   []models.Directive
	closed bool
}

func (s *fakeSurface) ID() models.SurfaceID      { return s.spec.ID }
func (s *fakeSurface) Language() models.Language { return s.spec.Language }

func (s *fakeSurface) Deliver(dir models.Directive) {
	s.mu.Lock()
	s.dirs = append(s.dirs, dir)
	s.mu.Unlock()
}

func (s *fakeSurface) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *fakeSurface) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSurface) directives(kind models.DirectiveKind) []models.Directive {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Directive
	for _, d := range s.dirs {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func (s *fakeSurface) lastNavigation() *models.SlidePayload {
	navs := s.directives(models.DirectiveNavigate)
	if len(navs) == 0 {
		return nil
	}
	return navs[len(navs)-1].Payload
}

type fakeFactory struct {
	mu       sync.Mutex
	surfaces map[models.SurfaceID]*fakeSurface
	created  []*fakeSurface
	failOn   models.SurfaceID
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{surfaces: make(map[models.SurfaceID]*fakeSurface)}
}

func (f *fakeFactory) CreateSurface(ctx context.Context, spec models.SurfaceSpec) (Surface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if spec.ID == f.failOn {
		return nil, errors.New("output gone")
	}
	s := &fakeSurface{spec: spec, ctx: ctx}
	f.surfaces[spec.ID] = s
	f.created = append(f.created, s)
	return s, nil
}

func (f *fakeFactory) get(id models.SurfaceID) *fakeSurface {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.surfaces[id]
}

func testDeck(lang models.Language, n int) *models.Deck {
	deck := &models.Deck{Language: lang, Dir: "/decks/" + string(lang)}
	for i := 0; i < n; i++ {
		deck.Slides = append(deck.Slides, models.SlideAsset{
			ImagePath: fmt.Sprintf("/decks/%s/%s", lang, assets.SlideFileName(i)),
			Text:      fmt.Sprintf("%d\n%s verse %d", i+1, lang, i+1),
		})
	}
	return deck
}

type harness struct {
	c       *Coordinator
	clk     *clock.Fake
	factory *fakeFactory
	library *assets.Library
	bus     *events.Bus
}

func newHarness(t *testing.T, ruSlides, enSlides int) *harness {
	t.Helper()
	lib := assets.NewLibrary(ru, en)
	if ruSlides > 0 {
		require.NoError(t, lib.Set(testDeck(ru, ruSlides)))
	}
	if enSlides > 0 {
		require.NoError(t, lib.Set(testDeck(en, enSlides)))
	}

	h := &harness{
		clk:     clock.NewFake(t0),
		factory: newFakeFactory(),
		library: lib,
		bus:     events.NewBus(),
	}
	h.c = New(lib, h.factory, h.clk, h.bus, observability.Nop(), Options{
		SyncWindow:   100 * time.Millisecond,
		SettleWindow: 500 * time.Millisecond,
		FadeDuration: 300 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go h.c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.c.stopped
	})
	return h
}

func assignment(withSinger bool) models.DisplayAssignment {
	a := models.DisplayAssignment{
		models.SurfaceIDFor(ru): "hdmi-1",
		models.SurfaceIDFor(en): "hdmi-2",
	}
	if withSinger {
		a[models.SingerSurface] = "hdmi-3"
	}
	return a
}

// present starts a session and lets the settle window elapse.
func (h *harness) present(t *testing.T, req StartRequest) StartResult {
	t.Helper()
	res, err := h.c.Start(req)
	require.NoError(t, err)
	h.clk.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool {
		return h.factory.get(models.SurfaceIDFor(ru)).lastNavigation() != nil
	}, time.Second, 5*time.Millisecond)
	return res
}

func TestStart_Preconditions(t *testing.T) {
	t.Run("assets not loaded", func(t *testing.T) {
		h := newHarness(t, 10, 0)
		_, err := h.c.Start(StartRequest{DisplayAssignment: assignment(false)})
		assert.ErrorIs(t, err, ErrAssetsNotLoaded)
		assert.False(t, h.c.IsPresenting())
	})

	t.Run("display unassigned", func(t *testing.T) {
		h := newHarness(t, 10, 10)
		_, err := h.c.Start(StartRequest{DisplayAssignment: models.DisplayAssignment{models.SurfaceIDFor(ru): "hdmi-1"}})
		assert.ErrorIs(t, err, ErrDisplayUnassigned)
	})

	t.Run("negative fade", func(t *testing.T) {
		h := newHarness(t, 10, 10)
		_, err := h.c.Start(StartRequest{DisplayAssignment: assignment(false), FadeDuration: -time.Millisecond})
		assert.ErrorIs(t, err, ErrInvalidFade)
	})

	t.Run("already presenting", func(t *testing.T) {
		h := newHarness(t, 10, 10)
		_, err := h.c.Start(StartRequest{DisplayAssignment: assignment(false)})
		require.NoError(t, err)
		_, err = h.c.Start(StartRequest{DisplayAssignment: assignment(false)})
		assert.ErrorIs(t, err, ErrAlreadyPresenting)
	})

	t.Run("shared output", func(t *testing.T) {
		tests := map[string]models.DisplayAssignment{
			"two languages": {models.SurfaceIDFor(ru): "hdmi-1", models.SurfaceIDFor(en): "hdmi-1"},
			"singer on a language output": {
				models.SurfaceIDFor(ru): "hdmi-1",
				models.SurfaceIDFor(en): "hdmi-2",
				models.SingerSurface:    "hdmi-2",
			},
		}
		for name, a := range tests {
			t.Run(name, func(t *testing.T) {
				h := newHarness(t, 10, 10)
				_, err := h.c.Start(StartRequest{DisplayAssignment: a})
				assert.ErrorIs(t, err, ErrOutputShared)
				assert.False(t, h.c.IsPresenting())
				assert.Empty(t, h.factory.created)
			})
		}
	})

	t.Run("factory failure closes created surfaces", func(t *testing.T) {
		h := newHarness(t, 10, 10)
		h.factory.failOn = models.SurfaceIDFor(en)
		_, err := h.c.Start(StartRequest{DisplayAssignment: assignment(false)})
		require.Error(t, err)
		assert.False(t, h.c.IsPresenting())
		require.Len(t, h.factory.created, 1)
		assert.True(t, h.factory.created[0].isClosed())
		assert.Error(t, h.factory.created[0].ctx.Err())
	})
}

func TestStart_SettleWindowThenFirstSlide(t *testing.T) {
	h := newHarness(t, 10, 10)

	res, err := h.c.Start(StartRequest{DisplayAssignment: assignment(true), SingerLanguage: en, FadeDuration: 200 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 10, res.TotalSlideCount)
	assert.NotEmpty(t, res.SessionID)
	require.Len(t, h.factory.created, 3)

	singer := h.factory.get(models.SingerSurface)
	require.NotNil(t, singer)
	assert.Equal(t, models.SurfaceSinger, singer.spec.Kind)
	assert.Equal(t, en, singer.spec.Language)
	assert.Equal(t, "hdmi-3", singer.spec.OutputID)
	assert.Equal(t, 200*time.Millisecond, singer.spec.FadeDuration)

	for _, s := range h.factory.created {
		assert.Len(t, s.directives(models.DirectiveShow), 1)
		assert.Nil(t, s.lastNavigation(), "no navigation before the settle window")
	}

	h.clk.Advance(499 * time.Millisecond)
	assert.Nil(t, h.factory.get(models.SurfaceIDFor(ru)).lastNavigation())

	h.clk.Advance(time.Millisecond)
	require.Eventually(t, func() bool {
		return h.factory.get(models.SurfaceIDFor(ru)).lastNavigation() != nil
	}, time.Second, 5*time.Millisecond)

	first := h.factory.get(models.SurfaceIDFor(ru)).lastNavigation()
	assert.Equal(t, 0, first.Command.TargetIndex)
	assert.Equal(t, models.NoSlide, first.Command.PreloadIndices.Prev)
	assert.Equal(t, 1, first.Command.PreloadIndices.Next)
	assert.Equal(t, []string{"/decks/ru/slide_002.jpg"}, first.PreloadPaths)
}

func TestNavigateTo_ClampsToShorterDeck(t *testing.T) {
	h := newHarness(t, 12, 10)
	res := h.present(t, StartRequest{DisplayAssignment: assignment(false)})
	assert.Equal(t, 10, res.TotalSlideCount)

	assert.False(t, h.c.NavigateTo(11))
	assert.Equal(t, 0, h.c.State().CurrentSlideIndex)

	assert.True(t, h.c.NavigateTo(9))
	assert.Equal(t, 9, h.c.State().CurrentSlideIndex)

	ruNav := h.factory.get(models.SurfaceIDFor(ru)).lastNavigation()
	enNav := h.factory.get(models.SurfaceIDFor(en)).lastNavigation()
	assert.Equal(t, "/decks/ru/slide_010.jpg", ruNav.ImagePath)
	assert.Equal(t, "/decks/en/slide_010.jpg", enNav.ImagePath)
	assert.Equal(t, ru, ruNav.Language)
	assert.Equal(t, en, enNav.Language)
	assert.Same(t, ruNav.Command, enNav.Command)
	assert.Equal(t, models.NoSlide, ruNav.Command.PreloadIndices.Next)
	assert.Equal(t, []string{"/decks/ru/slide_009.jpg"}, ruNav.PreloadPaths)
}

func TestNavigate_BoundsInvariant(t *testing.T) {
	h := newHarness(t, 10, 10)
	h.present(t, StartRequest{DisplayAssignment: assignment(false)})

	require.True(t, h.c.NavigateTo(4))
	steps := []struct {
		name     string
		apply    func() bool
		ok       bool
		expected int
	}{
		{"far past end", func() bool { return h.c.NavigateTo(15) }, false, 4},
		{"negative", func() bool { return h.c.NavigateTo(-1) }, false, 4},
		{"relative overflow is ignored", func() bool { return h.c.NavigateRelative(6) }, false, 4},
		{"relative to last", func() bool { return h.c.NavigateRelative(5) }, true, 9},
		{"next at end", func() bool { return h.c.NavigateRelative(1) }, false, 9},
		{"relative back", func() bool { return h.c.NavigateRelative(-9) }, true, 0},
		{"previous at start", func() bool { return h.c.NavigateRelative(-1) }, false, 0},
	}
	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			assert.Equal(t, step.ok, step.apply())
			assert.Equal(t, step.expected, h.c.State().CurrentSlideIndex)
		})
	}
}

func TestNavigate_IgnoredWhenIdle(t *testing.T) {
	h := newHarness(t, 10, 10)
	assert.False(t, h.c.NavigateTo(3))
	assert.False(t, h.c.NavigateRelative(1))
	assert.Equal(t, 0, h.c.State().CurrentSlideIndex)
	assert.ErrorIs(t, h.c.ClearAll(), ErrNotPresenting)
	assert.ErrorIs(t, h.c.ShowAll(), ErrNotPresenting)
	assert.ErrorIs(t, h.c.Stop(), ErrNotPresenting)
}

func TestClearShow_Idempotent(t *testing.T) {
	h := newHarness(t, 10, 10)
	h.present(t, StartRequest{DisplayAssignment: assignment(false)})
	require.True(t, h.c.NavigateTo(6))
	surface := h.factory.get(models.SurfaceIDFor(en))
	navsBefore := len(surface.directives(models.DirectiveNavigate))

	require.NoError(t, h.c.ClearAll())
	require.NoError(t, h.c.ClearAll())
	st := h.c.State()
	assert.True(t, st.IsCleared)
	assert.Equal(t, "cleared", st.Phase())
	assert.Equal(t, 6, st.CurrentSlideIndex)
	assert.NotEmpty(t, surface.directives(models.DirectiveClear))

	require.NoError(t, h.c.ShowAll())
	require.NoError(t, h.c.ShowAll())
	st = h.c.State()
	assert.False(t, st.IsCleared)
	assert.Equal(t, "presenting", st.Phase())

	navs := surface.directives(models.DirectiveNavigate)
	assert.Len(t, navs, navsBefore+2)
	assert.Equal(t, 6, navs[len(navs)-1].Payload.Command.TargetIndex)
}

func TestNavigate_ExitsCleared(t *testing.T) {
	h := newHarness(t, 10, 10)
	h.present(t, StartRequest{DisplayAssignment: assignment(false)})

	require.NoError(t, h.c.ClearAll())
	assert.True(t, h.c.NavigateTo(2))
	assert.False(t, h.c.State().IsCleared)
}

func TestRevealAtStamping(t *testing.T) {
	h := newHarness(t, 10, 10)
	h.present(t, StartRequest{DisplayAssignment: assignment(false), SyncModeEnabled: true})

	now := h.clk.Now()
	require.True(t, h.c.NavigateTo(1))
	cmd := h.factory.get(models.SurfaceIDFor(ru)).lastNavigation().Command
	assert.True(t, cmd.SyncModeEnabled)
	assert.Equal(t, now, cmd.Timestamp)
	assert.Equal(t, now.Add(100*time.Millisecond), cmd.RevealAt)

	require.NoError(t, h.c.SetSyncMode(false))
	require.True(t, h.c.NavigateTo(2))
	cmd = h.factory.get(models.SurfaceIDFor(ru)).lastNavigation().Command
	assert.False(t, cmd.SyncModeEnabled)
	assert.True(t, cmd.RevealAt.IsZero())
}

func TestConfigurationBroadcast(t *testing.T) {
	h := newHarness(t, 10, 10)
	h.present(t, StartRequest{DisplayAssignment: assignment(true), FadeDuration: 300 * time.Millisecond})

	require.NoError(t, h.c.SetFadeDuration(0))
	require.NoError(t, h.c.SetSyncMode(true))
	assert.ErrorIs(t, h.c.SetFadeDuration(-5*time.Millisecond), ErrInvalidFade)

	for _, s := range h.factory.created {
		cfgs := s.directives(models.DirectiveConfigure)
		require.Len(t, cfgs, 2, s.spec.ID)
		assert.Zero(t, cfgs[0].FadeDuration)
		assert.False(t, cfgs[0].SyncMode)
		assert.Zero(t, cfgs[1].FadeDuration)
		assert.True(t, cfgs[1].SyncMode)
	}

	st := h.c.State()
	assert.Zero(t, st.FadeDurationMs)
	assert.True(t, st.SyncModeEnabled)
	assert.Equal(t, 0, st.CurrentSlideIndex)
}

func TestSingerPayloadCarriesNextText(t *testing.T) {
	h := newHarness(t, 10, 10)
	h.present(t, StartRequest{DisplayAssignment: assignment(true), SingerLanguage: ru})

	require.True(t, h.c.NavigateTo(3))
	p := h.factory.get(models.SingerSurface).lastNavigation()
	assert.Equal(t, "/decks/ru/slide_004.jpg", p.ImagePath)
	assert.Equal(t, "5\nru verse 5", p.NextText)
	assert.Equal(t, 10, p.TotalSlides)

	require.True(t, h.c.NavigateTo(9))
	p = h.factory.get(models.SingerSurface).lastNavigation()
	assert.Empty(t, p.NextText)
}

func TestStop_KeepsIndexAndResumes(t *testing.T) {
	h := newHarness(t, 10, 10)
	h.present(t, StartRequest{DisplayAssignment: assignment(false)})
	require.True(t, h.c.NavigateTo(7))
	first := h.factory.created

	require.NoError(t, h.c.Stop())
	st := h.c.State()
	assert.False(t, st.Presenting)
	assert.Equal(t, "idle", st.Phase())
	assert.Equal(t, 7, st.CurrentSlideIndex)
	for _, s := range first {
		assert.Len(t, s.directives(models.DirectiveHide), 1)
		assert.True(t, s.isClosed())
		assert.Error(t, s.ctx.Err())
	}

	h.factory.created = nil
	h.present(t, StartRequest{DisplayAssignment: assignment(false)})
	assert.Equal(t, 7, h.factory.get(models.SurfaceIDFor(ru)).lastNavigation().Command.TargetIndex)
}

func TestHandleKey(t *testing.T) {
	h := newHarness(t, 10, 10)
	assert.False(t, h.c.HandleKey(KeyArrowRight), "keys are ignored while idle")

	h.present(t, StartRequest{DisplayAssignment: assignment(false)})

	tests := []struct {
		key     string
		handled bool
		index   int
		cleared bool
	}{
		{KeyArrowRight, true, 1, false},
		{KeySpace, true, 2, false},
		{KeyPageDown, true, 3, false},
		{KeyEnter, true, 4, false},
		{KeyArrowLeft, true, 3, false},
		{KeyBackspace, true, 2, false},
		{KeyEnd, true, 9, false},
		{KeyArrowRight, false, 9, false},
		{KeyHome, true, 0, false},
		{KeyPageUp, false, 0, false},
		{KeyBlank, true, 0, true},
		{KeyPeriod, true, 0, false},
		{"F5", false, 0, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.handled, h.c.HandleKey(tc.key), tc.key)
		st := h.c.State()
		assert.Equal(t, tc.index, st.CurrentSlideIndex, tc.key)
		assert.Equal(t, tc.cleared, st.IsCleared, tc.key)
	}

	assert.True(t, h.c.HandleKey(KeyEscape))
	assert.False(t, h.c.IsPresenting())
}

func TestEvents(t *testing.T) {
	h := newHarness(t, 10, 10)
	ch, cancel := h.bus.Subscribe()
	defer cancel()

	h.present(t, StartRequest{DisplayAssignment: assignment(false)})
	require.True(t, h.c.NavigateTo(5))

	var changed []models.SlideChanged
	timeout := time.After(time.Second)
	for len(changed) < 2 {
		select {
		case evt := <-ch:
			if evt.Kind == models.EventSlideChanged {
				changed = append(changed, *evt.SlideChanged)
			}
		case <-timeout:
			t.Fatalf("got %d slide-changed events", len(changed))
		}
	}
	assert.Equal(t, models.SlideChanged{CurrentIndex: 0, TotalSlideCount: 10}, changed[0])
	assert.Equal(t, models.SlideChanged{CurrentIndex: 5, TotalSlideCount: 10}, changed[1])
}

func TestLibraryChanged(t *testing.T) {
	h := newHarness(t, 10, 0)
	assert.Zero(t, h.c.State().TotalSlideCount)

	require.NoError(t, h.library.Set(testDeck(en, 8)))
	require.NoError(t, h.c.LibraryChanged())
	assert.Equal(t, 8, h.c.State().TotalSlideCount)

	h.present(t, StartRequest{DisplayAssignment: assignment(false)})
	require.NoError(t, h.library.Set(testDeck(en, 3)))
	require.NoError(t, h.c.LibraryChanged())
	assert.Equal(t, 8, h.c.State().TotalSlideCount, "a running session keeps its decks")
	assert.True(t, h.c.NavigateTo(7))
}
