// Package events fans out core notifications to any number of observers.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"syncdisplay/internal/models"
)

const defaultBuffer = 64

// Publisher is the narrow interface producers depend on.
type Publisher interface {
	Publish(evt models.Event)
}

// Bus delivers events to subscribers without ever blocking the publisher.
// A subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan models.Event
	nextID uint64
	drops  uint64
	now    func() time.Time
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[uint64]chan models.Event),
		now:  time.Now,
	}
}

// Subscribe returns a channel of events and a cancel function that closes it.
func (b *Bus) Subscribe() (<-chan models.Event, func()) {
	ch := make(chan models.Event, defaultBuffer)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish stamps evt and offers it to every subscriber.
func (b *Bus) Publish(evt models.Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = b.now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			atomic.AddUint64(&b.drops, 1)
		}
	}
}

// Drops returns how many deliveries were skipped because a subscriber was full.
func (b *Bus) Drops() uint64 {
	return atomic.LoadUint64(&b.drops)
}

// SlideChanged builds a slide-changed event.
func SlideChanged(current, total int) models.Event {
	return models.Event{
		Kind:         models.EventSlideChanged,
		SlideChanged: &models.SlideChanged{CurrentIndex: current, TotalSlideCount: total},
	}
}

// ConversionProgress builds a conversion-progress event.
func ConversionProgress(lang models.Language, percent int) models.Event {
	return models.Event{
		Kind:               models.EventConversionProgress,
		ConversionProgress: &models.ConversionProgress{Language: lang, Percent: percent},
	}
}

// ConversionFinished builds a conversion-finished event; err may be nil.
func ConversionFinished(lang models.Language, slides int, err error) models.Event {
	done := &models.ConversionFinished{Language: lang, SlideCount: slides}
	if err != nil {
		done.Error = err.Error()
	}
	return models.Event{Kind: models.EventConversionFinished, ConversionFinished: done}
}

// DisplaysUpdated builds a displays-updated event.
func DisplaysUpdated(outputs []models.PhysicalOutput) models.Event {
	return models.Event{
		Kind:            models.EventDisplaysUpdated,
		DisplaysUpdated: &models.DisplaysUpdated{Outputs: outputs},
	}
}

// PresentationState builds a presentation-state event.
func PresentationState(state models.PresentationState) models.Event {
	return models.Event{Kind: models.EventPresentationState, Presentation: &state}
}
