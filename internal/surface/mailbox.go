package surface

import (
	"sync"

	"syncdisplay/internal/models"
)

// mailbox is the non-blocking inbox of a surface.
//
// Directives are kept in arrival order, except that a new navigate directive
// replaces any navigate still waiting: only the newest target matters.
type mailbox struct {
	mu        sync.Mutex
	queue     []models.Directive
	ready     chan struct{}
	closed    bool
	coalesced uint64
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

// put enqueues d and wakes the loop. It reports false after close.
func (m *mailbox) put(d models.Directive) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	if d.Kind == models.DirectiveNavigate {
		kept := m.queue[:0]
		for _, queued := range m.queue {
			if queued.Kind == models.DirectiveNavigate {
				m.coalesced++
				continue
			}
			kept = append(kept, queued)
		}
		m.queue = kept
	}
	m.queue = append(m.queue, d)

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return true
}

// drain takes every queued directive.
func (m *mailbox) drain() []models.Directive {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.queue
	m.queue = nil
	return out
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.queue = nil
	m.mu.Unlock()
}

func (m *mailbox) coalescedCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coalesced
}
