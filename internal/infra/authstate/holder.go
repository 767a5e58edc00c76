// Package authstate keeps the process-wide current session and fans auth
// changes out to subscribers. Auth providers embed a Holder.
package authstate

import (
	"sync"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"
)

// Holder stores the current session. The zero value is ready to use.
type Holder struct {
	mu      sync.RWMutex
	session *domain.Session
	subs    map[int]func(port.AuthEvent)
	nextID  int
}

// Current returns the current session, or nil when signed out.
func (h *Holder) Current() *domain.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.session
}

// Set replaces the session and notifies subscribers outside the lock.
func (h *Holder) Set(evType port.AuthEventType, s *domain.Session) {
	h.mu.Lock()
	h.session = s
	subs := make([]func(port.AuthEvent), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()

	ev := port.AuthEvent{Type: evType, Session: s}
	for _, fn := range subs {
		fn(ev)
	}
}

// Subscribe registers fn and returns a func removing it.
func (h *Holder) Subscribe(fn func(port.AuthEvent)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]func(port.AuthEvent))
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}
