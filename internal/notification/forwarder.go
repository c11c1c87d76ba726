package notification

import (
	"fmt"
	"sync"
)

// Handler consumes notifications. Handle must not retain n beyond the call unless it clones nodes.
type Handler interface {
	Handle(n Notification) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(n Notification) error

func (f HandlerFunc) Handle(n Notification) error { return f(n) }

// Forwarder fans notifications out to subscribers in subscription order.
type Forwarder struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers []subscription
}

type subscription struct {
	id uint64
	h  Handler
}

// Subscribe registers h and returns a function that removes it.
func (f *Forwarder) Subscribe(h Handler) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.handlers = append(f.handlers, subscription{id: id, h: h})
	f.mu.Unlock()
	return func() { f.unsubscribe(id) }
}

func (f *Forwarder) unsubscribe(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.handlers {
		if s.id == id {
			f.handlers = append(f.handlers[:i:i], f.handlers[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscribers.
func (f *Forwarder) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.handlers)
}

// Handle delivers n to every subscriber and stops at the first error.
func (f *Forwarder) Handle(n Notification) error {
	f.mu.RLock()
	subs := append([]subscription(nil), f.handlers...)
	f.mu.RUnlock()
	for _, s := range subs {
		if err := s.h.Handle(n); err != nil {
			return fmt.Errorf("notification: handler %d rejected %s: %w", s.id, n.Kind(), err)
		}
	}
	return nil
}
