// Package eventbus fans session events out to in-process subscribers.
package eventbus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/broadside-sim/broadside/pkg/core"
)

// Any subscribes to every event type.
const Any core.EventType = "*"

// Handler receives one event. A panicking handler is logged and skipped.
type Handler func(core.Event)

type subscription struct {
	id uint64
	h  Handler
}

// Bus is safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[core.EventType][]subscription
	nextID uint64
	logger *slog.Logger
}

// New returns an empty bus. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[core.EventType][]subscription),
		logger: logger,
	}
}

// Subscribe registers h for typ and returns a function that removes it.
func (b *Bus) Subscribe(typ core.EventType, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[typ] = append(b.subs[typ], subscription{id: id, h: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[typ]
			for i, s := range list {
				if s.id == id {
					b.subs[typ] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// Emit calls every handler for ev.Type, then every Any handler, in
// subscription order. Handlers run on the caller's goroutine.
func (b *Bus) Emit(ev core.Event) {
	b.mu.RLock()
	targets := make([]subscription, 0, len(b.subs[ev.Type])+len(b.subs[Any]))
	targets = append(targets, b.subs[ev.Type]...)
	if ev.Type != Any {
		targets = append(targets, b.subs[Any]...)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		b.call(s.h, ev)
	}
}

func (b *Bus) call(h Handler, ev core.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "event", ev.Type, "error", fmt.Sprint(r))
		}
	}()
	h(ev)
}

// Clear drops every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.subs = make(map[core.EventType][]subscription)
	b.mu.Unlock()
}

// ListenerCount reports the handlers registered for typ.
func (b *Bus) ListenerCount(typ core.EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[typ])
}
