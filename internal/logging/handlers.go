package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Sink is one named destination of a FanoutHandler.
type Sink struct {
	Name    string
	Handler slog.Handler
}

// FanoutHandler hands every record to each enabled sink. A failing sink does
// not stop the others; its failures are counted by name.
type FanoutHandler struct {
	sinks    []Sink
	failures map[string]*atomic.Uint64
}

// NewFanoutHandler drops sinks without a handler.
func NewFanoutHandler(sinks ...Sink) *FanoutHandler {
	h := &FanoutHandler{failures: make(map[string]*atomic.Uint64, len(sinks))}
	for _, s := range sinks {
		if s.Handler == nil {
			continue
		}
		h.sinks = append(h.sinks, s)
		if _, ok := h.failures[s.Name]; !ok {
			h.failures[s.Name] = new(atomic.Uint64)
		}
	}
	return h
}

// Enabled reports whether any sink takes records at level.
func (h *FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range h.sinks {
		if s.Handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *FanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, s := range h.sinks {
		if !s.Handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handler.Handle(ctx, r.Clone()); err != nil {
			h.failures[s.Name].Add(1)
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (h *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(in slog.Handler) slog.Handler { return in.WithAttrs(attrs) })
}

func (h *FanoutHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.derive(func(in slog.Handler) slog.Handler { return in.WithGroup(name) })
}

// derive shares the failure counters with h.
func (h *FanoutHandler) derive(f func(slog.Handler) slog.Handler) *FanoutHandler {
	out := &FanoutHandler{sinks: make([]Sink, len(h.sinks)), failures: h.failures}
	for i, s := range h.sinks {
		out.sinks[i] = Sink{Name: s.Name, Handler: f(s.Handler)}
	}
	return out
}

// Failures returns how many records each sink failed to write.
func (h *FanoutHandler) Failures() map[string]uint64 {
	out := make(map[string]uint64, len(h.failures))
	for name, n := range h.failures {
		out[name] = n.Load()
	}
	return out
}

// ContextProvider returns the attributes describing the live battle.
type ContextProvider func() []slog.Attr

// ContextHandler adds the provider's attributes to every record that does
// not already carry a value under the same key.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
	bound    map[string]bool
}

func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{inner: inner, provider: provider}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider == nil {
		return h.inner.Handle(ctx, r)
	}
	attrs := h.provider()
	if len(attrs) == 0 {
		return h.inner.Handle(ctx, r)
	}

	present := make(map[string]bool, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		present[a.Key] = true
		return true
	})
	for _, a := range attrs {
		if !present[a.Key] && !h.bound[a.Key] {
			r.AddAttrs(a)
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make(map[string]bool, len(h.bound)+len(attrs))
	for k := range h.bound {
		bound[k] = true
	}
	for _, a := range attrs {
		bound[a.Key] = true
	}
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), provider: h.provider, bound: bound}
}

// WithGroup stops adding battle attributes, which would otherwise be nested
// under the group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.inner.WithGroup(name)
}
