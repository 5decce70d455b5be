package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher closed")

// Queued is the result of a request accepted by a buffered handler.
const Queued = "queued"

// Request is a named battle request with its raw arguments.
type Request struct {
	Name     string
	Args     []string
	Received time.Time
}

// HandlerFunc processes a request and returns a result.
type HandlerFunc func(Request) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes requests to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	metrics  *instruments

	mu      sync.RWMutex
	buffers map[string]chan Request
	closed  bool
	wg      sync.WaitGroup
}

// New creates a Dispatcher recording metrics on the global OTel meter
// (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	return NewWithMeter(logger, globalMeter())
}

// NewWithMeter creates a Dispatcher recording metrics on m.
func NewWithMeter(logger Logger, m metric.Meter) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Request),
		logger:   logger,
	}
	inst, err := newInstruments(m, d.queueDepths)
	if err != nil {
		return nil, err
	}
	d.metrics = inst
	return d, nil
}

func (d *Dispatcher) queueDepths(observe func(name string, depth int)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for name, buf := range d.buffers {
		observe(name, len(buf))
	}
}

// Register adds a handler for the given request name with optional configuration.
func (d *Dispatcher) Register(name string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(name, cfg.bufferSize, cfg.blocking, handler)
	}

	if cfg.logged {
		handler = d.withLogging(name, handler)
	}

	d.mu.Lock()
	d.handlers[name] = handler
	d.mu.Unlock()
}

// Dispatch routes a request to its registered handler.
func (d *Dispatcher) Dispatch(r Request) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[r.Name]
	closed := d.closed
	d.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", r.Name)
	}
	if r.Received.IsZero() {
		r.Received = time.Now()
	}
	if d.isBuffered(r.Name) {
		return h(r)
	}
	result, err := h(r)
	d.metrics.done(r, err)
	return result, err
}

func (d *Dispatcher) isBuffered(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.buffers[name]
	return ok
}

// HasHandler returns true if a handler is registered for the name.
func (d *Dispatcher) HasHandler(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[name]
	return ok
}

// Close stops accepting requests and waits for buffered handlers to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) withBuffer(name string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Request, size)

	d.mu.Lock()
	d.buffers[name] = buffer
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for r := range buffer {
			_, err := h(r)
			if err != nil {
				d.logger.Error("buffered request failed", "request", name, "error", err)
			}
			d.metrics.done(r, err)
		}
	}()

	// The read lock keeps Close from closing the channel mid-send.
	if blocking {
		return func(r Request) (any, error) {
			d.mu.RLock()
			defer d.mu.RUnlock()
			if d.closed {
				return nil, ErrClosed
			}
			buffer <- r
			return Queued, nil
		}
	}

	return func(r Request) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, ErrClosed
		}
		select {
		case buffer <- r:
			return Queued, nil
		default:
			d.metrics.dropped.Add(context.Background(), 1, requestAttr(name))
			return nil, fmt.Errorf("queue full: %s", name)
		}
	}
}

func (d *Dispatcher) withLogging(name string, h HandlerFunc) HandlerFunc {
	return func(r Request) (any, error) {
		start := time.Now()
		d.logger.Debug("handling request", "request", name, "args", len(r.Args))

		result, err := h(r)

		if err != nil {
			d.logger.Error("request failed", "request", name, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("request complete", "request", name, "duration", time.Since(start))
		}

		return result, err
	}
}
