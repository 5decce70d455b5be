// Package monitor periodically snapshots recorder status to a file and
// exposes it as OTel gauges.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/broadside-sim/broadside/internal/worker"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// DefaultInterval is used when Dependencies.Interval is zero.
const DefaultInterval = time.Second

// StatusSource reports the live battle status.
type StatusSource interface {
	Status() worker.Status
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source StatusSource
	// StatusPath receives the latest status as JSON. Empty disables the file.
	StatusPath string
	Interval   time.Duration
	Meter      metric.Meter
	Logger     *slog.Logger
}

// Service manages status monitoring
type Service struct {
	deps Dependencies
	log  *slog.Logger
	reg  metric.Registration

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service and registers its gauges.
func NewService(deps Dependencies) (*Service, error) {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Meter == nil {
		deps.Meter = noop.Meter{}
	}
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Service{deps: deps, log: log.With("component", "monitor")}

	turn, err := deps.Meter.Int64ObservableGauge("battle.turn",
		metric.WithDescription("Current turn of the live battle"))
	if err != nil {
		return nil, err
	}
	pendingTurns, err := deps.Meter.Int64ObservableGauge("storage.pending.turns",
		metric.WithDescription("Turns waiting to be written"))
	if err != nil {
		return nil, err
	}
	pendingEvents, err := deps.Meter.Int64ObservableGauge("storage.pending.events",
		metric.WithDescription("Events waiting to be written"))
	if err != nil {
		return nil, err
	}
	lastWrite, err := deps.Meter.Float64ObservableGauge("storage.write.duration",
		metric.WithDescription("Duration of the last storage write"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	s.reg, err = deps.Meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		st := deps.Source.Status()
		o.ObserveInt64(turn, int64(st.Turn))
		o.ObserveInt64(pendingTurns, int64(st.PendingTurns))
		o.ObserveInt64(pendingEvents, int64(st.PendingEvents))
		o.ObserveFloat64(lastWrite, float64(st.LastWriteDuration.Microseconds())/1000)
		return nil
	}, turn, pendingTurns, pendingEvents, lastWrite)
	if err != nil {
		return nil, fmt.Errorf("registering status gauges: %w", err)
	}
	return s, nil
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// WriteStatus writes the current status to StatusPath.
func (s *Service) WriteStatus() error {
	if s.deps.StatusPath == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.deps.Source.Status(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.deps.StatusPath), 0755); err != nil {
		return fmt.Errorf("creating status dir: %w", err)
	}
	tmp := s.deps.StatusPath + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return os.Rename(tmp, s.deps.StatusPath)
}

// Start starts the status monitor goroutine
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(s.stopChan, s.done)
}

func (s *Service) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	s.log.Debug("Starting status monitor", "interval", s.deps.Interval, "path", s.deps.StatusPath)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.WriteStatus(); err != nil {
				s.log.Error("Error writing status file", "error", err)
			}
		}
	}
}

// Stop stops the status monitor, writes a final status and unregisters
// the gauges.
func (s *Service) Stop() error {
	s.mu.Lock()
	if s.isRunning {
		close(s.stopChan)
		<-s.done
		s.isRunning = false
	}
	s.mu.Unlock()

	err := s.WriteStatus()
	if s.reg != nil {
		if uerr := s.reg.Unregister(); uerr != nil && err == nil {
			err = uerr
		}
	}
	return err
}
