package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/broadside-sim/broadside/internal/engine"

type metrics struct {
	turns      metric.Int64Counter
	launched   metric.Int64Counter
	intercepts metric.Int64Counter
	faults     metric.Int64Counter
}

// newMetrics uses the global meter provider, a no-op until one is installed.
func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)
	out := &metrics{}
	var err error

	if out.turns, err = m.Int64Counter("engine.turns.executed",
		metric.WithDescription("Turns resolved")); err != nil {
		return nil, fmt.Errorf("creating turns counter: %w", err)
	}
	if out.launched, err = m.Int64Counter("engine.missiles.launched",
		metric.WithDescription("Missiles created by either side")); err != nil {
		return nil, fmt.Errorf("creating missiles counter: %w", err)
	}
	if out.intercepts, err = m.Int64Counter("engine.missiles.intercepted",
		metric.WithDescription("Successful point-defense intercepts")); err != nil {
		return nil, fmt.Errorf("creating intercepts counter: %w", err)
	}
	if out.faults, err = m.Int64Counter("engine.faults.recovered",
		metric.WithDescription("Panics recovered inside a turn")); err != nil {
		return nil, fmt.Errorf("creating faults counter: %w", err)
	}
	return out, nil
}

func (m *metrics) record(t *turn) {
	ctx := context.Background()
	over := attribute.Bool("game_over", t.st.GameOver)
	m.turns.Add(ctx, 1, metric.WithAttributes(over))
	if t.launched > 0 {
		m.launched.Add(ctx, int64(t.launched))
	}
	if t.intercepts > 0 {
		m.intercepts.Add(ctx, int64(t.intercepts))
	}
	if t.faults > 0 {
		m.faults.Add(ctx, int64(t.faults))
	}
}
