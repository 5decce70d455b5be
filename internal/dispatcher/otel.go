package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/broadside-sim/broadside/internal/dispatcher"

// instruments records request throughput per request name.
type instruments struct {
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

func globalMeter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// newInstruments creates the instruments on m. depths is called on every
// collection and reports each buffered queue through observe.
func newInstruments(m metric.Meter, depths func(observe func(name string, depth int))) (*instruments, error) {
	var (
		in  instruments
		err error
	)

	in.queueSize, err = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Current number of requests in queue"))
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		depths(func(name string, depth int) {
			o.ObserveInt64(in.queueSize, int64(depth), requestAttr(name))
		})
		return nil
	}, in.queueSize)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	if in.processed, err = m.Int64Counter("dispatcher.requests.processed",
		metric.WithDescription("Total requests processed")); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if in.dropped, err = m.Int64Counter("dispatcher.requests.dropped",
		metric.WithDescription("Total requests dropped due to full queue")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	if in.failed, err = m.Int64Counter("dispatcher.requests.failed",
		metric.WithDescription("Total requests whose handler returned an error")); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if in.duration, err = m.Float64Histogram("dispatcher.request.duration",
		metric.WithDescription("Time from receipt to handler completion"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return &in, nil
}

func requestAttr(name string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("request", name))
}

// done records one handled request. Received is used so buffered requests
// include their time in the queue.
func (in *instruments) done(r Request, err error) {
	ctx := context.Background()
	attr := requestAttr(r.Name)
	in.processed.Add(ctx, 1, attr)
	if err != nil {
		in.failed.Add(ctx, 1, attr)
	}
	if !r.Received.IsZero() {
		in.duration.Record(ctx, float64(time.Since(r.Received).Microseconds())/1000, attr)
	}
}
