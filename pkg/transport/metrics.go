package transport

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/srediag/shmslab/pkg/transport"

// instruments are the per-channel OTel counters. Every measurement carries
// the region name.
type instruments struct {
	attrs    metric.MeasurementOption
	sent     metric.Int64Counter
	received metric.Int64Counter
	full     metric.Int64Counter
	size     metric.Int64Histogram
}

func newInstruments(m metric.Meter, region string) (*instruments, error) {
	if m == nil {
		m = metricnoop.NewMeterProvider().Meter(instrumentationName)
	}
	sent, err1 := m.Int64Counter("shmslab.transport.sent",
		metric.WithDescription("Messages placed on the channel."),
		metric.WithUnit("{message}"))
	received, err2 := m.Int64Counter("shmslab.transport.received",
		metric.WithDescription("Messages taken off the channel."),
		metric.WithUnit("{message}"))
	full, err3 := m.Int64Counter("shmslab.transport.full",
		metric.WithDescription("Send attempts refused because no slot or queue space was free."),
		metric.WithUnit("{attempt}"))
	size, err4 := m.Int64Histogram("shmslab.transport.message.size",
		metric.WithDescription("Size of sent messages."),
		metric.WithUnit("By"))
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return nil, err
	}
	return &instruments{
		attrs:    metric.WithAttributes(attribute.String("region", region)),
		sent:     sent,
		received: received,
		full:     full,
		size:     size,
	}, nil
}

func tracerOrNoop(t trace.Tracer) trace.Tracer {
	if t == nil {
		return tracenoop.NewTracerProvider().Tracer(instrumentationName)
	}
	return t
}
