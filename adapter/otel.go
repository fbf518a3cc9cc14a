package adapter

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RegisterOTel reports the pools and queues of c as observable gauges on
// meter. Unregister the returned registration before dropping c.
func RegisterOTel(meter metric.Meter, c *Collector) (metric.Registration, error) {
	inUse, err1 := meter.Int64ObservableGauge("shmslab.pool.slots_in_use",
		metric.WithDescription("Allocated slots."), metric.WithUnit("{slot}"))
	slots, err2 := meter.Int64ObservableGauge("shmslab.pool.slots",
		metric.WithDescription("Slots in the pool."), metric.WithUnit("{slot}"))
	pending, err3 := meter.Int64ObservableGauge("shmslab.queue.pending",
		metric.WithDescription("Bytes held by unread records."), metric.WithUnit("By"))
	capacity, err4 := meter.Int64ObservableGauge("shmslab.queue.capacity",
		metric.WithDescription("Size of the record buffer."), metric.WithUnit("By"))
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return nil, err
	}
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for name, p := range c.pools.Items() {
			st := p.Stats()
			attrs := metric.WithAttributes(attribute.String("name", name))
			o.ObserveInt64(inUse, int64(st.InUse), attrs)
			o.ObserveInt64(slots, int64(st.Count), attrs)
		}
		for name, q := range c.queues.Items() {
			st := q.Stats()
			attrs := metric.WithAttributes(attribute.String("name", name))
			o.ObserveInt64(pending, int64(st.Pending()), attrs)
			o.ObserveInt64(capacity, int64(st.Capacity), attrs)
		}
		return nil
	}, inUse, slots, pending, capacity)
}
