package transport

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func (c *Channel) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryInterval
	b.MaxInterval = c.config.MaxRetryInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Send places data on the channel, waiting with exponential backoff while
// it is full. It gives up when ctx is done or, if ctx has no deadline,
// after the configured SendTimeout.
func (c *Channel) Send(ctx context.Context, data []byte) error {
	if _, ok := ctx.Deadline(); !ok && c.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.SendTimeout)
		defer cancel()
	}
	ctx, span := c.tracer.Start(ctx, "shmslab.transport.Send",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("shmslab.region", c.config.RegionName),
			attribute.Int("shmslab.message.size", len(data)),
		))
	defer span.End()

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		ok, err := c.send(ctx, data)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errFull
		}
		return nil
	}, backoff.WithContext(c.newBackOff(), ctx))
	span.SetAttributes(attribute.Int("shmslab.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Receive takes the oldest message off the channel, waiting with
// exponential backoff while it is empty, until ctx is done.
func (c *Channel) Receive(ctx context.Context) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "shmslab.transport.Receive",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("shmslab.region", c.config.RegionName)))
	defer span.End()

	msg, err := backoff.RetryWithData(func() ([]byte, error) {
		var out []byte
		ok, err := c.receive(ctx, func(n int) []byte {
			out = make([]byte, n)
			return out
		})
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if !ok {
			return nil, errEmpty
		}
		return out, nil
	}, backoff.WithContext(c.newBackOff(), ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("shmslab.message.size", len(msg)))
	return msg, nil
}
