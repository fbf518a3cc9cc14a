package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/panjf2000/ants/v2"
	"github.com/valyala/bytebufferpool"
)

// dispatchPoll is how long the dispatcher waits on an empty backlog before
// checking whether Serve is stopping.
const dispatchPoll = 10 * time.Millisecond

// Handler processes one message. msg is only valid until Handler returns.
type Handler func(ctx context.Context, msg []byte)

// Serve receives messages until ctx is done and runs handler for each on a
// pool of ServeWorkers goroutines. Messages already taken off the channel
// are handled before Serve returns. It returns nil on cancellation and the
// first receive error otherwise; ErrStaleSlot is logged and skipped.
func (c *Channel) Serve(ctx context.Context, handler Handler) error {
	workers, err := ants.NewPool(c.config.ServeWorkers, ants.WithPanicHandler(func(p interface{}) {
		internalLogger.Errorf("handler panic on %s: %v", c.config.RegionName, p)
	}))
	if err != nil {
		return err
	}
	defer workers.Release()

	backlog := queue.NewRingBuffer(uint64(c.config.ServeBacklog))
	defer backlog.Dispose()

	var (
		inflight sync.WaitGroup
		stopping atomic.Bool
		done     = make(chan struct{})
	)
	go func() {
		defer close(done)
		for {
			item, err := backlog.Poll(dispatchPoll)
			if errors.Is(err, queue.ErrTimeout) {
				if stopping.Load() && backlog.Len() == 0 {
					return
				}
				continue
			}
			if err != nil {
				return
			}
			buf := item.(*bytebufferpool.ByteBuffer)
			inflight.Add(1)
			if err := workers.Submit(func() {
				defer inflight.Done()
				defer bytebufferpool.Put(buf)
				handler(ctx, buf.B)
			}); err != nil {
				inflight.Done()
				bytebufferpool.Put(buf)
				internalLogger.Errorf("dropped message on %s: %s", c.config.RegionName, err.Error())
			}
		}
	}()

	err = c.poll(ctx, backlog)
	stopping.Store(true)
	<-done
	inflight.Wait()
	return err
}

// poll moves messages from the channel into backlog until ctx is done.
func (c *Channel) poll(ctx context.Context, backlog *queue.RingBuffer) error {
	b := c.newBackOff()
	for {
		if ctx.Err() != nil {
			return nil
		}
		buf := bytebufferpool.Get()
		ok, err := c.receive(ctx, func(n int) []byte {
			if cap(buf.B) < n {
				buf.B = make([]byte, n)
			}
			buf.B = buf.B[:n]
			return buf.B
		})
		switch {
		case errors.Is(err, ErrStaleSlot):
			bytebufferpool.Put(buf)
			internalLogger.Warnf("skip descriptor on %s: %s", c.config.RegionName, err.Error())
			continue
		case err != nil:
			bytebufferpool.Put(buf)
			return err
		case !ok:
			bytebufferpool.Put(buf)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(b.NextBackOff()):
			}
			continue
		}
		b.Reset()
		if err := backlog.Put(buf); err != nil {
			bytebufferpool.Put(buf)
			return err
		}
	}
}
