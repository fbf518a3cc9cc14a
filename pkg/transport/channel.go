/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package transport moves messages between processes through one shared
// region holding a slab pool and a descriptor queue. The sender copies a
// message into a pool slot and queues the slot's offset; the receiver
// resolves the offset, copies the message out and releases the slot.
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/shmslab/api"
	"github.com/srediag/shmslab/internal/logger"
	"github.com/srediag/shmslab/pkg/shm"
)

const (
	// descriptorLen is the queue record of one message: slot offset and
	// message length, both int32.
	descriptorLen = 8

	// queueAlign separates the queue from the pool's last slot.
	queueAlign = 64
)

var (
	// ErrClosed is returned by every operation on a closed channel.
	ErrClosed = errors.New("transport: channel closed")
	// ErrMessageTooLarge is returned when a message does not fit a slot.
	ErrMessageTooLarge = errors.New("transport: message larger than slot")
	// ErrEmptyMessage is returned for zero-length messages.
	ErrEmptyMessage = errors.New("transport: empty message")
	// ErrStaleSlot is returned when a queued descriptor names a slot that is
	// not allocated or is shorter than the recorded length.
	ErrStaleSlot = errors.New("transport: descriptor refers to a free or short slot")

	errFull  = errors.New("transport: channel full")
	errEmpty = errors.New("transport: channel empty")
)

var internalLogger = logger.New("transport", nil)

var _ api.Transport = (*Channel)(nil)

// Channel is one end of a shared memory message channel. Any number of
// goroutines and processes may send and receive on the same region.
type Channel struct {
	config  *Config
	region  *shm.Region
	pool    *shm.Pool
	queue   *shm.Queue
	creator bool
	closed  atomic.Bool
	metrics *instruments
	tracer  trace.Tracer
}

// RegionSize returns the bytes a region needs to hold a channel built from config.
func RegionSize(config *Config) (int, error) {
	if err := VerifyConfig(config); err != nil {
		return 0, err
	}
	poolSize, err := shm.PoolSize(config.SlotSize, config.SlotCount, config.SlotAlign)
	if err != nil {
		return 0, err
	}
	queueSize, err := shm.QueueSize(config.QueueCap)
	if err != nil {
		return 0, err
	}
	return queueOffset(poolSize) + queueSize, nil
}

func queueOffset(poolSize int) int {
	return (poolSize + queueAlign - 1) &^ (queueAlign - 1)
}

// Create creates the named region, replacing any stale object of that
// name, and lays out a fresh channel in it. Closing the returned channel
// removes the name.
func Create(ctx context.Context, config *Config) (*Channel, error) {
	size, err := RegionSize(config)
	if err != nil {
		return nil, err
	}
	region, err := shm.CreateRegion(ctx, config.RegionName, size)
	if err != nil {
		return nil, err
	}
	c, err := New(region.Bytes(), config, true)
	if err != nil {
		_ = region.Close()
		_ = shm.RemoveRegion(ctx, config.RegionName)
		return nil, err
	}
	c.region = region
	internalLogger.Infof("created channel %s: %d slots of %d bytes, queue %d bytes",
		config.RegionName, c.pool.Count(), c.pool.ElemSize(), c.queue.Capacity())
	return c, nil
}

// Open attaches to a channel another process created. Only RegionName and
// the non-layout fields of config are used; the layout is read from the region.
func Open(ctx context.Context, config *Config) (*Channel, error) {
	if err := VerifyConfig(config); err != nil {
		return nil, err
	}
	region, err := shm.OpenRegion(ctx, config.RegionName)
	if err != nil {
		return nil, err
	}
	c, err := New(region.Bytes(), config, false)
	if err != nil {
		_ = region.Close()
		return nil, err
	}
	c.region = region
	internalLogger.Infof("opened channel %s: %d slots of %d bytes, queue %d bytes",
		config.RegionName, c.pool.Count(), c.pool.ElemSize(), c.queue.Capacity())
	return c, nil
}

// New builds a channel over mem, which the caller maps and keeps alive.
// With create set the pool and queue are initialised; otherwise they are
// opened.
func New(mem []byte, config *Config, create bool) (*Channel, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := VerifyConfig(config); err != nil {
		return nil, err
	}
	var (
		pool  *shm.Pool
		queue *shm.Queue
		err   error
	)
	if create {
		pool, err = shm.CreatePool(mem, config.SlotSize, config.SlotCount, config.SlotAlign)
	} else {
		pool, err = shm.OpenPool(mem)
	}
	if err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}
	off := queueOffset(pool.RegionSize())
	if off >= len(mem) {
		return nil, fmt.Errorf("queue: %w: no room after pool of %d bytes", shm.ErrRegionTooSmall, off)
	}
	if create {
		queue, err = shm.CreateQueue(mem[off:], config.QueueCap)
	} else {
		queue, err = shm.OpenQueue(mem[off:])
	}
	if err != nil {
		return nil, fmt.Errorf("queue: %w", err)
	}
	metrics, err := newInstruments(config.Meter, config.RegionName)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	return &Channel{
		config:  config,
		pool:    pool,
		queue:   queue,
		creator: create,
		metrics: metrics,
		tracer:  tracerOrNoop(config.Tracer),
	}, nil
}

// TrySend copies data into a free slot and queues it. It returns false
// with a nil error when no slot or no queue space is free.
func (c *Channel) TrySend(data []byte) (bool, error) {
	return c.send(context.Background(), data)
}

func (c *Channel) send(ctx context.Context, data []byte) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	if len(data) == 0 {
		return false, ErrEmptyMessage
	}
	if len(data) > c.pool.ElemSize() {
		return false, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), c.pool.ElemSize())
	}
	slot := c.pool.Allocate()
	if slot == nil {
		c.metrics.full.Add(ctx, 1, c.metrics.attrs)
		return false, nil
	}
	copy(slot, data)
	var desc [descriptorLen]byte
	binary.NativeEndian.PutUint32(desc[:4], uint32(c.pool.Offset(slot)))
	binary.NativeEndian.PutUint32(desc[4:], uint32(len(data)))
	n, err := c.queue.Put(desc[:])
	if err != nil || n == 0 {
		c.pool.Release(slot)
		if err == nil {
			c.metrics.full.Add(ctx, 1, c.metrics.attrs)
		}
		return false, err
	}
	c.metrics.sent.Add(ctx, 1, c.metrics.attrs)
	c.metrics.size.Record(ctx, int64(len(data)), c.metrics.attrs)
	return true, nil
}

// TryReceive takes the oldest message off the channel. It returns nil with
// a nil error when the channel is empty.
func (c *Channel) TryReceive() ([]byte, error) {
	var out []byte
	ok, err := c.receive(context.Background(), func(n int) []byte {
		out = make([]byte, n)
		return out
	})
	if !ok {
		return nil, err
	}
	return out, err
}

// receive dequeues one descriptor and copies the message into the buffer
// alloc returns for its length.
func (c *Channel) receive(ctx context.Context, alloc func(n int) []byte) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	var desc [descriptorLen]byte
	n, err := c.queue.Get(desc[:])
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if n != descriptorLen {
		return false, fmt.Errorf("%w: descriptor of %d bytes", shm.ErrCorruptHeader, n)
	}
	off := int32(binary.NativeEndian.Uint32(desc[:4]))
	length := int(int32(binary.NativeEndian.Uint32(desc[4:])))
	slot := c.pool.Pointer(off)
	if slot == nil {
		return false, fmt.Errorf("%w: slot %d", ErrStaleSlot, off)
	}
	if length <= 0 || length > len(slot) {
		c.pool.Release(slot)
		return false, fmt.Errorf("%w: slot %d, length %d", ErrStaleSlot, off, length)
	}
	copy(alloc(length), slot[:length])
	c.pool.Release(slot)
	c.metrics.received.Add(ctx, 1, c.metrics.attrs)
	return true, nil
}

// Pool returns the channel's slab pool.
func (c *Channel) Pool() *shm.Pool { return c.pool }

// Queue returns the channel's descriptor queue.
func (c *Channel) Queue() *shm.Queue { return c.queue }

func (c *Channel) Name() string { return c.config.RegionName }

// Close detaches from the region. The creating end also removes the name.
func (c *Channel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if c.region == nil {
		return nil
	}
	err := c.region.Close()
	if c.creator {
		err = errors.Join(err, shm.RemoveRegion(context.Background(), c.config.RegionName))
	}
	internalLogger.Infof("closed channel %s", c.config.RegionName)
	return err
}
