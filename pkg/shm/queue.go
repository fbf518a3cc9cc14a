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

package shm

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	internalshm "github.com/srediag/shmslab/internal/shm"
)

// QueueStats is a point-in-time view of a queue.
type QueueStats struct {
	Capacity int
	ReadPos  int
	WritePos int
	Opens    int
}

// Pending returns the bytes held by unread records, headers included.
func (s QueueStats) Pending() int {
	return s.WritePos - s.ReadPos
}

// Queue is a bounded FIFO of length-prefixed records embedded in a shared
// region. It is not a ring: positions only move forward and consumed space
// is reclaimed by shifting the unread bytes back to offset 0 when a Put
// would otherwise not fit.
//
// Region layout:
//
//	[header][buffer: capacity bytes of (int32 length, payload) records]
type Queue struct {
	hdr  *queueHeader
	buf  []byte
	size int32
	lock internalshm.Mutex
}

// QueueSize returns the number of bytes a queue with a capacity-byte buffer needs.
func QueueSize(capacity int) (int, error) {
	if capacity <= 0 || capacity > math.MaxInt32 {
		return 0, fmt.Errorf("%w: capacity %d", ErrInvalidSize, capacity)
	}
	return queueHeaderSize + capacity, nil
}

// CreateQueue initialises an empty queue in place at the start of region.
func CreateQueue(region []byte, capacity int) (*Queue, error) {
	total, err := QueueSize(capacity)
	if err != nil {
		return nil, err
	}
	if len(region) < total {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrRegionTooSmall, total, len(region))
	}
	if !baseAligned(region) {
		return nil, ErrMisalignedRegion
	}
	q := newQueue(region, int32(capacity))
	h := q.hdr
	atomic.StoreUint32(&h.flag, 0)
	h.size = uint64(capacity)
	h.readpos = 0
	h.writepos = 0
	atomic.StoreUint32(&h.opens, 0)
	q.lock.Init()
	atomic.StoreUint32(&h.flag, queueFlag)
	return q, nil
}

// OpenQueue returns a handle over a queue another participant created in region.
func OpenQueue(region []byte) (*Queue, error) {
	if len(region) < queueHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrRegionTooSmall, len(region))
	}
	if !baseAligned(region) {
		return nil, ErrMisalignedRegion
	}
	h := (*queueHeader)(unsafe.Pointer(unsafe.SliceData(region)))
	if atomic.LoadUint32(&h.flag) != queueFlag {
		return nil, ErrNotQueue
	}
	size := h.size
	if size == 0 || size > math.MaxInt32 {
		return nil, fmt.Errorf("%w: capacity %d", ErrCorruptHeader, size)
	}
	if uint64(len(region)) < uint64(queueHeaderSize)+size {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrRegionTooSmall, uint64(queueHeaderSize)+size, len(region))
	}
	q := newQueue(region, int32(size))
	atomic.AddUint32(&h.opens, 1)
	return q, nil
}

func newQueue(region []byte, size int32) *Queue {
	h := (*queueHeader)(unsafe.Pointer(unsafe.SliceData(region)))
	end := queueHeaderSize + int(size)
	return &Queue{
		hdr:  h,
		buf:  region[queueHeaderSize:end:end],
		size: size,
		lock: internalshm.NewMutex(unsafe.Pointer(&h.lock)),
	}
}

// positions returns readpos and writepos after checking
// 0 <= readpos <= writepos <= size. Caller holds the lock.
func (q *Queue) positions() (int32, int32, error) {
	r, w := q.hdr.readpos, q.hdr.writepos
	if r < 0 || r > w || w > q.size {
		return 0, 0, fmt.Errorf("%w: readpos %d, writepos %d, size %d", ErrCorruptHeader, r, w, q.size)
	}
	return r, w, nil
}

// headLen returns the payload length of the record at r. Caller holds the
// lock and has checked r < w.
func (q *Queue) headLen(r, w int32) (int, error) {
	if w-r < recordHeaderLen {
		return 0, fmt.Errorf("%w: truncated record header at %d", ErrCorruptHeader, r)
	}
	n := int32(binary.NativeEndian.Uint32(q.buf[r:]))
	if n <= 0 || int64(n) > int64(w-r-recordHeaderLen) {
		return 0, fmt.Errorf("%w: record length %d at %d", ErrCorruptHeader, n, r)
	}
	return int(n), nil
}

// Put appends data as one record and returns len(data). It returns 0 with
// a nil error when the record does not fit even after reclaiming consumed
// space; the queue is then left untouched.
func (q *Queue) Put(data []byte) (int, error) {
	n := len(data)
	if n == 0 {
		return 0, ErrEmptyRecord
	}
	if int64(n) > math.MaxInt32-recordHeaderLen {
		return 0, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, n)
	}
	need := int64(n) + recordHeaderLen

	q.lock.Lock()
	defer q.lock.Unlock()
	r, w, err := q.positions()
	if err != nil {
		return 0, err
	}
	if int64(w)+need > int64(q.size) {
		if int64(w-r)+need > int64(q.size) {
			return 0, nil
		}
		q.compact(r, w)
		w -= r
	}
	binary.NativeEndian.PutUint32(q.buf[w:], uint32(n))
	copy(q.buf[w+recordHeaderLen:], data)
	q.hdr.writepos = w + int32(need)
	return n, nil
}

// compact moves the unread bytes [r, w) to the start of the buffer.
func (q *Queue) compact(r, w int32) {
	if r == 0 {
		return
	}
	copy(q.buf, q.buf[r:w])
	q.hdr.readpos = 0
	q.hdr.writepos = w - r
}

// Get copies the oldest record into buf and returns its length. It returns
// 0 with a nil error when the queue is empty. When the record is longer
// than buf it returns an error wrapping ErrShortBuffer and leaves the record
// in place, so the caller can retry with a larger buffer (see NextLen).
func (q *Queue) Get(buf []byte) (int, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	r, w, err := q.positions()
	if err != nil {
		return 0, err
	}
	if r == w {
		return 0, nil
	}
	n, err := q.headLen(r, w)
	if err != nil {
		return 0, err
	}
	if n > len(buf) {
		return 0, fmt.Errorf("%w: record %d bytes, buffer %d", ErrShortBuffer, n, len(buf))
	}
	start := r + recordHeaderLen
	copy(buf, q.buf[start:start+int32(n)])
	q.hdr.readpos = start + int32(n)
	return n, nil
}

// NextLen returns the payload length of the oldest record, or 0 when the
// queue is empty.
func (q *Queue) NextLen() (int, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	r, w, err := q.positions()
	if err != nil || r == w {
		return 0, err
	}
	return q.headLen(r, w)
}

// Len returns the bytes held by unread records, headers included.
func (q *Queue) Len() int {
	return q.Stats().Pending()
}

// Capacity returns the size of the record buffer.
func (q *Queue) Capacity() int { return int(q.size) }

func (q *Queue) State() State {
	return lifecycle(atomic.LoadUint32(&q.hdr.flag), queueFlag, atomic.LoadUint32(&q.hdr.opens))
}

// Valid reports ErrNotQueue once the region no longer carries the queue tag.
func (q *Queue) Valid() error {
	if atomic.LoadUint32(&q.hdr.flag) != queueFlag {
		return ErrNotQueue
	}
	return nil
}

// Saturation is the fraction of the buffer held by unread records.
func (q *Queue) Saturation() float64 {
	return float64(q.Len()) / float64(q.size)
}

func (q *Queue) Stats() QueueStats {
	q.lock.Lock()
	r, w := q.hdr.readpos, q.hdr.writepos
	q.lock.Unlock()
	return QueueStats{
		Capacity: int(q.size),
		ReadPos:  int(r),
		WritePos: int(w),
		Opens:    int(atomic.LoadUint32(&q.hdr.opens)),
	}
}
