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
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	internalshm "github.com/srediag/shmslab/internal/shm"
)

// InvalidOffset is returned by Offset for addresses that are not a slot of the pool.
const InvalidOffset int32 = -1

// Metadata words as stored in the region: a non-negative word is the index
// of the next free slot.
const (
	metaEndOfList int32 = -1
	metaInUse     int32 = -2
)

type slotState uint8

const (
	slotFree slotState = iota
	slotInUse
	slotCorrupt
)

// slotEntry is the decoded form of one metadata word. next is only
// meaningful for free slots and is metaEndOfList for the tail.
type slotEntry struct {
	state slotState
	next  int32
}

func decodeSlot(word, count int32) slotEntry {
	switch {
	case word == metaInUse:
		return slotEntry{state: slotInUse}
	case word == metaEndOfList:
		return slotEntry{state: slotFree, next: metaEndOfList}
	case word >= 0 && word < count:
		return slotEntry{state: slotFree, next: word}
	}
	return slotEntry{state: slotCorrupt}
}

func (e slotEntry) encode() int32 {
	if e.state == slotInUse {
		return metaInUse
	}
	if e.next < 0 {
		return metaEndOfList
	}
	return e.next
}

// PoolStats is a point-in-time view of a pool.
type PoolStats struct {
	ElemSize int
	Count    int
	InUse    int
	Opens    int
}

// Pool is a fixed-size slab allocator embedded in a shared region. It owns
// no memory: the handle is a view over the region and is invalid once the
// region is unmapped.
//
// Region layout:
//
//	[header][metadata: int32 x count][padding to align][data: elemsize x count]
type Pool struct {
	hdr      *poolHeader
	meta     []int32
	data     []byte
	elemsize int32
	count    int32
	lock     internalshm.SpinLock
}

type poolLayout struct {
	elemsize int32
	count    int32
	datapos  int32
	total    int64
}

func poolGeometry(elemSize, count, align int) (poolLayout, error) {
	a, err := normalizeAlign(align)
	if err != nil {
		return poolLayout{}, err
	}
	if elemSize <= 0 || count <= 0 || count > math.MaxInt32 {
		return poolLayout{}, fmt.Errorf("%w: elemsize %d, count %d", ErrInvalidSize, elemSize, count)
	}
	es := alignUp(int64(elemSize), int64(a))
	if es <= 0 || es > math.MaxInt32 {
		return poolLayout{}, fmt.Errorf("%w: elemsize %d padded to %d", ErrInvalidSize, elemSize, es)
	}
	metaEnd := alignUp(int64(poolHeaderSize)+int64(count)*metaEntrySize, int64(a))
	total := metaEnd + es*int64(count)
	if metaEnd-int64(poolHeaderSize) > math.MaxInt32 || total > math.MaxInt {
		return poolLayout{}, fmt.Errorf("%w: %d slots of %d bytes", ErrInvalidSize, count, es)
	}
	return poolLayout{
		elemsize: int32(es),
		count:    int32(count),
		datapos:  int32(metaEnd - int64(poolHeaderSize)),
		total:    total,
	}, nil
}

// PoolSize returns the number of bytes a pool of count slots of elemSize
// bytes needs, with slots aligned to align (a power of two, or <= 1 for none).
func PoolSize(elemSize, count, align int) (int, error) {
	l, err := poolGeometry(elemSize, count, align)
	if err != nil {
		return 0, err
	}
	return int(l.total), nil
}

// CreatePool initialises a pool in place at the start of region. Slot
// addresses are multiples of align when the region base is.
func CreatePool(region []byte, elemSize, count, align int) (*Pool, error) {
	l, err := poolGeometry(elemSize, count, align)
	if err != nil {
		return nil, err
	}
	if int64(len(region)) < l.total {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrRegionTooSmall, l.total, len(region))
	}
	if !baseAligned(region) {
		return nil, ErrMisalignedRegion
	}
	p := newPool(region, l)
	h := p.hdr
	atomic.StoreUint32(&h.flag, 0)
	h.elemsize = l.elemsize
	h.count = l.count
	h.datapos = l.datapos
	atomic.StoreUint32(&h.opens, 0)
	p.lock.Init()
	p.resetFreeList()
	atomic.StoreUint32(&h.flag, poolFlag)
	return p, nil
}

// OpenPool returns a handle over a pool another participant created in region.
func OpenPool(region []byte) (*Pool, error) {
	if len(region) < poolHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrRegionTooSmall, len(region))
	}
	if !baseAligned(region) {
		return nil, ErrMisalignedRegion
	}
	h := (*poolHeader)(unsafe.Pointer(unsafe.SliceData(region)))
	if atomic.LoadUint32(&h.flag) != poolFlag {
		return nil, ErrNotPool
	}
	l := poolLayout{elemsize: h.elemsize, count: h.count, datapos: h.datapos}
	if l.elemsize <= 0 || l.count <= 0 || int64(l.datapos) < int64(l.count)*metaEntrySize {
		return nil, fmt.Errorf("%w: elemsize %d, count %d, datapos %d", ErrCorruptHeader, l.elemsize, l.count, l.datapos)
	}
	l.total = int64(poolHeaderSize) + int64(l.datapos) + int64(l.elemsize)*int64(l.count)
	if int64(len(region)) < l.total {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrRegionTooSmall, l.total, len(region))
	}
	p := newPool(region, l)
	atomic.AddUint32(&h.opens, 1)
	return p, nil
}

func newPool(region []byte, l poolLayout) *Pool {
	h := (*poolHeader)(unsafe.Pointer(unsafe.SliceData(region)))
	dataStart := poolHeaderSize + int(l.datapos)
	dataEnd := dataStart + int(l.elemsize)*int(l.count)
	return &Pool{
		hdr:      h,
		meta:     unsafe.Slice((*int32)(unsafe.Pointer(&region[poolHeaderSize])), l.count),
		data:     region[dataStart:dataEnd:dataEnd],
		elemsize: l.elemsize,
		count:    l.count,
		lock:     internalshm.NewSpinLock(unsafe.Pointer(&h.lock)),
	}
}

// resetFreeList links 0 -> 1 -> ... -> count-1 -> end. Caller holds the
// lock or owns the region exclusively.
func (p *Pool) resetFreeList() {
	for i := int32(0); i < p.count-1; i++ {
		p.meta[i] = slotEntry{state: slotFree, next: i + 1}.encode()
	}
	p.meta[p.count-1] = slotEntry{state: slotFree, next: metaEndOfList}.encode()
	p.hdr.first = 0
	atomic.StoreInt32(&p.hdr.useCount, 0)
}

// Clear discards every outstanding allocation. No participant may hold a
// slot of the pool while it runs.
func (p *Pool) Clear() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.resetFreeList()
}

// Allocate pops a free slot. It returns nil when the pool is exhausted;
// callers retry later.
func (p *Pool) Allocate() []byte {
	p.lock.Lock()
	idx := p.hdr.first
	if idx < 0 || idx >= p.count {
		p.lock.Unlock()
		return nil
	}
	e := decodeSlot(p.meta[idx], p.count)
	if e.state != slotFree {
		// the head should always be free; refuse rather than hand out a live slot
		p.lock.Unlock()
		return nil
	}
	p.meta[idx] = slotEntry{state: slotInUse}.encode()
	p.hdr.first = e.next
	atomic.AddInt32(&p.hdr.useCount, 1)
	p.lock.Unlock()
	return p.slot(idx)
}

// Release returns a slot obtained from Allocate or Pointer. Addresses that
// are not a slot boundary of this pool, and slots that are not allocated,
// are ignored.
func (p *Pool) Release(b []byte) {
	idx := p.Offset(b)
	if idx == InvalidOffset {
		return
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if decodeSlot(p.meta[idx], p.count).state != slotInUse {
		return
	}
	p.meta[idx] = slotEntry{state: slotFree, next: p.hdr.first}.encode()
	p.hdr.first = idx
	atomic.AddInt32(&p.hdr.useCount, -1)
}

// Offset converts a slot into its index, which other processes turn back
// into a slot with Pointer. It returns InvalidOffset for anything that is
// not the start of a slot.
func (p *Pool) Offset(b []byte) int32 {
	ptr := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	base := uintptr(unsafe.Pointer(unsafe.SliceData(p.data)))
	if ptr < base {
		return InvalidOffset
	}
	diff := ptr - base
	es := uintptr(p.elemsize)
	if diff%es != 0 || diff/es >= uintptr(p.count) {
		return InvalidOffset
	}
	return int32(diff / es)
}

// Pointer returns the slot at offset, or nil when offset is out of range or
// the slot is free (for example already recycled by its owner).
func (p *Pool) Pointer(offset int32) []byte {
	if offset < 0 || offset >= p.count {
		return nil
	}
	p.lock.Lock()
	inUse := decodeSlot(p.meta[offset], p.count).state == slotInUse
	p.lock.Unlock()
	if !inUse {
		return nil
	}
	return p.slot(offset)
}

func (p *Pool) slot(idx int32) []byte {
	start := int(idx) * int(p.elemsize)
	end := start + int(p.elemsize)
	return p.data[start:end:end]
}

// ElemSize returns the padded slot size.
func (p *Pool) ElemSize() int { return int(p.elemsize) }

func (p *Pool) Count() int { return int(p.count) }

// RegionSize returns the bytes at the start of the region the pool occupies,
// so a caller can place other structures after it.
func (p *Pool) RegionSize() int {
	return poolHeaderSize + int(p.hdr.datapos) + len(p.data)
}

// UseCount returns the number of allocated slots.
func (p *Pool) UseCount() int {
	return int(atomic.LoadInt32(&p.hdr.useCount))
}

func (p *Pool) State() State {
	return lifecycle(atomic.LoadUint32(&p.hdr.flag), poolFlag, atomic.LoadUint32(&p.hdr.opens))
}

// Valid reports ErrNotPool once the region no longer carries the pool tag.
func (p *Pool) Valid() error {
	if atomic.LoadUint32(&p.hdr.flag) != poolFlag {
		return ErrNotPool
	}
	return nil
}

// Saturation is the allocated fraction of the pool in [0, 1].
func (p *Pool) Saturation() float64 {
	return float64(p.UseCount()) / float64(p.count)
}

func (p *Pool) Stats() PoolStats {
	return PoolStats{
		ElemSize: int(p.elemsize),
		Count:    int(p.count),
		InUse:    p.UseCount(),
		Opens:    int(atomic.LoadUint32(&p.hdr.opens)),
	}
}
