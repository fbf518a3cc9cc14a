package shm

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/valyala/bytebufferpool"
)

// Describe renders the header of the pool or queue at the start of region,
// recognised by its tag. It reads the header without taking the lock.
func Describe(region []byte) string {
	if len(region) < max(poolHeaderSize, queueHeaderSize) || !baseAligned(region) {
		return fmt.Sprintf("unknown region: %d bytes", len(region))
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	base := unsafe.Pointer(unsafe.SliceData(region))
	switch {
	case atomic.LoadUint32(&(*poolHeader)(base).flag) == poolFlag:
		h := (*poolHeader)(base)
		opens := atomic.LoadUint32(&h.opens)
		_, _ = fmt.Fprintf(buf, "pool state:%s elemsize:%d count:%d use:%d datapos:%d first:%d opens:%d",
			lifecycle(poolFlag, poolFlag, opens), h.elemsize, h.count,
			atomic.LoadInt32(&h.useCount), h.datapos, h.first, opens)
	case atomic.LoadUint32(&(*queueHeader)(base).flag) == queueFlag:
		h := (*queueHeader)(base)
		opens := atomic.LoadUint32(&h.opens)
		_, _ = fmt.Fprintf(buf, "queue state:%s size:%d readpos:%d writepos:%d pending:%d opens:%d",
			lifecycle(queueFlag, queueFlag, opens), h.size, h.readpos, h.writepos,
			h.writepos-h.readpos, opens)
	default:
		_, _ = fmt.Fprintf(buf, "unknown region: %d bytes", len(region))
	}
	return buf.String()
}
