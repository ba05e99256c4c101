package pipeline

import (
	"sync"
	"sync/atomic"
)

// BufferPoolStats is a point-in-time view of frame buffer accounting,
// polled by the monitoring bridge.
type BufferPoolStats struct {
	PoolAllocatedBytes  uint64
	PoolReleasedBytes   uint64
	RealAllocatedBytes  uint64
	TotalAllocatedBytes uint64
}

// framePool recycles frame payload buffers between messages. Buffers are
// returned once the exec stage has written its response.
type framePool struct {
	pool sync.Pool

	poolAllocated  atomic.Uint64
	poolReleased   atomic.Uint64
	realAllocated  atomic.Uint64
	totalAllocated atomic.Uint64
}

var frameBuffers = &framePool{
	pool: sync.Pool{
		New: func() any {
			b := make([]byte, 0, 4096)
			return &b
		},
	},
}

func (p *framePool) get(n int) []byte {
	bp := p.pool.Get().(*[]byte)
	buf := *bp
	if cap(buf) < n {
		buf = make([]byte, n)
		p.realAllocated.Add(uint64(n))
	} else {
		buf = buf[:n]
		p.poolAllocated.Add(uint64(n))
	}
	p.totalAllocated.Add(uint64(n))
	return buf
}

func (p *framePool) put(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	p.poolReleased.Add(uint64(len(buf)))
	buf = buf[:0]
	p.pool.Put(&buf)
}

// FramePoolStats returns the current frame buffer accounting.
func FramePoolStats() BufferPoolStats {
	return BufferPoolStats{
		PoolAllocatedBytes:  frameBuffers.poolAllocated.Load(),
		PoolReleasedBytes:   frameBuffers.poolReleased.Load(),
		RealAllocatedBytes:  frameBuffers.realAllocated.Load(),
		TotalAllocatedBytes: frameBuffers.totalAllocated.Load(),
	}
}
