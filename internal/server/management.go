package server

import (
	"github.com/prowire/prowire/internal/monitor"
	"github.com/prowire/prowire/internal/pipeline"
	"github.com/prowire/prowire/pkg/pool"
)

// ManagementObjects creates the managed objects for the transport: one per
// metric catalog group. A fresh set is created on every monitoring enable;
// the handle wrapping them is owned by the lifecycle manager.
func (t *Transport) ManagementObjects() []monitor.ManagedObject {
	return []monitor.ManagedObject{
		bufferPoolObject{},
		transportObject{t: t},
		threadPoolObject{p: t.workers},
	}
}

// bufferPoolObject exposes frame buffer accounting.
type bufferPoolObject struct{}

func (bufferPoolObject) ObjectName() string { return monitor.ObjectBufferPool }

func (bufferPoolObject) Attribute(name string) float64 {
	stats := pipeline.FramePoolStats()
	switch name {
	case "pool-allocated-bytes":
		return float64(stats.PoolAllocatedBytes)
	case "pool-released-bytes":
		return float64(stats.PoolReleasedBytes)
	case "real-allocated-bytes":
		return float64(stats.RealAllocatedBytes)
	case "total-allocated-bytes":
		return float64(stats.TotalAllocatedBytes)
	default:
		return 0
	}
}

// transportObject exposes socket-level counters.
type transportObject struct {
	t *Transport
}

func (o transportObject) ObjectName() string { return monitor.ObjectTCPTransport }

func (o transportObject) Attribute(name string) float64 {
	switch name {
	case "bound-addresses":
		return float64(len(o.t.BoundAddrs()))
	case "bytes-read":
		return float64(o.t.bytesRead.Load())
	case "bytes-written":
		return float64(o.t.bytesWritten.Load())
	case "io-strategy":
		return StrategyCode(o.t.IOStrategy())
	case "open-connections-count":
		return float64(o.t.openConns.Load())
	case "total-connections-count":
		return float64(o.t.acceptedTotal.Load())
	case "kernel-threads-count":
		return float64(o.t.kernel.Workers())
	case "read-buffer-size":
		return 4096 // bufio default on the connection reader
	case "client-connect-timeout-millis", "server-socket-so-timeout", "write-buffer-size":
		return 0
	default:
		return 0
	}
}

// threadPoolObject exposes worker pool counters.
type threadPoolObject struct {
	p *pool.Pool
}

func (o threadPoolObject) ObjectName() string { return monitor.ObjectThreadPool }

func (o threadPoolObject) Attribute(name string) float64 {
	switch name {
	case "thread-pool-allocated-thread-count":
		return float64(o.p.Workers())
	case "thread-pool-core-pool-size":
		return float64(o.p.CoreSize())
	case "thread-pool-max-num-threads":
		return float64(o.p.MaxSize())
	case "thread-pool-queued-task-count":
		return float64(o.p.Queued())
	case "thread-pool-task-queue-overflow-count":
		return float64(o.p.Overflows())
	case "thread-pool-total-allocated-thread-count":
		return float64(o.p.TotalSpawned())
	case "thread-pool-total-completed-tasks-count":
		return float64(o.p.Completed())
	case "thread-pool-type":
		return 1 // bounded fixed pool
	default:
		return 0
	}
}
