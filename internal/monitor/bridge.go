package monitor

import (
	stderrors "errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prowire/prowire/pkg/errors"
	"github.com/prowire/prowire/pkg/logger"
)

// Object names under which the transport publishes its managed objects.
const (
	ObjectBufferPool   = "prowire:type=BufferPool,name=BufferPool"
	ObjectTCPTransport = "prowire:type=TCPTransport,name=TCPTransport"
	ObjectThreadPool   = "prowire:type=ThreadPool,name=ThreadPool"
)

// CatalogEntry names one external attribute bridged into the metrics
// registry when monitoring is enabled.
type CatalogEntry struct {
	Group      string
	ObjectName string
	Attribute  string
}

// catalog is the fixed list of bridged attributes, grouped by managed
// object.
var catalog = buildCatalog()

func buildCatalog() []CatalogEntry {
	groups := []struct {
		group      string
		objectName string
		attributes []string
	}{
		{
			group:      "buffer-pool",
			objectName: ObjectBufferPool,
			attributes: []string{
				"pool-allocated-bytes", "pool-released-bytes",
				"real-allocated-bytes", "total-allocated-bytes",
			},
		},
		{
			group:      "tcp-transport",
			objectName: ObjectTCPTransport,
			attributes: []string{
				"bound-addresses", "bytes-read", "bytes-written",
				"client-connect-timeout-millis", "io-strategy",
				"open-connections-count", "read-buffer-size",
				"kernel-threads-count", "server-socket-so-timeout",
				"total-connections-count", "write-buffer-size",
			},
		},
		{
			group:      "thread-pool",
			objectName: ObjectThreadPool,
			attributes: []string{
				"thread-pool-allocated-thread-count", "thread-pool-core-pool-size",
				"thread-pool-max-num-threads", "thread-pool-queued-task-count",
				"thread-pool-task-queue-overflow-count",
				"thread-pool-total-allocated-thread-count",
				"thread-pool-total-completed-tasks-count", "thread-pool-type",
			},
		},
	}

	var entries []CatalogEntry
	for _, g := range groups {
		for _, attr := range g.attributes {
			entries = append(entries, CatalogEntry{Group: g.group, ObjectName: g.objectName, Attribute: attr})
		}
	}
	return entries
}

// Catalog returns a copy of the fixed catalog.
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, len(catalog))
	copy(out, catalog)
	return out
}

// MetricName returns the registry name for a catalog entry:
// prowire_core_<group>_<attribute>.
func MetricName(e CatalogEntry) string {
	return "prowire_core_" + sanitize(e.Group) + "_" + sanitize(e.Attribute)
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}

// Bridge registers and deregisters the metric catalog against a metrics
// registry. Each entry becomes one gauge polling the named attribute of the
// named managed object. The toggle is idempotent across restart cycles: a
// register call after a deregister fully restores all entries, and
// duplicates are never accumulated.
type Bridge struct {
	mgmt *ManagementRegistry

	mu     sync.Mutex
	gauges map[string]prometheus.Collector
}

// NewBridge creates a bridge resolving attributes through the given
// management registry.
func NewBridge(mgmt *ManagementRegistry) *Bridge {
	return &Bridge{
		mgmt:   mgmt,
		gauges: make(map[string]prometheus.Collector),
	}
}

// RegisterCatalog registers one gauge per catalog entry. An entry already
// present in the registry is adopted rather than duplicated, so repeated
// enables converge on exactly one collector per entry.
func (b *Bridge) RegisterCatalog(reg *prometheus.Registry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entry := range catalog {
		entry := entry
		name := MetricName(entry)
		gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: name,
			Help: "Bridged attribute " + entry.Attribute + " of " + entry.ObjectName,
		}, func() float64 {
			obj, ok := b.mgmt.Lookup(entry.ObjectName)
			if !ok {
				return 0
			}
			return obj.Attribute(entry.Attribute)
		})

		if err := reg.Register(gauge); err != nil {
			var already prometheus.AlreadyRegisteredError
			if stderrors.As(err, &already) {
				b.gauges[name] = already.ExistingCollector
				continue
			}
			return errors.New(errors.ErrCodeMetricConflict, "monitor.register",
				"registering catalog gauge "+name, err)
		}
		b.gauges[name] = gauge
	}

	logger.Log.Info("Monitor: metric catalog registered", "entries", len(catalog))
	return nil
}

// DeregisterCatalog removes every catalog gauge from the registry. Entries
// that were never registered are skipped.
func (b *Bridge) DeregisterCatalog(reg *prometheus.Registry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for name, collector := range b.gauges {
		reg.Unregister(collector)
		delete(b.gauges, name)
	}

	logger.Log.Info("Monitor: metric catalog removed")
}
