// Package metrics exposes the prometheus counters the allocator increments
// on its hot paths: pages flushed, bytes flushed, allocation stalls, and
// object-log writes. The registration pattern (a package-level sync.Once
// guarding a handful of prometheus.Counter vars) mirrors
// buildbarn/bb-storage's block allocator instrumentation.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	doRegister sync.Once

	// PagesFlushed counts completed page flushes across all allocator
	// instances in the process.
	PagesFlushed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ignite",
		Subsystem: "hlog",
		Name:      "pages_flushed_total",
		Help:      "Number of ring-buffer pages flushed to the log device.",
	})

	// BytesFlushed counts bytes written to the primary log device by the
	// flush engine.
	BytesFlushed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ignite",
		Subsystem: "hlog",
		Name:      "bytes_flushed_total",
		Help:      "Bytes written to the primary log device by the flush engine.",
	})

	// AllocationStalls counts Allocate calls that returned
	// AllocationStall because the target page wasn't ready.
	AllocationStalls = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ignite",
		Subsystem: "hlog",
		Name:      "allocation_stalls_total",
		Help:      "Number of Allocate calls that stalled waiting on page readiness.",
	})

	// ObjectLogWrites counts individual object-log batch writes issued by
	// the flush engine.
	ObjectLogWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ignite",
		Subsystem: "hlog",
		Name:      "object_log_writes_total",
		Help:      "Number of batch writes issued to the object log device.",
	})

	// PagesRead counts completed page/record reads serviced by the read
	// engine.
	PagesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ignite",
		Subsystem: "hlog",
		Name:      "pages_read_total",
		Help:      "Number of page or record reads completed by the read engine.",
	})

	// DeviceErrors counts non-zero I/O completion codes observed from
	// either device.
	DeviceErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ignite",
		Subsystem: "hlog",
		Name:      "device_errors_total",
		Help:      "Number of device completions that reported a non-zero error code.",
	})
)

// Register idempotently registers every allocator metric with the default
// prometheus registry. Safe to call multiple times and from multiple
// Allocator instances in the same process.
func Register() {
	doRegister.Do(func() {
		prometheus.MustRegister(
			PagesFlushed,
			BytesFlushed,
			AllocationStalls,
			ObjectLogWrites,
			PagesRead,
			DeviceErrors,
		)
	})
}
