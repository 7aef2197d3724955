package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// GetCounter tracks the number of Get operations.
	GetCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smallcache_get_total",
		Help: "Total number of Get operations",
	})
	// SetCounter tracks the number of Set operations.
	SetCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smallcache_set_total",
		Help: "Total number of Set operations",
	})
	// DeleteCounter tracks the number of Delete operations.
	DeleteCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smallcache_delete_total",
		Help: "Total number of Delete operations",
	})
	// FlushCounter tracks the number of Flush operations.
	FlushCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smallcache_flush_total",
		Help: "Total number of Flush operations",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCoreMetrics registers the process-wide operation counters on the
// provided registry.
func RegisterCoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(GetCounter, SetCounter, DeleteCounter, FlushCounter)
}
