// Package metrics registers the counters and gauges an Endpoint exposes
// for its lookup, binding and worker subsystems, grounded on
// distribution-distribution's registry metrics (metrics/prometheus.go,
// notifications/metrics.go): one docker/go-metrics Namespace per
// subsystem, labeled counters/gauges registered once at package init.
package metrics

import "github.com/docker/go-metrics"

const namespacePrefix = "qcore"

// Namespace groups every metric this core exposes under the "qcore"
// Prometheus prefix, mirroring how distribution-distribution scopes its
// own Namespaces ("registry_storage", "registry_notifications").
var Namespace = metrics.NewNamespace(namespacePrefix, "endpoint", nil)

var (
	// LookupHits/LookupMisses are incremented by lookup.go's
	// find-by-local-cid, find-by-remote-hash and find-by-remote-addr
	// operations, labeled by which index served the request.
	LookupHits   = Namespace.NewLabeledCounter("lookup_hits_total", "connection lookup hits", "index")
	LookupMisses = Namespace.NewLabeledCounter("lookup_misses_total", "connection lookup misses", "index")

	// StatelessOpsTracked is stateless.go's Tracker size, sampled on every
	// insert/sweep.
	StatelessOpsTracked = Namespace.NewLabeledGauge("stateless_ops_tracked", "operations held by the stateless tracker", metrics.Total, "binding")
	// StatelessOpsDropped counts stateless.go operations rejected because
	// the tracker was at max_binding_stateless_operations.
	StatelessOpsDropped = Namespace.NewLabeledCounter("stateless_ops_dropped_total", "stateless operations dropped at capacity", "kind")

	// WorkerQueueDepth is worker.go's per-worker queue length (one queue
	// is shared by every connection on that worker), labeled by worker id.
	WorkerQueueDepth = Namespace.NewLabeledGauge("worker_queue_depth", "operations queued per worker", metrics.Total, "worker")
	// WorkerOverloadDrops counts operations Worker.Submit declined to
	// queue because the worker was over its in-flight budget.
	WorkerOverloadDrops = Namespace.NewLabeledCounter("worker_overload_drops_total", "operations dropped due to worker overload", "worker")

	// PacketsLost/PacketsSpurious are registered for loss-detection
	// outcomes, labeled by local binding address; transport/recovery.go
	// does not increment them, so they stay at zero.
	PacketsLost     = Namespace.NewLabeledCounter("packets_lost_total", "packets declared lost", "binding")
	PacketsSpurious = Namespace.NewLabeledCounter("packets_spurious_loss_total", "packets declared lost then later acknowledged", "binding")
)

func init() {
	metrics.Register(Namespace)
}
