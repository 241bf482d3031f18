// Package metrics provides request and worker pool metrics.
//
// Metrics collects statistics about request latency, success/failure rates,
// and throughput (RPS), and counts worker pool activity. It implements
// worker.Observer so a pool can report to it directly. The same numbers are
// exported as Prometheus collectors once Register is called.
//
// # Basic Usage
//
//	m := metrics.New()
//	if err := m.Register(prometheus.DefaultRegisterer); err != nil {
//	    return err
//	}
//	pool := worker.NewPool(4, worker.WithObserver(m))
//	m.TrackQueue(pool.QueueSize)
//
//	// Record requests
//	start := time.Now()
//	// ... serve ...
//	m.RecordRequest(200, time.Since(start))
//
//	// Get a snapshot
//	snap := m.Snapshot()
//
// # Configuration
//
// Use NewWithConfig for custom settings:
//
//	config := metrics.Config{
//	    Namespace:         "dirserve",
//	    MaxLatencySamples: 5000, // More samples for P99 accuracy
//	}
//	m := metrics.NewWithConfig(config)
//
// # Thread Safety
//
// All operations use atomic counters or locks and are safe for concurrent access.
package metrics
