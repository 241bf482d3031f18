// Package worker provides a fixed-size goroutine pool for fire-and-forget jobs.
//
// The Pool starts a fixed number of workers that take jobs from one shared,
// unbounded queue. The receiving end of that queue is guarded by a mutex that
// a worker holds only while it takes one job, never while running it.
//
// # Basic Usage
//
//	pool := worker.NewPool(4, worker.WithLogger(log)) // 4 workers
//	defer pool.Close()
//
//	// Submit jobs
//	for conn := range conns {
//	    pool.Submit(func() {
//	        handle(conn)
//	    })
//	}
//
// NewPool panics if size is not positive.
//
// # Shutdown
//
// Close closes the submission side of the queue and then waits for every
// worker, in creation order. Jobs already queued are drained and run to
// completion first. Jobs submitted after Close are dropped and logged.
//
// # Panics
//
// A panic inside a job ends the worker that ran it. The pool keeps running
// with one worker fewer; the panic is logged and reported again when Close
// waits for that worker. The owner of the pool never sees it.
//
// # Observation
//
// WithObserver attaches an Observer (metrics, event bus) that is told about
// submissions, drops, completions, panics and worker lifecycles.
package worker
