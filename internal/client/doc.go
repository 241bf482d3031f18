// Package client provides a load generator for stress testing a dirserve
// instance.
//
// The Client issues GET requests for a set of paths against a running server
// and collects latency and status metrics about the generated load. Requests
// run on a worker.Pool; a weighted semaphore bounds the number of requests
// waiting in the pool's unbounded queue.
//
// # Basic Usage
//
//	config := client.DefaultConfig()
//	config.Target = "http://127.0.0.1:7878"
//	config.Paths = []string{"/", "/index.html"}
//	cl := client.New(config)
//
//	// Run for a duration
//	snap := cl.RunFor(ctx, 10*time.Second)
//	fmt.Printf("Total: %d, RPS: %.2f\n", snap.TotalRequests, snap.RPS)
//
//	// Or run a fixed number of requests
//	snap := cl.RunRequests(ctx, 10000)
//
// A Client is single-use: once stopped, its pool is closed.
//
// # Configuration
//
// The Config struct allows tuning:
//   - Target: base URL of the server
//   - Paths: request targets, picked at random per request
//   - NumWorkers: parallel workers (0 = CPU count)
//   - Timeout: per-request timeout
//   - RequestsLimit: max requests (0 = unlimited)
package client
