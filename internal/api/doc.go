// Package api serves the admin HTTP interface of the directory server.
//
// Routes:
//
//	GET /healthz       liveness probe
//	GET /api/status    pool size, live workers, queue depth, request stats
//	GET /api/workers   per-worker state
//	GET /metrics       Prometheus exposition
//	GET /ws            websocket feed: periodic status and pool events
//
// The admin listener is optional and separate from the file-serving
// listener, so it keeps answering while every pool worker is busy.
package api
