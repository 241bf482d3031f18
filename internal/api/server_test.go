package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/websocket"

	"webserver/internal/events"
	"webserver/internal/metrics"
	"webserver/internal/worker"
)

type testEnv struct {
	srv  *Server
	http *httptest.Server
	pool *worker.Pool
	bus  *events.Bus
	m    *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		t.Fatalf("register metrics: %v", err)
	}
	bus := events.NewBus()
	pool := worker.NewPool(3, worker.WithObserver(m), worker.WithObserver(events.NewRecorder(bus)))
	m.TrackQueue(pool.QueueSize)

	srv := NewServer(Config{
		Pool:     pool,
		Metrics:  m,
		Bus:      bus,
		Gatherer: reg,
		Interval: 10 * time.Millisecond,
	})
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ts.Close()
		pool.Close()
		bus.Close()
	})
	return &testEnv{srv: srv, http: ts, pool: pool, bus: bus, m: m}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(e.http.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `"ok"`) {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	<-env.pool.SubmitWait(func() {})
	env.m.RecordRequest(200, time.Millisecond)

	resp, body := env.get(t, "/api/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}

	var status StatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.PoolSize != 3 {
		t.Errorf("expected pool size 3, got %d", status.PoolSize)
	}
	if status.AliveWorkers != 3 {
		t.Errorf("expected 3 alive workers, got %d", status.AliveWorkers)
	}
	if status.Requests == nil || status.Requests.TotalRequests != 1 {
		t.Errorf("expected 1 recorded request, got %+v", status.Requests)
	}
	if status.Requests != nil && status.Requests.JobsSubmitted != 1 {
		t.Errorf("expected 1 submitted job, got %d", status.Requests.JobsSubmitted)
	}
}

func TestWorkers(t *testing.T) {
	env := newTestEnv(t)
	_, body := env.get(t, "/api/workers")

	var workers []worker.WorkerInfo
	if err := json.Unmarshal(body, &workers); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(workers) != 3 {
		t.Fatalf("expected 3 workers, got %d", len(workers))
	}
	for i, w := range workers {
		if w.ID != i || !w.Alive {
			t.Errorf("unexpected worker %d: %+v", i, w)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	<-env.pool.SubmitWait(func() {})
	env.m.RecordRequest(404, time.Millisecond)

	resp, body := env.get(t, "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	for _, name := range []string{
		`dirserve_requests_total{status="404"} 1`,
		"dirserve_pool_jobs_submitted_total 1",
		"dirserve_pool_queue_depth 0",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected %q in metrics output", name)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Post(env.http.URL+"/api/status", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func TestWebSocketStatusAndEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.srv.startBackground(ctx)

	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws"
	ws, err := websocket.Dial(wsURL, "", env.http.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	seen := map[string]bool{}
	for !seen["status"] || !seen["event"] {
		if !seen["event"] {
			// 接続登録前に送られたイベントは失われるので、届くまで繰り返す
			env.bus.Publish(events.NewJobDroppedEvent())
		}
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			t.Fatalf("receive: %v (seen %v)", err, seen)
		}
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(msg), &envelope); err != nil {
			t.Fatalf("decode %q: %v", msg, err)
		}
		seen[envelope.Type] = true
	}
}
