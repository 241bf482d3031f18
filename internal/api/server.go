package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"

	"webserver/internal/events"
	"webserver/internal/logger"
	"webserver/internal/metrics"
	"webserver/internal/worker"
)

// Pool は管理APIが参照するワーカープール
type Pool interface {
	Size() int
	Alive() int
	QueueSize() int
	Workers() []worker.WorkerInfo
}

// Config はAPIサーバーの設定
type Config struct {
	Addr     string
	Pool     Pool
	Metrics  *metrics.Metrics
	Bus      *events.Bus
	Gatherer prometheus.Gatherer
	Log      *logger.Logger
	Interval time.Duration // ステータス配信間隔
}

// Server はAPIサーバー
type Server struct {
	cfg    Config
	router chi.Router

	mu        sync.RWMutex
	wsClients map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しいAPIサーバーを作成する
func NewServer(cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = logger.Discard()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}

	s := &Server{
		cfg:       cfg,
		router:    chi.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/api/status", s.handleStatus)
	s.router.Get("/api/workers", s.handleWorkers)
	s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	s.router.Method(http.MethodGet, "/ws", websocket.Handler(s.handleWebSocket))
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start はサーバーを開始し、ctxがキャンセルされるまでブロックする
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.startBackground(ctx)

	s.cfg.Log.Info("", "Admin API listening on http://%s", s.cfg.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.closeClients()
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// startBackground はステータス配信とイベント転送を開始する
func (s *Server) startBackground(ctx context.Context) {
	go s.broadcastLoop(ctx)
	if s.cfg.Bus != nil {
		go s.forwardEvents(ctx, s.cfg.Bus.Subscribe())
	}
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	PoolSize     int               `json:"pool_size"`
	AliveWorkers int               `json:"alive_workers"`
	QueueDepth   int               `json:"queue_depth"`
	Requests     *metrics.Snapshot `json:"requests,omitempty"`
}

func (s *Server) status() StatusResponse {
	resp := StatusResponse{}
	if s.cfg.Pool != nil {
		resp.PoolSize = s.cfg.Pool.Size()
		resp.AliveWorkers = s.cfg.Pool.Alive()
		resp.QueueDepth = s.cfg.Pool.QueueSize()
	}
	if s.cfg.Metrics != nil {
		snap := s.cfg.Metrics.Snapshot()
		resp.Requests = &snap
	}
	return resp
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.status())
}

func (s *Server) handleWorkers(w http.ResponseWriter, _ *http.Request) {
	workers := []worker.WorkerInfo{}
	if s.cfg.Pool != nil {
		workers = s.cfg.Pool.Workers()
	}
	s.writeJSON(w, workers)
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

func (s *Server) broadcast(data any) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		s.cfg.Log.Error("", "Failed to encode broadcast: %v", err)
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcast(map[string]any{
				"type":   "status",
				"status": s.status(),
			})
		}
	}
}

// forwardEvents はプールのイベントをWebSocketクライアントに転送する
func (s *Server) forwardEvents(ctx context.Context, ch <-chan events.Event) {
	defer s.cfg.Bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(map[string]any{
				"type":  "event",
				"event": ev,
			})
		}
	}
}

func (s *Server) closeClients() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ws := range s.wsClients {
		_ = ws.Close()
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.cfg.Log.Error("", "Failed to encode JSON: %v", err)
	}
}
