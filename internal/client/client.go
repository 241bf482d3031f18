package client

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"webserver/internal/logger"
	"webserver/internal/metrics"
	"webserver/internal/worker"
)

// Config はClientの設定
type Config struct {
	Target        string        // 接続先のベースURL
	Paths         []string      // リクエストするパス
	NumWorkers    int           // ワーカー数（0でCPU数）
	Timeout       time.Duration // リクエストごとのタイムアウト
	RequestsLimit uint64        // リクエスト上限（0で無制限）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Target:     "http://127.0.0.1:7878",
		Paths:      []string{"/"},
		NumWorkers: 0, // CPU数
		Timeout:    5 * time.Second,
	}
}

// Client は負荷生成器
type Client struct {
	config  Config
	http    *http.Client
	pool    *worker.Pool
	metrics *metrics.Metrics
	log     *logger.Logger

	// キューに積まれたリクエスト数の上限
	inflight *semaphore.Weighted
	issued   atomic.Uint64

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New は新しいClientを作成する
func New(config Config, log *logger.Logger) *Client {
	if config.NumWorkers <= 0 {
		config.NumWorkers = runtime.NumCPU()
	}
	if len(config.Paths) == 0 {
		config.Paths = []string{"/"}
	}
	config.Target = strings.TrimSuffix(config.Target, "/")
	if log == nil {
		log = logger.Discard()
	}

	return &Client{
		config:   config,
		http:     &http.Client{Timeout: config.Timeout},
		pool:     worker.NewPool(config.NumWorkers, worker.WithLogger(log)),
		metrics:  metrics.New(),
		log:      log,
		inflight: semaphore.NewWeighted(int64(config.NumWorkers * 2)),
	}
}

// Start は負荷生成を開始する
func (c *Client) Start(ctx context.Context) {
	if c.running.Swap(true) {
		return // Already running
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	c.log.Info("", "Client started (workers: %d, target: %s)", c.pool.Size(), c.config.Target)

	// リクエスト生成ループ
	c.wg.Add(1)
	go c.generateRequests()
}

// generateRequests はリクエストを生成し続ける
func (c *Client) generateRequests() {
	defer c.wg.Done()

	for {
		if c.config.RequestsLimit > 0 && c.issued.Load() >= c.config.RequestsLimit {
			return
		}
		if err := c.inflight.Acquire(c.ctx, 1); err != nil {
			return
		}
		c.issued.Add(1)

		path := c.config.Paths[rand.Intn(len(c.config.Paths))]
		c.pool.Submit(c.createJob(path))
	}
}

// createJob はリクエストジョブを作成する
func (c *Client) createJob(path string) worker.Job {
	return func() {
		defer c.inflight.Release(1)

		start := time.Now()
		resp, err := c.http.Get(c.config.Target + path)
		if err != nil {
			c.metrics.RecordFailure(time.Since(start))
			c.log.Debug("", "GET %s failed: %v", path, err)
			return
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		c.metrics.RecordRequest(resp.StatusCode, time.Since(start))
	}
}

// Stop は負荷生成を停止し、キューに残ったリクエストを処理し切る
func (c *Client) Stop() {
	if !c.running.Swap(false) {
		return // Not running
	}

	c.cancel()
	c.wg.Wait()
	c.pool.Close()

	c.log.Info("", "Client stopped")
}

// Metrics はメトリクスを返す
func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}

// IsRunning は実行中かどうかを返す
func (c *Client) IsRunning() bool {
	return c.running.Load()
}

// RunFor は指定時間だけ負荷生成を実行する
func (c *Client) RunFor(ctx context.Context, duration time.Duration) *metrics.Snapshot {
	c.Start(ctx)

	select {
	case <-ctx.Done():
	case <-time.After(duration):
	}

	c.Stop()

	snapshot := c.metrics.Snapshot()
	return &snapshot
}

// RunRequests は指定数のリクエストを実行する
func (c *Client) RunRequests(ctx context.Context, count uint64) *metrics.Snapshot {
	c.config.RequestsLimit = count
	c.Start(ctx)
	c.wg.Wait()
	c.Stop()

	snapshot := c.metrics.Snapshot()
	return &snapshot
}
