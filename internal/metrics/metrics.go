package metrics

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config はメトリクスの設定
type Config struct {
	Namespace         string
	MaxLatencySamples int
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Namespace:         "dirserve",
		MaxLatencySamples: 1000,
	}
}

// Metrics はリクエストとワーカープールのメトリクスを収集する
type Metrics struct {
	totalRequests   atomic.Uint64
	successRequests atomic.Uint64
	failedRequests  atomic.Uint64
	totalLatencyNs  atomic.Uint64

	jobsSubmitted atomic.Uint64
	jobsCompleted atomic.Uint64
	jobsDropped   atomic.Uint64
	jobPanics     atomic.Uint64
	workersAlive  atomic.Int64
	queueDepth    atomic.Pointer[func() int]

	mu                sync.RWMutex
	startTime         time.Time
	lastResetTime     time.Time
	windowRequests    uint64
	latencies         []time.Duration
	maxLatencySamples int

	prom collectors
}

// collectors はPrometheus向けのコレクタ
type collectors struct {
	requests        *prometheus.CounterVec
	requestDuration prometheus.Histogram
	jobsSubmitted   prometheus.Counter
	jobsCompleted   prometheus.Counter
	jobsDropped     prometheus.Counter
	jobPanics       prometheus.Counter
	jobDuration     prometheus.Histogram
	workersAlive    prometheus.Gauge
	queueDepth      prometheus.GaugeFunc
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig は設定を指定してメトリクスを作成する
func NewWithConfig(config Config) *Metrics {
	if config.MaxLatencySamples <= 0 {
		config.MaxLatencySamples = 1000
	}
	if config.Namespace == "" {
		config.Namespace = "dirserve"
	}

	now := time.Now()
	m := &Metrics{
		startTime:         now,
		lastResetTime:     now,
		latencies:         make([]time.Duration, 0, config.MaxLatencySamples),
		maxLatencySamples: config.MaxLatencySamples,
	}
	m.prom = newCollectors(config.Namespace, m.QueueDepth)
	return m
}

func newCollectors(ns string, queueDepth func() int) collectors {
	return collectors{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests served, by status code",
		}, []string{"status"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "request_duration_seconds",
			Help:      "Histogram of request handling latency",
			Buckets:   prometheus.DefBuckets,
		}),
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "pool",
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs accepted by the pool queue",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "pool",
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs run to completion",
		}),
		jobsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "pool",
			Name:      "jobs_dropped_total",
			Help:      "Total number of jobs the queue refused",
		}),
		jobPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "pool",
			Name:      "job_panics_total",
			Help:      "Total number of workers lost to a panic",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "pool",
			Name:      "job_duration_seconds",
			Help:      "Histogram of job execution time",
			Buckets:   prometheus.DefBuckets,
		}),
		workersAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "pool",
			Name:      "workers_alive",
			Help:      "Current number of running workers",
		}),
		queueDepth: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "pool",
			Name:      "queue_depth",
			Help:      "Number of jobs waiting in the queue",
		}, func() float64 {
			return float64(queueDepth())
		}),
	}
}

// Register はPrometheusコレクタを登録する
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.prom.requests,
		m.prom.requestDuration,
		m.prom.jobsSubmitted,
		m.prom.jobsCompleted,
		m.prom.jobsDropped,
		m.prom.jobPanics,
		m.prom.jobDuration,
		m.prom.workersAlive,
		m.prom.queueDepth,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// TrackQueue はキュー長を取得する関数を設定する
func (m *Metrics) TrackQueue(fn func() int) {
	m.queueDepth.Store(&fn)
}

// QueueDepth は現在のキュー長を返す
func (m *Metrics) QueueDepth() int {
	fn := m.queueDepth.Load()
	if fn == nil || *fn == nil {
		return 0
	}
	return (*fn)()
}

// RecordRequest はステータスコードに応じてリクエストを記録する
func (m *Metrics) RecordRequest(status int, latency time.Duration) {
	m.prom.requests.WithLabelValues(strconv.Itoa(status)).Inc()
	m.prom.requestDuration.Observe(latency.Seconds())
	if status >= 500 {
		m.RecordFailure(latency)
		return
	}
	m.RecordSuccess(latency)
}

// RecordSuccess は成功したリクエストを記録する
func (m *Metrics) RecordSuccess(latency time.Duration) {
	m.totalRequests.Add(1)
	m.successRequests.Add(1)
	m.totalLatencyNs.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	m.windowRequests++
	if len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
	}
	m.mu.Unlock()
}

// RecordFailure は失敗したリクエストを記録する
func (m *Metrics) RecordFailure(latency time.Duration) {
	m.totalRequests.Add(1)
	m.failedRequests.Add(1)
	m.totalLatencyNs.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	m.windowRequests++
	m.mu.Unlock()
}

// WorkerStarted はワーカーの起動を記録する
func (m *Metrics) WorkerStarted(int) {
	m.workersAlive.Add(1)
	m.prom.workersAlive.Inc()
}

// WorkerStopped はワーカーの終了を記録する
func (m *Metrics) WorkerStopped(int) {
	m.workersAlive.Add(-1)
	m.prom.workersAlive.Dec()
}

// JobSubmitted はキューに入ったジョブを記録する
func (m *Metrics) JobSubmitted() {
	m.jobsSubmitted.Add(1)
	m.prom.jobsSubmitted.Inc()
}

// JobDropped は破棄されたジョブを記録する
func (m *Metrics) JobDropped() {
	m.jobsDropped.Add(1)
	m.prom.jobsDropped.Inc()
}

// JobCompleted は完了したジョブを記録する
func (m *Metrics) JobCompleted(_ int, elapsed time.Duration) {
	m.jobsCompleted.Add(1)
	m.prom.jobsCompleted.Inc()
	m.prom.jobDuration.Observe(elapsed.Seconds())
}

// JobPanicked はpanicしたジョブを記録する
func (m *Metrics) JobPanicked(int, any) {
	m.jobPanics.Add(1)
	m.prom.jobPanics.Inc()
}

// TotalRequests は総リクエスト数を返す
func (m *Metrics) TotalRequests() uint64 {
	return m.totalRequests.Load()
}

// SuccessRequests は成功リクエスト数を返す
func (m *Metrics) SuccessRequests() uint64 {
	return m.successRequests.Load()
}

// FailedRequests は失敗リクエスト数を返す
func (m *Metrics) FailedRequests() uint64 {
	return m.failedRequests.Load()
}

// WorkersAlive は稼働中のワーカー数を返す
func (m *Metrics) WorkersAlive() int64 {
	return m.workersAlive.Load()
}

// RPS は現在のRequests Per Secondを返す
func (m *Metrics) RPS() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.lastResetTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.windowRequests) / elapsed
}

// OverallRPS は開始からの平均RPSを返す
func (m *Metrics) OverallRPS() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.totalRequests.Load()) / elapsed
}

// AverageLatency は平均レイテンシを返す
func (m *Metrics) AverageLatency() time.Duration {
	total := m.totalRequests.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalLatencyNs.Load() / total)
}

// P99Latency はP99レイテンシを返す（サンプルベース）
func (m *Metrics) P99Latency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// ErrorRate はエラー率を返す（0.0〜1.0）
func (m *Metrics) ErrorRate() float64 {
	total := m.totalRequests.Load()
	if total == 0 {
		return 0
	}
	return float64(m.failedRequests.Load()) / float64(total)
}

// Reset はウィンドウメトリクスをリセットする
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.windowRequests = 0
	m.lastResetTime = time.Now()
	m.latencies = m.latencies[:0]
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	RPS             float64       `json:"rps"`
	OverallRPS      float64       `json:"overall_rps"`
	AverageLatency  time.Duration `json:"avg_latency_ns"`
	P99Latency      time.Duration `json:"p99_latency_ns"`
	ErrorRate       float64       `json:"error_rate"`
	Elapsed         time.Duration `json:"elapsed_ns"`

	JobsSubmitted uint64 `json:"jobs_submitted"`
	JobsCompleted uint64 `json:"jobs_completed"`
	JobsDropped   uint64 `json:"jobs_dropped"`
	JobPanics     uint64 `json:"job_panics"`
	WorkersAlive  int64  `json:"workers_alive"`
	QueueDepth    int    `json:"queue_depth"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TotalRequests:   m.TotalRequests(),
		SuccessRequests: m.SuccessRequests(),
		FailedRequests:  m.FailedRequests(),
		RPS:             m.RPS(),
		OverallRPS:      m.OverallRPS(),
		AverageLatency:  m.AverageLatency(),
		P99Latency:      m.P99Latency(),
		ErrorRate:       m.ErrorRate(),
		Elapsed:         time.Since(m.startTime),

		JobsSubmitted: m.jobsSubmitted.Load(),
		JobsCompleted: m.jobsCompleted.Load(),
		JobsDropped:   m.jobsDropped.Load(),
		JobPanics:     m.jobPanics.Load(),
		WorkersAlive:  m.workersAlive.Load(),
		QueueDepth:    m.QueueDepth(),
	}
}
