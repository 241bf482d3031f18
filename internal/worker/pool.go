package worker

import (
	"sync"
	"time"

	"webserver/internal/logger"
	"webserver/internal/queue"
)

// Observer はプールのイベントを受け取る
type Observer interface {
	WorkerStarted(id int)
	WorkerStopped(id int)
	JobSubmitted()
	JobDropped()
	JobCompleted(id int, elapsed time.Duration)
	JobPanicked(id int, recovered any)
}

// observers は複数のObserverに通知を配る
type observers []Observer

func (o observers) WorkerStarted(id int) {
	for _, ob := range o {
		ob.WorkerStarted(id)
	}
}

func (o observers) WorkerStopped(id int) {
	for _, ob := range o {
		ob.WorkerStopped(id)
	}
}

func (o observers) JobSubmitted() {
	for _, ob := range o {
		ob.JobSubmitted()
	}
}

func (o observers) JobDropped() {
	for _, ob := range o {
		ob.JobDropped()
	}
}

func (o observers) JobCompleted(id int, elapsed time.Duration) {
	for _, ob := range o {
		ob.JobCompleted(id, elapsed)
	}
}

func (o observers) JobPanicked(id int, recovered any) {
	for _, ob := range o {
		ob.JobPanicked(id, recovered)
	}
}

// Option はプールの設定を変更する
type Option func(*Pool)

// WithLogger はプールが使うロガーを設定する
func WithLogger(l *logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

// WithObserver はObserverを追加する
func WithObserver(o Observer) Option {
	return func(p *Pool) {
		if o != nil {
			p.obs = append(p.obs, o)
		}
	}
}

// withSpawner はゴルーチンの起動方法を差し替える
func withSpawner(spawn func(func()) error) Option {
	return func(p *Pool) {
		p.spawn = spawn
	}
}

func goSpawn(fn func()) error {
	go fn()
	return nil
}

// Pool は固定数のワーカーを管理する
type Pool struct {
	workers []*Worker
	tx      *queue.Sender[Job]
	shared  *sharedReceiver

	log   *logger.Logger
	obs   observers
	spawn func(func()) error

	closeOnce sync.Once
}

// NewPool は size 個のワーカーを持つプールを作成する
// size が 0 以下の場合は panic する
func NewPool(size int, opts ...Option) *Pool {
	if size <= 0 {
		panic("worker: pool size must be greater than zero")
	}

	tx, rx := queue.New[Job]()
	p := &Pool{
		workers: make([]*Worker, 0, size),
		tx:      tx,
		shared:  &sharedReceiver{rx: rx},
		log:     logger.Discard(),
		spawn:   goSpawn,
	}
	for _, opt := range opts {
		opt(p)
	}

	for id := 0; id < size; id++ {
		w := newWorker(id)
		w.done = make(chan struct{})
		if err := p.spawn(func() { w.run(p) }); err != nil {
			p.log.Error("", "Failed to start worker %d: %v", id, err)
			w.done = nil
			w.setState(StateShutDown)
		}
		p.workers = append(p.workers, w)
	}

	p.log.Info("", "WorkerPool started with %d workers", size)
	return p
}

// Submit はジョブをキューに送る
// 送信に失敗したジョブはログに記録されて破棄される
func (p *Pool) Submit(job Job) {
	p.submit(job)
}

// SubmitWait はジョブを送信し、完了時に閉じられるチャネルを返す
// ジョブが破棄された場合、チャネルはすぐに閉じられる
func (p *Pool) SubmitWait(job Job) <-chan struct{} {
	done := make(chan struct{})
	if job == nil {
		p.submit(nil)
		close(done)
		return done
	}

	ok := p.submit(func() {
		defer close(done)
		job()
	})
	if !ok {
		close(done)
	}
	return done
}

func (p *Pool) submit(job Job) bool {
	if job == nil {
		p.log.Error("", "Refusing to send nil job to thread pool")
		p.obs.JobDropped()
		return false
	}

	p.log.Debug("", "Sending job to thread pool")
	if err := p.tx.Send(job); err != nil {
		p.log.Error("", "Error sending job to thread pool: %v", err)
		p.obs.JobDropped()
		return false
	}
	p.obs.JobSubmitted()
	return true
}

// Close はキューを閉じ、全ワーカーの終了を作成順に待つ
// 2回目以降の呼び出しは何もしない
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.tx.Close()

		for _, w := range p.workers {
			p.log.Debug("", "Shutting down worker %d", w.id)
			if v, panicked := w.join(); panicked {
				p.log.Error("", "Joining worker %d: %v", w.id, v)
			}
		}

		p.log.Info("", "WorkerPool stopped")
	})
}

// Size はワーカー数を返す
func (p *Pool) Size() int {
	return len(p.workers)
}

// Alive はジョブを受け付けられるワーカー数を返す
func (p *Pool) Alive() int {
	n := 0
	for _, w := range p.workers {
		if w.Alive() {
			n++
		}
	}
	return n
}

// QueueSize は現在のキューサイズを返す
func (p *Pool) QueueSize() int {
	return p.tx.Len()
}

// WorkerInfo はワーカーのスナップショット
type WorkerInfo struct {
	ID    int    `json:"id"`
	State string `json:"state"`
	Alive bool   `json:"alive"`
}

// Workers は全ワーカーのスナップショットを返す
func (p *Pool) Workers() []WorkerInfo {
	infos := make([]WorkerInfo, 0, len(p.workers))
	for _, w := range p.workers {
		infos = append(infos, WorkerInfo{
			ID:    w.id,
			State: w.State().String(),
			Alive: w.Alive(),
		})
	}
	return infos
}
