package worker

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"webserver/internal/queue"
)

// Job はワーカーが実行するジョブを表す
type Job func()

// State はワーカーの状態を表す
type State int32

const (
	StateWaiting State = iota
	StateExecuting
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "Waiting"
	case StateExecuting:
		return "Executing"
	case StateShutDown:
		return "ShutDown"
	default:
		return "Unknown"
	}
}

var errPoisoned = errors.New("job receiver poisoned")

// source はジョブの受信元
type source interface {
	Recv() (Job, error)
}

// sharedReceiver は全ワーカーで共有される受信側
// ロックは1回のRecvの間だけ保持される
type sharedReceiver struct {
	mu       sync.Mutex
	rx       source
	poisoned bool
}

// recv はロックを取得して1件だけ受信する
func (s *sharedReceiver) recv() (Job, error) {
	s.mu.Lock()
	if s.poisoned {
		s.mu.Unlock()
		return nil, errPoisoned
	}

	released := false
	defer func() {
		if released {
			return
		}
		// Recv中のpanic: 以降のロック取得はすべて失敗する
		s.poisoned = true
		s.mu.Unlock()
	}()

	job, err := s.rx.Recv()
	released = true
	s.mu.Unlock()
	return job, err
}

// Worker はプール内の1つのワーカー
type Worker struct {
	id    int
	done  chan struct{} // nil: ゴルーチンが起動していない
	state atomic.Int32

	panicked atomic.Bool
	panicVal any
}

func newWorker(id int) *Worker {
	return &Worker{id: id}
}

// ID はワーカーIDを返す
func (w *Worker) ID() int {
	return w.id
}

// State は現在の状態を返す
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Alive はワーカーがまだジョブを受け付けられるかを返す
func (w *Worker) Alive() bool {
	return w.done != nil && w.State() != StateShutDown
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

func (w *Worker) name() string {
	return fmt.Sprintf("worker-%d", w.id)
}

// run はワーカーのメインループ
func (w *Worker) run(p *Pool) {
	defer close(w.done)
	defer func() {
		r := recover()
		w.setState(StateShutDown)
		if r != nil {
			w.panicVal = r
			w.panicked.Store(true)
			p.log.Error(w.name(), "Worker %d panicked: %v", w.id, r)
			p.obs.JobPanicked(w.id, r)
		}
		p.obs.WorkerStopped(w.id)
	}()

	p.obs.WorkerStarted(w.id)

	for {
		w.setState(StateWaiting)
		job, err := p.shared.recv()
		if err != nil {
			if errors.Is(err, errPoisoned) {
				p.log.Error(w.name(), "Worker %d could not lock the job queue; shutting down.", w.id)
			} else {
				p.log.Debug(w.name(), "Worker %d disconnected; shutting down.", w.id)
			}
			return
		}

		p.log.Debug(w.name(), "Worker %d got a job; executing.", w.id)
		w.setState(StateExecuting)
		start := time.Now()
		job()
		p.obs.JobCompleted(w.id, time.Since(start))
	}
}

// join はワーカーの終了を待ち、panicしていればその値を返す
func (w *Worker) join() (any, bool) {
	if w.done == nil {
		return nil, false
	}
	<-w.done
	if w.panicked.Load() {
		return w.panicVal, true
	}
	return nil, false
}

var _ source = (*queue.Receiver[Job])(nil)
