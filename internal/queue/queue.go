package queue

import (
	"errors"
	"sync"
)

// ErrClosed はキューが閉じられていることを示す
var ErrClosed = errors.New("queue closed")

// state は送信側と受信側で共有されるバッファ
type state[T any] struct {
	mu         sync.Mutex
	cond       *sync.Cond
	items      []T
	sendClosed bool
	recvClosed bool
}

// Sender はキューの送信側
type Sender[T any] struct {
	s *state[T]
}

// Receiver はキューの受信側
type Receiver[T any] struct {
	s *state[T]
}

// New は新しいキューを作成し、送信側と受信側を返す
func New[T any]() (*Sender[T], *Receiver[T]) {
	s := &state[T]{}
	s.cond = sync.NewCond(&s.mu)
	return &Sender[T]{s: s}, &Receiver[T]{s: s}
}

// Send はアイテムをキューに追加する（ブロックしない）
func (tx *Sender[T]) Send(v T) error {
	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sendClosed || s.recvClosed {
		return ErrClosed
	}
	s.items = append(s.items, v)
	s.cond.Signal()
	return nil
}

// Close は送信側を閉じる
func (tx *Sender[T]) Close() {
	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sendClosed {
		return
	}
	s.sendClosed = true
	s.cond.Broadcast()
}

// Len はバッファ内のアイテム数を返す
func (tx *Sender[T]) Len() int {
	return tx.s.len()
}

// Recv はアイテムが届くかキューが閉じられるまでブロックする
func (rx *Receiver[T]) Recv() (T, error) {
	s := rx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.items) == 0 && !s.sendClosed && !s.recvClosed {
		s.cond.Wait()
	}

	var zero T
	if len(s.items) == 0 || s.recvClosed {
		return zero, ErrClosed
	}

	v := s.items[0]
	s.items[0] = zero
	s.items = s.items[1:]
	if len(s.items) == 0 {
		// 先頭側に残った容量を解放する
		s.items = nil
	}
	return v, nil
}

// Close は受信側を閉じ、バッファを破棄する
func (rx *Receiver[T]) Close() {
	s := rx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recvClosed {
		return
	}
	s.recvClosed = true
	s.items = nil
	s.cond.Broadcast()
}

// Len はバッファ内のアイテム数を返す
func (rx *Receiver[T]) Len() int {
	return rx.s.len()
}

func (s *state[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
