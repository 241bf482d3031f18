// Package queue provides an unbounded single-producer/multi-consumer handoff.
//
// New returns the two ends of a queue. The Sender enqueues without ever
// blocking; the Receiver blocks in Recv until an item is buffered or the
// Sender has been closed and the buffer drained.
//
// # Basic Usage
//
//	tx, rx := queue.New[string]()
//	go func() {
//	    for {
//	        v, err := rx.Recv()
//	        if err != nil {
//	            return // queue.ErrClosed
//	        }
//	        fmt.Println(v)
//	    }
//	}()
//	_ = tx.Send("hello")
//	tx.Close()
//
// # Closing
//
// Closing the Sender is the end-of-stream signal: items already buffered
// are still delivered, then Recv reports ErrClosed. Closing the Receiver
// discards the buffer and makes every later Send fail with ErrClosed.
//
// # Thread Safety
//
// Both ends are safe for concurrent use. Each item is returned by exactly
// one Recv call.
package queue
