package httpd

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"webserver/internal/worker"
)

type countingPool struct {
	pool      *worker.Pool
	submitted atomic.Int32
}

func (p *countingPool) Submit(job worker.Job) {
	p.submitted.Add(1)
	p.pool.Submit(job)
}

func TestServerServe(t *testing.T) {
	h, _ := newTestHandler(t)
	pool := &countingPool{pool: worker.NewPool(2)}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := &Server{Pool: pool, Handler: h}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ctx, ln)
	}()

	client := &http.Client{Timeout: 2 * time.Second}
	for iter := 0; iter < 5; iter++ {
		resp, err := client.Get("http://" + ln.Addr().String() + "/hello.txt")
		assert.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "hello, world!", string(body))
	}

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	pool.pool.Close()

	assert.Equal(t, int32(5), pool.submitted.Load())
}

func TestServerServeListenerClosed(t *testing.T) {
	h, _ := newTestHandler(t)
	pool := worker.NewPool(1)
	defer pool.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	_ = ln.Close()

	srv := &Server{Pool: pool, Handler: h}
	err = srv.Serve(context.Background(), ln)
	assert.Error(t, err)
}
