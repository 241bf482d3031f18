package httpd

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"

	"webserver/internal/logger"
	"webserver/internal/worker"
)

// Submitter はジョブを受け付けるプール
type Submitter interface {
	Submit(job worker.Job)
}

// Server は接続を受け付け、1接続を1ジョブとしてプールに渡す
type Server struct {
	Pool    Submitter
	Handler *Handler
	Log     *logger.Logger
}

// Serve はctxがキャンセルされるまで接続を受け付ける
// プールを閉じるのは呼び出し元の責任
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := s.Log
	if log == nil {
		log = logger.Discard()
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return errors.Wrap(err, "accept")
			}

			// 一時的なエラー（ファイルディスクリプタ枯渇など）は間隔を空けて再試行する
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			log.Error("", "%v", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		backoff = 0

		h := s.Handler
		s.Pool.Submit(func() {
			h.ServeConn(conn)
		})
	}
}
