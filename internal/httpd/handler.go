package httpd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"webserver/internal/logger"
	"webserver/internal/site"
)

// gzipMaxSize を超えるファイルは圧縮せずにそのまま送る
const gzipMaxSize = 4 << 20

// Recorder はリクエスト結果を受け取る
type Recorder interface {
	RecordRequest(status int, latency time.Duration)
}

// Handler は1接続につき1リクエストを処理する
type Handler struct {
	Site        *site.Site
	Log         *logger.Logger
	Metrics     Recorder
	Gzip        bool
	ReadTimeout time.Duration
}

// response は送信するレスポンス
type response struct {
	status int
	header [][2]string
	body   io.Reader
	size   int64
}

func bytesResponse(status int, contentType string, body []byte) response {
	resp := response{
		status: status,
		body:   bytes.NewReader(body),
		size:   int64(len(body)),
	}
	if contentType != "" {
		resp.header = append(resp.header, [2]string{"Content-Type", contentType})
	}
	return resp
}

// ServeConn はリクエストを1件読み、レスポンスを返して接続を閉じる
func (h *Handler) ServeConn(conn net.Conn) {
	defer conn.Close()

	id := uuid.NewString()
	start := time.Now()
	if h.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(start.Add(h.ReadTimeout))
	}

	req, err := ReadRequest(bufio.NewReader(conn))
	var resp response
	switch {
	case err == nil:
		resp = h.respond(id, req)
	case errors.Is(err, ErrBadRequest):
		h.log().Debug(id, "Bad request from %s: %v", conn.RemoteAddr(), err)
		resp = bytesResponse(http.StatusBadRequest, "text/plain; charset=utf-8", []byte("Bad Request\n"))
	case errors.Is(err, io.EOF):
		h.log().Error(id, "Failed to read request line")
		return
	default:
		h.log().Error(id, "Failed to read request line: %v", err)
		return
	}
	if c, ok := resp.body.(io.Closer); ok {
		defer c.Close()
	}

	if err := writeResponse(conn, resp); err != nil {
		h.log().Error(id, "Failed to write response: %v", err)
	}

	elapsed := time.Since(start)
	if h.Metrics != nil {
		h.Metrics.RecordRequest(resp.status, elapsed)
	}
	h.log().Debug(id, "%s %s %d (%v)", req.Method, req.Target, resp.status, elapsed)
}

func (h *Handler) log() *logger.Logger {
	if h.Log == nil {
		return logger.Discard()
	}
	return h.Log
}

// respond はリクエストに対するレスポンスを組み立てる
func (h *Handler) respond(id string, req Request) response {
	if req.Method != http.MethodGet {
		resp := bytesResponse(http.StatusMethodNotAllowed, "text/plain; charset=utf-8", []byte("Method Not Allowed\n"))
		resp.header = append(resp.header, [2]string{"Allow", http.MethodGet})
		return resp
	}

	entry, err := h.Site.Resolve(req.Target)
	switch {
	case errors.Is(err, site.ErrNotFound), errors.Is(err, site.ErrOutsideRoot):
		return bytesResponse(http.StatusNotFound, "text/html; charset=utf-8", site.NotFoundPage())
	case err != nil:
		h.log().Debug(id, "Failed to resolve %q: %v", req.Target, err)
		return bytesResponse(http.StatusBadRequest, "text/plain; charset=utf-8", []byte("Bad Request\n"))
	}

	if entry.IsDir {
		var buf bytes.Buffer
		if err := h.Site.RenderIndex(&buf, entry.Path); err != nil {
			h.log().Error(id, "Failed to render index of %s: %v", entry.URL, err)
			return bytesResponse(http.StatusInternalServerError, "", nil)
		}
		return h.maybeGzip(id, req, bytesResponse(http.StatusOK, "text/html; charset=utf-8", buf.Bytes()))
	}

	return h.serveFile(id, req, entry)
}

func (h *Handler) serveFile(id string, req Request, entry site.Entry) response {
	f, err := os.Open(entry.Path)
	if err != nil {
		h.log().Error(id, "Failed to open %s: %v", entry.URL, err)
		return bytesResponse(http.StatusInternalServerError, "", nil)
	}

	contentType := site.ContentType(entry.Path)
	if h.Gzip && req.AcceptsGzip() && entry.Size <= gzipMaxSize {
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.log().Error(id, "Failed to read %s: %v", entry.URL, err)
			return bytesResponse(http.StatusInternalServerError, "", nil)
		}
		return h.maybeGzip(id, req, bytesResponse(http.StatusOK, contentType, data))
	}

	return response{
		status: http.StatusOK,
		header: [][2]string{{"Content-Type", contentType}},
		body:   f,
		size:   entry.Size,
	}
}

// maybeGzip はクライアントが対応していれば本文を圧縮する
func (h *Handler) maybeGzip(id string, req Request, resp response) response {
	if !h.Gzip || !req.AcceptsGzip() {
		return resp
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := io.Copy(zw, resp.body); err != nil {
		h.log().Error(id, "Failed to compress response: %v", err)
		return bytesResponse(http.StatusInternalServerError, "", nil)
	}
	if err := zw.Close(); err != nil {
		h.log().Error(id, "Failed to compress response: %v", err)
		return bytesResponse(http.StatusInternalServerError, "", nil)
	}

	resp.body = &buf
	resp.size = int64(buf.Len())
	resp.header = append(resp.header,
		[2]string{"Content-Encoding", "gzip"},
		[2]string{"Vary", "Accept-Encoding"},
	)
	return resp
}

// writeResponse はステータス行、ヘッダー、本文を書き出す
func writeResponse(w io.Writer, resp response) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", resp.status, http.StatusText(resp.status))
	fmt.Fprintf(bw, "Content-Length: %d\r\n", resp.size)
	for _, kv := range resp.header {
		fmt.Fprintf(bw, "%s: %s\r\n", kv[0], kv[1])
	}
	bw.WriteString("Connection: close\r\n\r\n")

	if resp.body != nil {
		if _, err := io.CopyN(bw, resp.body, resp.size); err != nil {
			return errors.Wrap(err, "write body")
		}
	}
	return errors.Wrap(bw.Flush(), "flush response")
}
