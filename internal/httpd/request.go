package httpd

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const (
	maxLineLength = 8 << 10
	maxHeaders    = 100
)

// ErrBadRequest はリクエストが解釈できないことを示す
var ErrBadRequest = errors.New("bad request")

// Request は受信したリクエスト
type Request struct {
	Method string
	Target string
	Proto  string
	Header map[string]string // キーは小文字
}

// AcceptsGzip はクライアントがgzipを受け付けるかを返す
func (r Request) AcceptsGzip() bool {
	for _, part := range strings.Split(r.Header["accept-encoding"], ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), "gzip") {
			continue
		}
		if strings.ReplaceAll(strings.TrimSpace(params), " ", "") == "q=0" {
			return false
		}
		return true
	}
	return false
}

// ParseRequestLine は "METHOD TARGET HTTP/x.y" を解析する
func ParseRequestLine(line string) (Request, error) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return Request{}, errors.Wrapf(ErrBadRequest, "malformed request line %q", line)
	}
	method, target, proto := parts[0], parts[1], parts[2]
	if method == "" || target == "" {
		return Request{}, errors.Wrapf(ErrBadRequest, "malformed request line %q", line)
	}
	if !strings.HasPrefix(target, "/") {
		return Request{}, errors.Wrapf(ErrBadRequest, "unsupported request target %q", target)
	}
	if proto != "HTTP/1.0" && proto != "HTTP/1.1" {
		return Request{}, errors.Wrapf(ErrBadRequest, "unsupported protocol %q", proto)
	}
	return Request{
		Method: method,
		Target: target,
		Proto:  proto,
		Header: map[string]string{},
	}, nil
}

// ReadRequest はリクエスト行とヘッダーを読み込む
func ReadRequest(r *bufio.Reader) (Request, error) {
	line, err := readLine(r)
	if err != nil {
		return Request{}, err
	}
	req, err := ParseRequestLine(line)
	if err != nil {
		return Request{}, err
	}

	for iter := 0; iter < maxHeaders; iter++ {
		line, err := readLine(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				// ヘッダーの途中で切れても、リクエスト行があれば応答する
				return req, nil
			}
			return Request{}, err
		}
		if line == "" {
			return req, nil
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return Request{}, errors.Wrapf(ErrBadRequest, "malformed header %q", line)
		}
		req.Header[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	return Request{}, errors.Wrap(ErrBadRequest, "too many headers")
}

// readLine は CRLF または LF で終わる1行を読む
func readLine(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return "", err
		}
		sb.Write(chunk)
		if sb.Len() > maxLineLength {
			return "", errors.Wrap(ErrBadRequest, "line too long")
		}
		if !isPrefix {
			return sb.String(), nil
		}
	}
}
