// Package main is the entry point for dirserve.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"webserver/internal/api"
	"webserver/internal/config"
	"webserver/internal/events"
	"webserver/internal/httpd"
	"webserver/internal/logger"
	"webserver/internal/metrics"
	"webserver/internal/site"
	"webserver/internal/worker"
)

var (
	version = "dev"
)

// options はコマンドラインフラグの値
type options struct {
	path        string
	threads     int
	port        int
	host        string
	verbose     bool
	configFile  string
	admin       string
	logFile     string
	showVersion bool
}

func main() {
	var opts options
	fs := newFlagSet(&opts, os.Stderr)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		os.Exit(2)
	}

	// バージョン表示
	if opts.showVersion {
		fmt.Printf("dirserve version %s\n", version)
		return
	}

	cfg, err := buildConfig(fs, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dirserve: %v\n", err)
		fs.Usage()
		os.Exit(2)
	}

	log, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dirserve: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("", "%v", err)
		log.Close()
		os.Exit(1)
	}
}

// newFlagSet はフラグを定義する
func newFlagSet(opts *options, out io.Writer) *pflag.FlagSet {
	def := config.Default()

	fs := pflag.NewFlagSet("dirserve", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVarP(&opts.path, "path", "d", "", "配信するディレクトリ (必須、設定ファイル使用時は省略可)")
	fs.IntVarP(&opts.threads, "threads", "t", def.Server.Threads, "ワーカー数")
	fs.IntVarP(&opts.port, "port", "p", def.Server.Port, "待ち受けポート")
	fs.StringVarP(&opts.host, "host", "i", def.Server.Host, "待ち受けホスト")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "デバッグログとファイル位置を出力")
	fs.StringVarP(&opts.configFile, "config", "c", "", "設定ファイルパス (YAML/JSON)")
	fs.StringVar(&opts.admin, "admin", "", "管理APIのアドレス (例: 127.0.0.1:9090)")
	fs.StringVar(&opts.logFile, "log-file", "", "ログファイル (ローテーションあり)")
	fs.BoolVar(&opts.showVersion, "version", false, "バージョンを表示")

	fs.Usage = func() {
		fmt.Fprintf(out, `dirserve - worker pool static directory server

Usage:
  dirserve -d <dir> [options]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(out, `
Examples:
  # カレントディレクトリを配信
  dirserve -d .

  # 8ワーカー、全インターフェースで待ち受け
  dirserve -d ./public -t 8 -i 0.0.0.0 -p 8080

  # 設定ファイルから起動し、管理APIを有効化
  dirserve -c dirserve.yaml --admin 127.0.0.1:9090
`)
	}
	return fs
}

// buildConfig は設定ファイルとフラグから設定を構築する
// 明示的に指定されたフラグは設定ファイルの値より優先される
func buildConfig(fs *pflag.FlagSet, opts options) (*config.FileConfig, error) {
	cfg := config.Default()

	if opts.configFile != "" {
		fileConfig, err := config.LoadFile(opts.configFile)
		if err != nil {
			return nil, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
		}
		cfg = *fileConfig
	}

	if opts.configFile == "" || fs.Changed("path") {
		cfg.Server.Root = opts.path
	}
	if opts.configFile == "" || fs.Changed("threads") {
		cfg.Server.Threads = opts.threads
	}
	if opts.configFile == "" || fs.Changed("port") {
		cfg.Server.Port = opts.port
	}
	if opts.configFile == "" || fs.Changed("host") {
		cfg.Server.Host = opts.host
	}
	if fs.Changed("verbose") {
		cfg.Log.Verbose = opts.verbose
	}
	if fs.Changed("admin") {
		cfg.Admin.Addr = opts.admin
	}
	if fs.Changed("log-file") {
		cfg.Log.File = opts.logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定検証エラー: %w", err)
	}
	return &cfg, nil
}

// run はサーバーを起動し、ctxがキャンセルされるまでブロックする
func run(ctx context.Context, cfg *config.FileConfig, log *logger.Logger) error {
	root, err := site.New(cfg.Server.Root)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	readTimeout, err := cfg.ReadTimeout()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", cfg.Addr(), err)
	}
	port := cfg.Server.Port
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}
	log.Info("", "Listening on port %d", port)

	m := metrics.New()
	if err := m.Register(prometheus.DefaultRegisterer); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	bus := events.NewBus()
	defer bus.Close()

	pool := worker.NewPool(cfg.Server.Threads,
		worker.WithLogger(log),
		worker.WithObserver(m),
		worker.WithObserver(events.NewRecorder(bus)),
	)
	// 受け付けを止めてからプールを閉じ、処理中の接続を流し切る
	defer pool.Close()
	m.TrackQueue(pool.QueueSize)

	srv := &httpd.Server{
		Pool: pool,
		Handler: &httpd.Handler{
			Site:        root,
			Log:         log,
			Metrics:     m,
			Gzip:        cfg.Server.Gzip,
			ReadTimeout: readTimeout,
		},
		Log: log,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, ln)
	})
	if cfg.Admin.Addr != "" {
		admin := api.NewServer(api.Config{
			Addr:    cfg.Admin.Addr,
			Pool:    pool,
			Metrics: m,
			Bus:     bus,
			Log:     log,
		})
		g.Go(func() error {
			return admin.Start(gctx)
		})
	}

	err = g.Wait()
	log.Info("", "Shutting down")
	return err
}
