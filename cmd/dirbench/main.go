// Package main is a load generator for dirserve.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"webserver/internal/client"
	"webserver/internal/logger"
	"webserver/internal/metrics"
)

func main() {
	def := client.DefaultConfig()

	var (
		target   = pflag.StringP("url", "u", def.Target, "接続先のベースURL")
		paths    = pflag.StringSliceP("paths", "P", def.Paths, "リクエストするパス (カンマ区切り)")
		workers  = pflag.IntP("workers", "w", 0, "並列ワーカー数 (0でCPU数)")
		requests = pflag.Uint64P("requests", "n", 0, "リクエスト数 (0でdurationの間実行)")
		duration = pflag.DurationP("duration", "d", 10*time.Second, "実行時間")
		timeout  = pflag.Duration("timeout", def.Timeout, "リクエストごとのタイムアウト")
		asJSON   = pflag.Bool("json", false, "結果をJSONで出力")
		verbose  = pflag.BoolP("verbose", "v", false, "デバッグログを出力")
	)
	pflag.Parse()

	log := logger.New(os.Stderr, logger.LevelInfo)
	log.SetColor(true)
	log.SetVerbose(*verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cl := client.New(client.Config{
		Target:     *target,
		Paths:      *paths,
		NumWorkers: *workers,
		Timeout:    *timeout,
	}, log)

	var s *metrics.Snapshot
	if *requests > 0 {
		s = cl.RunRequests(ctx, *requests)
	} else {
		s = cl.RunFor(ctx, *duration)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			log.Error("", "Failed to encode result: %v", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("dirbench results")
	fmt.Println("================")
	fmt.Printf("Requests:    %d (failed: %d, error rate: %.2f%%)\n", s.TotalRequests, s.FailedRequests, s.ErrorRate*100)
	fmt.Printf("Elapsed:     %v\n", s.Elapsed.Round(time.Millisecond))
	fmt.Printf("RPS:         %.2f\n", s.OverallRPS)
	fmt.Printf("Avg latency: %v\n", s.AverageLatency)
	fmt.Printf("P99 latency: %v\n", s.P99Latency)
}
