package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"webserver/internal/logger"
)

func parse(t *testing.T, args ...string) (*options, error) {
	t.Helper()
	var opts options
	fs := newFlagSet(&opts, io.Discard)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	_, err := buildConfig(fs, opts)
	return &opts, err
}

func TestBuildConfigFromFlags(t *testing.T) {
	var opts options
	fs := newFlagSet(&opts, io.Discard)
	if err := fs.Parse([]string{"-d", "/srv", "-t", "8", "-p", "9000", "-i", "0.0.0.0", "-v"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := buildConfig(fs, opts)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Server.Root != "/srv" {
		t.Errorf("expected root /srv, got %s", cfg.Server.Root)
	}
	if cfg.Server.Threads != 8 {
		t.Errorf("expected 8 threads, got %d", cfg.Server.Threads)
	}
	if cfg.Addr() != "0.0.0.0:9000" {
		t.Errorf("expected 0.0.0.0:9000, got %s", cfg.Addr())
	}
	if !cfg.Log.Verbose {
		t.Error("expected verbose logging")
	}
}

func TestBuildConfigDefaults(t *testing.T) {
	var opts options
	fs := newFlagSet(&opts, io.Discard)
	if err := fs.Parse([]string{"--path", "."}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := buildConfig(fs, opts)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Server.Threads != 4 || cfg.Server.Port != 7878 || cfg.Server.Host != "127.0.0.1" {
		t.Errorf("unexpected defaults: %+v", cfg.Server)
	}
	if cfg.Admin.Addr != "" {
		t.Errorf("expected admin disabled, got %s", cfg.Admin.Addr)
	}
}

func TestBuildConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing path", []string{}},
		{"zero threads", []string{"-d", ".", "-t", "0"}},
		{"bad port", []string{"-d", ".", "-p", "70000"}},
		{"bad admin", []string{"-d", ".", "--admin", "nocolon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parse(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBuildConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dirserve.yaml")
	content := `
server:
  root: /from/file
  threads: 2
  port: 8000
admin:
  addr: 127.0.0.1:9090
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var opts options
	fs := newFlagSet(&opts, io.Discard)
	if err := fs.Parse([]string{"-c", path, "-t", "6"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := buildConfig(fs, opts)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Server.Root != "/from/file" {
		t.Errorf("expected root from file, got %s", cfg.Server.Root)
	}
	if cfg.Server.Threads != 6 {
		t.Errorf("expected flag to override threads, got %d", cfg.Server.Threads)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port from file, got %d", cfg.Server.Port)
	}
	if cfg.Admin.Addr != "127.0.0.1:9090" {
		t.Errorf("expected admin addr from file, got %s", cfg.Admin.Addr)
	}
}

func TestRunMissingRoot(t *testing.T) {
	var opts options
	fs := newFlagSet(&opts, io.Discard)
	missing := filepath.Join(t.TempDir(), "missing")
	if err := fs.Parse([]string{"-d", missing, "-p", "0"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := buildConfig(fs, opts)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}

	err = run(context.Background(), cfg, logger.Discard())
	if err == nil {
		t.Fatal("expected error for missing root")
	}
	if !strings.Contains(err.Error(), "path does not exist") {
		t.Errorf("unexpected error: %v", err)
	}
}
