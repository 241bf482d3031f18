package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"webserver/internal/logger"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Server ServerConfig `yaml:"server" json:"server"`
	Admin  AdminConfig  `yaml:"admin" json:"admin"`
	Log    LogConfig    `yaml:"log" json:"log"`
}

// ServerConfig は配信サーバーの設定
type ServerConfig struct {
	Root        string `yaml:"root" json:"root"`
	Host        string `yaml:"host" json:"host"`
	Port        int    `yaml:"port" json:"port"`
	Threads     int    `yaml:"threads" json:"threads"`
	ReadTimeout string `yaml:"read_timeout" json:"read_timeout"`
	Gzip        bool   `yaml:"gzip" json:"gzip"`
}

// AdminConfig は管理APIの設定（Addrが空なら無効）
type AdminConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	Verbose    bool   `yaml:"verbose" json:"verbose"`
	Color      bool   `yaml:"color" json:"color"`
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
}

// Default はデフォルト設定を返す
func Default() FileConfig {
	return FileConfig{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        7878,
			Threads:     4,
			ReadTimeout: "5s",
			Gzip:        true,
		},
		Log: LogConfig{
			Level:      "info",
			Color:      true,
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// LoadFile は設定ファイルを読み込む
// ファイルにない項目はデフォルト値のまま
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	s := f.Server

	if s.Root == "" {
		return fmt.Errorf("server.root is required")
	}
	if s.Threads <= 0 {
		return fmt.Errorf("server.threads must be greater than zero")
	}
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535")
	}
	if _, err := f.ReadTimeout(); err != nil {
		return err
	}
	if f.Admin.Addr != "" {
		if _, _, err := net.SplitHostPort(f.Admin.Addr); err != nil {
			return fmt.Errorf("invalid admin.addr: %w", err)
		}
	}
	if _, err := logger.ParseLevel(f.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	if f.Log.MaxSizeMB < 0 {
		return fmt.Errorf("log.max_size_mb must be non-negative")
	}
	if f.Log.MaxBackups < 0 {
		return fmt.Errorf("log.max_backups must be non-negative")
	}

	return nil
}

// Addr は待ち受けアドレスを返す
func (f *FileConfig) Addr() string {
	return net.JoinHostPort(f.Server.Host, strconv.Itoa(f.Server.Port))
}

// ReadTimeout はリクエスト読み込みのタイムアウトを返す（0で無制限）
func (f *FileConfig) ReadTimeout() (time.Duration, error) {
	if f.Server.ReadTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(f.Server.ReadTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid server.read_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("server.read_timeout must be non-negative")
	}
	return d, nil
}

// NewLogger は設定に従ってロガーを作成する
func (f *FileConfig) NewLogger() (*logger.Logger, error) {
	level, err := logger.ParseLevel(f.Log.Level)
	if err != nil {
		return nil, err
	}

	var l *logger.Logger
	if f.Log.File != "" {
		l = logger.NewFile(f.Log.File, f.Log.MaxSizeMB, f.Log.MaxBackups, level)
	} else {
		l = logger.New(os.Stdout, level)
		l.SetColor(f.Log.Color)
	}
	if f.Log.Verbose {
		l.SetVerbose(true)
	}
	return l, nil
}
