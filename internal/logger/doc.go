// Package logger provides a simple, thread-safe logging facility.
//
// The logger supports four levels: Debug, Info, Warn, and Error.
// Each log entry includes a timestamp, level, optional ID (a worker or
// request identifier), and message.
//
// # Basic Usage
//
// A Logger is constructed once at startup and handed to every component
// that logs. There is no package-level default:
//
//	l := logger.New(os.Stdout, logger.LevelInfo)
//	l.Info("", "Listening on port %d", 7878)
//	l.Error("req-42", "Failed to read request line: %v", err)
//
// # Verbose Mode
//
// SetVerbose(true) lowers the level to Debug and prefixes every message
// with the caller's file and line:
//
//	[2024-01-02 15:04:05.000] [DEBUG] [worker-0] (worker.go:88) got a job
//
// # Log Files
//
// NewFile writes to a size-rotated file (lumberjack). Call Close on
// shutdown to release it.
//
// # Thread Safety
//
// All logging operations are protected by a mutex and safe for concurrent use.
package logger
