// Package ytlog provides the application's zerolog-backed logger, with a
// log file that is rotated at startup and again mid-run if it grows past
// a size threshold.
package ytlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Log is the global application logger.
var Log zerolog.Logger

const (
	maxLogSize    = 10 * 1024 * 1024 // 10 MB per file
	maxLogBackups = 5
	logFileName   = "latest.log"
)

// Init opens userDataDir/logs/latest.log, rotating any previous run's log
// out of the way first, and installs Log as the global logger at the
// level named by logLevel ("DEBUG"|"INFO"|"WARNING"|"ERROR"|"CRITICAL").
func Init(userDataDir, logLevel string) error {
	logDir := filepath.Join(userDataDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	logPath := filepath.Join(logDir, logFileName)
	rotatePreviousRun(logPath)

	writer := &rotatingWriter{
		path:       logPath,
		maxSize:    maxLogSize,
		maxBackups: maxLogBackups,
	}
	if err := writer.open(); err != nil {
		return err
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(levelFromString(logLevel))

	Log = zerolog.New(writer).With().Timestamp().Logger()
	Log.Info().Str("logPath", logPath).Msg("logger initialized")
	return nil
}

// levelFromString maps the config schema's log_level values (§6) onto
// zerolog levels; CRITICAL has no direct zerolog equivalent and maps to
// zerolog's highest severity, Panic, the way the original app treats it
// as "above error".
func levelFromString(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "CRITICAL":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// rotatePreviousRun renames an existing latest.log from a prior run to a
// timestamped backup, so each run starts with a clean file (§6's on-disk
// layout: "previous rotated to <YYYY-MM-DD_HH-MM-SS>.log on startup").
func rotatePreviousRun(logPath string) {
	info, err := os.Stat(logPath)
	if err != nil || info.Size() == 0 {
		return
	}
	dir := filepath.Dir(logPath)
	backup := filepath.Join(dir, time.Now().Format("2006-01-02_15-04-05")+".log")
	os.Rename(logPath, backup)
}

// rotatingWriter implements io.Writer with size-based log rotation. When
// the current file exceeds maxSize, it is renamed to a timestamped backup
// and a new file is created. Backups beyond maxBackups are removed.
type rotatingWriter struct {
	mu         sync.Mutex
	path       string
	maxSize    int64
	maxBackups int
	file       *os.File
	size       int64
}

func (w *rotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	w.file = f
	w.size = info.Size()
	return nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}

	backup := filepath.Join(filepath.Dir(w.path), "run-"+time.Now().Format("2006-01-02_15-04-05")+".log")
	if err := os.Rename(w.path, backup); err != nil {
		w.open()
		return err
	}

	if err := w.open(); err != nil {
		return err
	}

	go w.cleanOldBackups()
	return nil
}

func (w *rotatingWriter) cleanOldBackups() {
	dir := filepath.Dir(w.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var backups []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".log") && name != logFileName {
			backups = append(backups, filepath.Join(dir, name))
		}
	}

	sort.Strings(backups)
	for len(backups) > w.maxBackups {
		os.Remove(backups[0])
		backups = backups[1:]
	}
}

// Writer exposes the underlying io.Writer for tests or alternative sinks.
var _ io.Writer = (*rotatingWriter)(nil)
