package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// dailyRotateWriter writes to <dir>/<prefix>-YYYY-MM-DD.log and switches
// files at the date boundary. Files older than the retention window are
// pruned on rotation.
type dailyRotateWriter struct {
	mu            sync.Mutex
	dir           string
	prefix        string
	retentionDays int

	file    *os.File
	curDate string
}

func newDailyRotateWriter(dir, prefix string, retentionDays int) *dailyRotateWriter {
	return &dailyRotateWriter{
		dir:           dir,
		prefix:        prefix,
		retentionDays: retentionDays,
	}
}

func (w *dailyRotateWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	date := time.Now().Format("2006-01-02")
	if w.file == nil || date != w.curDate {
		if err := w.rotate(date); err != nil {
			return 0, err
		}
	}
	return w.file.Write(p)
}

func (w *dailyRotateWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *dailyRotateWriter) rotate(date string) error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}

	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.log", w.prefix, date))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	w.file = file
	w.curDate = date

	w.prune()
	return nil
}

// prune removes rotated files older than the retention window. Best effort.
func (w *dailyRotateWriter) prune() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -w.retentionDays)

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, w.prefix+"-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(name, w.prefix+"-"), ".log")
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			continue
		}
		if date.Before(cutoff) {
			_ = os.Remove(filepath.Join(w.dir, name))
		}
	}
}
