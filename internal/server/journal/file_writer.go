package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

type clientLogWriter struct {
	mu          sync.Mutex
	logDir      string
	file        *os.File
	currentFile string
	currentSize int64
	maxSize     int64
	maxFiles    int
	now         func() time.Time
}

// writeEntry appends the entry as one JSON line, rotating first when the
// line would push the file over maxSize.
func (w *clientLogWriter) writeEntry(entry Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}
	data = append(data, '\n')

	if w.currentSize > 0 && w.currentSize+int64(len(data)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return fmt.Errorf("failed to rotate journal: %w", err)
		}
	}

	n, err := w.file.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}
	w.currentSize += int64(n)
	return nil
}

func (w *clientLogWriter) openLogFile() error {
	logPath := filepath.Join(w.logDir, "sync.log")

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, LogFilePermission)
	if err != nil {
		return fmt.Errorf("failed to open journal file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat journal file: %w", err)
	}

	w.file = file
	w.currentFile = logPath
	w.currentSize = stat.Size()
	return nil
}

// rotate moves the active file aside under a timestamped name and reopens.
func (w *clientLogWriter) rotate() error {
	if w.file != nil {
		w.file.Close()
	}

	rotated := filepath.Join(w.logDir, fmt.Sprintf("sync_%s.log", w.now().UTC().Format("20060102_150405.000000000")))
	if err := os.Rename(w.currentFile, rotated); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rename journal file: %w", err)
	}
	if err := w.cleanOldLogs(); err != nil {
		return fmt.Errorf("failed to clean old journals: %w", err)
	}
	return w.openLogFile()
}

// cleanOldLogs keeps the newest maxFiles-1 rotated files next to the active one.
func (w *clientLogWriter) cleanOldLogs() error {
	rotated, err := rotatedFiles(w.logDir)
	if err != nil {
		return err
	}
	keep := max(w.maxFiles-1, 0)
	if len(rotated) <= keep {
		return nil
	}
	for _, name := range rotated[:len(rotated)-keep] {
		if err := os.Remove(filepath.Join(w.logDir, name)); err != nil {
			return fmt.Errorf("failed to remove old journal file: %w", err)
		}
	}
	return nil
}

func (w *clientLogWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// rotatedFiles lists rotated journal files, oldest first.
func rotatedFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "sync_") && filepath.Ext(e.Name()) == ".log" {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
