// Package journal keeps a per-client record of sync requests as rotated
// JSON-lines files.
package journal

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2"
)

const anonymousClient = "anonymous"

type Journal struct {
	baseDir    string
	maxSize    int64
	maxFiles   int
	maxWriters int
	now        func() time.Time
	logger     *slog.Logger

	// open writers of the most recently active clients; evicted ones are closed
	writers     *lru.Cache[string, *clientLogWriter]
	writerMutex sync.Mutex
}

type Option func(*Journal)

func WithMaxSize(n int64) Option {
	return func(j *Journal) {
		j.maxSize = n
	}
}

func WithMaxFiles(n int) Option {
	return func(j *Journal) {
		j.maxFiles = n
	}
}

// WithMaxWriters bounds the number of client journals kept open at once.
func WithMaxWriters(n int) Option {
	return func(j *Journal) {
		j.maxWriters = n
	}
}

func New(baseDir string, logger *slog.Logger, opts ...Option) (*Journal, error) {
	if err := os.MkdirAll(baseDir, LogDirPermission); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	j := &Journal{
		baseDir:    baseDir,
		maxSize:    MaxLogSize,
		maxFiles:   MaxLogFiles,
		maxWriters: MaxOpenWriters,
		now:        time.Now,
		logger:     logger.With("component", "sync_journal"),
	}
	for _, opt := range opts {
		opt(j)
	}

	writers, err := lru.NewWithEvict(j.maxWriters, func(client string, w *clientLogWriter) {
		if err := w.close(); err != nil {
			j.logger.Warn("failed to close sync journal", "client", client, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create journal writer cache: %w", err)
	}
	j.writers = writers
	return j, nil
}

// Client returns the journal key of the requesting client.
func Client(ctx *gin.Context) string {
	if ip := ctx.ClientIP(); ip != "" {
		return ip
	}
	return anonymousClient
}

// LogSync fills in the request details of entry and appends it to the
// journal of the requesting client. Failures are logged, not returned.
func (j *Journal) LogSync(ctx *gin.Context, entry Entry) {
	entry.Timestamp = j.now()
	entry.Client = Client(ctx)
	entry.UserAgent = ctx.Request.UserAgent()

	if err := j.write(entry.Client, entry); err != nil {
		j.logger.Error("failed to write sync journal", "client", entry.Client, "syncId", entry.SyncID, "error", err)
	}
}

// write holds writerMutex for the whole append so that an eviction never
// closes a writer in use.
func (j *Journal) write(client string, entry Entry) error {
	j.writerMutex.Lock()
	defer j.writerMutex.Unlock()

	writer, ok := j.writers.Get(client)
	if !ok {
		var err error
		writer, err = j.newClientWriter(client)
		if err != nil {
			return err
		}
		j.writers.Add(client, writer)
	}
	return writer.writeEntry(entry)
}

// openWriters returns the number of client journals currently open.
func (j *Journal) openWriters() int {
	j.writerMutex.Lock()
	defer j.writerMutex.Unlock()
	return j.writers.Len()
}

func (j *Journal) newClientWriter(client string) (*clientLogWriter, error) {
	dir := filepath.Join(j.baseDir, sanitizeClient(client))
	if err := os.MkdirAll(dir, LogDirPermission); err != nil {
		return nil, fmt.Errorf("failed to create client journal directory: %w", err)
	}
	w := &clientLogWriter{
		logDir:   dir,
		maxSize:  j.maxSize,
		maxFiles: j.maxFiles,
		now:      j.now,
	}
	if err := w.openLogFile(); err != nil {
		return nil, err
	}
	return w, nil
}

// Recent returns up to limit of the client's newest entries, oldest first.
func (j *Journal) Recent(client string, limit int) ([]Entry, error) {
	dir := filepath.Join(j.baseDir, sanitizeClient(client))
	rotated, err := rotatedFiles(dir)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	files := append(rotated, "sync.log")

	var entries []Entry
	for i := len(files) - 1; i >= 0 && len(entries) < limit; i-- {
		fileEntries, err := readJournalFile(filepath.Join(dir, files[i]))
		if os.IsNotExist(err) {
			continue
		} else if err != nil {
			j.logger.Warn("failed to read journal file", "file", files[i], "error", err)
			continue
		}
		entries = append(fileEntries, entries...)
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func (j *Journal) Close() error {
	j.writerMutex.Lock()
	defer j.writerMutex.Unlock()

	var firstErr error
	for _, client := range j.writers.Keys() {
		if w, ok := j.writers.Peek(client); ok {
			if err := w.close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	// closing twice is a no-op
	j.writers.Purge()
	return firstErr
}

func readJournalFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry Entry
		// skip torn lines
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}

// sanitizeClient converts a client address to a filesystem-safe directory name.
func sanitizeClient(client string) string {
	result := make([]byte, 0, len(client))
	for i := 0; i < len(client); i++ {
		c := client[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '.' || c == '-' {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}
	return string(result)
}
