package journal

import (
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(remoteAddr string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/v1/sync/files", nil)
	c.Request.RemoteAddr = remoteAddr
	c.Request.Header.Set("User-Agent", "drive-client/1.0")
	return c
}

func TestEntry_TimestampFormat(t *testing.T) {
	entry := Entry{
		Timestamp: time.Date(2024, 12, 2, 14, 30, 22, 123456789, time.UTC),
		Operation: OpSyncFiles,
		Path:      "/docs",
		Actions:   3,
	}
	data, err := json.Marshal(entry)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "2024-12-02 14:30:22.123 UTC", raw["timestamp"])
	assert.NotContains(t, raw, "stopped")

	var decoded Entry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, entry.Timestamp.UnixMilli(), decoded.Timestamp.UnixMilli())
	assert.Equal(t, OpSyncFiles, decoded.Operation)
}

func TestJournal_LogSyncAndRecent(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir, slog.Default())
	require.NoError(t, err)
	defer j.Close()

	for i := range 3 {
		j.LogSync(newTestContext("10.0.0.7:5555"), Entry{SyncID: fmt.Sprint(i), Operation: OpSyncFiles, Path: "/docs", Actions: i})
	}
	j.LogSync(newTestContext("10.0.0.8:5555"), Entry{Operation: OpSyncFolders, Path: "/", Stopped: true})

	assert.FileExists(t, filepath.Join(dir, "10.0.0.7", "sync.log"))
	assert.FileExists(t, filepath.Join(dir, "10.0.0.8", "sync.log"))

	entries, err := j.Recent("10.0.0.7", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0].SyncID)
	assert.Equal(t, "2", entries[1].SyncID)
	assert.Equal(t, "drive-client/1.0", entries[1].UserAgent)
	assert.Equal(t, "10.0.0.7", entries[1].Client)

	entries, err = j.Recent("10.0.0.8", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Stopped)

	entries, err = j.Recent("10.9.9.9", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJournal_Rotation(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir, slog.Default(), WithMaxSize(200), WithMaxFiles(3))
	require.NoError(t, err)
	defer j.Close()

	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	for i := range 20 {
		j.LogSync(newTestContext("192.168.1.2:80"), Entry{SyncID: fmt.Sprint(i), Operation: OpCompleteUpload, Path: "/a"})
	}

	rotated, err := rotatedFiles(filepath.Join(dir, "192.168.1.2"))
	require.NoError(t, err)
	assert.Len(t, rotated, 2, "at most max files including the active one")

	entries, err := j.Recent("192.168.1.2", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "19", entries[0].SyncID)
}

func TestJournal_BoundedOpenWriters(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir, slog.Default(), WithMaxWriters(4))
	require.NoError(t, err)
	defer j.Close()

	for i := range 20 {
		j.LogSync(newTestContext(fmt.Sprintf("10.1.0.%d:4000", i)), Entry{SyncID: fmt.Sprint(i), Operation: OpSyncFiles})
	}
	assert.Equal(t, 4, j.openWriters())

	// an evicted client reopens its journal and appends
	j.LogSync(newTestContext("10.1.0.0:4000"), Entry{SyncID: "again", Operation: OpSyncFiles})
	entries, err := j.Recent("10.1.0.0", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "0", entries[0].SyncID)
	assert.Equal(t, "again", entries[1].SyncID)
	assert.Equal(t, 4, j.openWriters())
}

func TestJournal_UntrustedForwardedFor(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir, slog.Default())
	require.NoError(t, err)
	defer j.Close()

	gin.SetMode(gin.TestMode)
	for i := range 50 {
		c, engine := gin.CreateTestContext(httptest.NewRecorder())
		require.NoError(t, engine.SetTrustedProxies(nil))
		c.Request = httptest.NewRequest("POST", "/api/v1/sync/files", nil)
		c.Request.RemoteAddr = "198.51.100.7:1234"
		c.Request.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		j.LogSync(c, Entry{Operation: OpSyncFiles})
	}

	assert.Equal(t, 1, j.openWriters())
	entries, err := j.Recent("198.51.100.7", 100)
	require.NoError(t, err)
	assert.Len(t, entries, 50)
}

func TestJournal_RecentSkipsTornLines(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir, slog.Default())
	require.NoError(t, err)
	defer j.Close()

	j.LogSync(newTestContext("127.0.0.1:1"), Entry{SyncID: "ok", Operation: OpSyncFiles})
	f, err := os.OpenFile(filepath.Join(dir, "127.0.0.1", "sync.log"), os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("{\"timestamp\":\n")
	require.NoError(t, err)
	f.Close()

	entries, err := j.Recent("127.0.0.1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ok", entries[0].SyncID)
}

func TestSanitizeClient(t *testing.T) {
	assert.Equal(t, "10.0.0.1", sanitizeClient("10.0.0.1"))
	assert.Equal(t, "__1", sanitizeClient("::1"))
	assert.Equal(t, "a_b", sanitizeClient("a/b"))
}
