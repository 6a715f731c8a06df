package journal

import (
	"time"

	"github.com/goccy/go-json"
)

const (
	MaxLogSize        = 10 * 1024 * 1024 // 10MB
	MaxLogFiles       = 5
	MaxOpenWriters    = 256
	LogFilePermission = 0600
	LogDirPermission  = 0700

	timestampLayout = "2006-01-02 15:04:05.000 UTC"
)

type Operation string

const (
	OpSyncFolders    Operation = "sync_folders"
	OpSyncFiles      Operation = "sync_files"
	OpCompleteUpload Operation = "complete_upload"
)

// Entry is one line of a client's sync journal.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	SyncID    string    `json:"sync_id,omitempty"`
	Operation Operation `json:"operation"`
	Path      string    `json:"path"`
	Client    string    `json:"client"`
	UserAgent string    `json:"user_agent"`
	Actions   int       `json:"actions"`
	Stopped   bool      `json:"stopped,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type entryJSON struct {
	Timestamp string    `json:"timestamp"`
	SyncID    string    `json:"sync_id,omitempty"`
	Operation Operation `json:"operation"`
	Path      string    `json:"path"`
	Client    string    `json:"client"`
	UserAgent string    `json:"user_agent"`
	Actions   int       `json:"actions"`
	Stopped   bool      `json:"stopped,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// MarshalJSON writes the timestamp in a human-readable UTC form.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(&entryJSON{
		Timestamp: e.Timestamp.UTC().Format(timestampLayout),
		SyncID:    e.SyncID,
		Operation: e.Operation,
		Path:      e.Path,
		Client:    e.Client,
		UserAgent: e.UserAgent,
		Actions:   e.Actions,
		Stopped:   e.Stopped,
		Error:     e.Error,
	})
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var aux entryJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	ts, err := time.Parse(timestampLayout, aux.Timestamp)
	if err != nil {
		return err
	}
	*e = Entry{
		Timestamp: ts,
		SyncID:    aux.SyncID,
		Operation: aux.Operation,
		Path:      aux.Path,
		Client:    aux.Client,
		UserAgent: aux.UserAgent,
		Actions:   aux.Actions,
		Stopped:   aux.Stopped,
		Error:     aux.Error,
	}
	return nil
}
