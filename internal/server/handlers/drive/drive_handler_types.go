package drive

import (
	"github.com/open-xchange/drivesync/internal/server/journal"
	"github.com/open-xchange/drivesync/internal/wire"
)

type FolderSyncRequest struct {
	OriginalVersions    []wire.DirectoryVersion `json:"originalVersions"`
	ClientVersions      []wire.DirectoryVersion `json:"clientVersions"`
	DirectoryExclusions []string                `json:"directoryExclusions"`
}

type FileSyncRequest struct {
	Path             string             `json:"path"`
	OriginalVersions []wire.FileVersion `json:"originalVersions"`
	ClientVersions   []wire.FileVersion `json:"clientVersions"`
	FileExclusions   []string           `json:"fileExclusions"`
}

type SyncResponse struct {
	SyncID  string        `json:"syncId"`
	Path    string        `json:"path"`
	Actions []wire.Action `json:"actions"`
	Stopped bool          `json:"stopped,omitempty"`
}

type UploadCompleteRequest struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Checksum    string `json:"checksum"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

type UploadCompleteResponse struct {
	Action wire.Action `json:"action"`
}

type JournalResponse struct {
	Entries []journal.Entry `json:"entries"`
}
