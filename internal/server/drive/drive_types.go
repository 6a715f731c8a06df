package drive

import (
	"github.com/open-xchange/drivesync/internal/syncplan"
)

// FolderSyncRequest carries the client's view of the directory tree.
type FolderSyncRequest struct {
	Original   []syncplan.DirectoryVersion
	Client     []syncplan.DirectoryVersion
	Exclusions []string
}

// FileSyncRequest carries the client's view of one folder.
type FileSyncRequest struct {
	Path       string
	Original   []syncplan.FileVersion
	Client     []syncplan.FileVersion
	Exclusions []string
}

// SyncResult is the outcome of one sync request. Actions are the ordered
// client-side actions; server-side actions have already been applied.
type SyncResult struct {
	SyncID  string
	Path    string
	Actions []*syncplan.Action
	Stopped bool
}

// UploadCompletion describes a file the client finished uploading.
type UploadCompletion struct {
	Path        string
	Name        string
	Checksum    string
	Size        int64
	ContentType string
}

func (u *UploadCompletion) version() syncplan.FileVersion {
	return syncplan.FileVersion{Name: u.Name, Checksum: u.Checksum}
}

// pendingUpload remembers an UPLOAD handed out to a client until it completes.
type pendingUpload struct {
	syncID   string
	previous syncplan.Version
}
