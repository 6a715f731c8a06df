package storage

import (
	"errors"
	"time"

	"github.com/open-xchange/drivesync/internal/syncplan"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

// FileRecord is one row of the files table. Times are unix milliseconds.
type FileRecord struct {
	Folder      string `db:"folder"`
	Name        string `db:"name"`
	Checksum    string `db:"checksum"`
	Size        int64  `db:"size"`
	ContentType string `db:"content_type"`
	Created     int64  `db:"created"`
	Modified    int64  `db:"modified"`
}

func (r *FileRecord) Version() syncplan.FileVersion {
	return syncplan.FileVersion{Name: r.Name, Checksum: r.Checksum}
}

func (r *FileRecord) Metadata() *syncplan.FileMetadata {
	return &syncplan.FileMetadata{
		Folder:      r.Folder,
		Name:        r.Name,
		Checksum:    r.Checksum,
		Size:        r.Size,
		ContentType: r.ContentType,
		Created:     fromMillis(r.Created),
		Modified:    fromMillis(r.Modified),
	}
}

// FolderRecord is one row of the folders table. The checksum is derived from
// the path and the creation time, so it changes only when the folder is
// recreated.
type FolderRecord struct {
	Path     string `db:"path"`
	Checksum string `db:"checksum"`
	Created  int64  `db:"created"`
}

func (r *FolderRecord) Version() syncplan.DirectoryVersion {
	return syncplan.DirectoryVersion{Path: r.Path, Checksum: r.Checksum}
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
