package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/open-xchange/drivesync/internal/utils"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS folders (
	path TEXT PRIMARY KEY,
	checksum TEXT NOT NULL,
	created INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	folder TEXT NOT NULL REFERENCES folders(path),
	name TEXT NOT NULL,
	checksum TEXT NOT NULL,
	size INTEGER NOT NULL,
	content_type TEXT NOT NULL,
	created INTEGER NOT NULL,
	modified INTEGER NOT NULL,
	PRIMARY KEY (folder, name)
);

CREATE INDEX IF NOT EXISTS idx_files_checksum ON files(checksum);
`

const (
	fileColumns   = "folder, name, checksum, size, content_type, created, modified"
	folderColumns = "path, checksum, created"
)

// Store keeps the server state of the synchronized tree: files with their
// metadata and folders with checksums over their own metadata.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore applies the schema to db and makes sure the root folder exists.
func NewStore(db *sqlx.DB) (*Store, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.PutFolder("/"); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GetFile returns the file record or ErrNotFound.
func (s *Store) GetFile(folder, name string) (*FileRecord, error) {
	var rec FileRecord
	err := s.db.Get(&rec, "SELECT "+fileColumns+" FROM files WHERE folder = ? AND name = ?", utils.CleanDrivePath(folder), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", path.Join(folder, name), ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return &rec, nil
}

// ListFiles returns the files directly inside folder, ordered by name.
func (s *Store) ListFiles(folder string) ([]*FileRecord, error) {
	var recs []*FileRecord
	err := s.db.Select(&recs, "SELECT "+fileColumns+" FROM files WHERE folder = ? ORDER BY name", utils.CleanDrivePath(folder))
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return recs, nil
}

// PutFile creates or replaces a file. Missing folders are created. A zero
// Created keeps the creation time of a replaced file.
func (s *Store) PutFile(rec *FileRecord) error {
	rec.Folder = utils.CleanDrivePath(rec.Folder)
	now := s.now().UnixMilli()
	if rec.Modified == 0 {
		rec.Modified = now
	}
	if rec.ContentType == "" {
		rec.ContentType = utils.DetectContentType(rec.Name)
	}

	return s.inTx(func(tx *sqlx.Tx) error {
		if err := ensureFolders(tx, rec.Folder, now); err != nil {
			return err
		}
		if rec.Created == 0 {
			err := tx.Get(&rec.Created, "SELECT created FROM files WHERE folder = ? AND name = ?", rec.Folder, rec.Name)
			if errors.Is(err, sql.ErrNoRows) {
				rec.Created = now
			} else if err != nil {
				return err
			}
		}
		_, err := tx.NamedExec(
			`INSERT OR REPLACE INTO files (`+fileColumns+`)
			VALUES (:folder, :name, :checksum, :size, :content_type, :created, :modified)`, rec)
		if err != nil {
			return fmt.Errorf("failed to put file %s: %w", rec.Name, err)
		}
		return nil
	})
}

// RemoveFile deletes a file. Removing an absent file is not an error.
func (s *Store) RemoveFile(folder, name string) error {
	_, err := s.db.Exec("DELETE FROM files WHERE folder = ? AND name = ?", utils.CleanDrivePath(folder), name)
	if err != nil {
		return fmt.Errorf("failed to remove file %s: %w", name, err)
	}
	return nil
}

// RenameFile renames a file inside its folder and returns the renamed record.
func (s *Store) RenameFile(folder, from, to string) (*FileRecord, error) {
	folder = utils.CleanDrivePath(folder)
	var renamed FileRecord
	err := s.inTx(func(tx *sqlx.Tx) error {
		var taken int
		if err := tx.Get(&taken, "SELECT COUNT(*) FROM files WHERE folder = ? AND name = ?", folder, to); err != nil {
			return err
		}
		if taken > 0 {
			return fmt.Errorf("file %s: %w", path.Join(folder, to), ErrExists)
		}

		res, err := tx.Exec("UPDATE files SET name = ?, modified = ? WHERE folder = ? AND name = ?",
			to, s.now().UnixMilli(), folder, from)
		if err != nil {
			return fmt.Errorf("failed to rename file %s: %w", from, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("file %s: %w", path.Join(folder, from), ErrNotFound)
		}
		return tx.Get(&renamed, "SELECT "+fileColumns+" FROM files WHERE folder = ? AND name = ?", folder, to)
	})
	if err != nil {
		return nil, err
	}
	return &renamed, nil
}

// PutFolder creates a folder and its ancestors. Existing folders keep their
// checksum.
func (s *Store) PutFolder(p string) error {
	now := s.now().UnixMilli()
	return s.inTx(func(tx *sqlx.Tx) error {
		return ensureFolders(tx, utils.CleanDrivePath(p), now)
	})
}

// GetFolder returns the folder record or ErrNotFound.
func (s *Store) GetFolder(p string) (*FolderRecord, error) {
	var rec FolderRecord
	err := s.db.Get(&rec, "SELECT "+folderColumns+" FROM folders WHERE path = ?", utils.CleanDrivePath(p))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("folder %s: %w", p, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	return &rec, nil
}

// ListFolders returns all folders ordered by path.
func (s *Store) ListFolders() ([]*FolderRecord, error) {
	var recs []*FolderRecord
	if err := s.db.Select(&recs, "SELECT "+folderColumns+" FROM folders ORDER BY path"); err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return recs, nil
}

// RemoveFolder deletes a folder with all its subfolders and files. The root
// cannot be removed.
func (s *Store) RemoveFolder(p string) error {
	p = utils.CleanDrivePath(p)
	if p == "/" {
		return fmt.Errorf("cannot remove the root folder")
	}
	below := escapeLike(p) + "/%"
	return s.inTx(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`DELETE FROM files WHERE folder = ? OR folder LIKE ? ESCAPE '\'`, p, below); err != nil {
			return fmt.Errorf("failed to remove files below %s: %w", p, err)
		}
		if _, err := tx.Exec(`DELETE FROM folders WHERE path = ? OR path LIKE ? ESCAPE '\'`, p, below); err != nil {
			return fmt.Errorf("failed to remove folder %s: %w", p, err)
		}
		return nil
	})
}

func (s *Store) inTx(fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func ensureFolders(tx *sqlx.Tx, p string, created int64) error {
	for ; ; p = path.Dir(p) {
		res, err := tx.Exec("INSERT OR IGNORE INTO folders ("+folderColumns+") VALUES (?, ?, ?)",
			p, folderChecksum(p, created), created)
		if err != nil {
			return fmt.Errorf("failed to create folder %s: %w", p, err)
		}
		// ancestors of an existing folder exist as well
		if n, _ := res.RowsAffected(); n == 0 || p == "/" {
			return nil
		}
	}
}

// folderChecksum digests the folder's own metadata. The files inside do not
// contribute, they are synchronized per folder.
func folderChecksum(p string, created int64) string {
	h := sha256.New()
	h.Write([]byte(p))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(created, 10)))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
