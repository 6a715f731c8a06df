package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"
	"github.com/open-xchange/drivesync/internal/db"
	"github.com/open-xchange/drivesync/internal/server/drive"
	"github.com/open-xchange/drivesync/internal/server/journal"
	"github.com/open-xchange/drivesync/internal/server/storage"
	"github.com/open-xchange/drivesync/internal/utils"
)

var ErrDatabaseLocked = errors.New("database locked by another process")

type Services struct {
	DB      *sqlx.DB
	Store   *storage.Store
	Drive   *drive.DriveService
	Journal *journal.Journal

	lock *flock.Flock
}

func NewServices(config *Config) (_ *Services, err error) {
	svc := &Services{}
	defer func() {
		if err != nil {
			svc.Shutdown(context.Background())
		}
	}()

	// one server per database file
	if config.DB.Path != db.MemoryPath {
		if err := utils.EnsureParent(config.DB.Path); err != nil {
			return nil, err
		}
		svc.lock = flock.New(config.DB.Path + ".lock")
		locked, err := svc.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock database: %w", err)
		}
		if !locked {
			return nil, ErrDatabaseLocked
		}
	}

	svc.DB, err = db.NewSqliteDB(db.WithPath(config.DB.Path))
	if err != nil {
		return nil, err
	}

	svc.Store, err = storage.NewStore(svc.DB)
	if err != nil {
		return nil, err
	}

	links, err := storage.NewLinkGenerator(config.Links.BaseURL)
	if err != nil {
		return nil, err
	}

	svc.Drive, err = drive.NewDriveService(&config.Sync, svc.Store, links)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	if config.LogDir != "" {
		svc.Journal, err = journal.New(filepath.Join(config.LogDir, "journal"), slog.Default())
		if err != nil {
			return nil, fmt.Errorf("create sync journal: %w", err)
		}
	}

	return svc, nil
}

func (s *Services) Shutdown(ctx context.Context) error {
	var errs []error
	if s.Journal != nil {
		if err := s.Journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sync journal: %w", err))
		}
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if s.lock != nil && s.lock.Locked() {
		if err := s.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("unlock database: %w", err))
		}
	}
	return errors.Join(errs...)
}
