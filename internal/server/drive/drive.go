package drive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/open-xchange/drivesync/internal/server/storage"
	"github.com/open-xchange/drivesync/internal/syncplan"
	"github.com/open-xchange/drivesync/internal/utils"
)

var (
	ErrInvalidRequest = errors.New("invalid sync request")
	ErrUnknownUpload  = errors.New("no pending upload")
)

const maxPendingUploads = 65536

// DriveService plans synchronization against the server store and applies
// the server-side part of each plan before handing the rest to the client.
type DriveService struct {
	config     Config
	store      *storage.Store
	metadata   *storage.MetadataProvider
	links      syncplan.LinkGenerator
	planner    *syncplan.Planner
	exclusions *syncplan.Exclusions
	uploads    *expirable.LRU[string, *pendingUpload]

	// serializes plan and execute against the store
	mu sync.Mutex
}

// NewDriveService wires a service. links may be nil.
func NewDriveService(config *Config, store *storage.Store, links *storage.LinkGenerator) (*DriveService, error) {
	rules, err := loadRules(config.RulesFile)
	if err != nil {
		return nil, err
	}
	cfg := rules.apply(*config)

	metadata := storage.NewMetadataProvider(store, cfg.MetadataCacheSize, cfg.MetadataCacheTTL)
	opts := []syncplan.PlannerOption{
		syncplan.WithMetadata(metadata),
		syncplan.WithRenameDetection(cfg.DetectRenames),
	}

	svc := &DriveService{
		config:     cfg,
		store:      store,
		metadata:   metadata,
		exclusions: syncplan.NewExclusions(cfg.Exclusions...),
		uploads:    expirable.NewLRU[string, *pendingUpload](maxPendingUploads, nil, cfg.UploadTTL),
	}
	// a typed nil must not end up in the interface
	if links != nil {
		svc.links = links
		opts = append(opts, syncplan.WithLinks(links))
	}
	svc.planner = syncplan.NewPlanner(opts...)

	slog.Info("drive service", "exclusions", len(cfg.Exclusions), "detectRenames", cfg.DetectRenames, "links", links != nil)
	return svc, nil
}

// SyncFolders plans the directory tree.
func (s *DriveService) SyncFolders(ctx context.Context, req *FolderSyncRequest) (*SyncResult, error) {
	exclusions, err := s.exclusions.WithClientPatterns(req.Exclusions...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := &SyncResult{SyncID: uuid.NewString(), Path: "/"}

	folders, err := s.store.ListFolders()
	if err != nil {
		return s.fatal(result, err), nil
	}
	server := make([]syncplan.DirectoryVersion, 0, len(folders))
	for _, f := range folders {
		server = append(server, f.Version())
	}

	comparisons := syncplan.CompareDirectories(cleanDirectories(req.Original), cleanDirectories(req.Client), server)
	comparisons = syncplan.Changed(exclusions.Filter("", comparisons))

	plan := s.planner.PlanDirectories(comparisons)
	if err := s.execute(ctx, "", plan); err != nil {
		return s.fatal(result, err), nil
	}

	s.finish(result, plan)
	slog.Info("sync folders", "syncId", result.SyncID, "comparisons", len(comparisons), "actions", len(result.Actions))
	return result, nil
}

// SyncFiles plans the files of one folder.
func (s *DriveService) SyncFiles(ctx context.Context, req *FileSyncRequest) (*SyncResult, error) {
	if strings.TrimSpace(req.Path) == "" {
		return nil, fmt.Errorf("%w: missing path", ErrInvalidRequest)
	}
	exclusions, err := s.exclusions.WithClientPatterns(req.Exclusions...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	folder := utils.CleanDrivePath(req.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	result := &SyncResult{SyncID: uuid.NewString(), Path: folder}

	// a folder uploaded by the client comes into existence with its first file sync
	if err := s.store.PutFolder(folder); err != nil {
		return s.fatal(result, err), nil
	}
	records, err := s.store.ListFiles(folder)
	if err != nil {
		return s.fatal(result, err), nil
	}
	server := make([]syncplan.FileVersion, 0, len(records))
	for _, rec := range records {
		server = append(server, rec.Version())
	}

	comparisons := syncplan.CompareFiles(req.Original, req.Client, server)
	comparisons = syncplan.Changed(exclusions.Filter(folder, comparisons))

	plan := s.planner.PlanFiles(folder, comparisons)
	if err := s.execute(ctx, folder, plan); err != nil {
		return s.fatal(result, err), nil
	}

	for _, a := range plan.ClientActions() {
		if a.Kind == syncplan.ActionUpload && a.NewVersion != nil {
			s.uploads.Add(uploadKey(folder, a.NewVersion), &pendingUpload{syncID: result.SyncID, previous: a.Version})
		}
	}

	s.finish(result, plan)
	slog.Info("sync files", "syncId", result.SyncID, "path", folder, "comparisons", len(comparisons), "actions", len(result.Actions))
	return result, nil
}

// CompleteUpload records a finished upload and returns the acknowledgment
// the client stores as its new baseline for the file.
func (s *DriveService) CompleteUpload(ctx context.Context, up *UploadCompletion) (*syncplan.Action, error) {
	if up.Name == "" || up.Checksum == "" || strings.ContainsAny(up.Name, `/\`) {
		return nil, fmt.Errorf("%w: upload needs a plain name and a checksum", ErrInvalidRequest)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	folder := utils.CleanDrivePath(up.Path)
	version := up.version()

	s.mu.Lock()
	defer s.mu.Unlock()

	key := uploadKey(folder, version)
	pending, ok := s.uploads.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUpload, key)
	}

	batch := syncplan.NewBatch(s.links)
	upload := syncplan.NewUpload(pending.previous, version, folder, up.Size)
	upload.Side = syncplan.SideServer
	uploadID := batch.Add(upload)
	ack := syncplan.NewAcknowledge(pending.previous, version, folder, nil)
	ackID := batch.Add(ack)
	if err := batch.DependOn(ackID, uploadID); err != nil {
		return nil, err
	}

	rec := &storage.FileRecord{
		Folder:      folder,
		Name:        up.Name,
		Checksum:    up.Checksum,
		Size:        up.Size,
		ContentType: up.ContentType,
	}
	if err := s.store.PutFile(rec); err != nil {
		return nil, fmt.Errorf("record upload: %w", err)
	}
	s.metadata.Forget(folder, up.Name)
	s.uploads.Remove(key)

	if err := batch.SetResult(uploadID, version, rec.Metadata()); err != nil {
		return nil, err
	}
	batch.Resolve()

	slog.Info("upload complete", "syncId", pending.syncID, "path", folder, "name", up.Name, "size", humanize.Bytes(uint64(max(up.Size, 0))))
	return ack, nil
}

// execute applies the server-side actions of a plan in order and resolves
// the dependents of their results.
func (s *DriveService) execute(ctx context.Context, folder string, plan *syncplan.Plan) error {
	for _, id := range plan.IDs() {
		a, err := plan.Action(id)
		if err != nil {
			return err
		}
		if a.Side != syncplan.SideServer {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		switch a.Kind {
		case syncplan.ActionRemove:
			err = s.remove(folder, a)
		case syncplan.ActionEdit:
			err = s.rename(folder, plan, id, a)
		default:
			err = fmt.Errorf("unsupported server action %s", a.Kind)
		}
		if err != nil {
			return fmt.Errorf("apply %s %s: %w", a.Kind, a.Version.Identity(), err)
		}
		slog.Debug("applied server action", "action", a)
	}
	plan.Resolve()
	return nil
}

func (s *DriveService) remove(folder string, a *syncplan.Action) error {
	if a.Family() == syncplan.FamilyDirectory {
		return s.store.RemoveFolder(a.Version.Identity())
	}
	s.metadata.Forget(folder, a.Version.Identity())
	return s.store.RemoveFile(folder, a.Version.Identity())
}

func (s *DriveService) rename(folder string, plan *syncplan.Plan, id syncplan.ActionID, a *syncplan.Action) error {
	if a.Family() != syncplan.FamilyFile {
		return fmt.Errorf("directory renames are not planned on the server")
	}
	from, to := a.Version.Identity(), a.NewVersion.Identity()
	rec, err := s.store.RenameFile(folder, from, to)
	if err != nil {
		return err
	}
	s.metadata.Forget(folder, from)
	return plan.SetResult(id, rec.Version(), rec.Metadata())
}

// fatal replaces the result with a stop error.
func (s *DriveService) fatal(result *SyncResult, err error) *SyncResult {
	plan := syncplan.FatalPlan(err)
	s.finish(result, plan)
	return result
}

func (s *DriveService) finish(result *SyncResult, plan *syncplan.Plan) {
	result.Actions = plan.ClientActions()
	result.Stopped = plan.Stopped()
}

func cleanDirectories(in []syncplan.DirectoryVersion) []syncplan.DirectoryVersion {
	out := make([]syncplan.DirectoryVersion, len(in))
	for i, v := range in {
		out[i] = syncplan.DirectoryVersion{Path: utils.CleanDrivePath(v.Path), Checksum: v.Checksum}
	}
	return out
}

func uploadKey(folder string, v syncplan.Version) string {
	return folder + "\x00" + v.Identity() + "\x00" + v.Fingerprint()
}
