package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/open-xchange/drivesync/internal/server/drive"
	"github.com/open-xchange/drivesync/internal/server/handlers/api"
	"github.com/open-xchange/drivesync/internal/server/journal"
	"github.com/open-xchange/drivesync/internal/syncplan"
	"github.com/open-xchange/drivesync/internal/utils"
	"github.com/open-xchange/drivesync/internal/wire"
)

const maxRequestBody = 32 << 20 // 32 MiB

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 1000
)

// SyncService is the part of drive.DriveService the handler needs.
type SyncService interface {
	SyncFolders(ctx context.Context, req *drive.FolderSyncRequest) (*drive.SyncResult, error)
	SyncFiles(ctx context.Context, req *drive.FileSyncRequest) (*drive.SyncResult, error)
	CompleteUpload(ctx context.Context, up *drive.UploadCompletion) (*syncplan.Action, error)
}

type DriveHandler struct {
	svc     SyncService
	journal *journal.Journal
}

// New creates the handler. j may be nil to disable the sync journal.
func New(svc SyncService, j *journal.Journal) *DriveHandler {
	return &DriveHandler{svc: svc, journal: j}
}

func (h *DriveHandler) SyncFolders(ctx *gin.Context) {
	var req FolderSyncRequest
	if !bind(ctx, &req) {
		return
	}

	result, err := h.svc.SyncFolders(ctx.Request.Context(), &drive.FolderSyncRequest{
		Original:   wire.DirectoryVersions(req.OriginalVersions, utils.CleanDrivePath),
		Client:     wire.DirectoryVersions(req.ClientVersions, utils.CleanDrivePath),
		Exclusions: req.DirectoryExclusions,
	})
	h.logSync(ctx, journal.OpSyncFolders, "/", result, err)
	if err != nil {
		abortWithServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, toResponse(result))
}

func (h *DriveHandler) SyncFiles(ctx *gin.Context) {
	var req FileSyncRequest
	if !bind(ctx, &req) {
		return
	}

	result, err := h.svc.SyncFiles(ctx.Request.Context(), &drive.FileSyncRequest{
		Path:       req.Path,
		Original:   wire.FileVersions(req.OriginalVersions),
		Client:     wire.FileVersions(req.ClientVersions),
		Exclusions: req.FileExclusions,
	})
	h.logSync(ctx, journal.OpSyncFiles, req.Path, result, err)
	if err != nil {
		abortWithServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, toResponse(result))
}

func (h *DriveHandler) CompleteUpload(ctx *gin.Context) {
	var req UploadCompleteRequest
	if !bind(ctx, &req) {
		return
	}

	ack, err := h.svc.CompleteUpload(ctx.Request.Context(), &drive.UploadCompletion{
		Path:        req.Path,
		Name:        req.Name,
		Checksum:    req.Checksum,
		Size:        req.Size,
		ContentType: req.ContentType,
	})
	if h.journal != nil {
		entry := journal.Entry{Operation: journal.OpCompleteUpload, Path: path.Join(utils.CleanDrivePath(req.Path), req.Name)}
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Actions = 1
		}
		h.journal.LogSync(ctx, entry)
	}
	if err != nil {
		abortWithServiceError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, &UploadCompleteResponse{Action: wire.FromAction(ack)})
}

// Journal returns the newest sync journal entries of the requesting client.
func (h *DriveHandler) Journal(ctx *gin.Context) {
	if h.journal == nil {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeNotFound, errors.New("sync journal is disabled"))
		return
	}

	limit := defaultJournalLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxJournalLimit {
			api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("limit must be between 1 and %d", maxJournalLimit))
			return
		}
		limit = n
	}

	entries, err := h.journal.Recent(journal.Client(ctx), limit)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	respond(ctx, http.StatusOK, &JournalResponse{Entries: entries})
}

func (h *DriveHandler) logSync(ctx *gin.Context, op journal.Operation, folder string, result *drive.SyncResult, err error) {
	if h.journal == nil {
		return
	}
	entry := journal.Entry{Operation: op, Path: folder}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.SyncID = result.SyncID
		entry.Path = result.Path
		entry.Actions = len(result.Actions)
		entry.Stopped = result.Stopped
	}
	h.journal.LogSync(ctx, entry)
}

func toResponse(result *drive.SyncResult) *SyncResponse {
	return &SyncResponse{
		SyncID:  result.SyncID,
		Path:    result.Path,
		Actions: wire.FromActions(result.Actions),
		Stopped: result.Stopped,
	}
}

// bind decodes the request body as json or msgpack, depending on its
// Content-Type. It aborts the request and returns false on failure.
func bind(ctx *gin.Context, v any) bool {
	var enc wire.Encoding
	switch ct := ctx.ContentType(); ct {
	case "", "application/json":
		enc = wire.EncodingJSON
	default:
		enc = wire.EncodingOf(ct)
		if enc != wire.EncodingMsgPack {
			api.AbortWithError(ctx, http.StatusUnsupportedMediaType, api.CodeSyncUnsupportedMedia, fmt.Errorf("unsupported content type %q", ct))
			return false
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxRequestBody))
	if err != nil {
		api.AbortWithError(ctx, http.StatusRequestEntityTooLarge, api.CodeInvalidRequest, fmt.Errorf("failed to read body: %w", err))
		return false
	}
	if err := wire.Unmarshal(body, v, enc); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to decode %s body: %w", enc, err))
		return false
	}
	return true
}

// respond encodes v in the encoding preferred by the Accept header.
func respond(ctx *gin.Context, status int, v any) {
	enc := wire.PreferredEncoding(ctx.GetHeader("Accept"))
	data, err := wire.Marshal(v, enc)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, fmt.Errorf("failed to encode response: %w", err))
		return
	}
	ctx.Data(status, enc.ContentType(), data)
}

func abortWithServiceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, drive.ErrInvalidRequest):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
	case errors.Is(err, drive.ErrUnknownUpload):
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeSyncUnknownUpload, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		api.AbortWithError(ctx, http.StatusServiceUnavailable, api.CodeSyncFailed, err)
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeSyncFailed, err)
	}
}
