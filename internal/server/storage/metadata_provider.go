package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/open-xchange/drivesync/internal/syncplan"
	"github.com/open-xchange/drivesync/internal/utils"
)

const (
	DefaultMetadataCacheSize = 4096
	DefaultMetadataCacheTTL  = 30 * time.Second
)

var ErrChecksumMismatch = errors.New("checksum mismatch")

// MetadataProvider serves syncplan metadata lookups from the store with a
// short-lived cache in front. Entries are keyed by checksum, so a changed file
// never hits a stale entry.
type MetadataProvider struct {
	store *Store
	cache *expirable.LRU[string, *syncplan.FileMetadata]
}

func NewMetadataProvider(store *Store, size int, ttl time.Duration) *MetadataProvider {
	if size <= 0 {
		size = DefaultMetadataCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultMetadataCacheTTL
	}
	return &MetadataProvider{
		store: store,
		cache: expirable.NewLRU[string, *syncplan.FileMetadata](size, nil, ttl),
	}
}

// FileMetadata implements syncplan.MetadataProvider. Missing files and
// checksum mismatches are per-file failures, database errors are fatal.
func (m *MetadataProvider) FileMetadata(folder string, file syncplan.FileVersion) (*syncplan.FileMetadata, error) {
	folder = utils.CleanDrivePath(folder)
	key := cacheKey(folder, file.Name, file.Checksum)
	if meta, ok := m.cache.Get(key); ok {
		return meta, nil
	}

	rec, err := m.store.GetFile(folder, file.Name)
	if errors.Is(err, ErrNotFound) {
		return nil, err
	} else if err != nil {
		return nil, syncplan.Fatal(syncplan.CodeInternal, err)
	}
	if rec.Checksum != file.Checksum {
		return nil, fmt.Errorf("%w: %s has %s, want %s", ErrChecksumMismatch, file.Name, rec.Checksum, file.Checksum)
	}

	meta := rec.Metadata()
	m.cache.Add(key, meta)
	return meta, nil
}

// Forget drops every cached entry of the file.
func (m *MetadataProvider) Forget(folder, name string) {
	prefix := cacheKey(utils.CleanDrivePath(folder), name, "")
	for _, key := range m.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			m.cache.Remove(key)
		}
	}
}

func cacheKey(folder, name, checksum string) string {
	return folder + "\x00" + name + "\x00" + checksum
}
