package storage

import (
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/open-xchange/drivesync/internal/syncplan"
)

var ErrNoLinks = errors.New("links disabled")

// LinkGenerator builds the published URLs of a file below a base URL:
//
//	{base}/files{folder}/{name}?checksum=...     direct
//	{base}/files{folder}/{name}#checksum=...     direct fragments
//	{base}/preview{folder}/{name}?checksum=...   preview
//	{base}/thumbnail{folder}/{name}?checksum=... thumbnail, images only
type LinkGenerator struct {
	base *url.URL
}

// NewLinkGenerator returns nil for an empty base URL.
func NewLinkGenerator(baseURL string) (*LinkGenerator, error) {
	if baseURL == "" {
		return nil, nil
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("links base url must be absolute")
	}
	return &LinkGenerator{base: u}, nil
}

// Links implements syncplan.LinkGenerator.
func (g *LinkGenerator) Links(meta *syncplan.FileMetadata) (*syncplan.Links, error) {
	if g == nil {
		return nil, ErrNoLinks
	}
	if meta == nil || meta.Name == "" {
		return nil, errors.New("file metadata without name")
	}

	query := url.Values{"checksum": {meta.Checksum}}.Encode()
	links := &syncplan.Links{
		Direct:          g.url("files", meta, query, ""),
		DirectFragments: g.url("files", meta, "", query),
	}
	if previewable(meta.ContentType) {
		links.Preview = g.url("preview", meta, query, "")
	}
	if strings.HasPrefix(meta.ContentType, "image/") {
		links.Thumbnail = g.url("thumbnail", meta, query, "")
	}
	return links, nil
}

func (g *LinkGenerator) url(kind string, meta *syncplan.FileMetadata, query, fragment string) string {
	u := *g.base
	u.Path = path.Join(g.base.Path, kind, meta.Folder, meta.Name)
	u.RawQuery = query
	u.Fragment = fragment
	return u.String()
}

func previewable(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") ||
		strings.HasPrefix(contentType, "text/") ||
		contentType == "application/pdf"
}
