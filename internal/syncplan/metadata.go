package syncplan

import "time"

// FileMetadata is a snapshot of the descriptive fields of a server file.
type FileMetadata struct {
	Folder      string
	Name        string
	Checksum    string
	Size        int64
	ContentType string
	Created     time.Time
	Modified    time.Time
}

// Version returns the file version described by the snapshot.
func (m *FileMetadata) Version() FileVersion {
	return FileVersion{Name: m.Name, Checksum: m.Checksum}
}

// Links are the optional URLs published for a file.
type Links struct {
	Direct          string
	DirectFragments string
	Thumbnail       string
	Preview         string
}

// MetadataProvider looks up the current server metadata of a file.
type MetadataProvider interface {
	FileMetadata(folder string, file FileVersion) (*FileMetadata, error)
}

// LinkGenerator produces the links published for a file. Failures are not
// fatal; the affected link parameters are left out.
type LinkGenerator interface {
	Links(meta *FileMetadata) (*Links, error)
}

// metadataParams renders a snapshot into action parameters.
func metadataParams(meta *FileMetadata, links *Links) Parameters {
	if meta == nil {
		return nil
	}
	params := Parameters{
		ParamTotalLength: meta.Size,
	}
	if meta.ContentType != "" {
		params[ParamContentType] = meta.ContentType
	}
	if !meta.Created.IsZero() {
		params[ParamCreated] = meta.Created.UnixMilli()
	}
	if !meta.Modified.IsZero() {
		params[ParamModified] = meta.Modified.UnixMilli()
	}
	if links != nil {
		putNonEmpty(params, ParamDirectLink, links.Direct)
		putNonEmpty(params, ParamDirectLinkFragments, links.DirectFragments)
		putNonEmpty(params, ParamThumbnailLink, links.Thumbnail)
		putNonEmpty(params, ParamPreviewLink, links.Preview)
	}
	return params
}

func putNonEmpty(params Parameters, key, value string) {
	if value != "" {
		params[key] = value
	}
}
