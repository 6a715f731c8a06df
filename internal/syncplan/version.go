package syncplan

import "fmt"

// Family distinguishes file versions from directory versions.
type Family uint8

const (
	FamilyFile Family = iota + 1
	FamilyDirectory
)

func (f Family) String() string {
	switch f {
	case FamilyFile:
		return "file"
	case FamilyDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Version identifies the content of a file or the metadata of a directory at a
// point in time. A nil Version means the item is absent.
type Version interface {
	// Identity is the file name (unique within its parent) or the directory path.
	Identity() string
	// Fingerprint is the checksum of the file content or directory metadata.
	Fingerprint() string
	Family() Family
}

// FileVersion is a file name plus the checksum of its content.
type FileVersion struct {
	Name     string `json:"name" msgpack:"name"`
	Checksum string `json:"checksum" msgpack:"checksum"`
}

func (v FileVersion) Identity() string    { return v.Name }
func (v FileVersion) Fingerprint() string { return v.Checksum }
func (v FileVersion) Family() Family      { return FamilyFile }

func (v FileVersion) String() string {
	return fmt.Sprintf("%s [%s]", v.Name, v.Checksum)
}

// DirectoryVersion is a '/'-separated directory path plus the checksum of the
// directory's own metadata. The root directory has the path "/".
type DirectoryVersion struct {
	Path     string `json:"path" msgpack:"path"`
	Checksum string `json:"checksum" msgpack:"checksum"`
}

func (v DirectoryVersion) Identity() string    { return v.Path }
func (v DirectoryVersion) Fingerprint() string { return v.Checksum }
func (v DirectoryVersion) Family() Family      { return FamilyDirectory }

func (v DirectoryVersion) String() string {
	return fmt.Sprintf("%s [%s]", v.Path, v.Checksum)
}

// EqualVersions reports whether two versions denote the same item with the same
// content. Identity alone is not enough; checksums must match too.
func EqualVersions(a, b Version) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Family() == b.Family() &&
		a.Identity() == b.Identity() &&
		a.Fingerprint() == b.Fingerprint()
}

// SameContent reports whether both versions exist and carry the same checksum,
// regardless of their identity.
func SameContent(a, b Version) bool {
	return a != nil && b != nil && a.Fingerprint() == b.Fingerprint()
}

func versionString(v Version) string {
	if v == nil {
		return "null"
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return v.Identity() + " [" + v.Fingerprint() + "]"
}

// asFile converts any file-family version into a FileVersion.
func asFile(v Version) FileVersion {
	if fv, ok := v.(FileVersion); ok {
		return fv
	}
	return FileVersion{Name: v.Identity(), Checksum: v.Fingerprint()}
}
