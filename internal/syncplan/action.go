package syncplan

import (
	"fmt"
	"hash/fnv"
)

// ActionKind is the tag of an Action. The numeric value of a kind is its
// canonical rank in an ordered batch:
//
//	ERROR < REMOVE < EDIT < UPLOAD < DOWNLOAD < ACKNOWLEDGE
//
// Errors come first so that a stop error halts the client before anything
// else is applied. Removals free names that later edits or downloads may
// reuse, edits restructure before content moves, and acknowledgments come
// last because they may report the outcome of earlier actions.
type ActionKind uint8

const (
	ActionError ActionKind = iota
	ActionRemove
	ActionEdit
	ActionUpload
	ActionDownload
	ActionAcknowledge
)

// Rank is the canonical position of the kind in an ordered batch.
func (k ActionKind) Rank() int {
	return int(k)
}

func (k ActionKind) String() string {
	switch k {
	case ActionError:
		return "ERROR"
	case ActionRemove:
		return "REMOVE"
	case ActionEdit:
		return "EDIT"
	case ActionUpload:
		return "UPLOAD"
	case ActionDownload:
		return "DOWNLOAD"
	case ActionAcknowledge:
		return "ACKNOWLEDGE"
	default:
		return fmt.Sprintf("ActionKind(%d)", uint8(k))
	}
}

// ParseActionKind is the inverse of ActionKind.String, case-sensitive.
func ParseActionKind(s string) (ActionKind, error) {
	for k := ActionError; k <= ActionAcknowledge; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown action kind %q", s)
}

// Side is the party that executes an action.
type Side uint8

const (
	SideClient Side = iota
	SideServer
)

func (s Side) String() string {
	if s == SideServer {
		return "server"
	}
	return "client"
}

// Action is one instruction of a synchronization batch. Actions are immutable
// intents; the resulting version is recorded once through a Batch after the
// action has been applied.
type Action struct {
	Kind       ActionKind
	Side       Side
	Version    Version
	NewVersion Version
	// Comparison is the three-way comparison the action was planned for, if any.
	Comparison *ThreeWayComparison
	// SortKey orders EDIT actions within a batch.
	SortKey int

	params Parameters

	// deferred metadata source, materialized when parameters are read
	metadata *FileMetadata
	links    *Links

	resulting *result
}

type result struct {
	version  Version
	metadata *FileMetadata
}

func newAction(kind ActionKind, version, newVersion Version, path string) *Action {
	a := &Action{
		Kind:       kind,
		Version:    version,
		NewVersion: newVersion,
		params:     Parameters{},
	}
	if path != "" {
		a.params[ParamPath] = path
	}
	return a
}

// NewAcknowledge tells the receiver to adopt newVersion without transferring
// content. newVersion is nil for acknowledged deletions.
func NewAcknowledge(version, newVersion Version, path string, meta *FileMetadata) *Action {
	a := newAction(ActionAcknowledge, version, newVersion, path)
	a.metadata = meta
	return a
}

// NewDownload instructs the client to fetch newVersion, replacing version.
func NewDownload(version, newVersion Version, path string, meta *FileMetadata) *Action {
	a := newAction(ActionDownload, version, newVersion, path)
	a.metadata = meta
	return a
}

// NewUpload instructs the client to push newVersion to path, resuming at offset.
func NewUpload(version, newVersion Version, path string, offset int64) *Action {
	a := newAction(ActionUpload, version, newVersion, path)
	a.params[ParamOffset] = offset
	return a
}

// NewEdit converts version into newVersion without touching content.
func NewEdit(version, newVersion Version, path string, meta *FileMetadata, acknowledge bool) *Action {
	a := newAction(ActionEdit, version, newVersion, path)
	a.params[ParamAcknowledge] = acknowledge
	a.metadata = meta
	return a
}

// NewRemove deletes version at path. Removing an absent item is not an error.
func NewRemove(version Version, path string) *Action {
	return newAction(ActionRemove, version, nil, path)
}

// NewError reports err for the item. quarantine asks the client to move its
// local copy out of the synchronized tree, stop asks it to abort the batch.
func NewError(version, newVersion Version, path string, err *DriveError, quarantine, stop bool) *Action {
	a := newAction(ActionError, version, newVersion, path)
	a.params[ParamError] = err
	a.params[ParamQuarantine] = quarantine
	a.params[ParamStop] = stop
	return a
}

// Parameters returns the materialized parameter bag. Metadata parameters come
// from the latest metadata source known to the action.
func (a *Action) Parameters() Parameters {
	params := a.params.Clone()
	if extra := metadataParams(a.metadata, a.links); len(extra) > 0 {
		if params == nil {
			params = make(Parameters, len(extra))
		}
		for k, v := range extra {
			params[k] = v
		}
	}
	return params
}

// Param returns a single materialized parameter.
func (a *Action) Param(key string) (any, bool) {
	v, ok := a.Parameters()[key]
	return v, ok
}

// Path returns the path parameter, if any.
func (a *Action) Path() string {
	s, _ := a.params[ParamPath].(string)
	return s
}

// Err returns the structured error of an ERROR action.
func (a *Action) Err() *DriveError {
	de, _ := a.params[ParamError].(*DriveError)
	return de
}

// Quarantine reports the quarantine flag of an ERROR action.
func (a *Action) Quarantine() bool {
	b, _ := a.params[ParamQuarantine].(bool)
	return b
}

// Stop reports the stop flag of an ERROR action.
func (a *Action) Stop() bool {
	b, _ := a.params[ParamStop].(bool)
	return b
}

// Acknowledge reports whether an EDIT also implies an acknowledgment. It
// defaults to true.
func (a *Action) Acknowledge() bool {
	b, ok := a.params[ParamAcknowledge].(bool)
	return !ok || b
}

// Metadata returns the metadata source currently attached to the action.
func (a *Action) Metadata() *FileMetadata {
	return a.metadata
}

// ResultingVersion returns the version produced by applying the action, or nil
// while it is unknown.
func (a *Action) ResultingVersion() Version {
	if a.resulting == nil {
		return nil
	}
	return a.resulting.version
}

// Family returns the family of the versions the action operates on.
func (a *Action) Family() Family {
	if a.NewVersion != nil {
		return a.NewVersion.Family()
	}
	if a.Version != nil {
		return a.Version.Family()
	}
	if a.Comparison != nil {
		return a.Comparison.Family()
	}
	return 0
}

// WasCausedBy reports whether the action was planned for a comparison with
// exactly the given client and server changes.
func (a *Action) WasCausedBy(client, server Change) bool {
	return a != nil && a.Comparison.Matches(client, server)
}

// Equal reports whether both actions are logically identical. The error
// parameter contributes its code only.
func (a *Action) Equal(b *Action) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Kind == b.Kind &&
		EqualVersions(a.Version, b.Version) &&
		EqualVersions(a.NewVersion, b.NewVersion) &&
		equalParams(a.Parameters(), b.Parameters())
}

// Hash is consistent with Equal.
func (a *Action) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte{byte(a.Kind)})
	for _, v := range []Version{a.Version, a.NewVersion} {
		if v == nil {
			h.Write([]byte{0})
			continue
		}
		h.Write([]byte{byte(v.Family())})
		h.Write([]byte(v.Identity()))
		h.Write([]byte{0})
		h.Write([]byte(v.Fingerprint()))
		h.Write([]byte{0})
	}
	hashParams(h, a.Parameters())
	return h.Sum64()
}

func (a *Action) String() string {
	if a == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s [side=%s, version=%s, newVersion=%s, parameters=%s]",
		a.Kind, a.Side, versionString(a.Version), versionString(a.NewVersion), a.Parameters())
}
