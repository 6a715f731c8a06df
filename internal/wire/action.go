package wire

import (
	"strings"

	"github.com/open-xchange/drivesync/internal/syncplan"
)

// Action is the client protocol representation of a syncplan.Action.
type Action struct {
	Action     string         `json:"action"`
	Version    any            `json:"version"`
	NewVersion any            `json:"newVersion"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Kind parses the action name back into a kind.
func (a Action) Kind() (syncplan.ActionKind, error) {
	return syncplan.ParseActionKind(strings.ToUpper(a.Action))
}

// FromAction renders an action with its materialized parameters.
func FromAction(a *syncplan.Action) Action {
	out := Action{
		Action:     strings.ToLower(a.Kind.String()),
		Version:    a.Version,
		NewVersion: a.NewVersion,
	}
	if params := a.Parameters(); len(params) > 0 {
		out.Parameters = params
	}
	return out
}

// FromActions renders client-side actions in order and drops server-side ones.
func FromActions(actions []*syncplan.Action) []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		if a.Side != syncplan.SideClient {
			continue
		}
		out = append(out, FromAction(a))
	}
	return out
}

// FileVersion decodes a version object received from a client. Entries are
// not validated here; the planner reports malformed ones per path.
type FileVersion struct {
	Name     string `json:"name"`
	Checksum string `json:"checksum"`
}

// DirectoryVersion decodes a directory version received from a client.
type DirectoryVersion struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
}

func FileVersions(in []FileVersion) []syncplan.FileVersion {
	out := make([]syncplan.FileVersion, 0, len(in))
	for _, v := range in {
		out = append(out, syncplan.FileVersion{Name: v.Name, Checksum: v.Checksum})
	}
	return out
}

// DirectoryVersions converts client directory versions; cleanPath normalizes each path.
func DirectoryVersions(in []DirectoryVersion, cleanPath func(string) string) []syncplan.DirectoryVersion {
	out := make([]syncplan.DirectoryVersion, 0, len(in))
	for _, v := range in {
		out = append(out, syncplan.DirectoryVersion{Path: cleanPath(v.Path), Checksum: v.Checksum})
	}
	return out
}
