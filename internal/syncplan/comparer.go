package syncplan

import (
	"errors"
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

var (
	ErrDuplicateVersion = errors.New("duplicate version")
)

// CompareFiles diffs the client and server file lists of one folder against the
// baseline and returns one comparison per file name, sorted by name. A name
// listed twice on one side yields a comparison that fails Validate.
func CompareFiles(original, client, server []FileVersion) []*ThreeWayComparison {
	return compareAll(asVersions(original), asVersions(client), asVersions(server))
}

// CompareDirectories diffs the client and server directory lists against the
// baseline and returns one comparison per path, sorted by path.
func CompareDirectories(original, client, server []DirectoryVersion) []*ThreeWayComparison {
	return compareAll(asVersions(original), asVersions(client), asVersions(server))
}

func asVersions[V Version](in []V) []Version {
	out := make([]Version, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func compareAll(original, client, server []Version) []*ThreeWayComparison {
	duplicates := make(map[string]error)
	originalByID := indexVersions("original", original, duplicates)
	clientByID := indexVersions("client", client, duplicates)
	serverByID := indexVersions("server", server, duplicates)

	identities := mapset.NewThreadUnsafeSet[string]()
	for _, index := range []map[string]Version{originalByID, clientByID, serverByID} {
		for id := range index {
			identities.Add(id)
		}
	}

	sorted := identities.ToSlice()
	slices.Sort(sorted)

	comparisons := make([]*ThreeWayComparison, 0, len(sorted))
	for _, id := range sorted {
		c := NewComparison(originalByID[id], clientByID[id], serverByID[id])
		c.rejected = duplicates[id]
		comparisons = append(comparisons, c)
	}
	return comparisons
}

// indexVersions keys versions by identity. Only the first of several versions
// with one identity is kept; the identity is recorded in duplicates.
func indexVersions(side string, versions []Version, duplicates map[string]error) map[string]Version {
	index := make(map[string]Version, len(versions))
	for _, v := range versions {
		id := v.Identity()
		if _, dup := index[id]; dup {
			if _, seen := duplicates[id]; !seen {
				duplicates[id] = fmt.Errorf("%w: %s %q", ErrDuplicateVersion, side, id)
			}
			continue
		}
		index[id] = v
	}
	return index
}

// Changed filters out comparisons without changes on either side. Rejected
// comparisons are kept so that they surface as errors.
func Changed(comparisons []*ThreeWayComparison) []*ThreeWayComparison {
	out := make([]*ThreeWayComparison, 0, len(comparisons))
	for _, c := range comparisons {
		if c.ClientChange != ChangeNone || c.ServerChange != ChangeNone || c.rejected != nil {
			out = append(out, c)
		}
	}
	return out
}
