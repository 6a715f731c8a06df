package syncplan

import (
	"log/slog"
	"slices"
	"strings"
)

// planFile applies the decision table to one file comparison. Only fatal
// collaborator failures are returned; everything else becomes an action.
func (p *Planner) planFile(batch *Batch, folder string, c *ThreeWayComparison) error {
	add := func(a *Action, side Side) ActionID {
		a.Side = side
		a.Comparison = c
		return batch.Add(a)
	}

	client, server := c.ClientChange, c.ServerChange
	switch {
	case client == ChangeNone && server == ChangeNone:
		// in sync

	case client.IsWrite() && server == ChangeNone:
		add(NewUpload(c.OriginalVersion, c.ClientVersion, folder, 0), SideClient)

	case client == ChangeNone && server.IsWrite():
		meta, links, err := p.describe(folder, asFile(c.ServerVersion))
		if err != nil {
			if IsFatal(err) {
				return err
			}
			slog.Warn("download metadata unavailable", "path", folder, "name", c.Identity(), "error", err)
			add(NewError(c.ClientVersion, c.ServerVersion, folder, p.errors.MetadataLookup(c.Identity(), err), false, false), SideClient)
			return nil
		}
		a := NewDownload(c.ClientVersion, c.ServerVersion, folder, meta)
		a.links = links
		add(a, SideClient)

	case client == ChangeDeleted && server == ChangeNone:
		add(NewRemove(c.ServerVersion, folder), SideServer)
		add(NewAcknowledge(c.OriginalVersion, nil, folder, nil), SideClient)

	case client == ChangeNone && server == ChangeDeleted:
		add(NewRemove(c.ClientVersion, folder), SideClient)

	case client == ChangeDeleted && server == ChangeDeleted:
		add(NewAcknowledge(c.OriginalVersion, nil, folder, nil), SideClient)

	case client.IsWrite() && server.IsWrite() && SameContent(c.ClientVersion, c.ServerVersion):
		// both sides made the same change
		meta, links, err := p.describeOptional(folder, asFile(c.ServerVersion))
		if err != nil {
			return err
		}
		a := NewAcknowledge(c.OriginalVersion, c.ServerVersion, folder, meta)
		a.links = links
		add(a, SideClient)

	default:
		p.conflict(batch, folder, c)
	}
	return nil
}

// planDirectory applies the decision table to one directory comparison.
func (p *Planner) planDirectory(batch *Batch, c *ThreeWayComparison) {
	add := func(a *Action, side Side) {
		a.Side = side
		a.Comparison = c
		batch.Add(a)
	}

	client, server := c.ClientChange, c.ServerChange
	switch {
	case client == ChangeNone && server == ChangeNone:

	case client.IsWrite() && server == ChangeNone:
		add(NewUpload(c.OriginalVersion, c.ClientVersion, "", 0), SideClient)

	case client == ChangeNone && server.IsWrite():
		add(NewDownload(c.ClientVersion, c.ServerVersion, "", nil), SideClient)

	case client == ChangeDeleted && server == ChangeNone:
		add(NewRemove(c.ServerVersion, ""), SideServer)
		add(NewAcknowledge(c.OriginalVersion, nil, "", nil), SideClient)

	case client == ChangeNone && server == ChangeDeleted:
		add(NewRemove(c.ClientVersion, ""), SideClient)

	case client == ChangeDeleted && server == ChangeDeleted:
		add(NewAcknowledge(c.OriginalVersion, nil, "", nil), SideClient)

	case client.IsWrite() && server.IsWrite() && SameContent(c.ClientVersion, c.ServerVersion):
		add(NewAcknowledge(c.OriginalVersion, c.ServerVersion, "", nil), SideClient)

	default:
		p.conflict(batch, "", c)
	}
}

// conflict resolves divergent changes by quarantining the client's copy. The
// client moves the item at Version aside, if any, and drops its baseline entry;
// the server version then reaches it in the next pass. Version is nil when the
// client deleted the item, and a client keeping its baseline sees this error
// again on every pass.
func (p *Planner) conflict(batch *Batch, folder string, c *ThreeWayComparison) {
	slog.Info("sync conflict", "path", folder, "identity", c.Identity(),
		"client", c.ClientChange, "server", c.ServerChange)
	a := NewError(c.ClientVersion, c.ServerVersion, folder, p.errors.Conflict(c.Identity()), true, false)
	a.Side = SideClient
	a.Comparison = c
	batch.Add(a)
}

// planRenames pairs deletions with creations of the same content on the same
// side and plans them as edits. It returns the comparisons left to plan.
func (p *Planner) planRenames(batch *Batch, folder string, comparisons []*ThreeWayComparison) ([]*ThreeWayComparison, error) {
	used := make(map[*ThreeWayComparison]bool)

	// renamed by the client: the server renames its file, the client acknowledges
	for _, pair := range pairRenames(comparisons, ChangeDeleted, ChangeNone, ChangeNew, ChangeNone, used) {
		removed, created := pair[0], pair[1]

		// snapshot of the file under its old name until the edit is applied
		meta, links, err := p.describeOptional(folder, asFile(removed.ServerVersion))
		if err != nil {
			return nil, err
		}

		edit := NewEdit(removed.ServerVersion, created.ClientVersion, folder, nil, false)
		edit.Side = SideServer
		edit.Comparison = removed
		editID := batch.Add(edit)

		ack := NewAcknowledge(removed.OriginalVersion, created.ClientVersion, folder, meta)
		ack.links = links
		ack.Side = SideClient
		ack.Comparison = created
		ackID := batch.Add(ack)

		if err := batch.DependOn(ackID, editID); err != nil {
			return nil, err
		}
	}

	// renamed on the server: the client renames its file
	for _, pair := range pairRenames(comparisons, ChangeNone, ChangeDeleted, ChangeNone, ChangeNew, used) {
		removed, created := pair[0], pair[1]

		meta, links, err := p.describeOptional(folder, asFile(created.ServerVersion))
		if err != nil {
			return nil, err
		}
		edit := NewEdit(removed.ClientVersion, created.ServerVersion, folder, meta, true)
		edit.links = links
		edit.Side = SideClient
		edit.Comparison = created
		batch.Add(edit)
	}

	rest := make([]*ThreeWayComparison, 0, len(comparisons))
	for _, c := range comparisons {
		if !used[c] {
			rest = append(rest, c)
		}
	}
	return rest, nil
}

// pairRenames matches comparisons classified (fromClient, fromServer) with
// comparisons classified (toClient, toServer) whose versions share a checksum.
// Candidates are paired in name order.
func pairRenames(comparisons []*ThreeWayComparison, fromClient, fromServer, toClient, toServer Change, used map[*ThreeWayComparison]bool) [][2]*ThreeWayComparison {
	var removed, created []*ThreeWayComparison
	for _, c := range comparisons {
		switch {
		case used[c]:
		case c.Matches(fromClient, fromServer):
			removed = append(removed, c)
		case c.Matches(toClient, toServer):
			created = append(created, c)
		}
	}
	byIdentity := func(a, b *ThreeWayComparison) int {
		return strings.Compare(a.Identity(), b.Identity())
	}
	slices.SortFunc(removed, byIdentity)
	slices.SortFunc(created, byIdentity)

	var pairs [][2]*ThreeWayComparison
	for _, r := range removed {
		for _, c := range created {
			if used[c] || !SameContent(r.OriginalVersion, liveVersion(c)) {
				continue
			}
			used[r], used[c] = true, true
			pairs = append(pairs, [2]*ThreeWayComparison{r, c})
			break
		}
	}
	return pairs
}

// liveVersion is the version on the side that changed.
func liveVersion(c *ThreeWayComparison) Version {
	if c.ClientChange != ChangeNone {
		return c.ClientVersion
	}
	return c.ServerVersion
}

// describe looks up the metadata and links of a server file. Link failures are
// logged and dropped.
func (p *Planner) describe(folder string, file FileVersion) (*FileMetadata, *Links, error) {
	if p.metadata == nil {
		return nil, nil, nil
	}
	meta, err := p.metadata.FileMetadata(folder, file)
	if err != nil {
		return nil, nil, err
	}
	if meta == nil || p.links == nil {
		return meta, nil, nil
	}
	links, err := p.links.Links(meta)
	if err != nil {
		slog.Warn("links unavailable", "path", folder, "name", file.Name, "error", err)
		return meta, nil, nil
	}
	return meta, links, nil
}

// describeOptional is describe for actions that can do without metadata; only
// fatal failures are returned.
func (p *Planner) describeOptional(folder string, file FileVersion) (*FileMetadata, *Links, error) {
	meta, links, err := p.describe(folder, file)
	if err != nil {
		if IsFatal(err) {
			return nil, nil, err
		}
		slog.Warn("metadata unavailable", "path", folder, "name", file.Name, "error", err)
		return nil, nil, nil
	}
	return meta, links, nil
}
