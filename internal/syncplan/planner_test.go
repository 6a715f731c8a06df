package syncplan

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMetadataProvider struct {
	mock.Mock
}

func (m *MockMetadataProvider) FileMetadata(folder string, file FileVersion) (*FileMetadata, error) {
	args := m.Called(folder, file)
	meta, _ := args.Get(0).(*FileMetadata)
	return meta, args.Error(1)
}

// metadataFunc describes every file from its version.
type metadataFunc func(folder string, file FileVersion) (*FileMetadata, error)

func (f metadataFunc) FileMetadata(folder string, file FileVersion) (*FileMetadata, error) {
	return f(folder, file)
}

func fromVersion(folder string, file FileVersion) (*FileMetadata, error) {
	return &FileMetadata{
		Folder:      folder,
		Name:        file.Name,
		Checksum:    file.Checksum,
		Size:        int64(len(file.Name)),
		ContentType: "text/plain",
		Modified:    time.UnixMilli(1_700_000_000_000),
	}, nil
}

type kindSide struct {
	Kind ActionKind
	Side Side
}

func kindSides(actions []*Action) []kindSide {
	out := make([]kindSide, 0, len(actions))
	for _, a := range actions {
		out = append(out, kindSide{a.Kind, a.Side})
	}
	return out
}

func TestPlanFiles_DecisionTable(t *testing.T) {
	v1 := FileVersion{"a.txt", "v1"}
	v2 := FileVersion{"a.txt", "v2"}
	v3 := FileVersion{"a.txt", "v3"}

	tests := []struct {
		name                     string
		original, client, server Version
		expected                 []kindSide
	}{
		{"in sync", v1, v1, v1, []kindSide{}},
		{"client new", nil, v1, nil, []kindSide{{ActionUpload, SideClient}}},
		{"client modified", v1, v2, v1, []kindSide{{ActionUpload, SideClient}}},
		{"server new", nil, nil, v1, []kindSide{{ActionDownload, SideClient}}},
		{"server modified", v1, v1, v2, []kindSide{{ActionDownload, SideClient}}},
		{"client deleted", v1, nil, v1, []kindSide{{ActionRemove, SideServer}, {ActionAcknowledge, SideClient}}},
		{"server deleted", v1, v1, nil, []kindSide{{ActionRemove, SideClient}}},
		{"both deleted", v1, nil, nil, []kindSide{{ActionAcknowledge, SideClient}}},
		{"both new same content", nil, v1, v1, []kindSide{{ActionAcknowledge, SideClient}}},
		{"both modified same content", v1, v2, v2, []kindSide{{ActionAcknowledge, SideClient}}},
		{"both new different content", nil, v1, v2, []kindSide{{ActionError, SideClient}}},
		{"both modified different content", v1, v2, v3, []kindSide{{ActionError, SideClient}}},
		{"client modified server deleted", v1, v2, nil, []kindSide{{ActionError, SideClient}}},
		{"client deleted server modified", v1, nil, v2, []kindSide{{ActionError, SideClient}}},
	}

	planner := NewPlanner(WithMetadata(metadataFunc(fromVersion)))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewComparison(tt.original, tt.client, tt.server)
			plan := planner.PlanFiles("/docs", []*ThreeWayComparison{c})

			assert.Equal(t, tt.expected, kindSides(plan.Actions()))
			assert.False(t, plan.Stopped())
			for _, a := range plan.Actions() {
				assert.Same(t, c, a.Comparison)
				assert.Equal(t, "/docs", a.Path())
				if a.Kind == ActionError {
					assert.Equal(t, CodeConflict, a.Err().Code)
					assert.True(t, a.Quarantine())
					assert.False(t, a.Stop())
				}
			}
		})
	}
}

func TestPlanFiles_ClientDeletion(t *testing.T) {
	v1 := FileVersion{"a.txt", "v1"}
	c := NewComparison(v1, nil, v1)
	require.True(t, c.Matches(ChangeDeleted, ChangeNone))

	actions := NewPlanner().PlanFiles("/docs", []*ThreeWayComparison{c}).Actions()
	require.Len(t, actions, 2)

	assert.Equal(t, ActionRemove, actions[0].Kind)
	assert.Equal(t, v1, actions[0].Version)
	assert.Equal(t, "/docs", actions[0].Path())

	assert.Equal(t, ActionAcknowledge, actions[1].Kind)
	assert.Equal(t, v1, actions[1].Version)
	assert.Nil(t, actions[1].NewVersion)
}

func TestPlanFiles_ClientCreation(t *testing.T) {
	report := FileVersion{"report.pdf", "c1"}
	c := NewComparison(nil, report, nil)
	require.True(t, c.Matches(ChangeNew, ChangeNone))

	actions := NewPlanner().PlanFiles("/docs", []*ThreeWayComparison{c}).Actions()
	require.Len(t, actions, 1)

	upload := actions[0]
	assert.Equal(t, ActionUpload, upload.Kind)
	assert.Nil(t, upload.Version)
	assert.Equal(t, report, upload.NewVersion)
	assert.Equal(t, Parameters{ParamPath: "/docs", ParamOffset: int64(0)}, upload.Parameters())
}

func TestPlanDirectories_ConcurrentCreation(t *testing.T) {
	c := NewComparison(nil, DirectoryVersion{"/docs/2024", "client"}, DirectoryVersion{"/docs/2024", "server"})
	require.True(t, c.Matches(ChangeNew, ChangeNew))

	planner := NewPlanner()
	for range 3 {
		actions := planner.PlanDirectories([]*ThreeWayComparison{c}).Actions()
		require.Len(t, actions, 1)
		assert.Equal(t, ActionError, actions[0].Kind)
		assert.Equal(t, CodeConflict, actions[0].Err().Code)
		assert.True(t, actions[0].Quarantine())
		assert.False(t, actions[0].Stop())
		assert.Equal(t, FamilyDirectory, actions[0].Family())
	}
}

func TestPlanDirectories_ParentsFirst(t *testing.T) {
	comparisons := CompareDirectories(
		[]DirectoryVersion{{"/old", "o"}},
		[]DirectoryVersion{{"/old", "o"}, {"/mine", "m"}},
		[]DirectoryVersion{{"/docs/2024", "b"}, {"/docs", "a"}},
	)

	actions := NewPlanner().PlanDirectories(comparisons).Actions()
	assert.Equal(t, []kindSide{
		{ActionRemove, SideClient},
		{ActionUpload, SideClient},
		{ActionDownload, SideClient},
		{ActionDownload, SideClient},
	}, kindSides(actions))
	assert.Equal(t, "/docs", actions[2].NewVersion.Identity())
	assert.Equal(t, "/docs/2024", actions[3].NewVersion.Identity())
	for _, a := range actions {
		assert.Empty(t, a.Path())
	}
}

func TestPlanFiles_DownloadCarriesMetadata(t *testing.T) {
	server := FileVersion{"photo.jpg", "c9"}
	created := time.UnixMilli(1_600_000_000_000)

	provider := new(MockMetadataProvider)
	provider.On("FileMetadata", "/pictures", server).Return(&FileMetadata{
		Folder:      "/pictures",
		Name:        "photo.jpg",
		Checksum:    "c9",
		Size:        4096,
		ContentType: "image/jpeg",
		Created:     created,
		Modified:    created,
	}, nil).Once()

	planner := NewPlanner(WithMetadata(provider), WithLinks(staticLinks{}))
	actions := planner.PlanFiles("pictures/", []*ThreeWayComparison{NewComparison(nil, nil, server)}).Actions()
	require.Len(t, actions, 1)

	params := actions[0].Parameters()
	assert.Equal(t, "/pictures", params[ParamPath])
	assert.Equal(t, int64(4096), params[ParamTotalLength])
	assert.Equal(t, "image/jpeg", params[ParamContentType])
	assert.Equal(t, created.UnixMilli(), params[ParamCreated])
	assert.Equal(t, "https://drive.example.com/photo.jpg", params[ParamDirectLink])
	provider.AssertExpectations(t)
}

func TestPlanFiles_MetadataFailures(t *testing.T) {
	server := FileVersion{"a.txt", "v2"}

	t.Run("download becomes error", func(t *testing.T) {
		provider := new(MockMetadataProvider)
		provider.On("FileMetadata", "/docs", server).Return(nil, errors.New("store offline"))

		plan := NewPlanner(WithMetadata(provider)).PlanFiles("/docs", []*ThreeWayComparison{NewComparison(nil, nil, server)})
		actions := plan.Actions()
		require.Len(t, actions, 1)
		assert.Equal(t, ActionError, actions[0].Kind)
		assert.Equal(t, CodeMetadataLookup, actions[0].Err().Code)
		assert.False(t, actions[0].Quarantine())
		assert.False(t, plan.Stopped())
	})

	t.Run("acknowledge degrades", func(t *testing.T) {
		provider := new(MockMetadataProvider)
		provider.On("FileMetadata", "/docs", server).Return(nil, errors.New("store offline"))

		actions := NewPlanner(WithMetadata(provider)).PlanFiles("/docs", []*ThreeWayComparison{NewComparison(nil, server, server)}).Actions()
		require.Len(t, actions, 1)
		assert.Equal(t, ActionAcknowledge, actions[0].Kind)
		assert.Equal(t, Parameters{ParamPath: "/docs"}, actions[0].Parameters())
	})

	t.Run("links degrade", func(t *testing.T) {
		planner := NewPlanner(
			WithMetadata(metadataFunc(fromVersion)),
			WithLinks(staticLinks{err: errors.New("no link service")}),
		)
		actions := planner.PlanFiles("/docs", []*ThreeWayComparison{NewComparison(nil, nil, server)}).Actions()
		require.Len(t, actions, 1)
		assert.Equal(t, ActionDownload, actions[0].Kind)
		assert.Contains(t, actions[0].Parameters(), ParamTotalLength)
		assert.NotContains(t, actions[0].Parameters(), ParamDirectLink)
	})

	t.Run("fatal failure stops the batch", func(t *testing.T) {
		provider := new(MockMetadataProvider)
		provider.On("FileMetadata", "/docs", server).Return(nil, Fatal(CodeInternal, errors.New("database closed")))

		plan := NewPlanner(WithMetadata(provider)).PlanFiles("/docs", []*ThreeWayComparison{
			NewComparison(nil, FileVersion{"b.txt", "v1"}, nil),
			NewComparison(nil, nil, server),
		})
		actions := plan.Actions()
		require.Len(t, actions, 1)
		assert.Equal(t, ActionError, actions[0].Kind)
		assert.Equal(t, CodeInternal, actions[0].Err().Code)
		assert.True(t, actions[0].Stop())
		assert.True(t, plan.Stopped())
	})
}

func TestPlanFiles_InvalidComparisons(t *testing.T) {
	v1 := FileVersion{"a.txt", "v1"}
	comparisons := []*ThreeWayComparison{
		nil,
		{ClientVersion: v1, ClientChange: ChangeDeleted},
		NewComparison(nil, DirectoryVersion{"/docs", "d"}, nil),
		NewComparison(nil, FileVersion{"ok.txt", "v1"}, nil),
	}

	plan := NewPlanner().PlanFiles("/docs", comparisons)
	assert.Equal(t, []kindSide{
		{ActionError, SideClient},
		{ActionError, SideClient},
		{ActionError, SideClient},
		{ActionUpload, SideClient},
	}, kindSides(plan.Actions()))
	for _, a := range plan.Actions()[:3] {
		assert.Equal(t, CodeInvalidComparison, a.Err().Code)
		assert.False(t, a.Quarantine())
		assert.False(t, a.Stop())
	}
	assert.False(t, plan.Stopped())
}

func TestPlanFiles_MalformedEntriesFailAlone(t *testing.T) {
	comparisons := Changed(CompareFiles(
		nil,
		[]FileVersion{{"good.txt", "c1"}, {"bad.txt", ""}, {"a/b.txt", "c2"}, {"twice.txt", "1"}, {"twice.txt", "2"}},
		nil,
	))

	plan := NewPlanner().PlanFiles("/docs", comparisons)
	assert.False(t, plan.Stopped())

	var uploaded []string
	failed := map[string]bool{}
	for _, a := range plan.Actions() {
		switch a.Kind {
		case ActionUpload:
			uploaded = append(uploaded, a.NewVersion.Identity())
		case ActionError:
			assert.Equal(t, CodeInvalidComparison, a.Err().Code)
			assert.False(t, a.Quarantine())
			assert.False(t, a.Stop())
			failed[a.Comparison.Identity()] = true
		default:
			t.Fatalf("unexpected action %s", a)
		}
	}
	assert.Equal(t, []string{"good.txt"}, uploaded)
	assert.Equal(t, map[string]bool{"bad.txt": true, "a/b.txt": true, "twice.txt": true}, failed)
}

// After a quarantine ERROR the client moves its copy aside, if it has one,
// and forgets the baseline entry. The next pass then converges on the server
// state.
func TestPlanFiles_ConflictConvergesOnceBaselineDropped(t *testing.T) {
	tests := []struct {
		name     string
		client   []FileVersion
		server   []FileVersion
		expected []ActionKind
	}{
		{"both modified", []FileVersion{{"a.txt", "c"}}, []FileVersion{{"a.txt", "s"}}, []ActionKind{ActionDownload}},
		{"deleted by client", nil, []FileVersion{{"a.txt", "s"}}, []ActionKind{ActionDownload}},
		{"deleted by server", []FileVersion{{"a.txt", "c"}}, nil, nil},
	}
	planner := NewPlanner(WithMetadata(metadataFunc(fromVersion)))
	baseline := []FileVersion{{"a.txt", "o"}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := planner.PlanFiles("/docs", Changed(CompareFiles(baseline, tt.client, tt.server))).Actions()
			require.Len(t, first, 1)
			assert.Equal(t, ActionError, first[0].Kind)
			assert.Equal(t, CodeConflict, first[0].Err().Code)
			assert.True(t, first[0].Quarantine())

			// a client that keeps its baseline gets the same error again
			again := planner.PlanFiles("/docs", Changed(CompareFiles(baseline, tt.client, tt.server))).Actions()
			require.Len(t, again, 1)
			assert.True(t, first[0].Equal(again[0]))

			next := planner.PlanFiles("/docs", Changed(CompareFiles(nil, nil, tt.server))).Actions()
			var kinds []ActionKind
			for _, a := range next {
				kinds = append(kinds, a.Kind)
			}
			assert.Equal(t, tt.expected, kinds)
		})
	}
}

func TestPlanFiles_ClientRename(t *testing.T) {
	comparisons := CompareFiles(
		[]FileVersion{{"draft.txt", "c1"}},
		[]FileVersion{{"final.txt", "c1"}},
		[]FileVersion{{"draft.txt", "c1"}},
	)

	snapshot := &FileMetadata{Folder: "/docs", Name: "draft.txt", Checksum: "c1", Size: 7}
	provider := new(MockMetadataProvider)
	provider.On("FileMetadata", "/docs", FileVersion{"draft.txt", "c1"}).Return(snapshot, nil).Once()

	plan := NewPlanner(WithMetadata(provider), WithLinks(staticLinks{})).PlanFiles("/docs", comparisons)
	assert.Equal(t, []kindSide{{ActionEdit, SideServer}, {ActionAcknowledge, SideClient}}, kindSides(plan.Actions()))

	ids := plan.IDs()
	edit, _ := plan.Action(ids[0])
	ack, _ := plan.Action(ids[1])
	assert.False(t, edit.Acknowledge())
	assert.Equal(t, FileVersion{"draft.txt", "c1"}, edit.Version)
	assert.Equal(t, FileVersion{"final.txt", "c1"}, edit.NewVersion)
	assert.True(t, edit.WasCausedBy(ChangeDeleted, ChangeNone))
	assert.True(t, ack.WasCausedBy(ChangeNew, ChangeNone))

	dep, ok := plan.Dependency(ids[1])
	require.True(t, ok)
	assert.Equal(t, ids[0], dep)

	// until the server applies the edit the snapshot of the old name is reported
	assert.Equal(t, "https://drive.example.com/draft.txt", ack.Parameters()[ParamDirectLink])

	renamed := &FileMetadata{Folder: "/docs", Name: "final.txt", Checksum: "c1", Size: 7}
	require.NoError(t, plan.SetResult(ids[0], edit.NewVersion, renamed))
	plan.Resolve()
	assert.Equal(t, "https://drive.example.com/final.txt", ack.Parameters()[ParamDirectLink])
	provider.AssertExpectations(t)
}

func TestPlanFiles_ServerRename(t *testing.T) {
	comparisons := CompareFiles(
		[]FileVersion{{"draft.txt", "c1"}},
		[]FileVersion{{"draft.txt", "c1"}},
		[]FileVersion{{"final.txt", "c1"}},
	)

	actions := NewPlanner(WithMetadata(metadataFunc(fromVersion))).PlanFiles("/docs", comparisons).Actions()
	require.Len(t, actions, 1)

	edit := actions[0]
	assert.Equal(t, ActionEdit, edit.Kind)
	assert.Equal(t, SideClient, edit.Side)
	assert.True(t, edit.Acknowledge())
	assert.Equal(t, FileVersion{"draft.txt", "c1"}, edit.Version)
	assert.Equal(t, FileVersion{"final.txt", "c1"}, edit.NewVersion)
	assert.Equal(t, int64(len("final.txt")), edit.Parameters()[ParamTotalLength])
}

func TestPlanFiles_RenameDetectionDisabled(t *testing.T) {
	comparisons := CompareFiles(
		[]FileVersion{{"draft.txt", "c1"}},
		[]FileVersion{{"final.txt", "c1"}},
		[]FileVersion{{"draft.txt", "c1"}},
	)

	actions := NewPlanner(WithRenameDetection(false)).PlanFiles("/docs", comparisons).Actions()
	assert.Equal(t, []kindSide{
		{ActionRemove, SideServer},
		{ActionUpload, SideClient},
		{ActionAcknowledge, SideClient},
	}, kindSides(actions))
}

// tree is one side of a simulated folder, keyed by file name.
type tree map[string]FileVersion

func (t tree) list() []FileVersion {
	out := make([]FileVersion, 0, len(t))
	for _, v := range t {
		out = append(out, v)
	}
	return out
}

func (t tree) replace(prev, next Version) {
	if prev != nil {
		delete(t, prev.Identity())
	}
	if next != nil {
		t[next.Identity()] = asFile(next)
	}
}

// apply executes a plan the way client and server would.
func apply(plan *Plan, baseline, client, server tree) {
	for _, a := range plan.ServerActions() {
		switch a.Kind {
		case ActionRemove:
			server.replace(a.Version, nil)
		case ActionEdit:
			server.replace(a.Version, a.NewVersion)
		}
	}
	for _, a := range plan.ClientActions() {
		switch a.Kind {
		case ActionAcknowledge:
			baseline.replace(a.Version, a.NewVersion)
		case ActionDownload:
			client.replace(a.Version, a.NewVersion)
			baseline.replace(a.Version, a.NewVersion)
		case ActionUpload:
			server.replace(a.Version, a.NewVersion)
			baseline.replace(a.Version, a.NewVersion)
		case ActionEdit:
			client.replace(a.Version, a.NewVersion)
			if a.Acknowledge() {
				baseline.replace(a.Version, a.NewVersion)
			}
		case ActionRemove:
			client.replace(a.Version, nil)
			baseline.replace(a.Version, nil)
		}
	}
}

func TestPlanFiles_CompletedSyncIsIdempotent(t *testing.T) {
	baseline := tree{
		"same.txt":    {"same.txt", "s"},
		"edited.txt":  {"edited.txt", "e1"},
		"changed.txt": {"changed.txt", "x1"},
		"gone.txt":    {"gone.txt", "g"},
		"dropped.txt": {"dropped.txt", "d"},
		"both.txt":    {"both.txt", "b"},
		"old.txt":     {"old.txt", "r"},
		"moved.txt":   {"moved.txt", "m"},
	}
	client := tree{
		"same.txt":    {"same.txt", "s"},
		"edited.txt":  {"edited.txt", "e2"},
		"changed.txt": {"changed.txt", "x1"},
		"dropped.txt": {"dropped.txt", "d"},
		"new.txt":     {"new.txt", "n"},
		"twin.txt":    {"twin.txt", "t"},
		"renamed.txt": {"renamed.txt", "r"},
		"moved.txt":   {"moved.txt", "m"},
	}
	server := tree{
		"same.txt":    {"same.txt", "s"},
		"edited.txt":  {"edited.txt", "e1"},
		"changed.txt": {"changed.txt", "x2"},
		"gone.txt":    {"gone.txt", "g"},
		"fresh.txt":   {"fresh.txt", "f"},
		"twin.txt":    {"twin.txt", "t"},
		"old.txt":     {"old.txt", "r"},
		"target.txt":  {"target.txt", "m"},
	}

	comparisons := CompareFiles(baseline.list(), client.list(), server.list())

	plan := NewPlanner(WithMetadata(metadataFunc(fromVersion))).PlanFiles("/docs", Changed(comparisons))
	for _, a := range plan.Actions() {
		require.NotEqual(t, ActionError, a.Kind, a.String())
	}
	apply(plan, baseline, client, server)

	after := CompareFiles(baseline.list(), client.list(), server.list())
	for _, c := range after {
		assert.True(t, c.Matches(ChangeNone, ChangeNone), c.String())
	}
	assert.Empty(t, NewPlanner().PlanFiles("/docs", after).Actions())
}
