package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func restore(t *testing.T) {
	origVersion, origRevision, origBuildDate := Version, Revision, BuildDate
	t.Cleanup(func() {
		Version, Revision, BuildDate = origVersion, origRevision, origBuildDate
	})
}

func TestVersionStrings(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Revision)

	assert.Contains(t, Short(), Version)
	assert.Contains(t, Short(), Revision)
	assert.True(t, strings.HasPrefix(ShortWithApp(), "DriveSync "))
	assert.Contains(t, Detailed(), "/")
	assert.True(t, strings.HasPrefix(DetailedWithApp(), "DriveSync "))
	assert.Equal(t, "drivesync/"+Version, ServerHeader())
}

func TestApplyBuildInfo(t *testing.T) {
	tests := []struct {
		name                      string
		version, revision, date   string
		wantVersion, wantRevision string
		wantDate                  string
	}{
		{
			name:         "defaults are filled",
			version:      devVersion,
			revision:     "HEAD",
			wantVersion:  "9.9.9",
			wantRevision: "abcdef-dirty",
			wantDate:     "2025-12-12T01:00:00Z",
		},
		{
			name:         "ldflags win",
			version:      "1.2.3",
			revision:     "deadbeef",
			date:         "from-ldflags",
			wantVersion:  "1.2.3",
			wantRevision: "deadbeef",
			wantDate:     "from-ldflags",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restore(t)
			Version, Revision, BuildDate = tt.version, tt.revision, tt.date

			applyBuildInfo("v9.9.9", map[string]string{
				"vcs.revision": "abcdef",
				"vcs.modified": "true",
				"vcs.time":     "2025-12-12T01:00:00Z",
			})

			assert.Equal(t, tt.wantVersion, Version)
			assert.Equal(t, tt.wantRevision, Revision)
			assert.Equal(t, tt.wantDate, BuildDate)
		})
	}
}

func TestApplyBuildInfo_DevelBuild(t *testing.T) {
	restore(t)
	Version = devVersion

	applyBuildInfo("(devel)", nil)
	assert.Equal(t, devVersion, Version)
}
