package syncplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareFiles(t *testing.T) {
	comparisons := CompareFiles(
		[]FileVersion{{"a.txt", "1"}, {"b.txt", "1"}, {"c.txt", "1"}},
		[]FileVersion{{"a.txt", "1"}, {"b.txt", "2"}, {"d.txt", "1"}},
		[]FileVersion{{"a.txt", "1"}, {"c.txt", "1"}, {"e.txt", "1"}},
	)

	type classified struct {
		name           string
		client, server Change
	}
	var got []classified
	for _, c := range comparisons {
		require.NoError(t, c.Validate())
		got = append(got, classified{c.Identity(), c.ClientChange, c.ServerChange})
	}
	assert.Equal(t, []classified{
		{"a.txt", ChangeNone, ChangeNone},
		{"b.txt", ChangeModified, ChangeDeleted},
		{"c.txt", ChangeDeleted, ChangeNone},
		{"d.txt", ChangeNew, ChangeNone},
		{"e.txt", ChangeNone, ChangeNew},
	}, got)

	assert.Len(t, Changed(comparisons), 4)
}

func TestCompareDirectories(t *testing.T) {
	comparisons := CompareDirectories(
		nil,
		[]DirectoryVersion{{"/docs", "1"}},
		[]DirectoryVersion{{"/docs", "1"}, {"/", "root"}},
	)
	require.Len(t, comparisons, 2)

	assert.Equal(t, "/", comparisons[0].Identity())
	assert.True(t, comparisons[0].Matches(ChangeNone, ChangeNew))
	assert.True(t, comparisons[1].Matches(ChangeNew, ChangeNew))
	assert.Equal(t, FamilyDirectory, comparisons[1].Family())
}

func TestCompareFiles_Duplicates(t *testing.T) {
	comparisons := CompareFiles(
		[]FileVersion{{"a.txt", "1"}},
		[]FileVersion{{"a.txt", "1"}, {"a.txt", "2"}, {"b.txt", "1"}},
		[]FileVersion{{"a.txt", "1"}},
	)
	require.Len(t, comparisons, 2)

	err := comparisons[0].Validate()
	assert.ErrorIs(t, err, ErrInvalidComparison)
	assert.ErrorIs(t, err, ErrDuplicateVersion)
	assert.NoError(t, comparisons[1].Validate())

	// unchanged but rejected comparisons still surface
	assert.Len(t, Changed(comparisons), 2)
}
