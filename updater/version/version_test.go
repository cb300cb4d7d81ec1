package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/byte4ever/actions_updater/updater/version"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		current string
		next    string
		want    string
	}{
		{"major", "v3", "v4", version.BumpMajor},
		{
			"major_full",
			"v3.5.2", "v4.0.0",
			version.BumpMajor,
		},
		{
			"minor",
			"v4.1.0", "v4.2.0",
			version.BumpMinor,
		},
		{
			"minor_short",
			"v4.1", "v4.2",
			version.BumpMinor,
		},
		{
			"patch",
			"v4.2.0", "v4.2.1",
			version.BumpPatch,
		},
		{
			"none",
			"v4.2.1", "v4.2.1",
			version.BumpNone,
		},
		{
			"none_prefix_difference",
			"4.2.1", "v4.2.1",
			version.BumpNone,
		},
		{
			"branch_ref",
			"main", "v4.2.1",
			version.BumpUnknown,
		},
		{
			"sha_ref",
			"11bd71901bbe5b1630ceea73d27597364c9af683",
			"v4",
			version.BumpUnknown,
		},
		{
			"prerelease_same_core",
			"v4.2.1-rc.1", "v4.2.1",
			version.BumpPatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := version.Classify(
				tc.current, tc.next,
			)

			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAllowed_filters_by_type(t *testing.T) {
	t.Parallel()

	majorOnly := []string{version.BumpMajor}

	assert.True(
		t, version.Allowed(majorOnly, "v3", "v4"),
	)
	assert.False(
		t,
		version.Allowed(majorOnly, "v4.1", "v4.2"),
	)
}

func TestAllowed_same_version(t *testing.T) {
	t.Parallel()

	all := []string{
		version.BumpMajor,
		version.BumpMinor,
		version.BumpPatch,
	}

	assert.False(
		t, version.Allowed(all, "v4.2.1", "v4.2.1"),
	)
}

func TestAllowed_unknown_needs_major(t *testing.T) {
	t.Parallel()

	assert.True(t, version.Allowed(
		[]string{version.BumpMajor},
		"main", "v4",
	))
	assert.False(t, version.Allowed(
		[]string{version.BumpPatch},
		"main", "v4",
	))
}
