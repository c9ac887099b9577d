package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveVersion_LatestPicksHighest(t *testing.T) {
	available := []string{"1.0.0", "2.3.1", "2.10.0", "0.9.0"}

	res := ResolveVersion("", available)
	assert.Equal(t, "2.10.0", res.BestMatch)
	assert.False(t, res.HasUnversioned)

	res = ResolveVersion("latest", available)
	assert.Equal(t, "2.10.0", res.BestMatch)
}

func TestResolveVersion_ExactMatch(t *testing.T) {
	res := ResolveVersion("2.3.1", []string{"1.0.0", "2.3.1", "2.10.0"})
	assert.Equal(t, "2.3.1", res.BestMatch)
}

func TestResolveVersion_XRange(t *testing.T) {
	available := []string{"2.9.9", "3.0.0", "3.2.1", "3.2.9", "4.0.0"}

	res := ResolveVersion("3.x", available)
	assert.Equal(t, "3.2.9", res.BestMatch)

	res = ResolveVersion("3.2.x", available)
	assert.Equal(t, "3.2.9", res.BestMatch)

	res = ResolveVersion("3", available)
	assert.Equal(t, "3.2.9", res.BestMatch, "bare major behaves as 3.x")

	res = ResolveVersion("5.x", available)
	assert.Equal(t, "4.0.0", res.BestMatch, "nothing in range falls back to the newest older version")
}

func TestResolveVersion_OlderDocsFallback(t *testing.T) {
	res := ResolveVersion("3.0.0", []string{"1.0.0", "1.1.0"})
	assert.Equal(t, "1.1.0", res.BestMatch, "newest version at or below the target")

	res = ResolveVersion("5.x", []string{"2.9.9", "3.2.1"})
	assert.Equal(t, "3.2.1", res.BestMatch)

	res = ResolveVersion("1.0", []string{"2.9.9", "3.2.1"})
	assert.Equal(t, "3.2.1", res.BestMatch, "nothing at or below the target falls back to the newest available")
}

func TestResolveVersion_PartialCoercion(t *testing.T) {
	res := ResolveVersion("1.2", []string{"1.2.0", "1.2.5", "1.3.0"})
	assert.Equal(t, "1.2.5", res.BestMatch, "1.2 behaves as 1.2.x")
}

func TestResolveVersion_NonSemverLabel(t *testing.T) {
	available := []string{"canary", "1.0.0"}

	res := ResolveVersion("canary", available)
	assert.Equal(t, "canary", res.BestMatch)

	res = ResolveVersion("nightly", available)
	assert.Empty(t, res.BestMatch)
}

func TestResolveVersion_UnversionedBucket(t *testing.T) {
	res := ResolveVersion("2.0.0", []string{""})
	assert.Empty(t, res.BestMatch)
	assert.True(t, res.HasUnversioned)

	res = ResolveVersion("", []string{"", "1.5.0"})
	assert.Equal(t, "1.5.0", res.BestMatch, "semver beats unversioned for latest")
	assert.True(t, res.HasUnversioned)
}

func TestRankSuggestions(t *testing.T) {
	candidates := []string{"react", "preact", "vue", "next.js", "express"}

	assert.Equal(t, []string{"react", "preact"}, rankSuggestions("reactt", candidates))
	assert.Equal(t, []string{"next.js"}, rankSuggestions("nextjs", candidates))
	assert.Empty(t, rankSuggestions("django", candidates))
}
