package title

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKeyMergesPunctuationVariants(t *testing.T) {
	a := NormalizeKey("Kimetsu no Yaiba: Hashira Geiko-hen")
	b := NormalizeKey("Kimetsu no Yaiba Hashira Geiko-hen")
	assert.Equal(t, a, b)
}

func TestNormalizeKeyKeepsSeasonsDistinct(t *testing.T) {
	s1 := NormalizeKey("Spy x Family Season 1")
	s2 := NormalizeKey("Spy x Family Season 2")
	assert.NotEqual(t, s1, s2)
}

func TestNormalizeKeyCollapsesSeasonSpellings(t *testing.T) {
	assert.Equal(t,
		NormalizeKey("Shingeki no Kyojin 2 Temporada"),
		NormalizeKey("Shingeki no Kyojin 2 Season"))
	assert.Equal(t,
		NormalizeKey("Frieren (Clássico)"),
		NormalizeKey("Frieren"))
}

func TestNormalizeFilter(t *testing.T) {
	assert.Equal(t, "dr stone new world", NormalizeFilter("Dr. STONE: New World!"))
	assert.Equal(t, "a b", NormalizeFilter("  a   -   b  "))
}

func TestVariationsTakesRomajiHalf(t *testing.T) {
	got := Variations("Sousou no Frieren / Frieren: Beyond Journey's End")
	assert.Equal(t, []string{"Sousou no Frieren", "Sousou no", "Sousou"}, got)
}

func TestVariationsStripsSeasonMarkers(t *testing.T) {
	got := Variations("Boku no Hero Academia 7th Season")
	assert.Equal(t, "Boku no Hero Academia", got[0])

	got = Variations("Spy x Family Part 2")
	assert.Equal(t, "Spy x Family", got[0])
}

func TestVariationsDeduplicates(t *testing.T) {
	got := Variations("One Piece")
	assert.Equal(t, []string{"One Piece", "One"}, got)
}

func TestVariationsEmpty(t *testing.T) {
	assert.Nil(t, Variations(""))
	assert.Nil(t, Variations("!!!"))
}

func TestReduceQuery(t *testing.T) {
	got := ReduceQuery("Spy x Family Season 2", 1)
	assert.Equal(t, []string{
		"Spy x Family Season 2",
		"Spy x Family Season",
		"Spy x Family",
		"Spy x",
		"Spy",
	}, got)
}

func TestReduceQueryRespectsFloor(t *testing.T) {
	got := ReduceQuery("a b c d", 3)
	assert.Equal(t, []string{"a b c d", "a b c"}, got)

	got = ReduceQuery("a", 5)
	assert.Equal(t, []string{"a"}, got)

	assert.Nil(t, ReduceQuery("   ", 1))
}

func TestLevenshteinRatio(t *testing.T) {
	assert.Equal(t, 100, LevenshteinRatio("Dandadan", "dandadan"))
	assert.Equal(t, 0, LevenshteinRatio("", "anything"))

	close := LevenshteinRatio("Sousou no Frieren", "Sousou no Frieren 2")
	far := LevenshteinRatio("Sousou no Frieren", "One Piece")
	assert.Greater(t, close, far)
	assert.GreaterOrEqual(t, close, 85)
}
