// Package title canonicalizes anime titles for deduplication, substring
// filtering and progressive search fallback.
package title

import (
	"regexp"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// keyReplacer implements the dedup normalization: noise tokens are dropped
// and the season spellings used by Brazilian sources collapse onto "season".
// Spaces are removed last so "Foo Season 2" and "FooSeason2" meet at one key.
var keyReplacer = strings.NewReplacer(
	"clássico", "",
	"classico", "",
	":", "",
	"(", "",
	")", "",
	"part", "season",
	"temporada", "season",
)

// NormalizeKey returns the canonical catalog key form of a title. Two titles
// with the same key are the same anime. Seasons stay distinct because the
// season number survives the transform.
func NormalizeKey(title string) string {
	n := keyReplacer.Replace(strings.ToLower(title))
	return strings.ReplaceAll(n, " ", "")
}

var filterPunct = strings.NewReplacer(
	"-", " ",
	":", " ",
	"(", " ",
	")", " ",
	"!", " ",
	"?", " ",
	".", " ",
)

// NormalizeFilter prepares a title or filter string for substring matching.
func NormalizeFilter(s string) string {
	return strings.Join(strings.Fields(filterPunct.Replace(strings.ToLower(s))), " ")
}

// variationMarkers strip the trailing season/part qualifiers AniList titles
// tend to carry relative to scraper catalogs.
var variationMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s+\d+(st|nd|rd|th)\s+season.*$`),
	regexp.MustCompile(`(?i)\s+season\s*\d*.*$`),
	regexp.MustCompile(`(?i)\s+part\s*\d+.*$`),
	regexp.MustCompile(`(?i)\s+cour\s*\d+.*$`),
	regexp.MustCompile(`(?i)\s+arc$`),
	regexp.MustCompile(`(?i)\s+\(?dublado\)?$`),
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9 ]+`)

// Variations expands a canonical "Romaji / English" AniList title into the
// ordered list of catalog queries to try: the cleaned full title first, then
// its 3-, 2- and 1-word prefixes, deduplicated.
func Variations(canonical string) []string {
	base := canonical
	if idx := strings.Index(base, " / "); idx >= 0 {
		base = base[:idx]
	}

	for _, marker := range variationMarkers {
		base = marker.ReplaceAllString(base, "")
	}

	base = nonAlnum.ReplaceAllString(base, " ")
	words := strings.Fields(base)
	if len(words) == 0 {
		return nil
	}

	full := strings.Join(words, " ")
	candidates := []string{full}
	for _, n := range []int{3, 2, 1} {
		if len(words) > n {
			candidates = append(candidates, strings.Join(words[:n], " "))
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	var variations []string
	for _, c := range candidates {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		variations = append(variations, c)
	}
	return variations
}

// ReduceQuery emits the word prefixes of query from full length down to
// minWords, in that order. A minWords below 1 is treated as 1.
func ReduceQuery(query string, minWords int) []string {
	if minWords < 1 {
		minWords = 1
	}
	words := strings.Fields(query)
	if len(words) == 0 {
		return nil
	}
	if minWords > len(words) {
		minWords = len(words)
	}

	prefixes := make([]string, 0, len(words)-minWords+1)
	for w := len(words); w >= minWords; w-- {
		prefixes = append(prefixes, strings.Join(words[:w], " "))
	}
	return prefixes
}

// LevenshteinRatio scores the similarity of two strings as 0-100, case
// insensitively. Empty input scores 0.
func LevenshteinRatio(a, b string) int {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}

	dist := fuzzy.LevenshteinDistance(a, b)
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	return 100 - (100*dist)/maxLen
}
