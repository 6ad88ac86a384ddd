package domain

import (
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Known source tags. Each tag maps to one relational table and one index
// collection, both named "<tag>_articles".
const (
	SourceMultifamilyDive = "multifamilydive"
	SourceCREDaily        = "credaily"
	SourceMultiHousing    = "multihousing"
)

// Sources lists every known source tag in a stable order.
func Sources() []string {
	return []string{SourceMultifamilyDive, SourceCREDaily, SourceMultiHousing}
}

// ValidSource reports whether tag is one of the known source tags.
func ValidSource(tag string) bool {
	for _, s := range Sources() {
		if s == tag {
			return true
		}
	}
	return false
}

// CollectionName returns the index collection (and table) name for a source.
func CollectionName(source string) string {
	return source + "_articles"
}

// MatchSources expands a source pattern against the known tags. Plain tags
// match themselves; glob patterns ("multi*", "{credaily,multihousing}")
// select every tag they cover. Unknown tags and patterns matching nothing
// fail with ErrInvalidSource.
func MatchSources(pattern string) ([]string, error) {
	if ValidSource(pattern) {
		return []string{pattern}, nil
	}

	var matched []string
	for _, s := range Sources() {
		ok, err := doublestar.Match(pattern, s)
		if err != nil {
			return nil, ErrInvalidSource
		}
		if ok {
			matched = append(matched, s)
		}
	}
	if len(matched) == 0 {
		return nil, ErrInvalidSource
	}
	sort.Strings(matched)
	return matched, nil
}
