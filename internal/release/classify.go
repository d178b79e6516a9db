package release

import (
	"regexp"
	"strings"
)

var (
	// year-week snapshot code, e.g. 24w10a
	reSnapshot = regexp.MustCompile(`^\d+w\d+[a-z]$`)
	// dotted numeric version, e.g. 1.21 or 1.21.2
	reRelease = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)
)

// Classify maps an identifier to its release stage. Matching is
// case-insensitive and the first rule that matches wins, so the substring
// markers for pre-releases and release candidates take priority over the
// numeric shapes.
func Classify(id string) Category {
	s := strings.ToLower(id)
	switch {
	case strings.Contains(s, "pre"):
		return CategoryPreRelease
	case strings.Contains(s, "rc"):
		return CategoryReleaseCandidate
	case reSnapshot.MatchString(s):
		return CategorySnapshot
	case reRelease.MatchString(s):
		return CategoryRelease
	default:
		return CategoryUnknown
	}
}
