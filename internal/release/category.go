// Package release infers the release stage of a Minecraft version
// identifier and builds the minecraft.net article URL for it.
//
// The manifest's own "type" field only distinguishes releases from
// snapshots, so pre-releases and release candidates are recognised from the
// identifier's shape alone. Both functions are total: unexpected input
// degrades to CategoryUnknown or to a placeholder string, never to an error.
package release

import "strings"

// Category is the inferred release stage of an identifier.
type Category string

const (
	CategoryRelease          Category = "release"
	CategorySnapshot         Category = "snapshot"
	CategoryPreRelease       Category = "pre-release"
	CategoryReleaseCandidate Category = "release-candidate"
	CategoryUnknown          Category = "unknown"
)

// Filterable lists the categories that have a notification toggle.
var Filterable = []Category{
	CategoryRelease,
	CategorySnapshot,
	CategoryPreRelease,
	CategoryReleaseCandidate,
}

// Label is the human-readable name used in notification messages.
func (c Category) Label() string {
	switch c {
	case CategoryRelease:
		return "Release"
	case CategorySnapshot:
		return "Snapshot"
	case CategoryPreRelease:
		return "Pre-release"
	case CategoryReleaseCandidate:
		return "Release Candidate"
	default:
		return "Unknown"
	}
}

func (c Category) String() string { return string(c) }

// ParseCategory accepts both the canonical names and the snake_case config
// keys ("pre_release", "release_candidate").
func ParseCategory(s string) (Category, bool) {
	k := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	switch Category(k) {
	case CategoryRelease, CategorySnapshot, CategoryPreRelease, CategoryReleaseCandidate, CategoryUnknown:
		return Category(k), true
	}
	return CategoryUnknown, false
}
