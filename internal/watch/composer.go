package watch

import (
	"strings"

	"mcwatch/internal/manifest"
	"mcwatch/internal/release"
)

// DefaultTemplate is used when no template is configured.
const DefaultTemplate = "Minecraft {type} {version} is out!\n{url}"

// Template placeholders.
const (
	PlaceholderType    = "{type}"
	PlaceholderVersion = "{version}"
	PlaceholderURL     = "{url}"
)

// Filter holds one toggle per filterable category. Unknown has no toggle.
type Filter struct {
	Release          bool `json:"release"`
	Snapshot         bool `json:"snapshot"`
	PreRelease       bool `json:"pre_release"`
	ReleaseCandidate bool `json:"release_candidate"`
}

// AllEnabled is the default filter.
func AllEnabled() Filter {
	return Filter{Release: true, Snapshot: true, PreRelease: true, ReleaseCandidate: true}
}

// ShouldNotify is false only when c has a toggle and it is off. Whether
// unknown entries are announced is left to the caller.
func ShouldNotify(c release.Category, f Filter) bool {
	switch c {
	case release.CategoryRelease:
		return f.Release
	case release.CategorySnapshot:
		return f.Snapshot
	case release.CategoryPreRelease:
		return f.PreRelease
	case release.CategoryReleaseCandidate:
		return f.ReleaseCandidate
	default:
		return true
	}
}

type Composer struct {
	Template string
}

// Compose renders the template for one entry. Every occurrence of each
// placeholder is replaced in a single pass, so substituted values are never
// re-expanded.
func (c Composer) Compose(e manifest.Entry, cat release.Category) string {
	tpl := c.Template
	if strings.TrimSpace(tpl) == "" {
		tpl = DefaultTemplate
	}
	r := strings.NewReplacer(
		PlaceholderType, cat.Label(),
		PlaceholderVersion, e.ID,
		PlaceholderURL, release.ArticleURL(e.ID, cat),
	)
	return r.Replace(tpl)
}
