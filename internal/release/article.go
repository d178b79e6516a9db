package release

import "strings"

const (
	articleBase = "https://www.minecraft.net/en-us/article/"

	placeholderPrefix = "unrecognized category: "
)

// ArticleURL returns the minecraft.net release notes URL for id, or the
// placeholder "unrecognized category: <id>" when the category is unknown or
// id does not have the shape its category implies. Callers must treat the
// placeholder as "no usable URL" (see IsPlaceholder).
func ArticleURL(id string, c Category) string {
	switch c {
	case CategoryRelease:
		return articleBase + "minecraft-java-edition-" + slug(id)
	case CategorySnapshot:
		return articleBase + "minecraft-snapshot-" + id
	case CategoryPreRelease, CategoryReleaseCandidate:
		base, suffix, ok := strings.Cut(id, "-")
		if !ok {
			return Placeholder(id)
		}
		return articleBase + "minecraft-" + slug(base) + "-" + string(c) + "-" + sequence(suffix)
	default:
		return Placeholder(id)
	}
}

// Placeholder is the diagnostic string returned when no URL can be built.
func Placeholder(id string) string { return placeholderPrefix + id }

// IsPlaceholder reports whether s came from Placeholder.
func IsPlaceholder(s string) bool { return strings.HasPrefix(s, placeholderPrefix) }

func slug(s string) string { return strings.ReplaceAll(s, ".", "-") }

// sequence extracts the stage number from a suffix such as "rc.2". Without a
// dot (or with nothing after it) the number is 1.
func sequence(suffix string) string {
	_, n, ok := strings.Cut(suffix, ".")
	if !ok || n == "" {
		return "1"
	}
	return n
}
