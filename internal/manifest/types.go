// Package manifest fetches and decodes the Minecraft version manifest.
package manifest

import "time"

// DefaultURL is the public version manifest endpoint.
const DefaultURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"

// Entry is one catalog record. Only ID and ReleaseTime are interpreted by
// the watcher; the remaining fields are passed through.
type Entry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	URL         string    `json:"url"`
	Time        time.Time `json:"time"`
	ReleaseTime time.Time `json:"releaseTime"`
}

// Latest names the current release and snapshot identifiers.
type Latest struct {
	Release  string `json:"release"`
	Snapshot string `json:"snapshot"`
}

// Manifest is one fetched catalog snapshot.
type Manifest struct {
	Latest   Latest  `json:"latest"`
	Versions []Entry `json:"versions"`
}

// IDs returns the identifiers in catalog order.
func (m *Manifest) IDs() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.Versions))
	for _, v := range m.Versions {
		out = append(out, v.ID)
	}
	return out
}

// Lookup returns the first entry with the given identifier.
func (m *Manifest) Lookup(id string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	for _, v := range m.Versions {
		if v.ID == id {
			return v, true
		}
	}
	return Entry{}, false
}
