// Package status builds the operator views of the watcher: its current
// configuration and state, and the latest versions published upstream.
// The same data backs the chat commands and the HTTP API.
package status

import (
	"encoding/json"
	"time"

	"mcwatch/internal/release"
	"mcwatch/internal/watch"
)

// Duration marshals as a Go duration string ("1m0s").
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

// Snapshot is a point-in-time view of the watcher.
type Snapshot struct {
	Time          time.Time     `json:"time"`
	ManifestURL   string        `json:"manifest_url"`
	Interval      Duration      `json:"interval"`
	Pacing        Duration      `json:"pacing"`
	Recipients    []string      `json:"recipients"`
	Notify        watch.Filter  `json:"notify"`
	NotifyUnknown bool          `json:"notify_unknown"`
	Template      string        `json:"template"`
	Proxy         ProxyInfo     `json:"proxy"`

	Seen         int        `json:"seen"`
	Bootstrapped bool       `json:"bootstrapped"`
	NextRun      time.Time  `json:"next_run,omitzero"`
	PrevRun      time.Time  `json:"prev_run,omitzero"`
	Last         *LastCycle `json:"last,omitempty"`
}

type ProxyInfo struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address,omitempty"`
}

// LastCycle summarizes the most recent poll.
type LastCycle struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  Duration      `json:"duration"`
	Bootstrap bool          `json:"bootstrap"`
	Known     int           `json:"known"`
	New       int           `json:"new"`
	Announced int           `json:"announced"`
	Skipped   int           `json:"skipped"`
	Failures  int           `json:"dispatch_failures"`
	Err       string        `json:"error,omitempty"`
}

func summarize(r watch.Result) *LastCycle {
	return &LastCycle{
		StartedAt: r.StartedAt,
		Duration:  Duration(r.Duration),
		Bootstrap: r.Bootstrap,
		Known:     r.Known,
		New:       len(r.New),
		Announced: len(r.Announced),
		Skipped:   len(r.Skipped),
		Failures:  r.DispatchFailures(),
		Err:       r.Err,
	}
}

// Version describes one identifier named by the manifest's latest block.
type Version struct {
	ID          string           `json:"id"`
	Category    release.Category `json:"category"`
	Label       string           `json:"label"`
	ArticleURL  string           `json:"article_url"`
	ReleaseTime time.Time        `json:"release_time,omitzero"`
}

// Latest is the manifest's current release and snapshot.
type Latest struct {
	FetchedAt time.Time `json:"fetched_at"`
	Release   *Version  `json:"release,omitempty"`
	Snapshot  *Version  `json:"snapshot,omitempty"`
}
