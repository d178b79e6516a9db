package status

import (
	"fmt"
	"strings"
	"time"

	"mcwatch/internal/watch"
)

const timeLayout = "2006-01-02 15:04:05 MST"

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Text renders the snapshot for chat.
func (s Snapshot) Text() string {
	var b strings.Builder
	b.WriteString("mcwatch status\n")
	fmt.Fprintf(&b, "interval: %s\n", s.Interval)
	fmt.Fprintf(&b, "pacing: %s\n", s.Pacing)
	if len(s.Recipients) == 0 {
		b.WriteString("recipients: none\n")
	} else {
		fmt.Fprintf(&b, "recipients: %s\n", strings.Join(s.Recipients, ", "))
	}
	fmt.Fprintf(&b, "notify: release=%s snapshot=%s pre-release=%s release-candidate=%s unknown=%s\n",
		onOff(s.Notify.Release), onOff(s.Notify.Snapshot), onOff(s.Notify.PreRelease),
		onOff(s.Notify.ReleaseCandidate), onOff(s.NotifyUnknown))
	fmt.Fprintf(&b, "template: %q\n", s.Template)
	if s.Proxy.Enabled {
		fmt.Fprintf(&b, "proxy: %s\n", s.Proxy.Address)
	} else {
		b.WriteString("proxy: off\n")
	}
	fmt.Fprintf(&b, "seen: %d (bootstrapped: %t)\n", s.Seen, s.Bootstrapped)
	if !s.NextRun.IsZero() {
		fmt.Fprintf(&b, "next run: %s\n", s.NextRun.Format(timeLayout))
	}
	if s.Last == nil {
		b.WriteString("last cycle: none yet")
		return b.String()
	}
	l := s.Last
	fmt.Fprintf(&b, "last cycle: %s (%s)", l.StartedAt.Format(timeLayout), time.Duration(l.Duration).Round(time.Millisecond))
	switch {
	case l.Err != "":
		fmt.Fprintf(&b, "\n  failed: %s", l.Err)
	case l.Bootstrap:
		fmt.Fprintf(&b, "\n  bootstrap, %d known", l.Known)
	default:
		fmt.Fprintf(&b, "\n  new=%d announced=%d skipped=%d dispatch_failures=%d", l.New, l.Announced, l.Skipped, l.Failures)
	}
	return b.String()
}

// Text renders the latest versions for chat.
func (l Latest) Text() string {
	var b strings.Builder
	b.WriteString("Latest Minecraft versions")
	for _, row := range []struct {
		name string
		v    *Version
	}{{"release", l.Release}, {"snapshot", l.Snapshot}} {
		if row.v == nil {
			fmt.Fprintf(&b, "\n%s: unknown", row.name)
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s (%s)\n%s", row.name, row.v.ID, row.v.Label, row.v.ArticleURL)
	}
	return b.String()
}

// CycleText renders the result of a manual check.
func CycleText(r watch.Result, err error) string {
	if err != nil {
		return "check failed: " + err.Error()
	}
	if r.Bootstrap {
		return fmt.Sprintf("bootstrap complete, %d versions known", r.Known)
	}
	if len(r.New) == 0 {
		return fmt.Sprintf("no new versions (%d known)", r.Known)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d new version(s)", len(r.New))
	for _, a := range r.Announced {
		fmt.Fprintf(&b, "\n+ %s (%s) sent=%d failed=%d", a.ID, a.Category.Label(), a.Sent, a.Failed)
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(&b, "\n- %s skipped: %s", s.ID, s.Reason)
	}
	return b.String()
}
