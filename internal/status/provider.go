package status

import (
	"context"
	"sync"
	"time"

	"mcwatch/internal/config"
	"mcwatch/internal/manifest"
	"mcwatch/internal/release"
	"mcwatch/internal/watch"
)

// Schedule reports cron timing for the poll job.
type Schedule interface {
	Next() time.Time
	Prev() time.Time
}

// Provider assembles Snapshots and Latest views. Apply must be called after
// every config reload so the reported settings stay current.
type Provider struct {
	cycle *watch.Cycle
	fetch watch.Fetcher
	sched Schedule

	mu      sync.RWMutex
	watcher config.WatcherSettings
}

// NewProvider wires the views. sched may be nil when nothing is scheduled
// (one-shot mode).
func NewProvider(cycle *watch.Cycle, fetch watch.Fetcher, sched Schedule, w config.WatcherSettings) *Provider {
	return &Provider{cycle: cycle, fetch: fetch, sched: sched, watcher: w}
}

func (p *Provider) Apply(w config.WatcherSettings) {
	p.mu.Lock()
	p.watcher = w
	p.mu.Unlock()
}

func (p *Provider) Status() Snapshot {
	p.mu.RLock()
	w := p.watcher
	p.mu.RUnlock()

	s := Snapshot{
		Time:        time.Now(),
		ManifestURL: w.ManifestURL,
		Interval:    Duration(w.Interval),
		Pacing:      Duration(w.Pacing),
		Proxy:       ProxyInfo{Enabled: w.Proxy.Enabled},
	}
	if u, err := w.Proxy.URL(); err == nil && u != nil {
		s.Proxy.Address = u.Host
	}

	// Recipients, toggles and template come from the cycle so the view matches
	// what the next run will use.
	cs := p.cycle.Settings()
	s.Recipients = make([]string, 0, len(cs.Recipients))
	for _, t := range cs.Recipients {
		s.Recipients = append(s.Recipients, t.String())
	}
	s.Notify = cs.Filter
	s.NotifyUnknown = cs.NotifyUnknown
	s.Template = cs.Template
	if s.Template == "" {
		s.Template = watch.DefaultTemplate
	}

	det := p.cycle.Detector()
	s.Seen = det.Size()
	s.Bootstrapped = det.Bootstrapped()
	if p.sched != nil {
		s.NextRun = p.sched.Next()
		s.PrevRun = p.sched.Prev()
	}
	if r, ok := p.cycle.Last(); ok {
		s.Last = summarize(r)
	}
	return s
}

// Latest fetches the manifest and describes its latest release and snapshot.
// It never touches the change detector.
func (p *Provider) Latest(ctx context.Context) (Latest, error) {
	m, err := p.fetch.Fetch(ctx)
	if err != nil {
		return Latest{}, err
	}
	out := Latest{FetchedAt: time.Now()}
	out.Release = describe(m, m.Latest.Release)
	out.Snapshot = describe(m, m.Latest.Snapshot)
	return out, nil
}

func describe(m *manifest.Manifest, id string) *Version {
	if id == "" {
		return nil
	}
	c := release.Classify(id)
	v := &Version{ID: id, Category: c, Label: c.Label(), ArticleURL: release.ArticleURL(id, c)}
	if e, ok := m.Lookup(id); ok {
		v.ReleaseTime = e.ReleaseTime
	}
	return v
}

// Check runs one poll cycle now. It queues behind a scheduled run in flight.
func (p *Provider) Check(ctx context.Context) (watch.Result, error) {
	return p.cycle.Run(ctx)
}
