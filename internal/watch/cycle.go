package watch

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mcwatch/internal/eventbus"
	"mcwatch/internal/manifest"
	"mcwatch/internal/notifier"
	"mcwatch/internal/release"
	"mcwatch/internal/storage"
	"mcwatch/internal/transport"
	"mcwatch/pkg/logx"
)

// Fetcher returns one catalog snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (*manifest.Manifest, error)
}

// Dispatcher hands one message to every recipient.
type Dispatcher interface {
	Broadcast(ctx context.Context, text string, targets []transport.ChatTarget) notifier.Report
}

// Recorder persists an audit trail of announcements. Optional.
type Recorder interface {
	AppendDispatch(ctx context.Context, rec storage.DispatchRecord) error
}

// Skip reasons.
const (
	SkipFiltered     = "filtered"
	SkipUnknown      = "unknown suppressed"
	SkipUnresolved   = "unresolved"
	SkipNoRecipients = "no recipients"
)

// Settings are the live, hot-reloadable knobs of a Cycle.
type Settings struct {
	Recipients    []transport.ChatTarget
	Filter        Filter
	NotifyUnknown bool
	Template      string
	// Pacing is the minimum gap between two announcements.
	Pacing time.Duration
}

type Announcement struct {
	ID          string           `json:"id"`
	Category    release.Category `json:"category"`
	URL         string           `json:"url"`
	ReleaseTime time.Time        `json:"release_time"`
	Sent        int              `json:"sent"`
	Failed      int              `json:"failed"`
}

type Skip struct {
	ID       string           `json:"id"`
	Category release.Category `json:"category"`
	Reason   string           `json:"reason"`
}

// Result describes one Run.
type Result struct {
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Bootstrap bool           `json:"bootstrap"`
	Known     int            `json:"known"`
	New       []string       `json:"new,omitempty"`
	Announced []Announcement `json:"announced,omitempty"`
	Skipped   []Skip         `json:"skipped,omitempty"`
	Err       string         `json:"error,omitempty"`
}

// DispatchFailures sums failed recipients over all announcements.
func (r Result) DispatchFailures() int {
	n := 0
	for _, a := range r.Announced {
		n += a.Failed
	}
	return n
}

type Deps struct {
	Fetcher    Fetcher
	Dispatcher Dispatcher
	Detector   *Detector
	Recorder   Recorder
	Log        logx.Logger
	Bus        eventbus.Bus
}

// Cycle runs one poll: fetch, detect, announce.
type Cycle struct {
	run sync.Mutex // serializes Run

	fetch Fetcher
	disp  Dispatcher
	det   *Detector
	rec   Recorder
	log   logx.Logger
	bus   eventbus.Bus
	pacer *rate.Limiter

	mu       sync.RWMutex
	settings Settings
	last     *Result
}

func NewCycle(d Deps, s Settings) (*Cycle, error) {
	if d.Fetcher == nil {
		return nil, errors.New("watch: fetcher is required")
	}
	if d.Dispatcher == nil {
		return nil, errors.New("watch: dispatcher is required")
	}
	if d.Detector == nil {
		d.Detector = NewDetector()
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Bus == nil {
		d.Bus = eventbus.Nop{}
	}
	c := &Cycle{
		fetch: d.Fetcher,
		disp:  d.Dispatcher,
		det:   d.Detector,
		rec:   d.Recorder,
		log:   d.Log,
		bus:   d.Bus,
		pacer: rate.NewLimiter(pacingLimit(s.Pacing), 1),
	}
	c.settings = s
	return c, nil
}

func pacingLimit(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}

// Apply replaces the settings; an in-flight Run keeps the ones it started with.
func (c *Cycle) Apply(s Settings) {
	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
	c.pacer.SetLimit(pacingLimit(s.Pacing))
}

func (c *Cycle) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.settings
	s.Recipients = slices.Clone(s.Recipients)
	return s
}

func (c *Cycle) Detector() *Detector { return c.det }

// Last returns the result of the most recent Run.
func (c *Cycle) Last() (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Result{}, false
	}
	return *c.last, true
}

// Run executes one cycle. A fetch error is returned and leaves the seen set
// untouched; dispatch failures are only counted in the Result.
func (c *Cycle) Run(ctx context.Context) (Result, error) {
	c.run.Lock()
	defer c.run.Unlock()

	st := c.Settings()
	res := Result{StartedAt: time.Now()}

	m, err := c.fetch.Fetch(ctx)
	if err != nil {
		res.Err = err.Error()
		res.Known = c.det.Size()
		c.finish(&res)
		c.log.Warn("manifest fetch failed", logx.Err(err))
		c.bus.Publish(eventbus.Event{Type: eventbus.TypeCycleFailed, Data: res})
		return res, err
	}

	bootstrap := !c.det.Bootstrapped()
	res.New = c.det.Update(m.IDs())
	res.Known = c.det.Size()
	if bootstrap {
		res.Bootstrap = true
		c.finish(&res)
		c.log.Info("seen set bootstrapped", logx.Int("known", res.Known), logx.String("latest_release", m.Latest.Release), logx.String("latest_snapshot", m.Latest.Snapshot))
		c.bus.Publish(eventbus.Event{Type: eventbus.TypeCycleDone, Data: res})
		return res, nil
	}

	entries := make([]manifest.Entry, 0, len(res.New))
	for _, id := range res.New {
		e, ok := m.Lookup(id)
		if !ok {
			c.skip(&res, Skip{ID: id, Category: release.Classify(id), Reason: SkipUnresolved})
			continue
		}
		entries = append(entries, e)
	}
	slices.SortStableFunc(entries, func(a, b manifest.Entry) int {
		return b.ReleaseTime.Compare(a.ReleaseTime)
	})

	composer := Composer{Template: st.Template}
	for _, e := range entries {
		cat := release.Classify(e.ID)
		c.bus.Publish(eventbus.Event{Type: eventbus.TypeReleaseFound, Data: e})

		switch {
		case !ShouldNotify(cat, st.Filter):
			c.skip(&res, Skip{ID: e.ID, Category: cat, Reason: SkipFiltered})
			continue
		case cat == release.CategoryUnknown && !st.NotifyUnknown:
			c.skip(&res, Skip{ID: e.ID, Category: cat, Reason: SkipUnknown})
			continue
		case len(st.Recipients) == 0:
			c.skip(&res, Skip{ID: e.ID, Category: cat, Reason: SkipNoRecipients})
			continue
		}

		// Pacing is not a cancellation point: once an announcement is due it
		// waits its turn even during shutdown.
		_ = c.pacer.Wait(context.WithoutCancel(ctx))

		text := composer.Compose(e, cat)
		rep := c.disp.Broadcast(ctx, text, st.Recipients)
		a := Announcement{
			ID:          e.ID,
			Category:    cat,
			URL:         release.ArticleURL(e.ID, cat),
			ReleaseTime: e.ReleaseTime,
			Sent:        rep.Sent,
			Failed:      rep.Failed(),
		}
		res.Announced = append(res.Announced, a)
		c.record(ctx, a, text, rep)

		fields := []logx.Field{
			logx.String("version", e.ID),
			logx.String("category", cat.String()),
			logx.Int("sent", a.Sent),
			logx.Int("failed", a.Failed),
		}
		if a.Failed > 0 {
			c.log.Warn("release announced with failures", fields...)
		} else {
			c.log.Info("release announced", fields...)
		}
	}

	c.finish(&res)
	if len(res.New) > 0 {
		c.log.Info("cycle finished", logx.Int("new", len(res.New)), logx.Int("announced", len(res.Announced)), logx.Int("skipped", len(res.Skipped)), logx.Duration("took", res.Duration))
	} else {
		c.log.Debug("cycle finished", logx.Int("known", res.Known), logx.Duration("took", res.Duration))
	}
	c.bus.Publish(eventbus.Event{Type: eventbus.TypeCycleDone, Data: res})
	return res, nil
}

func (c *Cycle) skip(res *Result, s Skip) {
	res.Skipped = append(res.Skipped, s)
	c.log.Info("release skipped", logx.String("version", s.ID), logx.String("category", s.Category.String()), logx.String("reason", s.Reason))
	c.bus.Publish(eventbus.Event{Type: eventbus.TypeReleaseSkipped, Data: s})
}

func (c *Cycle) record(ctx context.Context, a Announcement, text string, rep notifier.Report) {
	if c.rec == nil {
		return
	}
	err := c.rec.AppendDispatch(ctx, storage.DispatchRecord{
		Version:    a.ID,
		Category:   a.Category.String(),
		URL:        a.URL,
		Text:       text,
		Recipients: rep.Total,
		Sent:       rep.Sent,
		Failed:     rep.Failed(),
		At:         time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, storage.ErrDisabled) {
		c.log.Warn("dispatch history write failed", logx.String("version", a.ID), logx.Err(err))
	}
}

func (c *Cycle) finish(res *Result) {
	res.Duration = time.Since(res.StartedAt)
	cp := *res
	c.mu.Lock()
	c.last = &cp
	c.mu.Unlock()
}
