package watch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mcwatch/internal/manifest"
	"mcwatch/internal/notifier"
	"mcwatch/internal/release"
	"mcwatch/internal/storage"
	"mcwatch/internal/transport"
	"mcwatch/pkg/logx"
)

type scriptedFetcher struct {
	steps []fetchStep
	calls int
}

type fetchStep struct {
	m   *manifest.Manifest
	err error
}

func (f *scriptedFetcher) Fetch(context.Context) (*manifest.Manifest, error) {
	s := f.steps[min(f.calls, len(f.steps)-1)]
	f.calls++
	return s.m, s.err
}

type sentMessage struct {
	text    string
	targets []transport.ChatTarget
	at      time.Time
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []sentMessage
	// failChat marks a recipient that always fails.
	failChat int64
}

func (d *recordingDispatcher) Broadcast(_ context.Context, text string, targets []transport.ChatTarget) notifier.Report {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentMessage{text: text, targets: targets, at: time.Now()})
	rep := notifier.Report{Total: len(targets)}
	for _, t := range targets {
		if t.ChatID == d.failChat {
			rep.Failures = append(rep.Failures, notifier.Failure{Target: t, Err: errors.New("blocked")})
			continue
		}
		rep.Sent++
	}
	return rep
}

type memRecorder struct{ recs []storage.DispatchRecord }

func (r *memRecorder) AppendDispatch(_ context.Context, rec storage.DispatchRecord) error {
	r.recs = append(r.recs, rec)
	return nil
}

var t0 = time.Date(2024, 6, 13, 9, 0, 0, 0, time.UTC)

func snapshot(entries ...manifest.Entry) *manifest.Manifest {
	return &manifest.Manifest{Versions: entries}
}

func entry(id string, at time.Time) manifest.Entry {
	return manifest.Entry{ID: id, ReleaseTime: at}
}

func defaultSettings() Settings {
	return Settings{
		Recipients:    []transport.ChatTarget{{ChatID: -100}},
		Filter:        AllEnabled(),
		NotifyUnknown: true,
	}
}

func newTestCycle(t *testing.T, f Fetcher, d Dispatcher, s Settings) *Cycle {
	t.Helper()
	c, err := NewCycle(Deps{Fetcher: f, Dispatcher: d, Log: logx.Nop()}, s)
	if err != nil {
		t.Fatalf("NewCycle: %v", err)
	}
	return c
}

func TestCycleEndToEnd(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{
		{m: snapshot(entry("1.21", t0))},
		{m: snapshot(entry("1.21", t0), entry("1.21.1", t0.Add(time.Hour)))},
	}}
	d := &recordingDispatcher{}
	c := newTestCycle(t, f, d, defaultSettings())
	ctx := context.Background()

	res, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if !res.Bootstrap || len(d.sent) != 0 {
		t.Fatalf("bootstrap run dispatched %d messages (res %+v)", len(d.sent), res)
	}
	if c.Detector().Size() != 1 || !c.Detector().Seen("1.21") {
		t.Fatal("seen set not seeded with 1.21")
	}

	res, err = c.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(d.sent) != 1 {
		t.Fatalf("dispatches = %d, want 1", len(d.sent))
	}
	if len(res.Announced) != 1 || res.Announced[0].ID != "1.21.1" || res.Announced[0].Category != release.CategoryRelease {
		t.Fatalf("announced = %+v", res.Announced)
	}
	url := release.ArticleURL("1.21.1", release.CategoryRelease)
	if !strings.Contains(d.sent[0].text, url) {
		t.Fatalf("message %q does not contain %q", d.sent[0].text, url)
	}
}

func TestCycleOrdersNewestFirst(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{
		{m: snapshot(entry("1.20", t0))},
		{m: snapshot(
			entry("1.20", t0),
			entry("24w10a", t0.Add(1*time.Hour)),
			entry("1.21-pre1", t0.Add(3*time.Hour)),
			entry("24w11a", t0.Add(2*time.Hour)),
		)},
	}}
	d := &recordingDispatcher{}
	s := defaultSettings()
	s.Template = "{version}"
	c := newTestCycle(t, f, d, s)

	_, _ = c.Run(context.Background())
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"1.21-pre1", "24w11a", "24w10a"}
	if len(d.sent) != len(want) {
		t.Fatalf("dispatches = %d, want %d", len(d.sent), len(want))
	}
	for i, w := range want {
		if d.sent[i].text != w {
			t.Fatalf("dispatch %d = %q, want %q", i, d.sent[i].text, w)
		}
	}
}

func TestCycleFilterSkipsOnlyDisabledCategory(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{
		{m: snapshot()},
		{m: snapshot(entry("24w10a", t0), entry("1.21", t0.Add(time.Hour)))},
	}}
	d := &recordingDispatcher{}
	s := defaultSettings()
	s.Filter.Snapshot = false
	s.Template = "{version}"
	c := newTestCycle(t, f, d, s)

	_, _ = c.Run(context.Background())
	res, _ := c.Run(context.Background())

	if len(d.sent) != 1 || d.sent[0].text != "1.21" {
		t.Fatalf("sent = %+v, want only 1.21", d.sent)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].ID != "24w10a" || res.Skipped[0].Reason != SkipFiltered {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	if !c.Detector().Seen("24w10a") {
		t.Fatal("filtered entry must still be marked seen")
	}
}

func TestCycleUnknownPolicy(t *testing.T) {
	for _, notify := range []bool{true, false} {
		f := &scriptedFetcher{steps: []fetchStep{
			{m: snapshot()},
			{m: snapshot(entry("combat-test-8c", t0))},
		}}
		d := &recordingDispatcher{}
		s := defaultSettings()
		s.Filter = Filter{}
		s.NotifyUnknown = notify
		c := newTestCycle(t, f, d, s)

		_, _ = c.Run(context.Background())
		_, _ = c.Run(context.Background())

		if got := len(d.sent) == 1; got != notify {
			t.Fatalf("NotifyUnknown=%v: dispatched=%d", notify, len(d.sent))
		}
	}
}

func TestCycleFetchFailureLeavesStateUntouched(t *testing.T) {
	boom := errors.New("offline")
	f := &scriptedFetcher{steps: []fetchStep{
		{err: boom},
		{m: snapshot(entry("1.21", t0))},
		{err: boom},
		{m: snapshot(entry("1.21", t0), entry("1.21.1", t0.Add(time.Hour)))},
	}}
	d := &recordingDispatcher{}
	c := newTestCycle(t, f, d, defaultSettings())
	ctx := context.Background()

	if _, err := c.Run(ctx); !errors.Is(err, boom) {
		t.Fatalf("Run err = %v, want offline", err)
	}
	if c.Detector().Bootstrapped() {
		t.Fatal("failed fetch must not bootstrap")
	}

	res, _ := c.Run(ctx)
	if !res.Bootstrap {
		t.Fatal("first successful fetch must be the bootstrap")
	}

	if _, err := c.Run(ctx); err == nil {
		t.Fatal("expected fetch error")
	}
	if last, ok := c.Last(); !ok || last.Err == "" {
		t.Fatalf("Last() = %+v, %v", last, ok)
	}
	if c.Detector().Size() != 1 {
		t.Fatalf("Size() = %d after failed fetch", c.Detector().Size())
	}

	res, _ = c.Run(ctx)
	if len(res.Announced) != 1 || len(d.sent) != 1 {
		t.Fatalf("announced %+v after recovery", res.Announced)
	}
}

func TestCycleDispatchFailureDoesNotAbort(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{
		{m: snapshot()},
		{m: snapshot(entry("1.21", t0), entry("1.21.1", t0.Add(time.Hour)))},
	}}
	d := &recordingDispatcher{failChat: -1}
	s := defaultSettings()
	s.Recipients = []transport.ChatTarget{{ChatID: -1}, {ChatID: -2}}
	rec := &memRecorder{}
	c, err := NewCycle(Deps{Fetcher: f, Dispatcher: d, Recorder: rec}, s)
	if err != nil {
		t.Fatal(err)
	}

	_, _ = c.Run(context.Background())
	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Announced) != 2 || res.DispatchFailures() != 2 {
		t.Fatalf("announced=%d failures=%d", len(res.Announced), res.DispatchFailures())
	}
	if len(rec.recs) != 2 || rec.recs[0].Version != "1.21.1" || rec.recs[0].Sent != 1 || rec.recs[0].Failed != 1 {
		t.Fatalf("history = %+v", rec.recs)
	}
}

func TestCyclePacesAnnouncements(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{
		{m: snapshot()},
		{m: snapshot(entry("a", t0), entry("b", t0.Add(time.Minute)), entry("c", t0.Add(2*time.Minute)))},
	}}
	d := &recordingDispatcher{}
	s := defaultSettings()
	s.Pacing = 40 * time.Millisecond
	c := newTestCycle(t, f, d, s)

	_, _ = c.Run(context.Background())
	_, _ = c.Run(context.Background())

	if len(d.sent) != 3 {
		t.Fatalf("dispatches = %d, want 3", len(d.sent))
	}
	for i := 1; i < len(d.sent); i++ {
		// allow a little scheduler slack below the nominal gap
		if gap := d.sent[i].at.Sub(d.sent[i-1].at); gap < 30*time.Millisecond {
			t.Fatalf("gap %d = %v, want >= pacing", i, gap)
		}
	}
}

func TestCycleNoRecipients(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{
		{m: snapshot()},
		{m: snapshot(entry("1.21", t0))},
	}}
	d := &recordingDispatcher{}
	s := defaultSettings()
	s.Recipients = nil
	c := newTestCycle(t, f, d, s)

	_, _ = c.Run(context.Background())
	res, _ := c.Run(context.Background())
	if len(d.sent) != 0 || len(res.Skipped) != 1 || res.Skipped[0].Reason != SkipNoRecipients {
		t.Fatalf("res = %+v", res)
	}
}

func TestCycleApplyUpdatesSettings(t *testing.T) {
	f := &scriptedFetcher{steps: []fetchStep{
		{m: snapshot()},
		{m: snapshot(entry("1.21", t0))},
	}}
	d := &recordingDispatcher{}
	c := newTestCycle(t, f, d, defaultSettings())
	_, _ = c.Run(context.Background())

	s := defaultSettings()
	s.Template = "new {version}"
	c.Apply(s)
	_, _ = c.Run(context.Background())

	if len(d.sent) != 1 || d.sent[0].text != "new 1.21" {
		t.Fatalf("sent = %+v", d.sent)
	}
}
