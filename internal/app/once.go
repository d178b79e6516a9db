package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"mcwatch/internal/config"
	"mcwatch/internal/manifest"
	"mcwatch/internal/notifier"
	"mcwatch/internal/release"
	"mcwatch/internal/status"
	"mcwatch/internal/transport"
	"mcwatch/internal/watch"
	"mcwatch/pkg/logx"
)

// dryRun stands in for the broadcaster when no chat is wanted.
type dryRun struct{ w io.Writer }

func (d dryRun) Broadcast(_ context.Context, text string, targets []transport.ChatTarget) notifier.Report {
	fmt.Fprintf(d.w, "would send to %d recipient(s):\n%s\n", len(targets), text)
	return notifier.Report{Total: len(targets), Sent: len(targets)}
}

// fetched replays one already downloaded manifest.
type fetched struct{ m *manifest.Manifest }

func (f fetched) Fetch(context.Context) (*manifest.Manifest, error) { return f.m, nil }

// RunOnce fetches the manifest once, bootstraps a fresh seen set and prints a
// summary to w. Nothing is sent to chat.
func RunOnce(ctx context.Context, cfg *config.Resolved, w io.Writer) error {
	client, err := newManifestClient(cfg.Watcher)
	if err != nil {
		return err
	}
	m, err := client.Fetch(ctx)
	if err != nil {
		return err
	}
	src := fetched{m: m}

	cycle, err := watch.NewCycle(watch.Deps{
		Fetcher:    src,
		Dispatcher: dryRun{w: w},
		Log:        logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "watch")),
	}, cfg.Watcher.CycleSettings())
	if err != nil {
		return err
	}
	res, err := cycle.Run(ctx)
	fmt.Fprintln(w, status.CycleText(res, err))
	if err != nil {
		return err
	}

	latest, err := status.NewProvider(cycle, src, nil, cfg.Watcher).Latest(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, latest.Text())
	fmt.Fprintln(w, categoryCounts(m))
	return nil
}

func categoryCounts(m *manifest.Manifest) string {
	counts := map[release.Category]int{}
	for _, id := range m.IDs() {
		counts[release.Classify(id)]++
	}
	all := append(append([]release.Category(nil), release.Filterable...), release.CategoryUnknown)
	parts := make([]string, 0, len(all))
	for _, c := range all {
		parts = append(parts, fmt.Sprintf("%s=%d", c, counts[c]))
	}
	return "categories: " + strings.Join(parts, " ")
}
