package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mcwatch/internal/config"
	"mcwatch/internal/manifest"
)

const onceManifest = `{
  "latest": {"release": "1.21.2", "snapshot": "24w44a"},
  "versions": [
    {"id": "24w44a", "type": "snapshot", "releaseTime": "2024-10-30T12:00:00+00:00"},
    {"id": "1.21.2-rc1", "type": "snapshot", "releaseTime": "2024-10-15T12:00:00+00:00"},
    {"id": "1.21.2-pre1", "type": "snapshot", "releaseTime": "2024-10-01T12:00:00+00:00"},
    {"id": "1.21.2", "type": "release", "releaseTime": "2024-10-22T12:00:00+00:00"},
    {"id": "b1.7.3", "type": "old_beta", "releaseTime": "2011-07-08T00:00:00+00:00"}
  ]
}`

func TestRunOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(onceManifest))
	}))
	defer srv.Close()

	cfg, err := config.Resolve(&config.Config{Watcher: config.WatcherConfig{ManifestURL: srv.URL}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	cfg.Watcher.FetchTimeout = 2 * time.Second

	var out bytes.Buffer
	if err := RunOnce(context.Background(), cfg, &out); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"bootstrap complete, 5 versions known",
		"release: 1.21.2 (Release)",
		"minecraft-snapshot-24w44a",
		"categories: release=1 snapshot=1 pre-release=1 release-candidate=1 unknown=1",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "would send") {
		t.Fatalf("bootstrap must not dispatch:\n%s", got)
	}
}

func TestRunOnceFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg, err := config.Resolve(&config.Config{Watcher: config.WatcherConfig{ManifestURL: srv.URL}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	err = RunOnce(context.Background(), cfg, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), manifest.ErrFetch.Error()) {
		t.Fatalf("err = %v", err)
	}
}
