package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"mcwatch/internal/manifest"
	"mcwatch/internal/storage"
	"mcwatch/internal/transport"
	"mcwatch/internal/watch"
	"mcwatch/pkg/logx"
)

// ErrInvalid wraps every validation failure reported by Resolve.
var ErrInvalid = errors.New("invalid config")

const (
	DefaultInterval     = 60 * time.Second
	DefaultFetchTimeout = 10 * time.Second
	DefaultPacing       = time.Second
	DefaultPollTimeout  = 30 * time.Second
	DefaultHTTPAddr     = "127.0.0.1:8080"
	DefaultSendRetryMax = 2
)

// Resolved is the validated, defaulted configuration consumed by the app.
type Resolved struct {
	Telegram TelegramSettings
	Logging  logx.Config
	Watcher  WatcherSettings
	HTTP     HTTPSettings
	Storage  storage.Config
}

type TelegramSettings struct {
	Token        string
	OwnerUserIDs []int64
	LogChat      transport.ChatTarget // zero: none
	PollTimeout  time.Duration
}

type WatcherSettings struct {
	ManifestURL   string
	Interval      time.Duration
	FetchTimeout  time.Duration
	Pacing        time.Duration
	Recipients    []transport.ChatTarget
	Filter        watch.Filter
	NotifyUnknown bool
	Template      string
	Proxy         manifest.Proxy
	SendRetryMax  int
}

type HTTPSettings struct {
	Enabled bool
	Addr    string
	Token   string
	Pprof   bool
}

// IsOwner reports whether userID may run owner-only commands.
func (t TelegramSettings) IsOwner(userID int64) bool {
	for _, id := range t.OwnerUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CycleSettings maps the watcher section onto the poll cycle knobs.
func (w WatcherSettings) CycleSettings() watch.Settings {
	return watch.Settings{
		Recipients:    append([]transport.ChatTarget(nil), w.Recipients...),
		Filter:        w.Filter,
		NotifyUnknown: w.NotifyUnknown,
		Template:      w.Template,
		Pacing:        w.Pacing,
	}
}

// Resolve applies defaults and validates cfg. All problems are reported
// together, wrapped in ErrInvalid.
func Resolve(cfg *Config) (*Resolved, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	var problems []string
	bad := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }
	dur := func(path, raw string, def time.Duration) time.Duration {
		d, err := ParseDurationOrDefault(path, raw, def)
		if err != nil {
			bad("%v", err)
			return def
		}
		return d
	}

	r := &Resolved{}

	// telegram
	r.Telegram.Token = strings.TrimSpace(cfg.Telegram.Token)
	r.Telegram.OwnerUserIDs = append([]int64(nil), cfg.Telegram.OwnerUserIDs...)
	r.Telegram.PollTimeout = dur("telegram.poll_timeout", cfg.Telegram.PollTimeout, DefaultPollTimeout)
	if s := strings.TrimSpace(cfg.Telegram.LogChat); s != "" {
		t, err := transport.ParseChatTarget(s)
		if err != nil {
			bad("telegram.log_chat: %v", err)
		}
		r.Telegram.LogChat = t
	}

	// logging
	r.Logging = logx.Config{
		Level:   strings.TrimSpace(cfg.Logging.Level),
		Console: boolOr(cfg.Logging.Console, true),
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: strings.TrimSpace(cfg.Logging.File.Path)},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   strings.TrimSpace(cfg.Logging.Telegram.MinLevel),
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
	if r.Logging.Level == "" {
		r.Logging.Level = "info"
	}
	if r.Logging.Telegram.Enabled && r.Telegram.LogChat.ChatID == 0 {
		bad("logging.telegram.enabled requires telegram.log_chat")
	}

	// watcher
	w := cfg.Watcher
	r.Watcher.ManifestURL = strings.TrimSpace(w.ManifestURL)
	if r.Watcher.ManifestURL == "" {
		r.Watcher.ManifestURL = manifest.DefaultURL
	} else if u, err := url.Parse(r.Watcher.ManifestURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		bad("watcher.manifest_url: must be an absolute http(s) URL")
	}
	switch {
	case w.Interval < 0:
		bad("watcher.interval: must be > 0 seconds")
		r.Watcher.Interval = DefaultInterval
	case w.Interval == 0:
		r.Watcher.Interval = DefaultInterval
	default:
		r.Watcher.Interval = time.Duration(w.Interval) * time.Second
	}
	r.Watcher.FetchTimeout = dur("watcher.fetch_timeout", w.FetchTimeout, DefaultFetchTimeout)
	r.Watcher.Pacing = DefaultPacing
	if strings.TrimSpace(w.Pacing) != "" {
		// "0s" disables pacing
		d, err := ParseDurationField("watcher.pacing", w.Pacing)
		if err != nil {
			bad("%v", err)
		} else {
			r.Watcher.Pacing = d
		}
	}

	seen := map[transport.ChatTarget]bool{}
	for i, raw := range w.Recipients {
		t, err := transport.ParseChatTarget(raw)
		if err != nil {
			bad("watcher.recipients[%d]: %v", i, err)
			continue
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		r.Watcher.Recipients = append(r.Watcher.Recipients, t)
	}

	r.Watcher.Filter = watch.Filter{
		Release:          boolOr(w.Notify.Release, true),
		Snapshot:         boolOr(w.Notify.Snapshot, true),
		PreRelease:       boolOr(w.Notify.PreRelease, true),
		ReleaseCandidate: boolOr(w.Notify.ReleaseCandidate, true),
	}
	r.Watcher.NotifyUnknown = boolOr(w.NotifyUnknown, true)

	r.Watcher.Template = w.Template
	if strings.TrimSpace(r.Watcher.Template) == "" {
		r.Watcher.Template = watch.DefaultTemplate
	}

	r.Watcher.Proxy = manifest.Proxy{Enabled: w.Proxy.Enabled, Host: strings.TrimSpace(w.Proxy.Host), Port: w.Proxy.Port}
	if _, err := r.Watcher.Proxy.URL(); err != nil {
		bad("watcher.proxy: %v", err)
	}

	r.Watcher.SendRetryMax = DefaultSendRetryMax
	if w.SendRetryMax != nil {
		if *w.SendRetryMax < 0 {
			bad("watcher.send_retry_max: must be >= 0")
		} else {
			r.Watcher.SendRetryMax = *w.SendRetryMax
		}
	}

	// http
	r.HTTP.Enabled = cfg.HTTP.Enabled
	r.HTTP.Addr = strings.TrimSpace(cfg.HTTP.Addr)
	if r.HTTP.Addr == "" {
		r.HTTP.Addr = DefaultHTTPAddr
	}
	r.HTTP.Token = strings.TrimSpace(cfg.HTTP.Token)
	r.HTTP.Pprof = cfg.HTTP.Pprof

	// storage
	r.Storage = storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: dur("storage.busy_timeout", cfg.Storage.BusyTimeout, 0),
	}
	switch r.Storage.Driver {
	case "", "none":
		r.Storage.Driver = "none"
	case "file", "sqlite":
		if r.Storage.Path == "" {
			bad("storage.path: required for driver %q", r.Storage.Driver)
		}
	default:
		bad("storage.driver: unknown driver %q", r.Storage.Driver)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return r, nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
