package app

import (
	"time"

	"mcwatch/internal/config"
	"mcwatch/internal/httpapi"
	"mcwatch/internal/manifest"
	"mcwatch/internal/notifier"
	"mcwatch/internal/transport/telegram/adapter"
)

const userAgent = "mcwatch/1.0"

func newManifestClient(w config.WatcherSettings) (*manifest.Client, error) {
	return manifest.New(manifest.Options{
		URL:       w.ManifestURL,
		Timeout:   w.FetchTimeout,
		UserAgent: userAgent,
		Proxy:     w.Proxy,
	}, nil)
}

// manifestChanged reports whether the fetch client must be rebuilt.
func manifestChanged(a, b config.WatcherSettings) bool {
	return a.ManifestURL != b.ManifestURL || a.FetchTimeout != b.FetchTimeout || a.Proxy != b.Proxy
}

func notifierConfig(w config.WatcherSettings) notifier.Config {
	return notifier.Config{
		RetryMax:      w.SendRetryMax,
		RetryBase:     500 * time.Millisecond,
		RetryMaxDelay: 10 * time.Second,
		SendTimeout:   10 * time.Second,
	}
}

func adapterConfig(r *config.Resolved) (adapter.Config, error) {
	pu, err := r.Watcher.Proxy.URL()
	if err != nil {
		return adapter.Config{}, err
	}
	return adapter.Config{
		Token:       r.Telegram.Token,
		PollTimeout: r.Telegram.PollTimeout,
		Proxy:       pu,
	}, nil
}

func httpConfig(h config.HTTPSettings) httpapi.Config {
	return httpapi.Config{Enabled: h.Enabled, Addr: h.Addr, Token: h.Token, Pprof: h.Pprof}
}
