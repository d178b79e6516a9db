package config

import (
	"reflect"
	"slices"

	"mcwatch/pkg/logx"
)

// SummarizeChange lists the sections that differ between two resolved
// configs, with safe log fields for each. The bot token is never logged.
func SummarizeChange(oldCfg, newCfg *Resolved) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Resolved{}
	}
	if newCfg == nil {
		newCfg = &Resolved{}
	}
	var (
		changed []string
		fields  []logx.Field
	)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || ot.PollTimeout != nt.PollTimeout || ot.LogChat != nt.LogChat || !slices.Equal(ot.OwnerUserIDs, nt.OwnerUserIDs) {
		changed = append(changed, "telegram")
		fields = append(fields,
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Duration("telegram.poll_timeout", nt.PollTimeout),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Watcher, newCfg.Watcher) {
		changed = append(changed, "watcher")
		w := newCfg.Watcher
		fields = append(fields,
			logx.Duration("watcher.interval", w.Interval),
			logx.Int("watcher.recipients", len(w.Recipients)),
			logx.Bool("watcher.notify_unknown", w.NotifyUnknown),
			logx.Bool("watcher.proxy", w.Proxy.Enabled),
		)
		if oldCfg.Watcher.ManifestURL != w.ManifestURL {
			fields = append(fields, logx.String("watcher.manifest_url", w.ManifestURL))
		}
	}

	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		fields = append(fields,
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", newCfg.HTTP.Addr),
			logx.Bool("http.token_set", newCfg.HTTP.Token != ""),
			logx.Bool("http.pprof", newCfg.HTTP.Pprof),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		fields = append(fields, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	return changed, fields
}

// RequiresRestart reports changes the running process cannot apply live.
func RequiresRestart(oldCfg, newCfg *Resolved) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var out []string
	if oldCfg.Telegram.Token != newCfg.Telegram.Token || oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout {
		out = append(out, "telegram")
	}
	if oldCfg.Watcher.Proxy != newCfg.Watcher.Proxy {
		out = append(out, "watcher.proxy")
	}
	if oldCfg.Storage != newCfg.Storage {
		out = append(out, "storage")
	}
	return out
}
