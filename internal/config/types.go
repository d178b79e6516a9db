package config

// Config is the on-disk configuration (JSON or YAML). Durations are Go
// duration strings. Resolve turns it into a fully populated Resolved.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Watcher  WatcherConfig  `json:"watcher"`
	HTTP     HTTPConfig     `json:"http"`
	Storage  StorageConfig  `json:"storage"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// LogChat receives forwarded warn+ log lines: "<chatID>" or "<chatID>:<threadID>".
	LogChat     string `json:"log_chat,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  *bool           `json:"console,omitempty"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// WatcherConfig drives the poll cycle.
//
// Toggles are pointers so an omitted key defaults to true while an explicit
// false is honored.
type WatcherConfig struct {
	ManifestURL string `json:"manifest_url,omitempty"`
	// Interval is in seconds.
	Interval     int          `json:"interval,omitempty"`
	FetchTimeout string       `json:"fetch_timeout,omitempty"`
	Pacing       string       `json:"pacing,omitempty"`
	Recipients   []string     `json:"recipients"`
	Notify       NotifyConfig `json:"notify"`
	// NotifyUnknown controls entries whose identifier matches no known shape.
	NotifyUnknown *bool       `json:"notify_unknown,omitempty"`
	Template      string      `json:"template,omitempty"`
	Proxy         ProxyConfig `json:"proxy"`
	SendRetryMax  *int        `json:"send_retry_max,omitempty"`
}

type NotifyConfig struct {
	Release          *bool `json:"release,omitempty"`
	Snapshot         *bool `json:"snapshot,omitempty"`
	PreRelease       *bool `json:"pre_release,omitempty"`
	ReleaseCandidate *bool `json:"release_candidate,omitempty"`
}

// ProxyConfig is an HTTP proxy shared by the manifest client and the
// Telegram transport.
type ProxyConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	// Token, when set, is required as a bearer token on every route but /healthz.
	Token string `json:"token,omitempty"`
	Pprof bool   `json:"pprof,omitempty"`
}

// StorageConfig controls the optional dispatch history.
//
//	storage: { driver: sqlite, path: ./data/mcwatch.db }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}
