package storage

import (
	"fmt"
	"strings"

	"mcwatch/pkg/logx"
)

const defaultRecentLimit = 20

// Open initializes the configured store. A disabled store is returned (never
// nil) when Driver is empty or "none".
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "none":
		return disabledStore{}, nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// Enabled reports whether st persists anything.
func Enabled(st Store) bool {
	if st == nil {
		return false
	}
	_, off := st.(disabledStore)
	return !off
}

func normLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	return min(limit, 500)
}
