package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage. An empty Driver means "none".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// DispatchRecord is one announced release and its delivery outcome.
type DispatchRecord struct {
	ID         int64     `json:"id,omitempty"`
	Version    string    `json:"version"`
	Category   string    `json:"category"`
	URL        string    `json:"url"`
	Text       string    `json:"text"`
	Recipients int       `json:"recipients"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	At         time.Time `json:"at"`
}

// Store is the persistence API used by the watcher and the status API.
type Store interface {
	AppendDispatch(ctx context.Context, rec DispatchRecord) error
	// RecentDispatches returns up to limit records, newest first.
	RecentDispatches(ctx context.Context, limit int) ([]DispatchRecord, error)
	Close() error
}

type disabledStore struct{}

func (disabledStore) AppendDispatch(context.Context, DispatchRecord) error { return ErrDisabled }
func (disabledStore) RecentDispatches(context.Context, int) ([]DispatchRecord, error) {
	return nil, ErrDisabled
}
func (disabledStore) Close() error { return nil }
