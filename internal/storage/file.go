package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"mcwatch/pkg/logx"
)

// fileStore appends one JSON object per line and reads the tail back for
// RecentDispatches. Records are few (one per release), so reading the whole
// file is acceptable.
type fileStore struct {
	log logx.Logger

	mu     sync.Mutex
	path   string
	f      *os.File
	nextID int64
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	recs, err := readRecords(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	var last int64
	for _, r := range recs {
		last = max(last, r.ID)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	log.Debug("file store opened", logx.String("path", path), logx.Int("records", len(recs)))
	return &fileStore{log: log, path: path, f: f, nextID: last + 1}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) AppendDispatch(_ context.Context, rec DispatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("dispatch log closed")
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	rec.ID = s.nextID
	if err := json.NewEncoder(s.f).Encode(rec); err != nil {
		return err
	}
	s.nextID++
	return nil
}

func (s *fileStore) RecentDispatches(_ context.Context, limit int) ([]DispatchRecord, error) {
	s.mu.Lock()
	recs, err := readRecords(s.path)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	slices.Reverse(recs)
	if n := normLimit(limit); len(recs) > n {
		recs = recs[:n]
	}
	return recs, nil
}

// readRecords skips malformed lines, e.g. a torn write after a crash.
func readRecords(path string) ([]DispatchRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []DispatchRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		var r DispatchRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.Version == "" {
			continue
		}
		out = append(out, r)
	}
	return out, sc.Err()
}
