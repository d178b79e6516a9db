package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mcwatch/internal/status"
	"mcwatch/internal/storage"
	"mcwatch/pkg/logx"
)

type fakeWatcher struct {
	latestErr error
}

func (fakeWatcher) Status() status.Snapshot {
	return status.Snapshot{
		Interval:     status.Duration(time.Minute),
		Recipients:   []string{"-100"},
		Seen:         12,
		Bootstrapped: true,
		Last:         &status.LastCycle{Known: 12, Err: "manifest fetch failed: timeout"},
	}
}

func (w fakeWatcher) Latest(context.Context) (status.Latest, error) {
	if w.latestErr != nil {
		return status.Latest{}, w.latestErr
	}
	return status.Latest{Release: &status.Version{ID: "1.21.2", Label: "Release"}}, nil
}

type fakeHistory struct {
	recs      []storage.DispatchRecord
	err       error
	lastLimit int
}

func (h *fakeHistory) RecentDispatches(_ context.Context, limit int) ([]storage.DispatchRecord, error) {
	h.lastLimit = limit
	return h.recs, h.err
}

func serve(t *testing.T, e http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestHealthzAndStatus(t *testing.T) {
	e := NewEngine(NewHandler(fakeWatcher{}, nil, nil, logx.Nop()), Config{}, logx.Nop())

	rec := serve(t, e, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, true, body["bootstrapped"])
	require.Equal(t, "manifest fetch failed: timeout", body["last_error"])

	rec = serve(t, e, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	require.Equal(t, "1m0s", body["interval"])
	require.EqualValues(t, 12, body["seen"])
	require.Equal(t, []any{"-100"}, body["recipients"])
}

func TestLatest(t *testing.T) {
	e := NewEngine(NewHandler(fakeWatcher{}, nil, nil, logx.Nop()), Config{}, logx.Nop())
	rec := serve(t, e, http.MethodGet, "/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rel, ok := decode(t, rec)["release"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "1.21.2", rel["id"])

	e = NewEngine(NewHandler(fakeWatcher{latestErr: errors.New("offline")}, nil, nil, logx.Nop()), Config{}, logx.Nop())
	rec = serve(t, e, http.MethodGet, "/latest", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHistory(t *testing.T) {
	at := time.Date(2024, 6, 13, 9, 0, 0, 0, time.UTC)
	h := &fakeHistory{recs: []storage.DispatchRecord{{ID: 1, Version: "24w11a", Sent: 2, At: at}}}
	e := NewEngine(NewHandler(fakeWatcher{}, h, nil, logx.Nop()), Config{}, logx.Nop())

	rec := serve(t, e, http.MethodGet, "/history?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, h.lastLimit)
	body := decode(t, rec)
	require.EqualValues(t, 1, body["count"])

	rec = serve(t, e, http.MethodGet, "/history?limit=abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	h.err = storage.ErrDisabled
	rec = serve(t, e, http.MethodGet, "/history", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	h.err = errors.New("disk full")
	rec = serve(t, e, http.MethodGet, "/history", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHistoryEmptyIsArray(t *testing.T) {
	e := NewEngine(NewHandler(fakeWatcher{}, &fakeHistory{}, nil, logx.Nop()), Config{}, logx.Nop())
	rec := serve(t, e, http.MethodGet, "/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []any{}, decode(t, rec)["dispatches"])
}

func TestTokenAuth(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "mcwatch_cycles_total 1\n")
	})
	e := NewEngine(NewHandler(fakeWatcher{}, nil, metrics, logx.Nop()), Config{Token: "s3cret"}, logx.Nop())

	require.Equal(t, http.StatusOK, serve(t, e, http.MethodGet, "/healthz", nil).Code)
	require.Equal(t, http.StatusUnauthorized, serve(t, e, http.MethodGet, "/status", nil).Code)
	require.Equal(t, http.StatusUnauthorized, serve(t, e, http.MethodGet, "/metrics", map[string]string{"Authorization": "Bearer nope"}).Code)
	require.Equal(t, http.StatusOK, serve(t, e, http.MethodGet, "/status?token=s3cret", nil).Code)

	rec := serve(t, e, http.MethodGet, "/metrics", map[string]string{"Authorization": "Bearer s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "mcwatch_cycles_total")
}

func TestPprofRoutesOptIn(t *testing.T) {
	h := NewHandler(fakeWatcher{}, nil, nil, logx.Nop())
	require.Equal(t, http.StatusNotFound, serve(t, NewEngine(h, Config{}, logx.Nop()), http.MethodGet, "/debug/pprof/", nil).Code)
	require.Equal(t, http.StatusOK, serve(t, NewEngine(h, Config{Pprof: true}, logx.Nop()), http.MethodGet, "/debug/pprof/", nil).Code)
}

func TestServerLifecycle(t *testing.T) {
	s := NewServer(NewHandler(fakeWatcher{}, nil, nil, logx.Nop()), Config{}, logx.Nop())
	ctx := context.Background()

	s.Reconfigure(ctx, Config{Enabled: true, Addr: "127.0.0.1:0"})
	var addr string
	require.Eventually(t, func() bool {
		addr = s.Addr()
		return addr != ""
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s.Reconfigure(ctx, Config{Enabled: false, Addr: "127.0.0.1:0"})
	require.Empty(t, s.Addr())
	_, err = http.Get("http://" + addr + "/healthz")
	require.Error(t, err)
}
