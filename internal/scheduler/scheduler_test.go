package scheduler

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mcwatch/pkg/logx"
)

func TestParseSpecVariants(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "60s", want: "@every 1m0s"},
		{raw: " 2m ", want: "@every 2m0s"},
		{raw: "@every 90s", want: "@every 90s"},
		{raw: "*/5 * * * *", want: "*/5 * * * *"},
		{raw: "@hourly", want: "@hourly"},
	}
	for _, tt := range tests {
		got, sched, err := ParseSpec(tt.raw)
		if err != nil {
			t.Fatalf("ParseSpec(%q) error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseSpec(%q) = %q, want %q", tt.raw, got, tt.want)
		}
		if sched == nil {
			t.Fatalf("ParseSpec(%q) returned nil schedule", tt.raw)
		}
	}
}

func TestParseSpecInvalid(t *testing.T) {
	for _, raw := range []string{"", "soon", "@every 10ms", "@every x", "* * *"} {
		if _, _, err := ParseSpec(raw); err == nil {
			t.Fatalf("ParseSpec(%q) should fail", raw)
		}
	}
}

func TestIntervalScheduleSpacing(t *testing.T) {
	_, sched, err := ParseSpec(IntervalSpec(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if next := sched.Next(now); next.Sub(now) != time.Minute {
		t.Fatalf("next tick after %v, want 1m", next.Sub(now))
	}
}

func TestStartRunsImmediately(t *testing.T) {
	s := New(logx.Nop())
	ran := make(chan struct{}, 1)
	err := s.Start(context.Background(), "1h", func(context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	}, true)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
	snap := s.Snapshot()
	if snap.Spec != "@every 1h0m0s" || snap.Next.IsZero() {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestTicksDoNotOverlap(t *testing.T) {
	s := New(logx.Nop())
	var active, maxActive, runs atomic.Int32
	err := s.Start(context.Background(), "@every 1s", func(context.Context) {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(1500 * time.Millisecond)
		active.Add(-1)
		runs.Add(1)
	}, true)
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(3500 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if maxActive.Load() != 1 {
		t.Fatalf("max concurrent runs = %d, want 1", maxActive.Load())
	}
	if runs.Load() < 2 {
		t.Fatalf("runs = %d, want >= 2", runs.Load())
	}
}

func TestReschedule(t *testing.T) {
	s := New(logx.Nop())
	if err := s.Reschedule("1m"); err == nil || !strings.Contains(err.Error(), "not started") {
		t.Fatalf("Reschedule before Start = %v", err)
	}
	if err := s.Start(context.Background(), "1h", func(context.Context) {}, false); err != nil {
		t.Fatal(err)
	}
	defer s.Stop(context.Background())

	if err := s.Reschedule("30s"); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	snap := s.Snapshot()
	if snap.Spec != "@every 30s" {
		t.Fatalf("spec = %q", snap.Spec)
	}
	if until := time.Until(snap.Next); until > 31*time.Second {
		t.Fatalf("next run in %v, want <= 30s", until)
	}
	if err := s.Reschedule("bogus"); err == nil {
		t.Fatal("invalid spec accepted")
	}
}
