package notifier

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mcwatch/internal/eventbus"
	"mcwatch/internal/transport"
	"mcwatch/pkg/logx"
)

// ErrNoAdapter is reported for every target when no chat transport is set.
var ErrNoAdapter = errors.New("notifier: no chat adapter")

type Config struct {
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
	// RatePerSec caps outbound sends across all broadcasts (Telegram flood limits).
	RatePerSec int
}

// Failure is one recipient that could not be reached.
type Failure struct {
	Target transport.ChatTarget
	Err    error
}

// Report summarizes one Broadcast call.
type Report struct {
	Total    int
	Sent     int
	Failures []Failure
}

func (r Report) Failed() int { return len(r.Failures) }

// DispatchEvent is the payload of notifier.sent / notifier.failed events.
type DispatchEvent struct {
	ChatID   int64     `json:"chat_id"`
	ThreadID int       `json:"thread_id,omitempty"`
	Attempts int       `json:"attempts"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}

// Broadcaster is safe for concurrent use.
type Broadcaster struct {
	mu      sync.Mutex
	cfg     Config
	adapter transport.Adapter
	limiter *rate.Limiter

	log logx.Logger
	bus eventbus.Bus
}

func New(cfg Config, adapter transport.Adapter, log logx.Logger, bus eventbus.Bus) *Broadcaster {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	b := &Broadcaster{adapter: adapter, log: log, bus: bus}
	b.applyLocked(cfg)
	return b
}

func (b *Broadcaster) Apply(cfg Config) {
	b.mu.Lock()
	b.applyLocked(cfg)
	b.mu.Unlock()
}

func (b *Broadcaster) applyLocked(cfg Config) {
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 20
	}
	b.cfg = cfg
	b.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Broadcast sends text to every target in order and reports per-target
// failures. It never returns early because of a single recipient.
func (b *Broadcaster) Broadcast(ctx context.Context, text string, targets []transport.ChatTarget) Report {
	rep := Report{Total: len(targets)}
	for _, t := range targets {
		attempts, err := b.sendOne(ctx, t, text)
		now := time.Now()
		ev := DispatchEvent{ChatID: t.ChatID, ThreadID: t.ThreadID, Attempts: attempts, At: now}
		if err != nil {
			ev.Error = err.Error()
			rep.Failures = append(rep.Failures, Failure{Target: t, Err: err})
			b.log.Warn("dispatch failed", logx.String("target", t.String()), logx.Int("attempts", attempts), logx.Err(err))
			b.bus.Publish(eventbus.Event{Type: eventbus.TypeDispatchFailed, Time: now, Data: ev})
			continue
		}
		rep.Sent++
		b.bus.Publish(eventbus.Event{Type: eventbus.TypeDispatchSent, Time: now, Data: ev})
	}
	return rep
}

func (b *Broadcaster) sendOne(ctx context.Context, to transport.ChatTarget, text string) (int, error) {
	b.mu.Lock()
	cfg := b.cfg
	lim := b.limiter
	ad := b.adapter
	b.mu.Unlock()

	if ad == nil {
		return 0, ErrNoAdapter
	}

	var lastErr error
	attempt := 0
	for attempt < 1+cfg.RetryMax {
		attempt++
		if err := lim.Wait(ctx); err != nil {
			return attempt, err
		}
		callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		_, err := ad.SendText(callCtx, to, text, &transport.SendOptions{})
		cancel()
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		if attempt > cfg.RetryMax {
			break
		}
		delay := retryDelay(cfg, attempt)
		b.log.Debug("dispatch retry scheduled", logx.String("target", to.String()), logx.Int("attempt", attempt+1), logx.Duration("delay", delay), logx.Err(err))
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return attempt, errors.Join(lastErr, ctx.Err())
		case <-t.C:
		}
	}
	return attempt, lastErr
}

// retryDelay is base*2^(attempt-1) with 0.7..1.3 jitter, capped at RetryMaxDelay.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt && d < cfg.RetryMaxDelay; i++ {
		d *= 2
	}
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	return min(d, cfg.RetryMaxDelay)
}
