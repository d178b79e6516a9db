package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"mcwatch/pkg/logx"
)

// Job is one scheduled run. It receives the scheduler's run context.
type Job func(ctx context.Context)

// Snapshot is the status view of the scheduler.
type Snapshot struct {
	Spec    string    `json:"spec"`
	Running bool      `json:"running"`
	Prev    time.Time `json:"prev,omitempty"`
	Next    time.Time `json:"next,omitempty"`
	Runs    uint64    `json:"runs"`
}

type Service struct {
	log logx.Logger

	mu      sync.Mutex
	c       *cron.Cron
	entryID cron.EntryID
	spec    string
	job     Job
	runCtx  context.Context
	cancel  context.CancelFunc

	inFlight atomic.Bool
	runs     atomic.Uint64
}

func New(log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{log: log}
}

// Start registers job under spec. With runNow the first run starts
// immediately instead of one interval later.
func (s *Service) Start(ctx context.Context, spec string, job Job, runNow bool) error {
	if job == nil {
		return errors.New("scheduler: job is required")
	}
	norm, sched, err := ParseSpec(spec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return errors.New("scheduler: already started")
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.job = job
	s.spec = norm
	s.c = s.newCron()
	s.entryID = s.c.Schedule(sched, s.wrap())
	s.c.Start()
	s.log.Info("scheduler started", logx.String("spec", norm))

	if runNow {
		wrapped := s.c.Entry(s.entryID).WrappedJob
		go wrapped.Run()
	}
	return nil
}

func (s *Service) newCron() *cron.Cron {
	cl := cronLogger{log: s.log}
	return cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.DelayIfStillRunning(cl)),
	)
}

func (s *Service) wrap() cron.Job {
	return cron.FuncJob(func() {
		s.inFlight.Store(true)
		defer s.inFlight.Store(false)

		s.mu.Lock()
		ctx, job := s.runCtx, s.job
		s.mu.Unlock()
		if ctx == nil || ctx.Err() != nil {
			return
		}
		s.runs.Add(1)
		job(ctx)
	})
}

// Reschedule swaps the schedule of the running job. A run in flight is not
// interrupted.
func (s *Service) Reschedule(spec string) error {
	norm, sched, err := ParseSpec(spec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return errors.New("scheduler: not started")
	}
	if norm == s.spec {
		return nil
	}
	// The new entry gets its own DelayIfStillRunning wrapper; a run still in
	// flight from the old entry is serialized by the job itself.
	s.c.Remove(s.entryID)
	s.entryID = s.c.Schedule(sched, s.wrap())
	s.log.Info("scheduler rescheduled", logx.String("from", s.spec), logx.String("to", norm))
	s.spec = norm
	return nil
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Spec:    s.spec,
		Running: s.inFlight.Load(),
		Runs:    s.runs.Load(),
	}
	if s.c != nil {
		e := s.c.Entry(s.entryID)
		snap.Prev, snap.Next = e.Prev, e.Next
	}
	return snap
}

func (s *Service) Next() time.Time { return s.Snapshot().Next }
func (s *Service) Prev() time.Time { return s.Snapshot().Prev }

// Stop halts ticks, cancels the run context so queued ticks are dropped,
// and waits for a run in flight, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	select {
	case <-c.Stop().Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes robfig/cron's logr-style calls into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
