// Package app wires the watcher, the chat surface and the HTTP API into one
// supervised process.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mcwatch/internal/config"
	"mcwatch/internal/eventbus"
	"mcwatch/internal/httpapi"
	"mcwatch/internal/manifest"
	"mcwatch/internal/metrics"
	"mcwatch/internal/notifier"
	"mcwatch/internal/runtime/supervisor"
	"mcwatch/internal/scheduler"
	"mcwatch/internal/status"
	"mcwatch/internal/storage"
	"mcwatch/internal/transport"
	telegram "mcwatch/internal/transport/telegram/adapter"
	"mcwatch/internal/transport/telegram/router"
	"mcwatch/internal/watch"
	"mcwatch/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter transport.Adapter
	source  *manifest.Source
	notif   *notifier.Broadcaster
	cycle   *watch.Cycle
	sched   *scheduler.Service
	status  *status.Provider
	metrics *metrics.Metrics
	router  *router.Router
	http    *httpapi.Server

	messages chan transport.Message
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath, logx.Nop())
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Telegram.Token == "" {
		return nil, fmt.Errorf("%w: telegram.token is required", config.ErrInvalid)
	}

	bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))
	acfg, err := adapterConfig(cfg)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(acfg, bootLog)
	if err != nil {
		return nil, err
	}

	// The Telegram sink needs its target before Apply enables it.
	logCfg := cfg.Logging
	logCfg.Telegram.Enabled = false
	logSvc, root := logx.New(logCfg, ad)
	logSvc.SetTelegramTarget(cfg.Telegram.LogChat)
	logSvc.Apply(cfg.Logging)
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	bus := eventbus.New()

	store, err := storage.Open(cfg.Storage, root.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	if storage.Enabled(store) {
		log.Info("storage enabled", logx.String("driver", cfg.Storage.Driver))
	}

	client, err := newManifestClient(cfg.Watcher)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	source := manifest.NewSource(client)

	notif := notifier.New(notifierConfig(cfg.Watcher), ad, root.With(logx.String("comp", "notifier")), bus)
	cycle, err := watch.NewCycle(watch.Deps{
		Fetcher:    source,
		Dispatcher: notif,
		Recorder:   store,
		Log:        root.With(logx.String("comp", "watch")),
		Bus:        bus,
	}, cfg.Watcher.CycleSettings())
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	sched := scheduler.New(root.With(logx.String("comp", "scheduler")))
	st := status.NewProvider(cycle, source, sched, cfg.Watcher)
	m := metrics.New()

	rt := router.New(root.With(logx.String("comp", "commands")), ad, cfg.Telegram.OwnerUserIDs)
	rt.SetCommands(router.WatchCommands(st))

	handler := httpapi.NewHandler(st, store, m.Handler(), root.With(logx.String("comp", "http")))
	srv := httpapi.NewServer(handler, httpConfig(cfg.HTTP), root.With(logx.String("comp", "http")))

	return &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		adapter:  ad,
		source:   source,
		notif:    notif,
		cycle:    cycle,
		sched:    sched,
		status:   st,
		metrics:  m,
		router:   rt,
		http:     srv,
		messages: make(chan transport.Message, 64),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	run := a.sup.Context()
	_, cfg := a.cfgm.Get()

	a.sup.Go0("metrics", func(c context.Context) { a.metrics.Run(c, a.bus) })
	a.sup.Go0("eventbus.log", a.logEvents)

	if err := a.adapter.Start(run, a.messages); err != nil {
		return err
	}
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.Run(c, a.messages)
	})

	// First run fires immediately so bootstrap does not wait a full interval.
	if err := a.sched.Start(run, scheduler.IntervalSpec(cfg.Watcher.Interval), a.runCycle, true); err != nil {
		return err
	}
	a.http.Start(run)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := cfg
		for {
			select {
			case <-c.Done():
				return
			case up, ok := <-sub:
				if !ok {
					return
				}
				// coalesce bursts
			drain:
				for {
					select {
					case newer := <-sub:
						up = newer
					default:
						break drain
					}
				}
				a.apply(c, last, up.Resolved)
				last = up.Resolved
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if len(cfg.Watcher.Recipients) == 0 {
		a.log.Warn("no recipients configured; new versions are detected but not announced")
	}
	a.log.Info("app started",
		logx.Duration("interval", cfg.Watcher.Interval),
		logx.Int("recipients", len(cfg.Watcher.Recipients)),
		logx.Bool("http", cfg.HTTP.Enabled),
		logx.String("storage", cfg.Storage.Driver),
	)
	return nil
}

func (a *App) runCycle(ctx context.Context) {
	// errors are logged and counted inside the cycle
	_, _ = a.cycle.Run(ctx)
}

func (a *App) logEvents(ctx context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		}
	}
}

// apply fans a validated config out to the live services.
func (a *App) apply(ctx context.Context, prev, next *config.Resolved) {
	if next == nil {
		return
	}
	sections, fields := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if restart := config.RequiresRestart(prev, next); len(restart) > 0 {
		a.log.Warn("config changes need a restart to take effect", logx.Strs("sections", restart))
	}

	a.logs.SetTelegramTarget(next.Telegram.LogChat)
	a.logs.Apply(next.Logging)
	a.router.SetOwners(next.Telegram.OwnerUserIDs)

	if manifestChanged(prev.Watcher, next.Watcher) {
		if c, err := newManifestClient(next.Watcher); err != nil {
			a.log.Warn("manifest client rebuild failed; keeping previous", logx.Err(err))
		} else {
			a.source.Swap(c)
		}
	}
	a.notif.Apply(notifierConfig(next.Watcher))
	a.cycle.Apply(next.Watcher.CycleSettings())
	a.status.Apply(next.Watcher)

	if prev.Watcher.Interval != next.Watcher.Interval {
		if err := a.sched.Reschedule(scheduler.IntervalSpec(next.Watcher.Interval)); err != nil {
			a.log.Warn("reschedule failed; keeping previous interval", logx.Err(err))
		}
	}
	a.http.Reconfigure(ctx, httpConfig(next.HTTP))

	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, fields...)...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	// Each step is bounded so one component cannot stall the whole stop.
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 5*time.Second, a.sched.Stop)
	step("http", 2*time.Second, a.http.Stop)
	step("adapter", 3*time.Second, a.adapter.Stop)
	step("supervisor", 3*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}
