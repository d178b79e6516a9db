package router

import (
	"context"
	"time"

	"mcwatch/internal/status"
	"mcwatch/internal/watch"
)

// WatchPort is the watcher surface the chat commands need.
type WatchPort interface {
	Status() status.Snapshot
	Latest(ctx context.Context) (status.Latest, error)
	Check(ctx context.Context) (watch.Result, error)
}

// WatchCommands returns /mcversion, /mcstatus and /mccheck.
func WatchCommands(p WatchPort) []Command {
	return []Command{
		{
			Name:        "mcversion",
			Aliases:     []string{"version"},
			Description: "latest Minecraft release and snapshot",
			Usage:       "/mcversion",
			Timeout:     30 * time.Second,
			Handle: func(ctx context.Context, req *Request) error {
				l, err := p.Latest(ctx)
				if err != nil {
					_ = req.Reply(ctx, "could not fetch the version manifest, try again later")
					return err
				}
				return req.Reply(ctx, l.Text())
			},
		},
		{
			Name:        "mcstatus",
			Aliases:     []string{"status"},
			Description: "watcher configuration and state",
			Usage:       "/mcstatus",
			Handle: func(ctx context.Context, req *Request) error {
				return req.Reply(ctx, p.Status().Text())
			},
		},
		{
			Name:        "mccheck",
			Aliases:     []string{"check"},
			Description: "poll the manifest now",
			Usage:       "/mccheck",
			Access:      AccessOwnerOnly,
			// a check announcing several versions waits on pacing between sends
			Timeout: 10 * time.Minute,
			Handle: func(ctx context.Context, req *Request) error {
				res, err := p.Check(ctx)
				if rerr := req.Reply(ctx, status.CycleText(res, err)); rerr != nil {
					return rerr
				}
				return err
			},
		},
	}
}
