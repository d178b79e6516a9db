package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"mcwatch/internal/app"
	"mcwatch/internal/config"
	"mcwatch/pkg/logx"
)

// Version is set at build time via -ldflags.
var Version = "dev"

type options struct {
	Config      string `short:"c" long:"config" env:"MCWATCH_CONFIG" default:"./config.yaml" description:"Path to the YAML or JSON config file"`
	CheckConfig bool   `long:"check-config" description:"Validate the config file and exit"`
	Once        bool   `long:"once" description:"Fetch the manifest once, print a summary and exit (no chat)"`
	Version     bool   `short:"v" long:"version" description:"Print the version and exit"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var fe *flags.Error
		if errors.As(err, &fe) && fe.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}
	if opts.Version {
		fmt.Println("mcwatch", cmp.Or(Version, "unknown"))
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch {
	case opts.CheckConfig:
		if _, err := config.NewManager(opts.Config, logx.Nop()).Load(); err != nil {
			fmt.Fprintln(os.Stderr, "config invalid:", err)
			os.Exit(1)
		}
		fmt.Println("config ok:", opts.Config)
		return
	case opts.Once:
		cfg, err := config.NewManager(opts.Config, logx.Nop()).Load()
		if err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			os.Exit(1)
		}
		if err := app.RunOnce(ctx, cfg, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			os.Exit(1)
		}
		return
	}

	a, err := app.New(opts.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM)
	defer signal.Stop(sigs)

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = a.Stop(stopCtx, app.StopFatalError)
		stopCancel()
		os.Exit(1)
	}

	var reason app.StopReason
	select {
	case <-a.Done():
		reason = app.StopFatalError
		if ctx.Err() != nil {
			reason = stopReason(sigs)
		}
	case <-ctx.Done():
		reason = stopReason(sigs)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if err := a.Err(); err != nil && reason == app.StopFatalError {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func stopReason(sigs <-chan os.Signal) app.StopReason {
	select {
	case <-sigs:
		return app.StopSIGTERM
	default:
		return app.StopSIGINT
	}
}
