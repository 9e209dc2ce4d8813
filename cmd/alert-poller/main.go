// Package main is the entry point for the MeteoAlert alert poller.
//
// The poller periodically reads the weather for every user with a push
// subscription and notifies those whose preferences trigger an alert. It
// runs until SIGINT or SIGTERM. With -once it runs a single cycle and exits,
// which suits an external scheduler such as cron or an EventBridge rule.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"meteoalert/internal/app"
	"meteoalert/internal/config"
	"meteoalert/internal/scheduler"
)

func main() {
	once := flag.Bool("once", false, "run a single poll cycle and exit")
	flag.Parse()

	if err := run(*once); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(once bool) error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel, os.Stdout).With("component", "alert-poller")
	logger.Info("meteoalert alert poller starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"once", once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("wiring dependencies: %w", err)
	}
	defer comps.Close()

	poller := scheduler.NewAlertPoller(scheduler.AlertPollerConfig{
		Users:       comps.Users,
		Weather:     comps.Weather,
		Metrics:     comps.Metrics,
		Clock:       comps.Clock,
		Logger:      logger,
		Interval:    cfg.Poller.Interval,
		Concurrency: cfg.Poller.Concurrency,
		UserTimeout: cfg.Poller.UserTimeout,
	})

	if once {
		res, err := poller.Poll(ctx)
		if err != nil {
			return err
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d of %d users failed", res.Failed, res.Users)
		}
		return nil
	}
	return poller.Run(ctx)
}
