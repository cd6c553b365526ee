package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/speedwagon-io/reefercheck/internal/config"
	"github.com/speedwagon-io/reefercheck/internal/health"
	"github.com/speedwagon-io/reefercheck/internal/lib/logger/sl"
	"github.com/speedwagon-io/reefercheck/internal/monitor"
	"github.com/speedwagon-io/reefercheck/internal/postgrest"
	"github.com/speedwagon-io/reefercheck/internal/report"
	"github.com/speedwagon-io/reefercheck/internal/synth"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	staleIntervals  = 3
	shutdownTimeout = 5 * time.Second
)

type options struct {
	configPath string
	url        string
	key        string

	insert   bool
	alert    bool
	readings bool
	alerts   bool
	devices  bool
	monitor  bool
	stats    bool
	ack      int64
	resolve  int64

	device   string
	limit    int
	all      bool
	interval time.Duration
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("reefercheck", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "path to config file")
	fs.StringVar(&opts.url, "url", "", "backend base URL (overrides config)")
	fs.StringVar(&opts.key, "key", "", "backend API key (overrides config)")

	fs.BoolVar(&opts.insert, "insert", false, "insert a synthetic test reading")
	fs.BoolVar(&opts.alert, "alert", false, "insert a synthetic test alert")
	fs.BoolVar(&opts.readings, "readings", false, "list latest readings")
	fs.BoolVar(&opts.alerts, "alerts", false, "list unresolved alerts")
	fs.BoolVar(&opts.devices, "devices", false, "list devices")
	fs.BoolVar(&opts.monitor, "monitor", false, "poll the latest reading until interrupted")
	fs.BoolVar(&opts.stats, "stats", false, "show statistics")
	fs.Int64Var(&opts.ack, "ack", 0, "acknowledge the alert with this id")
	fs.Int64Var(&opts.resolve, "resolve", 0, "resolve the alert with this id")

	fs.StringVar(&opts.device, "device", "", "filter by device_id")
	fs.IntVar(&opts.limit, "limit", report.DefaultReadingLimit, "result limit for -readings")
	fs.BoolVar(&opts.all, "all", false, "with -alerts, include resolved alerts")
	fs.DurationVar(&opts.interval, "interval", 0, "refresh interval for -monitor (overrides config)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if n := opts.actionCount(); n > 1 {
		return nil, fmt.Errorf("only one action flag may be given, got %d", n)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	return opts, nil
}

func (o *options) actionCount() int {
	n := 0
	for _, set := range []bool{o.insert, o.alert, o.readings, o.alerts, o.devices, o.monitor, o.stats, o.ack != 0, o.resolve != 0} {
		if set {
			n++
		}
	}
	return n
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	if opts.url != "" {
		cfg.Backend.URL = opts.url
	}
	if opts.key != "" {
		cfg.Backend.APIKey = opts.key
	}
	if opts.interval > 0 {
		cfg.Monitor.Interval = opts.interval
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		return exitFailure
	}

	log := sl.SetupLogger(stderr, cfg.Log.Level, cfg.Log.Format)

	log.Debug("starting reefercheck",
		slog.String("env", cfg.Env),
		slog.String("backend", cfg.Backend.URL),
		slog.Duration("timeout", cfg.Backend.Timeout),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			log.Debug("received signal, shutting down", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	client := postgrest.New(log, postgrest.Config{
		BaseURL: cfg.Backend.URL,
		APIKey:  cfg.Backend.APIKey,
		Timeout: cfg.Backend.Timeout,
	})
	defer client.Close()

	reporter := report.New(log, client, stdout)
	reporter.Banner()

	if !reporter.CheckConnection(ctx) {
		return exitFailure
	}

	device := opts.device
	if device == "" && (opts.insert || opts.alert) {
		device = synth.DefaultDeviceID
	}

	switch {
	case opts.insert:
		reporter.InsertReading(ctx, device)
	case opts.alert:
		reporter.InsertAlert(ctx, device)
	case opts.readings:
		reporter.ListReadings(ctx, opts.device, opts.limit)
	case opts.alerts:
		reporter.ListAlerts(ctx, !opts.all)
	case opts.devices:
		reporter.ListDevices(ctx)
	case opts.monitor:
		runMonitor(ctx, log, cfg, client, stdout, opts.device)
	case opts.stats:
		reporter.Stats(ctx)
	case opts.ack != 0:
		reporter.AcknowledgeAlert(ctx, opts.ack)
	case opts.resolve != 0:
		reporter.ResolveAlert(ctx, opts.resolve)
	default:
		reporter.RunDefault(ctx)
	}

	fmt.Fprintln(stdout)
	return exitOK
}

func runMonitor(ctx context.Context, log *slog.Logger, cfg *config.Config, client *postgrest.Client, out io.Writer, deviceID string) {
	mon := monitor.New(log, client, out, monitor.Options{
		DeviceID: deviceID,
		Interval: cfg.Monitor.Interval,
	})

	if cfg.Health.Address != "" {
		healthServer := health.NewServer(log, cfg.Health.Address)
		healthServer.AddChecker(health.NewBackendHealthChecker(client.Ping))
		healthServer.AddChecker(health.NewMonitorHealthChecker(mon.LastSuccess, staleIntervals*mon.Interval()))

		if err := healthServer.Start(); err != nil {
			log.Error("failed to start health server", sl.Err(err))
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer shutdownCancel()
				if err := healthServer.Stop(shutdownCtx); err != nil {
					log.Error("failed to stop health server", sl.Err(err))
				}
			}()
		}
	}

	if err := mon.Run(ctx); err != nil {
		log.Error("monitor stopped with error", sl.Err(err))
	}
}
