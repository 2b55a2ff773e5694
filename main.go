package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nomis52/barline/bar"
	"github.com/nomis52/barline/buildinfo"
	"github.com/nomis52/barline/config"
	"github.com/nomis52/barline/engine"
	"github.com/nomis52/barline/logging"
	"github.com/nomis52/barline/metrics"
	"github.com/nomis52/barline/modules"
	"github.com/nomis52/barline/worker"
)

type Args struct {
	ConfigPath  string
	ShowVersion bool
}

func main() {
	code, err := doMain()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func doMain() (int, error) {
	args := parseArgs()
	if args.ShowVersion {
		fmt.Println(buildinfo.Get())
		return 0, nil
	}
	if args.ConfigPath == "" {
		return 0, fmt.Errorf("-c or --config flag is required")
	}

	cfg, err := config.LoadConfig(args.ConfigPath)
	if err != nil {
		return 0, fmt.Errorf("Error loading config: %w", err)
	}

	// Initialize logger. The status line owns stdout, so logs go elsewhere.
	loggerConfig := logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.AddSource,
	}
	logger, err := logging.New(loggerConfig)
	if err != nil {
		return 0, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.Logger

	log.Info("barline started", "config_path", args.ConfigPath, "version", buildinfo.Get().Version)

	var m *metrics.Metrics
	if cfg.Monitoring.VictoriaMetricsURL != "" {
		m, err = metrics.New(cfg.Monitoring.MetricsPrefix)
		if err != nil {
			return 0, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	events := make(chan worker.RenderEvent, 4*len(cfg.Modules))

	names := make([]string, len(cfg.Modules))
	workers := make([]*worker.Worker, len(cfg.Modules))
	for i, mc := range cfg.Modules {
		mod, err := modules.Build(mc, log)
		if err != nil {
			return 0, fmt.Errorf("failed to build module %q: %w", mc.Name, err)
		}
		opts := worker.Options{
			UpdateTimeout: cfg.Engine.UpdateTimeout,
			Backoff: worker.Backoff{
				Initial: cfg.Retry.Initial,
				Max:     cfg.Retry.Max,
				Factor:  cfg.Retry.Factor,
				Jitter:  cfg.Retry.Jitter,
			},
		}
		if m != nil {
			opts.Metrics = m
		}
		names[i] = mc.Name
		workers[i] = worker.New(i, mc.Name, mod, events, log, opts)
	}

	barOpts := bar.Options{
		Separator:      cfg.Bar.Separator,
		Placeholder:    cfg.Bar.Placeholder,
		CoalesceWindow: cfg.Bar.CoalesceWindow,
	}
	if m != nil {
		barOpts.Metrics = m
	}
	b := bar.New(names, events, os.Stdout, log, barOpts)

	engOpts := []engine.Option{engine.WithGracePeriod(cfg.Engine.GracePeriod)}
	if m != nil {
		hostname, err := os.Hostname()
		if err != nil {
			return 0, fmt.Errorf("Error getting hostname: %w", err)
		}
		pusher := metrics.NewPusher(
			metrics.NewClient(cfg.Monitoring.VictoriaMetricsURL),
			m,
			cfg.Monitoring.PushInterval,
			hostname,
			log,
		)
		engOpts = append(engOpts, engine.WithTask("metrics-push", pusher.Run))
	}

	eng := engine.New(workers, b, log, engOpts...)

	// Shut down cleanly on SIGINT or SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := eng.Run(ctx); err != nil {
		return 0, err
	}
	if eng.TerminalFailed() {
		log.Error("exiting with failure, at least one module failed terminally")
		return 1, nil
	}
	log.Info("barline stopped")
	return 0, nil
}

func parseArgs() Args {
	configPath := flag.String("config", "", "Path to config file")
	configPathShort := flag.String("c", "", "Path to config file (shorthand)")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nBarline - status line module engine\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --config /etc/barline/config.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -c config.yaml\n", os.Args[0])
	}

	flag.Parse()

	path := *configPath
	if path == "" && *configPathShort != "" {
		path = *configPathShort
	}
	return Args{ConfigPath: path, ShowVersion: *showVersion}
}
