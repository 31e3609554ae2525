package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"page-audit/audit"
	"page-audit/browser"
	"page-audit/config"
	"page-audit/gather"
	"page-audit/logging"
	"page-audit/metrics"
	"page-audit/report"
	"page-audit/runner"
	"page-audit/target"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "YAML run configuration (defaults to the built-in passes and checks)")
	targetsFile := flag.String("targets", "", "File with one target URL per line")
	output := flag.String("output", "", "Comma-separated output formats: "+strings.Join(report.Formats(), ", "))
	outputPath := flag.String("output-path", "", "Directory for csv, markdown and archive output")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	logFile := flag.String("log-file", "", "Also append logs to this file")
	metricsFile := flag.String("metrics-file", "", "Write prometheus counters to this file on exit")
	port := flag.Int("port", 0, "Chrome remote debugging port (overrides config)")
	list := flag.Bool("list", false, "List available collectors, checks and formats, then exit")
	flag.Parse()

	if *list {
		fmt.Println("Collectors:", strings.Join(gather.Available(), ", "))
		fmt.Println("Checks:    ", strings.Join(audit.Available(), ", "))
		fmt.Println("Formats:   ", strings.Join(report.Formats(), ", "))
		return 0
	}

	logger, err := logging.Setup(*logLevel, *logFormat, *logFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	log := logrus.NewEntry(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Error("Could not load configuration")
		return 1
	}
	if *output != "" {
		cfg.Output.Formats = strings.Split(*output, ",")
	}
	if *outputPath != "" {
		cfg.Output.Dir = *outputPath
	}
	if *metricsFile != "" {
		cfg.MetricsFile = *metricsFile
	}
	if *port != 0 {
		cfg.Chrome.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Error("Invalid configuration")
		return 1
	}

	queue, err := loadTargets(flag.Args(), *targetsFile)
	if err != nil {
		log.WithError(err).Error("Could not read targets")
		return 1
	}
	if queue.Len() == 0 {
		log.Error("No targets given. Pass URLs as arguments or use -targets")
		return 1
	}

	rec := metrics.New()
	passes, err := gather.BuildPasses(cfg.PassSpecs(), cfg.CollectorOptions())
	if err != nil {
		log.WithError(err).Error("Invalid passes")
		return 1
	}
	checks, err := audit.Build(cfg.Checks)
	if err != nil {
		log.WithError(err).Error("Invalid checks")
		return 1
	}
	sink, err := report.NewSink(log, report.Options{
		Formats:    cfg.Output.Formats,
		Dir:        cfg.Output.Dir,
		ArchiveDir: cfg.Output.ArchiveDir,
		Gist:       report.GistOptions{Token: cfg.GistToken(), Public: cfg.Gist.Public},
	})
	if err != nil {
		log.WithError(err).Error("Invalid output")
		return 1
	}

	pipeline := &gather.Pipeline{Log: log, Passes: passes, Metrics: rec}
	r := &runner.Runner{
		Log:      log,
		Gatherer: pipeline,
		Auditor:  &audit.Pipeline{Log: log, Checks: checks, Metrics: rec},
		Sink:     sink,
		Metrics:  rec,
	}

	sup := browser.NewSupervisor(cfg.Browser(), log)
	gate := runner.NewGate(log)
	gate.OnTeardown("chrome", func(context.Context) error {
		sup.Terminate()
		return nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status := gate.Run(ctx, func(ctx context.Context) error {
		sess, err := sup.EnsureReady(ctx)
		if err != nil {
			return err
		}
		pipeline.Channel = sess
		return r.Run(ctx, queue)
	})

	if err := sink.Summary().Publish(os.Stderr); err != nil {
		log.WithError(err).Warn("Could not write run summary")
	}
	if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
		log.WithError(err).Warn("Could not write metrics file")
	}
	return status.ExitCode()
}

func loadTargets(args []string, file string) (*target.Queue, error) {
	var targets []target.Target
	for _, raw := range args {
		t, err := target.Parse(raw)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	if file != "" {
		fromFile, err := target.LoadFile(file)
		if err != nil {
			return nil, err
		}
		targets = append(targets, fromFile...)
	}
	return target.NewQueue(target.Unique(targets)...), nil
}
