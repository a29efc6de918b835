package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/hub-weaver/internal/config"
	"github.com/alvmarrod/hub-weaver/internal/metrics"
	"github.com/alvmarrod/hub-weaver/internal/version"
)

const usage = `Usage: weaver [flags] <command>

Commands:
  crawl    discover users around the seed and save the graph
  convert  build the index map and adjacency matrices from the saved graph
  score    run HITS on the saved matrix and report the top users
  run      crawl, convert and score in one go

Flags:`

func main() {
	// Configure logging
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		logrus.Fatalf("%v", err)
	}
}

func run(outW io.Writer, args []string) error {
	flagSet := flag.NewFlagSet("weaver", flag.ContinueOnError)
	flagSet.SetOutput(outW)
	configPath := flagSet.String("config", "config.json", "path to a JSON or TOML config file")
	fromDB := flagSet.Bool("from-db", false, "convert: read the graph from the database instead of the JSON artifacts")
	flagSet.Usage = func() {
		fmt.Fprintln(outW, usage)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return fmt.Errorf("expected one command, got %d", flagSet.NArg())
	}
	command := flagSet.Arg(0)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logrus.SetLevel(cfg.Level())

	logrus.Infof("Hub Weaver v%s starting %s...", version.Version, command)

	// SIGINT/SIGTERM cancel the crawl; the partial graph is still saved
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	tracker := metrics.NewTracker(reg)
	stopServer := serveMetrics(cfg.MetricsAddr, reg)
	defer stopServer()

	switch command {
	case "crawl":
		reason, err := crawlCommand(ctx, cfg, tracker)
		return errors.Join(err, writeSummary(cfg, tracker, reason))
	case "convert":
		return convertCommand(cfg, *fromDB)
	case "score":
		return scoreCommand(cfg, tracker)
	case "run":
		reason, err := crawlCommand(ctx, cfg, tracker)
		if err == nil {
			err = convertCommand(cfg, false)
		}
		if err == nil {
			err = scoreCommand(cfg, tracker)
		}
		if err != nil && reason == reasonCompleted {
			reason = reasonError
		}
		return errors.Join(err, writeSummary(cfg, tracker, reason))
	default:
		flagSet.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// serveMetrics exposes the registry on addr until the returned func is called.
// An empty addr disables the endpoint.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logrus.Infof("Serving metrics on %s/metrics", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("Metrics server failed: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logrus.Warnf("Metrics server shutdown: %v", err)
		}
	}
}
