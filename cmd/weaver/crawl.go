package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/hub-weaver/internal/checkpoint"
	"github.com/alvmarrod/hub-weaver/internal/config"
	"github.com/alvmarrod/hub-weaver/internal/crawler"
	"github.com/alvmarrod/hub-weaver/internal/metrics"
	"github.com/alvmarrod/hub-weaver/internal/source"
	"github.com/alvmarrod/hub-weaver/internal/source/httpsource"
	"github.com/alvmarrod/hub-weaver/internal/storage"
	"github.com/alvmarrod/hub-weaver/internal/version"
)

const progressInterval = 10 * time.Second

// Termination reasons recorded in the metrics summary
const (
	reasonCompleted = "completed"
	reasonSignal    = "signal"
	reasonError     = "error"
)

// crawlCommand crawls from the seed and saves whatever graph it got, returning
// the termination reason for the metrics summary
func crawlCommand(ctx context.Context, cfg *config.Config, tracker *metrics.Tracker) (string, error) {
	src, err := newSource(cfg)
	if err != nil {
		return reasonError, err
	}

	store, err := storage.NewStorage(cfg.Paths.DB)
	if err != nil {
		return reasonError, fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logrus.Infof("Database initialized: %s", cfg.Paths.DB)

	options := []crawler.Option{crawler.WithRecorder(tracker)}
	if cfg.LiveCheckpoint {
		options = append(options, crawler.WithCheckpointer(
			checkpoint.NewWriter(cfg.Paths.UsersCheckpointPrefix, cfg.Paths.AdjacencyCheckpointPrefix)))
	}

	c := crawler.NewCrawler(src, crawler.Options{
		OutboundCap:  cfg.OutboundCap,
		InboundCap:   cfg.InboundCap,
		NodeBudget:   cfg.NodeBudget,
		PageSize:     cfg.Source.PageSize,
		FallbackWait: cfg.FallbackWait(),
	}, options...)

	logrus.Infof("Configuration loaded: seed=%s, budget=%d, outbound cap=%d, inbound cap=%d, source=%s",
		cfg.SeedUser, cfg.NodeBudget, cfg.OutboundCap, cfg.InboundCap, cfg.Source.Kind)

	stopProgress := startProgress(tracker)
	g, crawlErr := c.Crawl(ctx, cfg.SeedUser)
	stopProgress()

	reason := terminationReason(crawlErr)
	logrus.Infof("Crawl stopped: %s", reason)

	errs := []error{crawlErr}
	if g != nil {
		logrus.Info("Step 1/2: Writing graph artifacts...")
		if err := checkpoint.SaveGraph(g, cfg.Paths.Users, cfg.Paths.Adjacency); err != nil {
			errs = append(errs, err)
		} else {
			logrus.Infof("Graph written to %s and %s", cfg.Paths.Users, cfg.Paths.Adjacency)
		}

		logrus.Info("Step 2/2: Flushing graph to database...")
		if err := store.SaveGraph(g); err != nil {
			logrus.Errorf("Failed to flush graph: %v", err)
			errs = append(errs, err)
		}
	}

	return reason, errors.Join(errs...)
}

// writeSummary exports the tracker once the command is done
func writeSummary(cfg *config.Config, tracker *metrics.Tracker, reason string) error {
	logrus.Info("Final stats: " + tracker.LogProgress())
	if err := tracker.WriteToFile(cfg.Paths.Metrics, reason); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
		return err
	}
	logrus.Infof("Metrics written to %s", cfg.Paths.Metrics)
	return nil
}

// newSource builds the relationship source selected by the config
func newSource(cfg *config.Config) (source.Source, error) {
	switch cfg.Source.Kind {
	case config.SourceFixture:
		src, err := source.LoadFixture(cfg.Source.FixturePath)
		if err != nil {
			return nil, err
		}
		logrus.Infof("Serving relationships from fixture %s", cfg.Source.FixturePath)
		return src, nil
	case config.SourceHTTP:
		client, err := httpsource.New(httpsource.Config{
			BaseURL:           cfg.Source.BaseURL,
			Token:             cfg.Source.Token,
			UserAgent:         "hub-weaver/" + version.Version,
			RequestTimeout:    cfg.RequestTimeout(),
			RequestsPerSecond: cfg.Source.RequestsPerSecond,
			UserCacheSize:     cfg.Source.UserCacheSize,
		})
		if err != nil {
			return nil, err
		}
		logrus.Infof("Serving relationships from %s", cfg.Source.BaseURL)
		return client, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// startProgress logs the tracker every progressInterval until stopped
func startProgress(tracker *metrics.Tracker) func() {
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				logrus.Info(tracker.LogProgress())
			case <-stop:
				return
			}
		}
	}()

	return func() {
		close(stop)
		<-done
	}
}

func terminationReason(err error) string {
	switch {
	case err == nil:
		return reasonCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return reasonSignal
	default:
		return reasonError
	}
}
