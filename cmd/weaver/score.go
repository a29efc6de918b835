package main

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/hub-weaver/internal/checkpoint"
	"github.com/alvmarrod/hub-weaver/internal/config"
	"github.com/alvmarrod/hub-weaver/internal/graph"
	"github.com/alvmarrod/hub-weaver/internal/hits"
	"github.com/alvmarrod/hub-weaver/internal/matrix"
	"github.com/alvmarrod/hub-weaver/internal/metrics"
	"github.com/alvmarrod/hub-weaver/internal/storage"
)

// scoreCommand runs HITS over the converted matrix and reports the best users
func scoreCommand(cfg *config.Config, tracker *metrics.Tracker) error {
	users, err := checkpoint.ReadUsers(cfg.Paths.Users)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	index, err := matrix.LoadIndexMap(cfg.Paths.IndexMap)
	if err != nil {
		return fmt.Errorf("failed to load index map: %w", err)
	}
	m, err := matrix.Load(cfg.MatrixPath(cfg.Encoding()))
	if err != nil {
		return fmt.Errorf("failed to load matrix: %w", err)
	}
	if m.Dim() != index.Len() {
		return fmt.Errorf("matrix has dimension %d but index map has %d users", m.Dim(), index.Len())
	}

	logrus.Infof("Scoring %d users with the %s matrix", m.Dim(), m.Encoding())
	res, scoreErr := hits.Score(m, hits.Options{
		Epsilon:       cfg.Scoring.Epsilon,
		MaxIterations: cfg.Scoring.MaxIterations,
	})
	if res == nil {
		return scoreErr
	}
	tracker.ScoringDone(res.Iterations, res.Converged)
	logrus.Infof("HITS finished after %d iterations (converged: %t)", res.Iterations, res.Converged)

	logTop("hubs", res.Hubs, cfg.Scoring.TopK, index, users)
	logTop("authorities", res.Authorities, cfg.Scoring.TopK, index, users)

	errs := []error{scoreErr}
	if err := hits.WriteHistory(cfg.Paths.History, res, index); err != nil {
		errs = append(errs, err)
	} else {
		logrus.Infof("Score history written to %s", cfg.Paths.History)
	}

	store, err := storage.NewStorage(cfg.Paths.DB)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to initialize storage: %w", err))
		return errors.Join(errs...)
	}
	defer store.Close()

	if err := store.SaveScores(index, res); err != nil {
		errs = append(errs, err)
	} else {
		logrus.Infof("Scores of %d users saved to %s", index.Len(), cfg.Paths.DB)
	}

	return errors.Join(errs...)
}

func logTop(label string, scores []float64, k int, index *matrix.IndexMap, users *graph.UserMap) {
	logrus.Infof("Top %d %s:", k, label)
	for rank, i := range hits.Rank(scores, k) {
		id := index.ID(i)
		rec, _ := users.Get(id)
		logrus.Infof("%3d. @%s (%s, %d) %.6f", rank+1, rec.ScreenName, rec.Name, id, scores[i])
	}
}
