package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/hub-weaver/internal/checkpoint"
	"github.com/alvmarrod/hub-weaver/internal/config"
	"github.com/alvmarrod/hub-weaver/internal/graph"
	"github.com/alvmarrod/hub-weaver/internal/matrix"
	"github.com/alvmarrod/hub-weaver/internal/storage"
)

// convertCommand writes the index map and both matrix encodings of the saved graph
func convertCommand(cfg *config.Config, fromDB bool) error {
	g, err := loadCrawledGraph(cfg, fromDB)
	if err != nil {
		return err
	}

	var index *matrix.IndexMap
	for _, enc := range []matrix.Encoding{matrix.Dense, matrix.Sparse} {
		m, idx, err := matrix.Convert(g.Adjacency, enc)
		if err != nil {
			return fmt.Errorf("failed to build %s matrix: %w", enc, err)
		}
		if err := matrix.Save(cfg.MatrixPath(enc), m); err != nil {
			return err
		}
		logrus.Infof("%s matrix (%dx%d, %d nonzero) written to %s", enc, m.Dim(), m.Dim(), m.NNZ(), cfg.MatrixPath(enc))
		index = idx
	}

	if err := matrix.SaveIndexMap(cfg.Paths.IndexMap, index); err != nil {
		return err
	}
	logrus.Infof("Index map of %d users written to %s", index.Len(), cfg.Paths.IndexMap)
	return nil
}

func loadCrawledGraph(cfg *config.Config, fromDB bool) (*graph.Graph, error) {
	if !fromDB {
		g, err := checkpoint.LoadGraph(cfg.Paths.Users, cfg.Paths.Adjacency)
		if err != nil {
			return nil, fmt.Errorf("failed to load graph artifacts: %w", err)
		}
		return g, nil
	}

	store, err := storage.NewStorage(cfg.Paths.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	return store.LoadGraph()
}
