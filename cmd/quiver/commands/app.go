package commands

import (
	"database/sql"
	"time"

	"github.com/quivermath/quiver/config"
	"github.com/quivermath/quiver/db"
	"github.com/quivermath/quiver/embedding"
	"github.com/quivermath/quiver/errors"
	"github.com/quivermath/quiver/logger"
	"github.com/quivermath/quiver/ontology"
	"github.com/quivermath/quiver/semantic"
)

// app bundles the wired engine stack behind every command.
type app struct {
	cfg        *config.Config
	db         *sql.DB
	tags       *ontology.Store
	graph      *ontology.Graph
	embeddings *embedding.Store
	semantics  *semantic.Store
	analyzer   *semantic.Analyzer
	calibrator *semantic.Calibrator
}

// openApp loads configuration, opens and migrates the database, and wires
// the analysis pipeline. An empty ontology is seeded with the default
// mathematics taxonomy so first runs work out of the box.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	conn, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(conn, logger.Logger); err != nil {
		conn.Close()
		return nil, err
	}

	tags := ontology.NewStore(conn, logger.Logger)
	count, err := tags.Count()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if count == 0 {
		seeded, err := tags.Seed()
		if err != nil {
			conn.Close()
			return nil, err
		}
		logger.Logger.Infow("Seeded default ontology", "tags", seeded)
	}

	all, err := tags.All()
	if err != nil {
		conn.Close()
		return nil, err
	}
	graph, err := ontology.BuildGraph(all)
	if err != nil {
		conn.Close()
		return nil, err
	}

	embeddings := embedding.NewStore(conn, logger.Logger)
	engine, err := semantic.NewEngine(graph, embeddings, logger.Logger)
	if err != nil {
		conn.Close()
		return nil, err
	}

	semantics := semantic.NewStore(conn, logger.Logger)
	analyzer := semantic.NewAnalyzer(engine, semantics, embeddings, nil, cfg.Semantic.Tuning, logger.Logger)
	debounce := time.Duration(cfg.Queue.CalibrateAfterSecs) * time.Second
	calibrator := semantic.NewCalibrator(semantics, debounce, logger.Logger)

	return &app{
		cfg:        cfg,
		db:         conn,
		tags:       tags,
		graph:      graph,
		embeddings: embeddings,
		semantics:  semantics,
		analyzer:   analyzer,
		calibrator: calibrator,
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}
