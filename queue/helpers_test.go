package queue

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quivermath/quiver/config"
	"github.com/quivermath/quiver/embedding"
	"github.com/quivermath/quiver/errors"
	qtesting "github.com/quivermath/quiver/internal/testing"
	"github.com/quivermath/quiver/logger"
	"github.com/quivermath/quiver/ontology"
	"github.com/quivermath/quiver/semantic"
)

type runnerStack struct {
	db        *sql.DB
	store     *Store
	semantics *semantic.Store
	runner    *Runner
	questions map[string]*semantic.Question
}

// newRunnerStack wires a runner over a fresh seeded database. Questions
// are served from an in-memory map standing in for the host application.
func newRunnerStack(t *testing.T, cfg config.QueueConfig) *runnerStack {
	t.Helper()

	db := qtesting.CreateTestDB(t)

	ontStore := ontology.NewStore(db, logger.Logger)
	_, err := ontStore.Seed()
	require.NoError(t, err)
	tags, err := ontStore.All()
	require.NoError(t, err)
	graph, err := ontology.BuildGraph(tags)
	require.NoError(t, err)

	embStore := embedding.NewStore(db, logger.Logger)
	engine, err := semantic.NewEngine(graph, embStore, logger.Logger)
	require.NoError(t, err)

	semantics := semantic.NewStore(db, logger.Logger)
	analyzer := semantic.NewAnalyzer(engine, semantics, embStore, nil, config.DefaultTuning(), logger.Logger)
	calibrator := semantic.NewCalibrator(semantics, time.Hour, logger.Logger)

	stack := &runnerStack{
		db:        db,
		store:     NewStore(db, logger.Logger),
		semantics: semantics,
		questions: make(map[string]*semantic.Question),
	}
	load := func(id string) (*semantic.Question, error) {
		q, ok := stack.questions[id]
		if !ok {
			return nil, errors.Newf("question not found: %s", id)
		}
		return q, nil
	}
	stack.runner = NewRunner(stack.store, analyzer, calibrator, load, cfg, logger.Logger)
	return stack
}

func (s *runnerStack) addQuestion(id, text string) {
	s.questions[id] = &semantic.Question{ID: id, Type: "short-answer", Text: text}
}
