package semantic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quivermath/quiver/config"
	"github.com/quivermath/quiver/embedding"
	qtesting "github.com/quivermath/quiver/internal/testing"
	"github.com/quivermath/quiver/logger"
	"github.com/quivermath/quiver/ontology"
)

type testStack struct {
	analyzer   *Analyzer
	engine     *Engine
	store      *Store
	embeddings *embedding.Store
	graph      *ontology.Graph
}

// newTestStack seeds the default ontology into a fresh database and wires
// the full pipeline on top of it.
func newTestStack(t *testing.T) *testStack {
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
	engine, err := NewEngine(graph, embStore, logger.Logger)
	require.NoError(t, err)

	store := NewStore(db, logger.Logger)
	analyzer := NewAnalyzer(engine, store, embStore, nil, config.DefaultTuning(), logger.Logger)

	return &testStack{
		analyzer:   analyzer,
		engine:     engine,
		store:      store,
		embeddings: embStore,
		graph:      graph,
	}
}
