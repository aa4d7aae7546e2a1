package embedding

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quivermath/quiver/errors"
	qtesting "github.com/quivermath/quiver/internal/testing"
	"github.com/quivermath/quiver/logger"
)

func TestStoreEnsureCachesByHash(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db, logger.Logger)

	rec1, err := store.Ensure(ScopeOntologyTag, "topic.calculus", ModelOntology, "Calculus limits and derivatives")
	require.NoError(t, err)
	require.Len(t, rec1.Vector, DimsOntology)

	// Unchanged text returns the stored row, same id and vector.
	rec2, err := store.Ensure(ScopeOntologyTag, "topic.calculus", ModelOntology, "Calculus limits and derivatives")
	require.NoError(t, err)
	assert.Equal(t, rec1.ID, rec2.ID)
	assert.Equal(t, rec1.Vector, rec2.Vector)
	assert.Equal(t, rec1.TextHash, rec2.TextHash)

	// Changed text regenerates in place.
	rec3, err := store.Ensure(ScopeOntologyTag, "topic.calculus", ModelOntology, "Calculus and integrals")
	require.NoError(t, err)
	assert.Equal(t, rec1.ID, rec3.ID)
	assert.NotEqual(t, rec1.TextHash, rec3.TextHash)
	assert.NotEqual(t, rec1.Vector, rec3.Vector)
}

func TestStoreGetBySourceMissing(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db, logger.Logger)

	rec, err := store.GetBySource(ScopeQuestion, "q-missing", ModelHybrid)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStoreScopesAreIndependent(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db, logger.Logger)

	_, err := store.Ensure(ScopeOntologyTag, "subtopic.derivatives", ModelOntology, "Derivatives")
	require.NoError(t, err)
	_, err = store.Ensure(ScopeOntologyAlias, "subtopic.derivatives", ModelOntology, "d/dx")
	require.NoError(t, err)

	tag, err := store.GetBySource(ScopeOntologyTag, "subtopic.derivatives", ModelOntology)
	require.NoError(t, err)
	alias, err := store.GetBySource(ScopeOntologyAlias, "subtopic.derivatives", ModelOntology)
	require.NoError(t, err)
	require.NotNil(t, tag)
	require.NotNil(t, alias)
	assert.NotEqual(t, tag.ID, alias.ID)
	assert.NotEqual(t, tag.Vector, alias.Vector)
}

func TestSimilarQuestions(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db, logger.Logger)

	texts := map[string]string{
		"q-deriv-1": "Find the derivative of x squared",
		"q-deriv-2": "Compute the derivative of x cubed",
		"q-prob":    "What is the probability of rolling a six",
	}
	for id, text := range texts {
		_, err := store.Ensure(ScopeQuestion, id, ModelHybrid, text)
		require.NoError(t, err)
	}

	hits, err := store.SimilarQuestions("q-deriv-1", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	// The other derivative question is nearer than the probability one.
	assert.Equal(t, "q-deriv-2", hits[0].QuestionID)
	assert.Equal(t, "q-prob", hits[1].QuestionID)
	assert.Less(t, hits[0].Distance, hits[1].Distance)
	assert.GreaterOrEqual(t, hits[0].Similarity, hits[1].Similarity)
}

func TestSimilarQuestionsRequiresEmbedding(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db, logger.Logger)

	_, err := store.SimilarQuestions("q-unknown", 5)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestSimilarQuestionsLimit(t *testing.T) {
	db := qtesting.CreateTestDB(t)
	store := NewStore(db, logger.Logger)

	for i := 0; i < 6; i++ {
		_, err := store.Ensure(ScopeQuestion, fmt.Sprintf("q-%d", i), ModelHybrid, fmt.Sprintf("question number %d about primes", i))
		require.NoError(t, err)
	}

	hits, err := store.SimilarQuestions("q-0", 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}
