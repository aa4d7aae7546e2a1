package semantic

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quivermath/quiver/config"
	"github.com/quivermath/quiver/errors"
	qtesting "github.com/quivermath/quiver/internal/testing"
	"github.com/quivermath/quiver/logger"
)

func TestStoreSaveAndGetAnalysis(t *testing.T) {
	store := NewStore(qtesting.CreateTestDB(t), logger.Logger)

	a := &Analysis{
		QuestionID:      "q1",
		InputHash:       "abc",
		ModelID:         "quiver-hash64-v1",
		AnalysisVersion: AnalysisVersion,
		Source:          SourceAI,
		Tags:            []TagAssignment{{TagID: "topic.algebra", TagName: "Algebra", Score: 0.8, Rank: 1}},
		DifficultyScore: 0.41,
		DifficultyBand:  BandModerate,
		Factors:         DifficultyFactors{FoundationalDistance: 0.9},
		Consistency:     []ConsistencyRecord{{Rule: "prove_floor", Delta: 0.1, Detail: "prove active"}},
		Rationale: Rationale{
			ActivatedNodes: []NodeActivation{{TagID: "topic.algebra", Final: 0.8}},
		},
	}
	require.NoError(t, store.SaveAnalysis(a))
	require.NotEmpty(t, a.ID)

	got, err := store.GetAnalysis(a.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(a, got, cmpopts.IgnoreFields(Analysis{}, "CreatedAt")); diff != "" {
		t.Errorf("analysis round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreGetAnalysisNotFound(t *testing.T) {
	store := NewStore(qtesting.CreateTestDB(t), logger.Logger)

	_, err := store.GetAnalysis("missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestStoreGetCached(t *testing.T) {
	store := NewStore(qtesting.CreateTestDB(t), logger.Logger)

	a := &Analysis{
		QuestionID:      "q1",
		InputHash:       "hash-1",
		ModelID:         "m",
		AnalysisVersion: AnalysisVersion,
		Source:          SourceAI,
		DifficultyBand:  BandEasy,
	}
	require.NoError(t, store.SaveAnalysis(a))

	hit, err := store.GetCached("q1", "m", AnalysisVersion, "hash-1")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, a.ID, hit.ID)

	// Different hash, version, or source misses.
	miss, err := store.GetCached("q1", "m", AnalysisVersion, "hash-2")
	require.NoError(t, err)
	assert.Nil(t, miss)
	miss, err = store.GetCached("q1", "m", AnalysisVersion+1, "hash-1")
	require.NoError(t, err)
	assert.Nil(t, miss)

	user := &Analysis{QuestionID: "q2", InputHash: "hash-1", ModelID: "m", AnalysisVersion: AnalysisVersion, Source: SourceUser, DifficultyBand: BandEasy}
	require.NoError(t, store.SaveAnalysis(user))
	miss, err = store.GetCached("q2", "m", AnalysisVersion, "hash-1")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestStoreOverrideRoundTrip(t *testing.T) {
	store := NewStore(qtesting.CreateTestDB(t), logger.Logger)

	missing, err := store.GetOverride("q1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	score := 0.75
	require.NoError(t, store.SaveOverride(&Override{
		QuestionID:      "q1",
		Tags:            []TagAssignment{{TagID: "topic.geometry", Score: 1, Rank: 1}},
		DifficultyScore: &score,
		DifficultyBand:  BandVeryHard,
	}))

	got, err := store.GetOverride("q1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, BandVeryHard, got.DifficultyBand)
	require.NotNil(t, got.DifficultyScore)
	assert.Equal(t, 0.75, *got.DifficultyScore)

	// Saving again replaces, question_id stays unique.
	require.NoError(t, store.SaveOverride(&Override{
		QuestionID:     "q1",
		Tags:           []TagAssignment{{TagID: "topic.algebra", Score: 1, Rank: 1}},
		DifficultyBand: BandHard,
	}))
	got, err = store.GetOverride("q1")
	require.NoError(t, err)
	assert.Equal(t, BandHard, got.DifficultyBand)
	assert.Nil(t, got.DifficultyScore)
	assert.Equal(t, "topic.algebra", got.Tags[0].TagID)
}

func TestStoreSaveOverrideReflectsAppliedState(t *testing.T) {
	store := NewStore(qtesting.CreateTestDB(t), logger.Logger)

	a := &Analysis{
		QuestionID:      "q1",
		InputHash:       "h",
		ModelID:         "m",
		AnalysisVersion: AnalysisVersion,
		Source:          SourceAI,
		Tags:            []TagAssignment{{TagID: "topic.algebra", Score: 0.8, Rank: 1}},
		DifficultyScore: 0.41,
		DifficultyBand:  BandModerate,
	}
	require.NoError(t, store.SaveAnalysis(a))
	require.NoError(t, store.ApplySemantics(a))

	score := 0.9
	require.NoError(t, store.SaveOverride(&Override{
		QuestionID:      "q1",
		BaseAnalysisID:  a.ID,
		Tags:            []TagAssignment{{TagID: "topic.geometry", Score: 1, Rank: 1}},
		DifficultyScore: &score,
	}))

	applied, err := store.GetAppliedSemantics("q1")
	require.NoError(t, err)
	require.NotNil(t, applied)
	assert.Equal(t, SourceUser, applied.Source)
	assert.Equal(t, 0.9, applied.DifficultyScore)
	assert.Equal(t, Band(0.9), applied.DifficultyBand)
	assert.Equal(t, "topic.geometry", applied.Tags[0].TagID)

	// An override without a score keeps the previously applied difficulty.
	require.NoError(t, store.SaveOverride(&Override{
		QuestionID: "q1",
		Tags:       []TagAssignment{{TagID: "topic.calculus", Score: 1, Rank: 1}},
	}))
	applied, err = store.GetAppliedSemantics("q1")
	require.NoError(t, err)
	assert.Equal(t, SourceUser, applied.Source)
	assert.Equal(t, 0.9, applied.DifficultyScore)
	assert.Equal(t, "topic.calculus", applied.Tags[0].TagID)
}

func TestStoreLatestByQuestionSubSecondOrdering(t *testing.T) {
	store := NewStore(qtesting.CreateTestDB(t), logger.Logger)

	base := time.Date(2026, 3, 1, 12, 0, 0, 100_000_000, time.UTC)
	older := &Analysis{
		QuestionID: "q1", InputHash: "h", ModelID: "m",
		AnalysisVersion: AnalysisVersion, Source: SourceAI,
		DifficultyScore: 0.2, DifficultyBand: BandEasy,
		CreatedAt: base,
	}
	newer := &Analysis{
		QuestionID: "q1", InputHash: "h", ModelID: "m",
		AnalysisVersion: AnalysisVersion, Source: SourceAI,
		DifficultyScore: 0.6, DifficultyBand: BandHard,
		CreatedAt: base.Add(300 * time.Millisecond),
	}
	require.NoError(t, store.SaveAnalysis(older))
	require.NoError(t, store.SaveAnalysis(newer))

	got, err := store.LatestByQuestion("q1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer.ID, got.ID)

	cached, err := store.GetCached("q1", "m", AnalysisVersion, "h")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, newer.ID, cached.ID)
}

func TestStoreTuningRoundTrip(t *testing.T) {
	store := NewStore(qtesting.CreateTestDB(t), logger.Logger)
	defaults := config.DefaultTuning()

	// No row yet: defaults come back.
	tuning, err := store.LoadTuning(defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, tuning)

	tuning.TagThreshold = 0.42
	tuning.UpBeta = 0.61
	require.NoError(t, store.SaveTuning(tuning))

	loaded, err := store.LoadTuning(defaults)
	require.NoError(t, err)
	assert.Equal(t, 0.42, loaded.TagThreshold)
	assert.Equal(t, 0.61, loaded.UpBeta)
	assert.True(t, loaded.Enabled)
}

func TestStoreSaveTuningRejectsOutOfRange(t *testing.T) {
	store := NewStore(qtesting.CreateTestDB(t), logger.Logger)

	bad := config.DefaultTuning()
	bad.TagThreshold = 0.99
	err := store.SaveTuning(bad)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInputError(err))
}

func TestStoreSaveAnalysisValidation(t *testing.T) {
	store := NewStore(qtesting.CreateTestDB(t), logger.Logger)

	err := store.SaveAnalysis(nil)
	require.Error(t, err)

	err = store.SaveAnalysis(&Analysis{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInputError(err))
}

func TestStoreSaveAnalysisDatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO semantic_analyses").
		WillReturnError(errors.New("disk I/O error"))

	store := NewStore(db, logger.Logger)
	err = store.SaveAnalysis(&Analysis{QuestionID: "q1", DifficultyBand: BandEasy})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save analysis")
	assert.NoError(t, mock.ExpectationsWereMet())
}
