package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quivermath/quiver/errors"
	qtesting "github.com/quivermath/quiver/internal/testing"
	"github.com/quivermath/quiver/logger"
)

func TestEnqueueDeduplicates(t *testing.T) {
	store := NewStore(qtesting.CreateTestDB(t), logger.Logger)

	created, err := store.Enqueue([]string{"q1", "q2", "q1", ""})
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	// Still pending: nothing new.
	created, err = store.Enqueue([]string{"q1", "q2"})
	require.NoError(t, err)
	assert.Zero(t, created)

	// A finished question can be re-queued.
	job, err := store.LatestByQuestion("q1")
	require.NoError(t, err)
	require.NotNil(t, job)
	require.NoError(t, store.MarkCompleted(job.ID))

	created, err = store.Enqueue([]string{"q1"})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestEnqueueSkipsRunning(t *testing.T) {
	store := NewStore(qtesting.CreateTestDB(t), logger.Logger)

	_, err := store.Enqueue([]string{"q1"})
	require.NoError(t, err)
	jobs, err := store.ClaimBatch(1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	created, err := store.Enqueue([]string{"q1"})
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestClaimBatchOrderAndLimit(t *testing.T) {
	store := NewStore(qtesting.CreateTestDB(t), logger.Logger)

	// Separate calls so each job gets a distinct timestamp.
	for _, qid := range []string{"q1", "q2", "q3"} {
		_, err := store.Enqueue([]string{qid})
		require.NoError(t, err)
	}

	jobs, err := store.ClaimBatch(2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "q1", jobs[0].QuestionID)
	assert.Equal(t, "q2", jobs[1].QuestionID)
	for _, job := range jobs {
		assert.Equal(t, StatusRunning, job.Status)
		assert.NotNil(t, job.StartedAt)
	}

	// Claimed jobs stay claimed.
	jobs, err = store.ClaimBatch(5)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "q3", jobs[0].QuestionID)

	jobs, err = store.ClaimBatch(5)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestMarkCompletedAndFailed(t *testing.T) {
	store := NewStore(qtesting.CreateTestDB(t), logger.Logger)

	_, err := store.Enqueue([]string{"q1", "q2"})
	require.NoError(t, err)
	jobs, err := store.ClaimBatch(2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	require.NoError(t, store.MarkCompleted(jobs[0].ID))
	require.NoError(t, store.MarkFailed(jobs[1].ID, "question not found"))

	done, err := store.GetJob(jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Empty(t, done.Error)
	assert.NotNil(t, done.CompletedAt)
	assert.True(t, done.IsTerminal())

	failed, err := store.GetJob(jobs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "question not found", failed.Error)
	assert.Equal(t, 1, failed.RetryCount)
	assert.True(t, failed.IsTerminal())
}

func TestRequeueOrphans(t *testing.T) {
	store := NewStore(qtesting.CreateTestDB(t), logger.Logger)

	_, err := store.Enqueue([]string{"q1", "q2"})
	require.NoError(t, err)
	jobs, err := store.ClaimBatch(1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	requeued, err := store.RequeueOrphans()
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)

	job, err := store.GetJob(jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, job.Status)
	assert.Nil(t, job.StartedAt)

	counts, err := store.Counts()
	require.NoError(t, err)
	assert.Equal(t, 2, counts[StatusQueued])
}

func TestGetJobNotFound(t *testing.T) {
	store := NewStore(qtesting.CreateTestDB(t), logger.Logger)

	_, err := store.GetJob("missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestLatestByQuestionMissing(t *testing.T) {
	store := NewStore(qtesting.CreateTestDB(t), logger.Logger)

	job, err := store.LatestByQuestion("q1")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestIsValidStatus(t *testing.T) {
	assert.True(t, IsValidStatus("queued"))
	assert.True(t, IsValidStatus("failed"))
	assert.False(t, IsValidStatus("paused"))
	assert.False(t, IsValidStatus(""))
}
