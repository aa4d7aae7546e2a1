package queue

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quivermath/quiver/errors"
)

// Store handles persistence of analysis jobs.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewStore creates a new analysis job store.
func NewStore(db *sql.DB, logger *zap.SugaredLogger) *Store {
	return &Store{db: db, logger: logger.Named("queue.store")}
}

const jobColumns = `id, question_id, status, error, retry_count, created_at, started_at, completed_at, updated_at`

// Enqueue creates queued jobs for the given question IDs. Questions that
// already have a queued or running job are skipped. Returns the number of
// jobs actually created.
func (s *Store) Enqueue(questionIDs []string) (int, error) {
	if len(questionIDs) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin enqueue transaction")
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	created := 0
	seen := make(map[string]bool, len(questionIDs))
	for _, qid := range questionIDs {
		if qid == "" || seen[qid] {
			continue
		}
		seen[qid] = true

		var pending int
		err := tx.QueryRow(`
			SELECT COUNT(*) FROM analysis_jobs
			WHERE question_id = ? AND status IN (?, ?)
		`, qid, StatusQueued, StatusRunning).Scan(&pending)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to check pending jobs for question %s", qid)
		}
		if pending > 0 {
			continue
		}

		_, err = tx.Exec(`
			INSERT INTO analysis_jobs (id, question_id, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, uuid.NewString(), qid, StatusQueued, now, now)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to enqueue question %s", qid)
		}
		created++
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit enqueue")
	}
	return created, nil
}

// ClaimBatch marks up to limit queued jobs as running, oldest first, and
// returns them. The queue has a single consumer so claim order is the only
// coordination needed.
func (s *Store) ClaimBatch(limit int) ([]*Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin claim transaction")
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT `+jobColumns+`
		FROM analysis_jobs
		WHERE status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, StatusQueued, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query queued jobs")
	}

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	stamp := now.Format(time.RFC3339Nano)
	for _, job := range jobs {
		_, err := tx.Exec(`
			UPDATE analysis_jobs
			SET status = ?, started_at = ?, updated_at = ?
			WHERE id = ?
		`, StatusRunning, stamp, stamp, job.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to claim job %s", job.ID)
		}
		job.Status = StatusRunning
		started := now
		job.StartedAt = &started
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit claim")
	}
	return jobs, nil
}

// MarkCompleted finalizes a job after a successful analysis.
func (s *Store) MarkCompleted(id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(`
		UPDATE analysis_jobs
		SET status = ?, error = NULL, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, StatusCompleted, now, now, id)
	if err != nil {
		return errors.Wrapf(err, "failed to complete job %s", id)
	}
	return nil
}

// MarkFailed records a job failure with its error message.
func (s *Store) MarkFailed(id, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(`
		UPDATE analysis_jobs
		SET status = ?, error = ?, retry_count = retry_count + 1, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, StatusFailed, message, now, now, id)
	if err != nil {
		return errors.Wrapf(err, "failed to mark job %s failed", id)
	}
	return nil
}

// RequeueOrphans resets running jobs back to queued. Called on runner
// start; a running job at that point was abandoned by a previous process.
func (s *Store) RequeueOrphans() (int, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.Exec(`
		UPDATE analysis_jobs
		SET status = ?, started_at = NULL, updated_at = ?
		WHERE status = ?
	`, StatusQueued, now, StatusRunning)
	if err != nil {
		return 0, errors.Wrap(err, "failed to requeue orphaned jobs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count requeued jobs")
	}
	return int(n), nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(id string) (*Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM analysis_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get job %s", id)
	}
	return job, nil
}

// LatestByQuestion returns the most recent job for a question, or nil.
func (s *Store) LatestByQuestion(questionID string) (*Job, error) {
	row := s.db.QueryRow(`
		SELECT `+jobColumns+`
		FROM analysis_jobs
		WHERE question_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, questionID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get latest job for question %s", questionID)
	}
	return job, nil
}

// Counts returns the number of jobs per status.
func (s *Store) Counts() (map[Status]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM analysis_jobs GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count jobs")
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan job count")
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var errMsg, startedAt, completedAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&job.ID, &job.QuestionID, &job.Status, &errMsg, &job.RetryCount,
		&createdAt, &startedAt, &completedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Error = errMsg.String
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	if startedAt.Valid {
		ts, _ := time.Parse(time.RFC3339Nano, startedAt.String)
		job.StartedAt = &ts
	}
	if completedAt.Valid {
		ts, _ := time.Parse(time.RFC3339Nano, completedAt.String)
		job.CompletedAt = &ts
	}
	return &job, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
