package semantic

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quivermath/quiver/embedding"
	"github.com/quivermath/quiver/errors"
	"github.com/quivermath/quiver/internal/util"
)

// minCorpusSize is the smallest corpus worth calibrating. Below it the
// percentile map would just amplify noise.
const minCorpusSize = 3

// Calibrator remaps raw difficulty scores onto a uniform percentile scale
// across the whole corpus. It must not interleave with per-question
// analysis writes; the queue runs it only after draining.
type Calibrator struct {
	store    *Store
	debounce time.Duration
	logger   *zap.SugaredLogger

	mu      sync.Mutex
	lastRun time.Time
}

// NewCalibrator creates a calibrator with the given debounce interval.
func NewCalibrator(store *Store, debounce time.Duration, logger *zap.SugaredLogger) *Calibrator {
	return &Calibrator{
		store:    store,
		debounce: debounce,
		logger:   logger.Named("semantic.calibrator"),
	}
}

// MaybeCalibrate runs a calibration unless one ran within the debounce
// window. Returns whether it ran and how many rows changed.
func (c *Calibrator) MaybeCalibrate() (bool, int, error) {
	c.mu.Lock()
	if time.Since(c.lastRun) < c.debounce {
		c.mu.Unlock()
		return false, 0, nil
	}
	c.lastRun = time.Now()
	c.mu.Unlock()

	changed, err := c.Calibrate()
	return err == nil, changed, err
}

// Calibrate sorts the corpus by (score asc, questionId asc), assigns each
// analysis index/(n-1) as its calibrated score, recomputes bands, and
// persists only rows that actually changed. One analysis per question (the
// most recent) participates; a corpus under three analyses is left alone.
func (c *Calibrator) Calibrate() (int, error) {
	corpus, err := c.latestPerQuestion()
	if err != nil {
		return 0, err
	}
	if len(corpus) < minCorpusSize {
		c.logger.Debugw("Skipping calibration, corpus too small", "count", len(corpus))
		return 0, nil
	}

	sort.Slice(corpus, func(i, j int) bool {
		if corpus[i].DifficultyScore != corpus[j].DifficultyScore {
			return corpus[i].DifficultyScore < corpus[j].DifficultyScore
		}
		return corpus[i].QuestionID < corpus[j].QuestionID
	})

	tx, err := c.store.DB().Begin()
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin calibration transaction")
	}
	defer tx.Rollback()

	n := len(corpus)
	changed := 0
	for i, a := range corpus {
		calibrated := 0.5
		if n > 1 {
			calibrated = util.Round6(float64(i) / float64(n-1))
		}
		band := Band(calibrated)
		if calibrated == a.DifficultyScore && band == a.DifficultyBand {
			continue
		}

		if err := c.store.UpdateDifficulty(tx, a.ID, calibrated, band); err != nil {
			return 0, err
		}
		// Keep applied state in step. Questions holding an override are
		// never touched, whatever source their applied row carries.
		_, err = tx.Exec(`
			UPDATE question_semantics
			SET difficulty_score = ?, difficulty_band = ?, updated_at = ?
			WHERE analysis_id = ? AND source = ?
			  AND NOT EXISTS (
				SELECT 1 FROM semantic_overrides o
				WHERE o.question_id = question_semantics.question_id
			  )
		`, calibrated, band, time.Now().UTC().Format(time.RFC3339Nano), a.ID, SourceAI)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to recalibrate applied state for %s", a.QuestionID)
		}
		changed++
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit calibration")
	}

	c.logger.Infow("Calibrated corpus", "count", n, "changed", changed)
	return changed, nil
}

// latestPerQuestion picks the most recent ai analysis per question.
// ListBySource orders by (question_id asc, created_at desc), so the first
// row seen for each question wins.
func (c *Calibrator) latestPerQuestion() ([]*Analysis, error) {
	all, err := c.store.ListBySource(SourceAI, embedding.ModelOntology, AnalysisVersion)
	if err != nil {
		return nil, err
	}

	var corpus []*Analysis
	seen := make(map[string]bool, len(all))
	for _, a := range all {
		if seen[a.QuestionID] {
			continue
		}
		seen[a.QuestionID] = true
		corpus = append(corpus, a)
	}
	return corpus, nil
}
