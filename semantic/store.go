package semantic

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quivermath/quiver/config"
	"github.com/quivermath/quiver/errors"
)

// Override is a user-authored semantic layer for one question. While one
// exists, auto-apply must never touch the question's applied state.
type Override struct {
	ID              string          `json:"id"`
	QuestionID      string          `json:"question_id"`
	BaseAnalysisID  string          `json:"base_analysis_id,omitempty"`
	Tags            []TagAssignment `json:"tags"`
	DifficultyScore *float64        `json:"difficulty_score,omitempty"`
	DifficultyBand  string          `json:"difficulty_band,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// AppliedSemantics is the per-question state the host application reads.
type AppliedSemantics struct {
	QuestionID      string          `json:"question_id"`
	AnalysisID      string          `json:"analysis_id,omitempty"`
	Source          string          `json:"source"`
	Tags            []TagAssignment `json:"tags"`
	DifficultyScore float64         `json:"difficulty_score"`
	DifficultyBand  string          `json:"difficulty_band"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Store provides database operations for analyses, overrides, applied
// semantics, and the tuning row.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewStore creates a new semantic store.
func NewStore(db *sql.DB, logger *zap.SugaredLogger) *Store {
	return &Store{db: db, logger: logger.Named("semantic.store")}
}

// DB exposes the underlying handle for batch jobs that need their own
// transaction scope.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SaveAnalysis inserts a new analysis row. Analyses are append-only; only
// the calibrator mutates stored rows, and only their score and band.
func (s *Store) SaveAnalysis(a *Analysis) error {
	if a == nil {
		return errors.New("analysis is nil")
	}
	if a.QuestionID == "" {
		return errors.Wrap(errors.ErrInvalidInput, "analysis question id is empty")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	tagsJSON, err := json.Marshal(a.Tags)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal tags for %s", a.QuestionID)
	}
	factorsJSON, err := json.Marshal(a.Factors)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal factors for %s", a.QuestionID)
	}
	consistencyJSON, err := json.Marshal(a.Consistency)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal consistency for %s", a.QuestionID)
	}
	rationaleJSON, err := json.Marshal(a.Rationale)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal rationale for %s", a.QuestionID)
	}

	_, err = s.db.Exec(`
		INSERT INTO semantic_analyses (
			id, question_id, input_hash, model_id, analysis_version, source,
			tags, difficulty_score, difficulty_band, difficulty_factors,
			consistency, rationale, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		a.QuestionID,
		a.InputHash,
		a.ModelID,
		a.AnalysisVersion,
		a.Source,
		string(tagsJSON),
		a.DifficultyScore,
		a.DifficultyBand,
		string(factorsJSON),
		string(consistencyJSON),
		string(rationaleJSON),
		a.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save analysis for question %s", a.QuestionID)
	}

	s.logger.Debugw("Saved analysis",
		"question_id", a.QuestionID,
		"analysis_id", a.ID,
		"score", a.DifficultyScore,
		"band", a.DifficultyBand,
	)
	return nil
}

const analysisColumns = `
	id, question_id, input_hash, model_id, analysis_version, source,
	tags, difficulty_score, difficulty_band, difficulty_factors,
	consistency, rationale, created_at
`

// GetCached returns the most recent ai-sourced analysis matching the cache
// key, or nil on a miss.
func (s *Store) GetCached(questionID, modelID string, version int, inputHash string) (*Analysis, error) {
	row := s.db.QueryRow(`
		SELECT `+analysisColumns+`
		FROM semantic_analyses
		WHERE question_id = ? AND model_id = ? AND analysis_version = ?
		  AND input_hash = ? AND source = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, questionID, modelID, version, inputHash, SourceAI)

	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to look up cached analysis for %s", questionID)
	}
	return a, nil
}

// GetAnalysis retrieves one analysis by id.
func (s *Store) GetAnalysis(id string) (*Analysis, error) {
	row := s.db.QueryRow(`
		SELECT `+analysisColumns+`
		FROM semantic_analyses
		WHERE id = ?
	`, id)

	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("analysis %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get analysis %s", id)
	}
	return a, nil
}

// LatestByQuestion returns the most recent analysis for a question, any
// source, or nil when the question was never analyzed.
func (s *Store) LatestByQuestion(questionID string) (*Analysis, error) {
	row := s.db.QueryRow(`
		SELECT `+analysisColumns+`
		FROM semantic_analyses
		WHERE question_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, questionID)

	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get latest analysis for %s", questionID)
	}
	return a, nil
}

// ListBySource returns every analysis for a source, model, and version,
// ordered by (question_id, created_at). The calibrator and tuner read the
// corpus through this.
func (s *Store) ListBySource(source, modelID string, version int) ([]*Analysis, error) {
	rows, err := s.db.Query(`
		SELECT `+analysisColumns+`
		FROM semantic_analyses
		WHERE source = ? AND model_id = ? AND analysis_version = ?
		ORDER BY question_id ASC, created_at DESC, id DESC
	`, source, modelID, version)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list analyses")
	}
	defer rows.Close()

	var analyses []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to scan analysis at row %d", len(analyses)+1)
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

// CountBySource returns the corpus size for a model and version.
func (s *Store) CountBySource(source, modelID string, version int) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM semantic_analyses
		WHERE source = ? AND model_id = ? AND analysis_version = ?
	`, source, modelID, version).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count analyses")
	}
	return n, nil
}

// UpdateDifficulty rewrites one analysis row's score and band inside the
// calibrator's transaction.
func (s *Store) UpdateDifficulty(tx *sql.Tx, id string, score float64, band string) error {
	_, err := tx.Exec(`
		UPDATE semantic_analyses SET difficulty_score = ?, difficulty_band = ? WHERE id = ?
	`, score, band, id)
	if err != nil {
		return errors.Wrapf(err, "failed to update difficulty for analysis %s", id)
	}
	return nil
}

func scanAnalysis(row rowScanner) (*Analysis, error) {
	var a Analysis
	var tagsJSON, factorsJSON, consistencyJSON, rationaleJSON, createdAt string

	err := row.Scan(
		&a.ID, &a.QuestionID, &a.InputHash, &a.ModelID, &a.AnalysisVersion,
		&a.Source, &tagsJSON, &a.DifficultyScore, &a.DifficultyBand,
		&factorsJSON, &consistencyJSON, &rationaleJSON, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &a.Tags); err != nil {
		return nil, errors.Wrapf(err, "corrupt tags for analysis %s", a.ID)
	}
	if err := json.Unmarshal([]byte(factorsJSON), &a.Factors); err != nil {
		return nil, errors.Wrapf(err, "corrupt factors for analysis %s", a.ID)
	}
	if err := json.Unmarshal([]byte(consistencyJSON), &a.Consistency); err != nil {
		return nil, errors.Wrapf(err, "corrupt consistency for analysis %s", a.ID)
	}
	if err := json.Unmarshal([]byte(rationaleJSON), &a.Rationale); err != nil {
		return nil, errors.Wrapf(err, "corrupt rationale for analysis %s", a.ID)
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &a, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// SaveOverride records a user override for a question, replacing any
// previous one.
func (s *Store) SaveOverride(o *Override) error {
	if o == nil {
		return errors.New("override is nil")
	}
	if o.QuestionID == "" {
		return errors.Wrap(errors.ErrInvalidInput, "override question id is empty")
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	tagsJSON, err := json.Marshal(o.Tags)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal override tags for %s", o.QuestionID)
	}

	var score sql.NullFloat64
	if o.DifficultyScore != nil {
		score = sql.NullFloat64{Float64: *o.DifficultyScore, Valid: true}
	}
	band := sql.NullString{String: o.DifficultyBand, Valid: o.DifficultyBand != ""}
	base := sql.NullString{String: o.BaseAnalysisID, Valid: o.BaseAnalysisID != ""}

	_, err = s.db.Exec(`
		INSERT INTO semantic_overrides (
			id, question_id, base_analysis_id, tags, difficulty_score, difficulty_band, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(question_id) DO UPDATE SET
			base_analysis_id = excluded.base_analysis_id,
			tags = excluded.tags,
			difficulty_score = excluded.difficulty_score,
			difficulty_band = excluded.difficulty_band
	`, o.ID, o.QuestionID, base, string(tagsJSON), score, band, o.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return errors.Wrapf(err, "failed to save override for question %s", o.QuestionID)
	}
	if err := s.reflectOverride(o); err != nil {
		return err
	}

	s.logger.Infow("Saved semantic override", "question_id", o.QuestionID)
	return nil
}

// reflectOverride pushes an override into the question's applied state so the
// layer the host reads carries the user's values. Score and band fall back to
// whatever was applied before when the override leaves them unset.
func (s *Store) reflectOverride(o *Override) error {
	appliedScore := 0.5
	appliedBand := ""
	applied, err := s.GetAppliedSemantics(o.QuestionID)
	if err != nil {
		return err
	}
	if applied != nil {
		appliedScore = applied.DifficultyScore
		appliedBand = applied.DifficultyBand
	}
	if o.DifficultyScore != nil {
		appliedScore = *o.DifficultyScore
		appliedBand = Band(appliedScore)
	}
	if o.DifficultyBand != "" {
		appliedBand = o.DifficultyBand
	}
	if appliedBand == "" {
		appliedBand = Band(appliedScore)
	}

	tagsJSON, err := json.Marshal(o.Tags)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal applied override tags for %s", o.QuestionID)
	}
	base := sql.NullString{String: o.BaseAnalysisID, Valid: o.BaseAnalysisID != ""}

	_, err = s.db.Exec(`
		INSERT INTO question_semantics (
			question_id, analysis_id, source, tags, difficulty_score, difficulty_band, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(question_id) DO UPDATE SET
			analysis_id = excluded.analysis_id,
			source = excluded.source,
			tags = excluded.tags,
			difficulty_score = excluded.difficulty_score,
			difficulty_band = excluded.difficulty_band,
			updated_at = excluded.updated_at
	`,
		o.QuestionID,
		base,
		SourceUser,
		string(tagsJSON),
		appliedScore,
		appliedBand,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to apply override for question %s", o.QuestionID)
	}
	return nil
}

// GetOverride returns the override for a question, or nil when none exists.
func (s *Store) GetOverride(questionID string) (*Override, error) {
	row := s.db.QueryRow(`
		SELECT id, question_id, base_analysis_id, tags, difficulty_score, difficulty_band, created_at
		FROM semantic_overrides
		WHERE question_id = ?
	`, questionID)

	var o Override
	var base, band sql.NullString
	var score sql.NullFloat64
	var tagsJSON, createdAt string

	err := row.Scan(&o.ID, &o.QuestionID, &base, &tagsJSON, &score, &band, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get override for question %s", questionID)
	}

	o.BaseAnalysisID = base.String
	o.DifficultyBand = band.String
	if score.Valid {
		o.DifficultyScore = &score.Float64
	}
	if err := json.Unmarshal([]byte(tagsJSON), &o.Tags); err != nil {
		return nil, errors.Wrapf(err, "corrupt override tags for question %s", questionID)
	}
	o.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &o, nil
}

// ApplySemantics writes a question's applied tag and difficulty state.
// Skips silently when a user override exists: the override layer is a hard
// boundary checked before mutation, not compensated after.
func (s *Store) ApplySemantics(a *Analysis) error {
	override, err := s.GetOverride(a.QuestionID)
	if err != nil {
		return err
	}
	if override != nil {
		s.logger.Debugw("Skipping auto-apply, override present", "question_id", a.QuestionID)
		return nil
	}

	tagsJSON, err := json.Marshal(a.Tags)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal applied tags for %s", a.QuestionID)
	}

	_, err = s.db.Exec(`
		INSERT INTO question_semantics (
			question_id, analysis_id, source, tags, difficulty_score, difficulty_band, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(question_id) DO UPDATE SET
			analysis_id = excluded.analysis_id,
			source = excluded.source,
			tags = excluded.tags,
			difficulty_score = excluded.difficulty_score,
			difficulty_band = excluded.difficulty_band,
			updated_at = excluded.updated_at
	`,
		a.QuestionID,
		a.ID,
		a.Source,
		string(tagsJSON),
		a.DifficultyScore,
		a.DifficultyBand,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to apply semantics for question %s", a.QuestionID)
	}
	return nil
}

// GetAppliedSemantics reads a question's applied state, or nil when the
// question has none yet.
func (s *Store) GetAppliedSemantics(questionID string) (*AppliedSemantics, error) {
	row := s.db.QueryRow(`
		SELECT question_id, analysis_id, source, tags, difficulty_score, difficulty_band, updated_at
		FROM question_semantics
		WHERE question_id = ?
	`, questionID)

	var applied AppliedSemantics
	var analysisID sql.NullString
	var tagsJSON, updatedAt string

	err := row.Scan(&applied.QuestionID, &analysisID, &applied.Source, &tagsJSON, &applied.DifficultyScore, &applied.DifficultyBand, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get applied semantics for question %s", questionID)
	}

	applied.AnalysisID = analysisID.String
	if err := json.Unmarshal([]byte(tagsJSON), &applied.Tags); err != nil {
		return nil, errors.Wrapf(err, "corrupt applied tags for question %s", questionID)
	}
	applied.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &applied, nil
}

// LoadTuning reads the persisted tuning row, falling back to the provided
// defaults when none has been written yet.
func (s *Store) LoadTuning(defaults config.TuningConfig) (config.TuningConfig, error) {
	row := s.db.QueryRow(`
		SELECT enabled, tag_threshold, sibling_lambda, up_beta, down_gamma, target_avg_tags
		FROM semantic_tuning WHERE id = 1
	`)

	var tuning config.TuningConfig
	var enabled int
	err := row.Scan(&enabled, &tuning.TagThreshold, &tuning.SiblingLambda, &tuning.UpBeta, &tuning.DownGamma, &tuning.TargetAvgTags)
	if errors.Is(err, sql.ErrNoRows) {
		return defaults, nil
	}
	if err != nil {
		return defaults, errors.Wrap(err, "failed to load tuning parameters")
	}

	tuning.Enabled = enabled != 0
	if err := tuning.Validate(); err != nil {
		return defaults, errors.Wrap(err, "stored tuning parameters out of range")
	}
	return tuning, nil
}

// SaveTuning persists the tuning row, overwriting any previous values.
func (s *Store) SaveTuning(tuning config.TuningConfig) error {
	if err := tuning.Validate(); err != nil {
		return err
	}

	enabled := 0
	if tuning.Enabled {
		enabled = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO semantic_tuning (
			id, enabled, tag_threshold, sibling_lambda, up_beta, down_gamma, target_avg_tags, updated_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enabled = excluded.enabled,
			tag_threshold = excluded.tag_threshold,
			sibling_lambda = excluded.sibling_lambda,
			up_beta = excluded.up_beta,
			down_gamma = excluded.down_gamma,
			target_avg_tags = excluded.target_avg_tags,
			updated_at = excluded.updated_at
	`,
		enabled,
		tuning.TagThreshold,
		tuning.SiblingLambda,
		tuning.UpBeta,
		tuning.DownGamma,
		tuning.TargetAvgTags,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrap(err, "failed to save tuning parameters")
	}

	s.logger.Infow("Saved tuning parameters",
		"tag_threshold", tuning.TagThreshold,
		"sibling_lambda", tuning.SiblingLambda,
		"up_beta", tuning.UpBeta,
		"down_gamma", tuning.DownGamma,
	)
	return nil
}
