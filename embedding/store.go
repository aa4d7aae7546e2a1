package embedding

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quivermath/quiver/errors"
)

// Embedding scopes. Tag descriptors and aliases are embedded separately so
// alias vectors can be averaged into the node vector at scoring time.
const (
	ScopeOntologyTag   = "ontology_tag"
	ScopeOntologyAlias = "ontology_alias"
	ScopeQuestion      = "question"
)

// Record is a persisted embedding. For a given (scope, scope_id, model_id)
// the row whose TextHash matches the current source text is authoritative;
// a stale hash triggers regeneration.
type Record struct {
	ID        string
	Scope     string
	ScopeID   string
	ModelID   string
	Dims      int
	Vector    []float32
	TextHash  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TextHash returns the sha256 hex digest used for embedding invalidation.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Store provides database operations for embedding records.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewStore creates a new embedding store.
func NewStore(db *sql.DB, logger *zap.SugaredLogger) *Store {
	return &Store{db: db, logger: logger.Named("embedding.store")}
}

// Ensure returns the current embedding for (scope, scopeID, modelID),
// regenerating and upserting only when the stored text hash no longer
// matches text. The upsert is idempotent: the vector is a pure function of
// the text, so last-writer-wins is safe under concurrent callers.
func (s *Store) Ensure(scope, scopeID, modelID, text string) (*Record, error) {
	hash := TextHash(text)

	existing, err := s.getBySource(scope, scopeID, modelID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.TextHash == hash {
		return existing, nil
	}

	emb := Embed(text, modelID)
	rec := &Record{
		Scope:    scope,
		ScopeID:  scopeID,
		ModelID:  modelID,
		Dims:     emb.Dims,
		Vector:   emb.Vector,
		TextHash: hash,
	}
	if existing != nil {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	}
	if err := s.save(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetBySource retrieves the stored embedding for a source, or nil when none
// exists yet.
func (s *Store) GetBySource(scope, scopeID, modelID string) (*Record, error) {
	return s.getBySource(scope, scopeID, modelID)
}

func (s *Store) getBySource(scope, scopeID, modelID string) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT id, scope, scope_id, model_id, dims, vector, text_hash, created_at, updated_at
		FROM embeddings
		WHERE scope = ? AND scope_id = ? AND model_id = ?
	`, scope, scopeID, modelID)

	var rec Record
	var blob []byte
	var createdAt, updatedAt string
	err := row.Scan(&rec.ID, &rec.Scope, &rec.ScopeID, &rec.ModelID, &rec.Dims, &blob, &rec.TextHash, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get embedding for %s:%s", scope, scopeID)
	}

	rec.Vector, err = VectorFromBlob(blob)
	if err != nil {
		return nil, errors.Wrapf(err, "corrupt embedding blob for %s:%s", scope, scopeID)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &rec, nil
}

func (s *Store) save(rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO embeddings (
			id, scope, scope_id, model_id, dims, vector, text_hash, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope, scope_id, model_id) DO UPDATE SET
			dims = excluded.dims,
			vector = excluded.vector,
			text_hash = excluded.text_hash,
			updated_at = excluded.updated_at
	`,
		rec.ID,
		rec.Scope,
		rec.ScopeID,
		rec.ModelID,
		rec.Dims,
		Blob(rec.Vector),
		rec.TextHash,
		rec.CreatedAt.Format(time.RFC3339Nano),
		rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save embedding for %s:%s", rec.Scope, rec.ScopeID)
	}

	// Only hybrid question vectors feed the vec0 index. The virtual table
	// has no upsert, so delete then insert.
	if rec.Scope == ScopeQuestion && rec.Dims == DimsHybrid {
		_, _ = s.db.Exec("DELETE FROM vec_embeddings WHERE embedding_id = ?", rec.ID)
		_, err = s.db.Exec(
			"INSERT INTO vec_embeddings (embedding_id, embedding) VALUES (?, ?)",
			rec.ID, Blob(rec.Vector),
		)
		if err != nil {
			return errors.Wrapf(err, "failed to index embedding %s", rec.ID)
		}
	}

	s.logger.Debugw("Saved embedding",
		"scope", rec.Scope,
		"scope_id", rec.ScopeID,
		"model_id", rec.ModelID,
		"dims", rec.Dims,
	)
	return nil
}

// SimilarQuestion is one hit from the similar-question vector search.
type SimilarQuestion struct {
	QuestionID string
	Distance   float32
	Similarity float32
}

// SimilarQuestions runs an L2 nearest-neighbor search over indexed question
// vectors and returns up to limit other questions, nearest first. Unit
// vectors keep L2 distance in [0, 2], so similarity = 1 - distance/2.
func (s *Store) SimilarQuestions(questionID string, limit int) ([]*SimilarQuestion, error) {
	if limit <= 0 {
		limit = 10
	}

	query, err := s.getBySource(ScopeQuestion, questionID, ModelHybrid)
	if err != nil {
		return nil, err
	}
	if query == nil {
		return nil, errors.NewNotFoundError("no hybrid embedding for question %s", questionID)
	}

	rows, err := s.db.Query(`
		SELECT e.scope_id, vec_distance_L2(v.embedding, ?) AS distance
		FROM vec_embeddings v
		JOIN embeddings e ON v.embedding_id = e.id
		WHERE e.scope_id != ?
		ORDER BY distance, e.scope_id
		LIMIT ?
	`, Blob(query.Vector), questionID, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to search similar questions for %s", questionID)
	}
	defer rows.Close()

	var results []*SimilarQuestion
	for rows.Next() {
		var hit SimilarQuestion
		if err := rows.Scan(&hit.QuestionID, &hit.Distance); err != nil {
			return nil, errors.Wrapf(err, "failed to scan similar question at row %d", len(results)+1)
		}
		hit.Similarity = 1.0 - hit.Distance/2.0
		if hit.Similarity < 0 {
			hit.Similarity = 0
		}
		results = append(results, &hit)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate similar questions")
	}

	s.logger.Debugw("Similar question search", "question_id", questionID, "count", len(results))
	return results, nil
}
