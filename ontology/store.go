package ontology

import (
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/quivermath/quiver/errors"
)

// Store provides database operations for ontology tags.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewStore creates a new ontology tag store.
func NewStore(db *sql.DB, logger *zap.SugaredLogger) *Store {
	return &Store{db: db, logger: logger.Named("ontology.store")}
}

// Upsert inserts a tag or updates name/description/kind/parent/aliases of
// an existing one. The id never changes and rows are never deleted.
func (s *Store) Upsert(tag *Tag) error {
	if tag == nil {
		return errors.New("tag is nil")
	}
	if tag.ID == "" {
		return errors.Wrap(errors.ErrInvalidInput, "tag id is empty")
	}
	if !IsValidKind(string(tag.Kind)) {
		return errors.Wrapf(errors.ErrInvalidInput, "tag %s has invalid kind %q", tag.ID, tag.Kind)
	}

	aliasJSON, err := json.Marshal(tag.Aliases)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal aliases for %s", tag.ID)
	}

	now := time.Now().UTC()
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = now
	}
	tag.UpdatedAt = now

	parentID := sql.NullString{String: tag.ParentID, Valid: tag.ParentID != ""}

	query := `
		INSERT INTO ontology_tags (
			id, name, kind, description, parent_id, aliases, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			description = excluded.description,
			parent_id = excluded.parent_id,
			aliases = excluded.aliases,
			updated_at = excluded.updated_at
	`
	_, err = s.db.Exec(query,
		tag.ID,
		tag.Name,
		string(tag.Kind),
		tag.Description,
		parentID,
		string(aliasJSON),
		tag.CreatedAt.Format(time.RFC3339Nano),
		tag.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to upsert ontology tag %s", tag.ID)
	}

	s.logger.Debugw("Upserted ontology tag", "tag_id", tag.ID)
	return nil
}

// Get retrieves a tag by id.
func (s *Store) Get(id string) (*Tag, error) {
	row := s.db.QueryRow(`
		SELECT id, name, kind, description, parent_id, aliases, created_at, updated_at
		FROM ontology_tags
		WHERE id = ?
	`, id)

	tag, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("ontology tag %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get ontology tag %s", id)
	}
	return tag, nil
}

// All returns every tag sorted by id. The sort is load-bearing: downstream
// scoring iterates in this order, so identical ontologies always produce
// identical results regardless of storage order.
func (s *Store) All() ([]*Tag, error) {
	rows, err := s.db.Query(`
		SELECT id, name, kind, description, parent_id, aliases, created_at, updated_at
		FROM ontology_tags
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list ontology tags")
	}
	defer rows.Close()

	var tags []*Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to scan ontology tag at row %d", len(tags)+1)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// Count returns the number of seeded tags.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM ontology_tags").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count ontology tags")
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTag(row rowScanner) (*Tag, error) {
	var tag Tag
	var kind, aliasJSON, createdAt, updatedAt string
	var parentID sql.NullString

	if err := row.Scan(&tag.ID, &tag.Name, &kind, &tag.Description, &parentID, &aliasJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	tag.Kind = Kind(kind)
	tag.ParentID = parentID.String
	if err := json.Unmarshal([]byte(aliasJSON), &tag.Aliases); err != nil {
		return nil, errors.Wrapf(err, "corrupt alias list for tag %s", tag.ID)
	}
	tag.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	tag.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &tag, nil
}
