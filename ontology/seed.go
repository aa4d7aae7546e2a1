package ontology

import (
	_ "embed"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/quivermath/quiver/errors"
)

//go:embed seed/math.yaml
var defaultSeed []byte

// seedNode is the YAML shape of one ontology entry. Children nest, so the
// seed file reads like the taxonomy it describes.
type seedNode struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Kind        string     `yaml:"kind"`
	Description string     `yaml:"description"`
	Aliases     []string   `yaml:"aliases"`
	Children    []seedNode `yaml:"children"`
}

type seedFile struct {
	Tags []seedNode `yaml:"tags"`
}

// Seed upserts the default embedded math ontology.
func (s *Store) Seed() (int, error) {
	return s.seedBytes(defaultSeed)
}

// SeedFromYAML upserts an ontology read from r. The whole forest is
// validated (ids, kinds, acyclicity) before any row is written: a
// malformed seed aborts with no partial state.
func (s *Store) SeedFromYAML(r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read ontology seed")
	}
	return s.seedBytes(data)
}

func (s *Store) seedBytes(data []byte) (int, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, errors.Wrap(err, "failed to parse ontology seed")
	}

	var tags []*Tag
	if err := flattenSeed(file.Tags, "", &tags); err != nil {
		return 0, err
	}

	// BuildGraph validates uniqueness, parent references, and acyclicity.
	// Nested YAML cannot express a cycle, but ids can still collide.
	if _, err := BuildGraph(tags); err != nil {
		return 0, errors.Wrap(err, "ontology seed rejected")
	}

	for _, tag := range tags {
		if err := s.Upsert(tag); err != nil {
			return 0, err
		}
	}

	s.logger.Infow("Seeded ontology", "count", len(tags))
	return len(tags), nil
}

func flattenSeed(nodes []seedNode, parentID string, out *[]*Tag) error {
	for _, node := range nodes {
		if node.ID == "" {
			return errors.Wrapf(errors.ErrInvalidInput, "seed entry %q has no id", node.Name)
		}
		if !IsValidKind(node.Kind) {
			return errors.Wrapf(errors.ErrInvalidInput, "seed entry %s has invalid kind %q", node.ID, node.Kind)
		}
		*out = append(*out, &Tag{
			ID:          node.ID,
			Name:        node.Name,
			Kind:        Kind(node.Kind),
			Description: node.Description,
			ParentID:    parentID,
			Aliases:     node.Aliases,
		})
		if err := flattenSeed(node.Children, node.ID, out); err != nil {
			return err
		}
	}
	return nil
}
