package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quivermath/quiver/config"
	"github.com/quivermath/quiver/db"
	"github.com/quivermath/quiver/errors"
	"github.com/quivermath/quiver/logger"
	"github.com/quivermath/quiver/ontology"
)

// SeedCmd represents the seed command
var SeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the tag ontology",
	Long: `Seed the tag ontology from the bundled mathematics taxonomy or a custom YAML file.

Seeding is idempotent: existing tags are updated in place, so the command is
safe to re-run after editing a taxonomy file. Tag descriptor embeddings are
regenerated lazily on the next analysis, so reseeded tags pick up their new
text automatically.

Examples:
  quiver seed                        # Seed the bundled taxonomy
  quiver seed --file ontology.yaml   # Seed a custom taxonomy`,
	RunE: runSeed,
}

var seedFileFlag string

func init() {
	SeedCmd.Flags().StringVar(&seedFileFlag, "file", "", "Custom taxonomy YAML file")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	conn, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := db.Migrate(conn, logger.Logger); err != nil {
		return err
	}

	store := ontology.NewStore(conn, logger.Logger)
	var count int
	if seedFileFlag != "" {
		f, err := os.Open(seedFileFlag)
		if err != nil {
			return errors.Wrapf(err, "failed to open taxonomy file %s", seedFileFlag)
		}
		defer f.Close()
		count, err = store.SeedFromYAML(f)
		if err != nil {
			return err
		}
	} else {
		count, err = store.Seed()
		if err != nil {
			return err
		}
	}

	all, err := store.All()
	if err != nil {
		return err
	}
	graph, err := ontology.BuildGraph(all)
	if err != nil {
		return err
	}

	fmt.Printf("Seeded %d tags (%d total, max depth %d)\n", count, graph.Len(), graph.MaxDepth())
	return nil
}
