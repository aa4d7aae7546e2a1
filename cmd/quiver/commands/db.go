package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quivermath/quiver/embedding"
	"github.com/quivermath/quiver/errors"
	"github.com/quivermath/quiver/semantic"
)

// DbCmd represents the db command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the Quiver database",
	Long: `Manage the Quiver database.

Examples:
  quiver db stats    # Show table counts and difficulty band distribution`,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbStats(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Printf("Database: %s\n\n", app.cfg.Database.Path)

	tables := []struct {
		label string
		query string
	}{
		{"Ontology tags", "SELECT COUNT(*) FROM ontology_tags"},
		{"Embeddings", "SELECT COUNT(*) FROM embeddings"},
		{"Analyses", "SELECT COUNT(*) FROM semantic_analyses"},
		{"Applied questions", "SELECT COUNT(*) FROM question_semantics"},
		{"Overrides", "SELECT COUNT(*) FROM semantic_overrides"},
		{"Queue jobs", "SELECT COUNT(*) FROM analysis_jobs"},
	}
	for _, table := range tables {
		var n int
		if err := app.db.QueryRow(table.query).Scan(&n); err != nil {
			return errors.Wrapf(err, "failed to count %s", table.label)
		}
		fmt.Printf("%-18s %d\n", table.label+":", n)
	}

	current, err := app.semantics.CountBySource(semantic.SourceAI, embedding.ModelOntology, semantic.AnalysisVersion)
	if err != nil {
		return err
	}
	fmt.Printf("%-18s %d\n", "Current analyses:", current)

	rows, err := app.db.Query(`
		SELECT difficulty_band, COUNT(*)
		FROM question_semantics
		GROUP BY difficulty_band
		ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return errors.Wrap(err, "failed to query band distribution")
	}
	defer rows.Close()

	first := true
	for rows.Next() {
		var band string
		var n int
		if err := rows.Scan(&band, &n); err != nil {
			return errors.Wrap(err, "failed to scan band count")
		}
		if first {
			fmt.Printf("\nDifficulty bands:\n")
			first = false
		}
		fmt.Printf("  %-12s %d\n", band, n)
	}
	return rows.Err()
}
