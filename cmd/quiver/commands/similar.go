package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// SimilarCmd represents the similar command
var SimilarCmd = &cobra.Command{
	Use:   "similar <question-id>",
	Short: "Find questions with similar content",
	Long: `Find previously analyzed questions whose content is closest to the given
question, using its stored hybrid embedding.

Examples:
  quiver similar q-42
  quiver similar q-42 --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

var similarLimitFlag int

func init() {
	SimilarCmd.Flags().IntVar(&similarLimitFlag, "limit", 5, "Number of neighbors to show")
}

func runSimilar(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	neighbors, err := app.embeddings.SimilarQuestions(args[0], similarLimitFlag)
	if err != nil {
		return err
	}
	if len(neighbors) == 0 {
		fmt.Println("No similar questions found")
		return nil
	}

	for i, n := range neighbors {
		fmt.Printf("%2d. %-24s similarity %.3f\n", i+1, n.QuestionID, n.Similarity)
	}
	return nil
}
