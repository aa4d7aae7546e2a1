package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/quivermath/quiver/errors"
	"github.com/quivermath/quiver/semantic"
)

// AnalyzeCmd represents the analyze command
var AnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze question content for tags and difficulty",
	Long: `Analyze question content: assign ontology tags and infer a difficulty score.

A single question is given with flags; a batch comes from a YAML file with a
top-level "questions" list of {id, type, text, explanation} entries. Results
are cached: re-analyzing unchanged content reads the stored analysis.

Examples:
  quiver analyze --id q-1 --text "Prove that the derivative of sin(x) is cos(x)"
  quiver analyze --file questions.yaml
  quiver analyze --file questions.yaml --rationale`,
	RunE: runAnalyze,
}

var (
	analyzeIDFlag          string
	analyzeTypeFlag        string
	analyzeTextFlag        string
	analyzeExplanationFlag string
	analyzeFileFlag        string
	analyzeRationaleFlag   bool
)

func init() {
	AnalyzeCmd.Flags().StringVar(&analyzeIDFlag, "id", "", "Question ID")
	AnalyzeCmd.Flags().StringVar(&analyzeTypeFlag, "type", "short-answer", "Question type")
	AnalyzeCmd.Flags().StringVar(&analyzeTextFlag, "text", "", "Question text")
	AnalyzeCmd.Flags().StringVar(&analyzeExplanationFlag, "explanation", "", "Worked explanation text")
	AnalyzeCmd.Flags().StringVar(&analyzeFileFlag, "file", "", "YAML batch file of questions")
	AnalyzeCmd.Flags().BoolVar(&analyzeRationaleFlag, "rationale", false, "Show activation rationale per question")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeFileFlag == "" && analyzeTextFlag == "" {
		return errors.New("either --text or --file is required")
	}

	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	var questions []semantic.Question
	if analyzeFileFlag != "" {
		questions, err = loadQuestionFile(analyzeFileFlag)
		if err != nil {
			return err
		}
	} else {
		id := analyzeIDFlag
		if id == "" {
			id = "adhoc"
		}
		questions = []semantic.Question{{
			ID:          id,
			Type:        analyzeTypeFlag,
			Text:        analyzeTextFlag,
			Explanation: analyzeExplanationFlag,
		}}
	}

	if len(questions) > 1 {
		pterm.DefaultHeader.WithFullWidth().Printf("Analyzing %d questions", len(questions))
		pterm.Println()
	}

	failed := 0
	for _, q := range questions {
		analysis, err := app.analyzer.Analyze(q)
		if err != nil {
			pterm.Error.Printf("%s: %v\n", q.ID, err)
			failed++
			continue
		}
		if analysis == nil {
			pterm.Warning.Printf("%s: blank content, skipped\n", q.ID)
			continue
		}
		printAnalysis(analysis)
	}

	if len(questions) > 1 {
		pterm.Println()
		if failed > 0 {
			pterm.Warning.Printf("Analyzed %d questions, %d failed\n", len(questions)-failed, failed)
		} else {
			pterm.Success.Printf("Analyzed %d questions\n", len(questions))
		}
	}
	if failed > 0 {
		return errors.Newf("%d of %d questions failed", failed, len(questions))
	}
	return nil
}

func printAnalysis(a *semantic.Analysis) {
	fmt.Printf("%s  difficulty %.3f (%s)\n", a.QuestionID, a.DifficultyScore, a.DifficultyBand)
	for _, tag := range a.Tags {
		fmt.Printf("  #%d %-32s %.3f\n", tag.Rank, tag.TagID, tag.Score)
	}
	for _, rec := range a.Consistency {
		fmt.Printf("  rule %s (%+.3f): %s\n", rec.Rule, rec.Delta, rec.Detail)
	}

	if analyzeRationaleFlag {
		fmt.Println("  activated nodes:")
		for _, node := range a.Rationale.ActivatedNodes {
			fmt.Printf("    %-32s base %.3f boost %.3f final %.3f\n",
				node.TagID, node.Base, node.Boost, node.Final)
		}
	}
}
