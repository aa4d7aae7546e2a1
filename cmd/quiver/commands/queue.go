package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/quivermath/quiver/errors"
	"github.com/quivermath/quiver/logger"
	"github.com/quivermath/quiver/queue"
	"github.com/quivermath/quiver/semantic"
)

// QueueCmd represents the queue command
var QueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the background analysis queue",
	Long: `Manage the background analysis queue.

Questions are queued by ID and analyzed in small batches so a long backlog
never monopolizes the process. Question content comes from a YAML batch file
(the same format analyze --file accepts).

Examples:
  quiver queue run --file questions.yaml     # Enqueue and drain synchronously
  quiver queue start --file questions.yaml   # Poll until interrupted
  quiver queue status                        # Show job counts`,
}

var queueFileFlag string

var queueRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Enqueue questions from a file and drain the queue",
	RunE:  runQueueRun,
}

var queueStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the queue poller until interrupted",
	RunE:  runQueueStart,
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue job counts",
	RunE:  runQueueStatus,
}

func init() {
	QueueCmd.AddCommand(queueRunCmd)
	QueueCmd.AddCommand(queueStartCmd)
	QueueCmd.AddCommand(queueStatusCmd)
	queueRunCmd.Flags().StringVar(&queueFileFlag, "file", "", "YAML batch file of questions (required)")
	queueStartCmd.Flags().StringVar(&queueFileFlag, "file", "", "YAML batch file of questions (required)")
}

// fileRunner wires a queue runner whose question content comes from a
// batch file.
func fileRunner(app *app, path string) (*queue.Runner, *queue.Store, []string, error) {
	questions, err := loadQuestionFile(path)
	if err != nil {
		return nil, nil, nil, err
	}

	byID := make(map[string]semantic.Question, len(questions))
	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
		ids = append(ids, q.ID)
	}
	load := func(id string) (*semantic.Question, error) {
		q, ok := byID[id]
		if !ok {
			return nil, errors.Newf("question not found in batch file: %s", id)
		}
		return &q, nil
	}

	store := queue.NewStore(app.db, logger.Logger)
	runner := queue.NewRunner(store, app.analyzer, app.calibrator, load, app.cfg.Queue, logger.Logger)
	return runner, store, ids, nil
}

func runQueueRun(cmd *cobra.Command, args []string) error {
	if queueFileFlag == "" {
		return errors.New("--file is required")
	}

	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	runner, store, ids, err := fileRunner(app, queueFileFlag)
	if err != nil {
		return err
	}

	created, err := store.Enqueue(ids)
	if err != nil {
		return err
	}
	pterm.Info.Printf("Enqueued %d of %d questions\n", created, len(ids))

	spinner, _ := pterm.DefaultSpinner.Start("Draining analysis queue...")
	processed, err := runner.Drain(cmd.Context())
	if err != nil {
		spinner.Fail(fmt.Sprintf("Drain failed after %d jobs: %v", processed, err))
		return err
	}
	spinner.Success(fmt.Sprintf("Processed %d jobs", processed))

	return printQueueStatus(runner)
}

func runQueueStart(cmd *cobra.Command, args []string) error {
	if queueFileFlag == "" {
		return errors.New("--file is required")
	}

	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	runner, store, ids, err := fileRunner(app, queueFileFlag)
	if err != nil {
		return err
	}

	created, err := store.Enqueue(ids)
	if err != nil {
		return err
	}
	pterm.Info.Printf("Enqueued %d of %d questions\n", created, len(ids))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runner.Start(ctx); err != nil {
		return err
	}
	pterm.Info.Println("Queue running, press Ctrl+C to stop")

	<-ctx.Done()
	runner.Stop()
	return printQueueStatus(runner)
}

func runQueueStatus(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	store := queue.NewStore(app.db, logger.Logger)
	runner := queue.NewRunner(store, app.analyzer, app.calibrator, nil, app.cfg.Queue, logger.Logger)
	return printQueueStatus(runner)
}

func printQueueStatus(runner *queue.Runner) error {
	status, err := runner.Status()
	if err != nil {
		return err
	}
	fmt.Printf("queued: %d  running: %d  completed: %d  failed: %d\n",
		status.Queued, status.InFlight, status.Completed, status.Failed)
	return nil
}
