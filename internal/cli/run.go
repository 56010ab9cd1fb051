package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/justsurfingit/jobops-pipeline/internal/models"
	"github.com/justsurfingit/jobops-pipeline/internal/pipeline"
)

var (
	runSources  []string
	runTopN     int
	runMinScore int
	runNoCrawl  bool
	runNoTailor bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once in the foreground",
	Long: `Run the pipeline once and print a summary.

Ctrl-C asks the run to stop before its next step; a second Ctrl-C aborts.

Examples:
  jobops run                           # all enabled sources
  jobops run --source indeed,linkedin  # only these sources
  jobops run --no-crawl --top-n 5      # rescore and tailor existing jobs`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringSliceVarP(&runSources, "source", "s", nil, "sources to scan (default: all registered)")
	runCmd.Flags().IntVar(&runTopN, "top-n", 0, "jobs to tailor (default: pipelineTopN setting)")
	runCmd.Flags().IntVar(&runMinScore, "min-score", -1, "minimum suitability score (default: setting)")
	runCmd.Flags().BoolVar(&runNoCrawl, "no-crawl", false, "skip discovery")
	runCmd.Flags().BoolVar(&runNoTailor, "no-tailor", false, "skip tailoring")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, db, cfg, logger, true)
	if err != nil {
		return err
	}

	opts := pipeline.RunOptions{Sources: runSources}
	if cmd.Flags().Changed("top-n") {
		opts.TopN = &runTopN
	}
	if cmd.Flags().Changed("min-score") {
		opts.MinSuitabilityScore = &runMinScore
	}
	if runNoCrawl {
		off := false
		opts.EnableCrawling = &off
	}
	if runNoTailor {
		off := false
		opts.EnableAutoTailoring = &off
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			res := a.pipeline.RequestCancel()
			if res.AlreadyRequested {
				cancel()
				return
			}
			fmt.Fprintln(os.Stderr, "Cancelling after the current step, press Ctrl-C again to abort")
		}
	}()

	res, err := a.pipeline.Run(ctx, opts)
	if err != nil {
		return err
	}
	printResult(res)
	if res.Status == string(models.RunFailed) {
		return fmt.Errorf("pipeline failed: %s", res.Error)
	}
	return nil
}

func printResult(res pipeline.Result) {
	fmt.Printf("Run %s: %s\n", res.RunID, res.Status)
	if res.Error != "" {
		fmt.Printf("  %s\n", res.Error)
	}
	fmt.Printf("  Discovered: %d\n", res.JobsDiscovered)
	fmt.Printf("  Imported:   %d (%d duplicates)\n", res.JobsCreated, res.JobsSkipped)
	fmt.Printf("  Scored:     %d\n", res.JobsScored)
	fmt.Printf("  Selected:   %d\n", res.JobsSelected)
	fmt.Printf("  Processed:  %d\n", res.JobsProcessed)
	for _, e := range res.SourceErrors {
		fmt.Printf("  source error: %s\n", e)
	}
}
