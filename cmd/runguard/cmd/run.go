package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alertme/runguard/internal/guard"
	"github.com/alertme/runguard/pkg/logging"
)

var quiet bool

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the batch job under the lock guard",
	Long: `Attempt one guarded batch run.

Exits 0 when the batch ran to completion or when a fresh lock caused the
attempt to be skipped as a duplicate. Exits 1 when the sync step failed
fatally (rebase policy) or the batch program could not be started. The
batch program's own exit code is recorded in the run log and the metrics
textfile but does not change runguard's exit status.`,
	RunE: runGuarded,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&quiet, "quiet", false, "do not echo run log lines to stdout")
}

func runGuarded(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logging.Open(cfg.LogPath(), !quiet)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	out, err := guard.New(cfg, log).AttemptRun(cmd.Context())
	if err != nil {
		return err
	}
	if out.Result == guard.ResultRan && !quiet {
		fmt.Printf("batch run finished in %s (exit %d)\n", out.Duration.Round(time.Second), out.ExitCode)
	}
	return nil
}
