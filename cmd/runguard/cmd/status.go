package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/alertme/runguard/internal/config"
	"github.com/alertme/runguard/internal/lock"
	"github.com/alertme/runguard/internal/metrics"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lock state and last-run outcome",
	Long:  `Read-only view of the run lock, its freshness, and the recorded outcome of the last completed batch run.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	info, err := lock.Inspect(cfg.LockPath())
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")

	table.Append("Working root", cfg.Root)
	table.Append("Lock file", cfg.LockPath())
	if info.Exists {
		fresh := "stale"
		if info.Age < cfg.LockStaleAfter {
			fresh = "fresh"
		}
		table.Append("Lock", fmt.Sprintf("present (%s, age %s)", fresh, info.Age.Round(time.Second)))
		if info.PID > 0 {
			alive := "not running"
			if info.PIDRunning {
				alive = "running"
			}
			table.Append("Lock owner", fmt.Sprintf("pid %d (%s)", info.PID, alive))
		}
	} else {
		table.Append("Lock", "absent")
	}

	appendLastRun(table, cfg)

	table.Render()
	return nil
}

// appendLastRun adds the recorded last-run metrics, when any exist.
func appendLastRun(table *tablewriter.Table, cfg config.Config) {
	path := cfg.MetricsPath()
	if path == "" {
		return
	}
	families, err := metrics.Read(path)
	if err != nil {
		table.Append("Last run", "no recorded run")
		return
	}

	if ts, ok := metrics.GaugeValue(families, "runguard_last_run_timestamp_seconds"); ok {
		table.Append("Last run", time.Unix(int64(ts), 0).Format(time.RFC3339))
	}
	if dur, ok := metrics.GaugeValue(families, "runguard_last_run_duration_seconds"); ok {
		table.Append("Last duration", (time.Duration(dur * float64(time.Second))).Round(time.Second).String())
	}
	if code, ok := metrics.GaugeValue(families, "runguard_last_run_exit_code"); ok {
		table.Append("Last exit code", fmt.Sprintf("%d", int(code)))
	}
}
