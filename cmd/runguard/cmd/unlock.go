package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alertme/runguard/internal/lock"
)

var forceUnlock bool

// unlockCmd represents the unlock command
var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Remove the run lock",
	Long: `Remove the run lock left behind by a crashed run.

Normally the lock expires on its own after the staleness threshold; unlock
is the operator escape hatch for clearing it early. When the lock records
a PID that is still alive, unlock refuses unless --force is given.`,
	RunE: runUnlock,
}

func init() {
	rootCmd.AddCommand(unlockCmd)
	unlockCmd.Flags().BoolVar(&forceUnlock, "force", false, "remove the lock even if its owner process is alive")
}

func runUnlock(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	info, err := lock.Inspect(cfg.LockPath())
	if err != nil {
		return err
	}
	if !info.Exists {
		fmt.Println("no lock present")
		return nil
	}

	if info.PIDRunning && !forceUnlock {
		return fmt.Errorf("lock owner pid %d is still running (age %s); use --force to remove anyway",
			info.PID, info.Age.Round(time.Second))
	}

	if err := os.Remove(cfg.LockPath()); err != nil {
		return fmt.Errorf("remove lock: %w", err)
	}
	fmt.Printf("removed %s (age %s)\n", cfg.LockPath(), info.Age.Round(time.Second))
	return nil
}
