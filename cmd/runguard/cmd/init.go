package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alertme/runguard/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a guard.yaml with the default configuration",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := filepath.Join(workingRoot(), "guard.yaml")
	if err := config.WriteExample(path); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
