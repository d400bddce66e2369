package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alertme/runguard/internal/config"
)

var (
	cfgFile string
	rootDir string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "runguard",
	Short: "Run guard for the AlertMe batch job",
	Long: `runguard wraps a periodically triggered batch job: it prevents
overlapping runs via a lock file with staleness expiry, optionally pulls the
working tree from its git remote, invokes the batch executable, and appends
timestamped lines to an append-only run log.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <root>/guard.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "working root (default is the executable's directory)")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(workingRoot())
		viper.SetConfigName("guard")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("RUNGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// A missing guard.yaml is fine; the defaults describe the
	// reference deployment. An explicitly named file must exist.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}

// workingRoot resolves the working root: the --root flag when given,
// otherwise the directory the executable lives in (all artifacts are
// co-located with the binary in the reference deployment).
func workingRoot() string {
	if rootDir != "" {
		return rootDir
	}
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// loadConfig assembles the validated run configuration for subcommands.
func loadConfig() (config.Config, error) {
	return config.Load(viper.GetViper(), workingRoot())
}
