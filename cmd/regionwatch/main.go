package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by ldflags at build time.
var version = "dev"

var (
	configPath string
	rulesPath  string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "regionwatch",
		Short:         "Watches regions of EVE client windows and alerts on visual change",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runMonitor,
	}
	rootCmd.Version = version
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "regionwatch.ini", "Path to the settings INI file")
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "rules.yaml", "Path to the watch rules YAML file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (trace, debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:           "run",
		Short:         "Run the monitor (same as invoking regionwatch with no command)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runMonitor,
	}

	rootCmd.AddCommand(runCmd, newWindowsCommand(), newRulesCommand(), newAlertsCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
