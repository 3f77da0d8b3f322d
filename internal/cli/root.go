// Package cli defines the soclens command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "soclens",
	Short: "SOC dashboard backend",
	Long: `soclens is the backend for the SOC dashboard: it polls the alert
index and the manager API, keeps bounded live caches, fans deltas out to
connected dashboard sessions, and serves the REST API.`,
	Version: "0.1.0",
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./soclens.yaml)")
}
