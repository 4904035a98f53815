// Package cli implements the Distri command-line interface using Cobra.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/distri-network/distri/internal/daemon"
)

var rootCmd = &cobra.Command{
	Use:   "distri",
	Short: "Distri: decentralized AI compute marketplace",
	Long: `Distri runs a marketplace node: GPU owners list machines for rent,
buyers place orders against them, and machines that submit tasks share a
decaying daily reward pool.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openDaemon builds a node from $DISTRI_HOME.
var openDaemon = daemon.New

// stdout is where commands print.
var stdout io.Writer = os.Stdout
