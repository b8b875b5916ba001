// Deskpanel-cfg deploys layouts and images to a DeskPanel display.
//
// A deployment switches the display into configuration mode over USB,
// hands the host's WiFi over to the display's setup access point, uploads
// icons, backgrounds and the layout JSON, then puts both back the way they
// were. Individual steps are also available as commands for debugging.
//
// Usage:
//
//	deskpanel-cfg [command] [flags]
//
// See 'deskpanel-cfg --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deskpanel/deskpanel/internal/logging"
	"github.com/deskpanel/deskpanel/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "deskpanel-cfg",
	Short: "DeskPanel Deployment Utility",
	Long: `Deploy layouts and images to a DeskPanel display.

The display has no battery and no network of its own. While plugged in over
USB it can be told to enter configuration mode, in which it opens a WiFi
access point and an HTTP API. 'deploy' drives that whole sequence and
restores the host's WiFi afterwards.

Settings such as the access point SSID and display size come from the
profile (see 'deskpanel-cfg profile show').`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "deskpanel-cfg %s\n", version.Full())
	},
}
