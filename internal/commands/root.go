// Package commands contains the CLI commands for antigravity-account-manager.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/j-veylop/antigravity-account-manager/internal/editor"
	"github.com/j-veylop/antigravity-account-manager/internal/logger"
	"github.com/j-veylop/antigravity-account-manager/internal/uagent"
	"github.com/j-veylop/antigravity-account-manager/internal/version"
)

var debugFlag bool

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "agm",
	Short: "Multi-account manager for the Antigravity editor",
	Long: `agm manages several sets of Antigravity editor credentials on the local
machine: it stores accounts, switches which one is active, refreshes
per-account usage quotas, and coordinates editor shutdown and restart
around each switch.`,
	Version: version.Info(),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetDebug(debugFlag)
		// Prefer the installed editor's own version when building the
		// upstream User-Agent.
		uagent.SetLocalVersionFunc(editor.InstalledVersion)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
}
