// switchd - switch control-plane agent
//
// switchd keeps the forwarding hardware of one switch in line with a
// desired-state configuration. The state is held as immutable snapshots;
// every change is applied as the delta between two snapshots and
// programmed through ASIC_DB.
//
// Examples:
//
//	switchd apply -c leaf1.yaml                  # program the config once
//	switchd apply -c leaf1.yaml --dry-run        # program an in-memory switch
//	switchd run -c leaf1.yaml                    # keep running, reload on SIGHUP
//	switchd show ports                           # saved snapshot
//	switchd show hardware                        # saved hardware handles
//	switchd settings set ssh_host leaf1-mgmt
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/switchd/pkg/settings"
	"github.com/newtron-network/switchd/pkg/util"
	"github.com/newtron-network/switchd/pkg/version"
)

var (
	configPath string
	stateDir   string
	logLevel   string
	jsonLogs   bool
	jsonOutput bool

	userSettings *settings.Settings
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "switchd",
	Short:             "Switch control-plane agent",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `switchd programs the forwarding hardware of a switch from a YAML
configuration and keeps it in line as the configuration changes.

Defaults for every connection flag come from ~/.switchd/settings.json.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := util.ConfigureLogging(logLevel, jsonLogs); err != nil {
			return err
		}

		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}
		if configPath == "" {
			configPath = userSettings.ConfigPath
		}
		if stateDir == "" {
			stateDir = userSettings.GetStateDir()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Switch configuration file")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "Warm boot directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "log-json", false, "Log in JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "agent", Title: "Agent Operations:"},
		&cobra.Group{ID: "query", Title: "Inspection:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)
	for _, cmd := range []*cobra.Command{applyCmd, runCmd, resyncCmd} {
		cmd.GroupID = "agent"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{showCmd, checkCmd, auditCmd} {
		cmd.GroupID = "query"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{settingsCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version.Version == "dev" {
			fmt.Println("switchd dev build (set version via -ldflags)")
		} else {
			fmt.Println("switchd " + version.Info())
		}
	},
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "JSON output")
}
