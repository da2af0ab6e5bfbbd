package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/switchd/pkg/cli"
	"github.com/newtron-network/switchd/pkg/health"
)

var checkName string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the hardware matches the saved state",
	Long: `Check restores the warm boot state and compares it with what ASIC_DB
actually holds: objects the agent programmed that are gone, objects nobody
owns, and entities still waiting for a dependency.

Examples:
  switchd check
  switchd check --check hardware --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		name := hostname()
		if cfg, err := loadConfig(); err == nil {
			name = cfg.Name
		}
		sess, err := connect(ctx, name)
		if err != nil {
			return err
		}
		defer sess.Close()

		checker := health.NewChecker()
		target := &health.Target{Agent: sess.agent, Lister: sess.lister}
		var report *health.Report
		if checkName != "" {
			res, err := checker.RunCheck(ctx, target, checkName)
			if err != nil {
				return err
			}
			report = &health.Report{Switch: name, Timestamp: res.Timestamp, Overall: res.Status,
				Results: []health.Result{*res}, Duration: res.Duration}
		} else {
			report = checker.Run(ctx, name, target)
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		for _, res := range report.Results {
			fmt.Printf("  %s %s  %s\n", cli.DotPad(res.Check, 12), statusWord(res.Status), res.Message)
		}
		fmt.Printf("\nOverall: %s\n", statusWord(report.Overall))
		if report.Overall == health.StatusCritical {
			return fmt.Errorf("switch %s is unhealthy", name)
		}
		return nil
	},
}

func statusWord(s health.Status) string { return cli.Status(string(s)) }

func init() {
	addConnectFlags(checkCmd)
	addOutputFlags(checkCmd)
	checkCmd.Flags().StringVar(&checkName, "check", "", "Run one check (sync, identity, hardware, pending)")
}
