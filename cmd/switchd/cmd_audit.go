package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/switchd/pkg/audit"
	"github.com/newtron-network/switchd/pkg/cli"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View audit logs",
	Long: `View the audit log of state transitions.

Every update, warm boot and resync is logged with the user, the switch,
the entities it touched, the reconcile policy and the outcome.

Examples:
  switchd audit list --last 24h
  switchd audit list --entity neighbor --failures`,
}

var (
	auditSwitch   string
	auditUser     string
	auditOp       string
	auditEntity   string
	auditLast     string
	auditLimit    int
	auditFailures bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := userSettings.AuditLog
		if path == "" {
			return fmt.Errorf("no audit log configured: use 'switchd settings set audit_log <file>'")
		}
		filter := audit.Filter{
			Switch:      auditSwitch,
			User:        auditUser,
			Operation:   auditOp,
			Entity:      auditEntity,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
		}
		if auditLast != "" {
			duration, err := time.ParseDuration(auditLast)
			if err != nil {
				return fmt.Errorf("invalid duration: %s", auditLast)
			}
			filter.StartTime = time.Now().Add(-duration)
		}

		logger, err := audit.NewFileLogger(path, audit.RotationConfig{})
		if err != nil {
			return err
		}
		defer logger.Close()
		events, err := logger.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(events)
		}
		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		t := cli.NewTable("TIMESTAMP", "USER", "SWITCH", "OPERATION", "CHANGES", "STATUS")
		for _, e := range events {
			status := "ok"
			if !e.Success {
				status = "failed"
			}
			t.Row(e.Timestamp.Format("2006-01-02 15:04:05"), e.User, e.Switch, e.Operation,
				changeSummary(e.Changes), cli.Status(status))
		}
		t.Flush()
		return nil
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditSwitch, "switch", "", "Filter by switch")
	auditListCmd.Flags().StringVar(&auditUser, "user", "", "Filter by user")
	auditListCmd.Flags().StringVar(&auditOp, "operation", "", "Filter by operation (update, warm_boot, resync)")
	auditListCmd.Flags().StringVar(&auditEntity, "entity", "", "Filter by entity type touched")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 24h)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed operations")

	addOutputFlags(auditCmd)
	auditCmd.AddCommand(auditListCmd)
}

// changeSummary renders changes as "port +1 ~2, vlan -1".
func changeSummary(changes []audit.Change) string {
	if len(changes) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		var counts []string
		if c.Added > 0 {
			counts = append(counts, fmt.Sprintf("+%d", c.Added))
		}
		if c.Removed > 0 {
			counts = append(counts, fmt.Sprintf("-%d", c.Removed))
		}
		if c.Changed > 0 {
			counts = append(counts, fmt.Sprintf("~%d", c.Changed))
		}
		parts = append(parts, c.Entity+" "+strings.Join(counts, " "))
	}
	return strings.Join(parts, ", ")
}
