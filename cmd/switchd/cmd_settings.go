package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newtron-network/switchd/pkg/cli"
	"github.com/newtron-network/switchd/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.switchd/settings.json.

Settings provide defaults for the connection and path flags.

Examples:
  switchd settings show
  switchd settings set ssh_host leaf1-mgmt
  switchd settings set policy abort
  switchd settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Printf("Settings file: %s\n\n", settings.DefaultSettingsPath())

		t := cli.NewTable("SETTING", "VALUE")
		printSetting := func(name, value string) {
			if value == "" {
				value = "(not set)"
			}
			t.Row(name, value)
		}
		asicDB := ""
		if s.ASICDB != nil {
			asicDB = fmt.Sprint(*s.ASICDB)
		}
		sshPort := ""
		if s.SSHPort != 0 {
			sshPort = fmt.Sprint(s.SSHPort)
		}

		printSetting("redis_addr", s.RedisAddr)
		printSetting("asic_db", asicDB)
		printSetting("ssh_host", s.SSHHost)
		printSetting("ssh_user", s.SSHUser)
		printSetting("ssh_port", sshPort)
		printSetting("ssh_known_hosts", s.SSHKnownHosts)
		printSetting("config_path", s.ConfigPath)
		printSetting("state_dir", s.StateDir)
		printSetting("audit_log", s.AuditLog)
		printSetting("policy", s.Policy)

		t.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Long: `Set a persistent setting value.

Available settings:
  redis_addr  - ASIC_DB Redis address, as seen from the switch when tunnelling
  asic_db     - ASIC_DB database number
  ssh_host    - Reach Redis through an SSH tunnel to this host
  ssh_user    - SSH user for the tunnel
  ssh_port    - SSH port for the tunnel
  ssh_known_hosts - known_hosts file that pins the tunnel host key
  config_path - Default switch configuration (-c flag default)
  state_dir   - Warm boot directory (--state-dir flag default)
  audit_log   - Audit log file; unset disables auditing
  policy      - Reconcile policy: continue or abort`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			s = &settings.Settings{}
		}
		if err := s.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Printf("%s set to: %s\n", args[0], args[1])
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &settings.Settings{}
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("Settings cleared.")
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsClearCmd)
}
